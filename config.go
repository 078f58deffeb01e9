// Configuration schema and loader for the uvcstream pipeline.
package uvcstream

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DispatchMode selects how frames leave the pipeline.
type DispatchMode string

const (
	// ModeListener serializes raw frames and publishes them to an
	// out-of-process listener.
	ModeListener DispatchMode = "listener"

	// ModeSink converts frames to planar 4:2:0 and pushes them to an
	// in-process video sink.
	ModeSink DispatchMode = "sink"
)

// IsValid reports whether m is a recognised dispatch mode.
func (m DispatchMode) IsValid() bool {
	return m == ModeListener || m == ModeSink
}

// NATSConfig configures the NATS frame publisher.
type NATSConfig struct {
	// URL is the NATS server URL (e.g. "nats://localhost:4222").
	URL string `yaml:"url"`

	// Subject is the subject frame events are published on.
	Subject string `yaml:"subject"`
}

// WebSocketConfig configures the websocket frame publisher.
type WebSocketConfig struct {
	// ListenAddr is the TCP address the frame endpoint listens on.
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the root configuration, typically loaded from YAML.
type Config struct {
	// Capture geometry and rate requested from the device. The frame
	// rate is forwarded but not enforced by the pipeline.
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	FrameRate int `yaml:"frame_rate"`

	// Mode selects listener or sink dispatch.
	Mode DispatchMode `yaml:"mode"`

	NATS      NATSConfig      `yaml:"nats"`
	WebSocket WebSocketConfig `yaml:"websocket"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the default configuration: 640x480 at 30 fps in
// listener mode.
func DefaultConfig() Config {
	return Config{
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		FrameRate: DefaultFrameRate,
		Mode:      ModeListener,
		NATS: NATSConfig{
			URL:     "nats://localhost:4222",
			Subject: "uvcstream.frames",
		},
		WebSocket: WebSocketConfig{
			ListenAddr: ":8089",
		},
		LogLevel: "info",
	}
}

// Load reads configuration from a YAML file, applying defaults for
// unset fields.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader reads configuration from YAML, applying defaults for
// unset fields and validating the result.
func LoadFromReader(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run
// with.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: %w: %dx%d", ErrInvalidDimensions, c.Width, c.Height)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("config: frame_rate must be positive, got %d", c.FrameRate)
	}
	if !c.Mode.IsValid() {
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.Mode == ModeListener && c.NATS.URL == "" && c.WebSocket.ListenAddr == "" {
		return fmt.Errorf("config: listener mode needs a nats url or a websocket listen_addr")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}
