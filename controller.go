package uvcstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Stream status values returned to the host application.
const (
	StatusStreaming = "streaming"
	StatusStopped   = "stopped"
	StatusError     = "error"
)

// Default capture geometry, matching the plugin's negotiated preview size.
const (
	DefaultWidth     = 640
	DefaultHeight    = 480
	DefaultFrameRate = 30
)

// StartRequest carries the host application's start parameters.
// TargetFrameRate is forwarded to the device but not enforced by the
// pipeline: no frame-rate throttling happens downstream.
type StartRequest struct {
	Width           int
	Height          int
	TargetFrameRate int
}

// StreamStatus is the control-surface result of a start or stop call.
type StreamStatus struct {
	Status string `json:"status"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// StreamStats reports the live (or last) session's delivery counters.
type StreamStats struct {
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	FramesDelivered uint64 `json:"framesDelivered"`
}

func (s StreamStats) String() string {
	return fmt.Sprintf("%dx%d, %d frames delivered", s.Width, s.Height, s.FramesDelivered)
}

// ControllerConfig configures a StreamController. Camera and exactly one
// consumer (Publisher or Sink) are required.
type ControllerConfig struct {
	Camera    CameraHandler
	Publisher FramePublisher
	Sink      VideoSink

	Logger  *slog.Logger
	Metrics *Metrics

	// OnSessionStopped is notified after a session ends, with the reason.
	// StopReasonDisconnected means acquisition was terminated
	// involuntarily. May be nil. Called without controller locks held.
	OnSessionStopped func(reason StopReason)
}

// StreamController is the external-facing control surface. It drives
// device acquisition through the CameraHandler collaborator and owns the
// one-live-session-at-a-time invariant; each activation gets a freshly
// constructed StreamSession.
type StreamController struct {
	camera    CameraHandler
	publisher FramePublisher
	sink      VideoSink
	log       *slog.Logger
	metrics   *Metrics
	onStopped func(StopReason)

	mu      sync.Mutex
	session *StreamSession
}

// NewStreamController creates a controller for the given configuration.
func NewStreamController(cfg ControllerConfig) (*StreamController, error) {
	if cfg.Camera == nil {
		return nil, errors.New("controller: camera handler is required")
	}
	if (cfg.Publisher == nil) == (cfg.Sink == nil) {
		return nil, errors.New("controller: exactly one of Publisher or Sink must be set")
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &StreamController{
		camera:    cfg.Camera,
		publisher: cfg.Publisher,
		sink:      cfg.Sink,
		log:       log,
		metrics:   cfg.Metrics,
		onStopped: cfg.OnSessionStopped,
	}, nil
}

// StartStream acquires the device, starts the preview, and activates a
// new streaming session. Starting while a session is live fails with
// ErrAlreadyStreaming and leaves the existing session untouched.
func (c *StreamController) StartStream(ctx context.Context, req StartRequest) (StreamStatus, error) {
	if req.Width <= 0 {
		req.Width = DefaultWidth
	}
	if req.Height <= 0 {
		req.Height = DefaultHeight
	}
	if req.TargetFrameRate <= 0 {
		req.TargetFrameRate = DefaultFrameRate
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.State() != SessionIdle {
		return StreamStatus{Status: StatusError}, ErrAlreadyStreaming
	}

	sess, err := NewStreamSession(SessionConfig{
		Width:     req.Width,
		Height:    req.Height,
		Publisher: c.publisher,
		Sink:      c.sink,
		Logger:    c.log,
		Metrics:   c.metrics,
	})
	if err != nil {
		return StreamStatus{Status: StatusError}, err
	}
	if err := sess.Start(); err != nil {
		return StreamStatus{Status: StatusError}, err
	}

	if err := c.camera.Open(ctx); err != nil {
		sess.Stop()
		return StreamStatus{Status: StatusError}, fmt.Errorf("open camera: %w", err)
	}

	c.camera.OnDisconnect(func() { c.handleDisconnect(sess) })
	c.camera.SetFrameCallback(sess.HandleFrame)

	if err := c.camera.StartPreview(ctx, PreviewConfig{
		Width:     req.Width,
		Height:    req.Height,
		FrameRate: req.TargetFrameRate,
	}); err != nil {
		c.camera.SetFrameCallback(nil)
		c.camera.Close()
		sess.Stop()
		return StreamStatus{Status: StatusError}, fmt.Errorf("start preview: %w", err)
	}

	if err := sess.DeviceReady(); err != nil {
		c.camera.SetFrameCallback(nil)
		c.camera.StopPreview()
		c.camera.Close()
		return StreamStatus{Status: StatusError}, err
	}

	c.session = sess
	return StreamStatus{Status: StatusStreaming, Width: req.Width, Height: req.Height}, nil
}

// StopStream tears the live session down. Idempotent: stopping when no
// session is live just reports the stopped status.
func (c *StreamController) StopStream() StreamStatus {
	c.mu.Lock()
	sess := c.session
	var stopped bool
	if sess != nil && sess.State() != SessionIdle {
		sess.Stop()
		c.camera.SetFrameCallback(nil)
		c.camera.StopPreview()
		c.camera.Close()
		stopped = true
	}
	c.mu.Unlock()

	if stopped {
		c.notify(StopReasonRequested)
	}
	return StreamStatus{Status: StatusStopped}
}

// Streaming reports whether a session is currently active.
func (c *StreamController) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil && c.session.State() == SessionActive
}

// Stats returns delivery counters for the live session, or the last one
// if streaming has stopped.
func (c *StreamController) Stats() StreamStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return StreamStats{}
	}
	return StreamStats{
		Width:           c.session.Width(),
		Height:          c.session.Height(),
		FramesDelivered: c.session.FramesDelivered(),
	}
}

// handleDisconnect handles involuntary device loss for sess. Stale
// notifications from a previous session's registration are ignored.
func (c *StreamController) handleDisconnect(sess *StreamSession) {
	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return
	}

	c.log.Warn("capture device disconnected")
	sess.DeviceDisconnected()
	c.camera.SetFrameCallback(nil)
	c.camera.StopPreview()
	c.camera.Close()
	c.mu.Unlock()

	c.notify(StopReasonDisconnected)
}

func (c *StreamController) notify(reason StopReason) {
	if c.onStopped != nil {
		c.onStopped(reason)
	}
}
