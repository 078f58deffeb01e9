package uvcstream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes frame events to a NATS subject. NATS publishes
// are buffered client-side, so PublishFrame never blocks the producer
// thread on the network.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	owned   bool // Whether Close should close the connection
}

// NewNATSPublisher connects to a NATS server and publishes frame events
// on cfg.Subject.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.Subject == "" {
		return nil, fmt.Errorf("nats publisher: subject is required")
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("uvcstream-frame-publisher"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats publisher: connect %s: %w", cfg.URL, err)
	}

	return &NATSPublisher{nc: nc, subject: cfg.Subject, owned: true}, nil
}

// NewNATSPublisherWithConn wraps an existing connection. Close leaves the
// connection open for the owner.
func NewNATSPublisherWithConn(nc *nats.Conn, subject string) (*NATSPublisher, error) {
	if subject == "" {
		return nil, fmt.Errorf("nats publisher: subject is required")
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// PublishFrame implements FramePublisher.
func (p *NATSPublisher) PublishFrame(ev *FrameEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal frame event: %w", err)
	}
	if err := p.nc.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

// Close flushes and, if this publisher owns the connection, closes it.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.FlushTimeout(2 * time.Second)
	if p.owned {
		p.nc.Close()
	}
	return err
}
