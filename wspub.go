package uvcstream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsEnvelope wraps a frame event for the websocket wire format.
type wsEnvelope struct {
	Event string      `json:"event"`
	Data  *FrameEvent `json:"data"`
}

// WSPublisher serves frame events to a single websocket client. It is an
// http.Handler: mount it on the route the listener connects to. A new
// connection replaces the previous one.
//
// PublishFrame never blocks the producer thread: events are handed to the
// write pump through a buffered channel and dropped when the client
// cannot keep up.
type WSPublisher struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	send chan []byte // nil when no client is connected
}

// NewWSPublisher creates a publisher with no client connected yet.
func NewWSPublisher(log *slog.Logger) *WSPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &WSPublisher{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and attaches the client.
func (p *WSPublisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	send := make(chan []byte, 8)

	p.mu.Lock()
	if p.send != nil {
		close(p.send)
	}
	p.send = send
	p.mu.Unlock()

	p.log.Info("frame listener connected", "remote", conn.RemoteAddr().String())
	go p.writePump(conn, send)
	go p.readPump(conn, send)
}

// PublishFrame implements FramePublisher. With no client connected, or a
// client whose buffer is full, the event is dropped.
func (p *WSPublisher) PublishFrame(ev *FrameEvent) error {
	payload, err := json.Marshal(wsEnvelope{Event: EventFrame, Data: ev})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.send == nil {
		return nil
	}
	select {
	case p.send <- payload:
	default:
		// Slow client. Dropping beats stalling the producer.
	}
	return nil
}

// Close detaches the current client, if any.
func (p *WSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.send != nil {
		close(p.send)
		p.send = nil
	}
	return nil
}

func (p *WSPublisher) writePump(conn *websocket.Conn, send chan []byte) {
	defer conn.Close()
	for payload := range send {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			p.log.Debug("frame listener write failed", "error", err)
			p.detach(send)
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump drains the connection so close frames are processed and
// detaches the client when it goes away.
func (p *WSPublisher) readPump(conn *websocket.Conn, send chan []byte) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			p.detach(send)
			return
		}
	}
}

// detach clears the registration if send is still the live channel and
// closes it, which drains and terminates the write pump so the connection
// is actually released. Stale channels were already closed by whoever
// replaced them.
func (p *WSPublisher) detach(send chan []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.send == send {
		p.send = nil
		close(send)
		p.log.Info("frame listener disconnected")
	}
}
