package uvcstream

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// frameLogInterval controls the diagnostic log cadence on the frame path.
const frameLogInterval = 30

// Dispatcher delivers raw frames to a bound consumer. Dispatch never
// blocks the producer beyond conversion plus a non-blocking push, and a
// failure on one frame never terminates the stream.
type Dispatcher interface {
	// Dispatch delivers one frame. It is a silent no-op when no consumer
	// is bound (a normal transient state during setup and teardown).
	Dispatch(raw *RawFrame)

	// Unbind removes the consumer registered under token. Stale tokens
	// are ignored, so an old registration can never clear a new one.
	Unbind(token uuid.UUID)

	// FramesDelivered returns the monotonic delivered-frame count. Safe
	// to call concurrently with the producer thread.
	FramesDelivered() uint64
}

// ListenerDispatcher serializes raw frames and publishes them to a single
// registered out-of-process listener.
type ListenerDispatcher struct {
	mu    sync.RWMutex
	pub   FramePublisher
	token uuid.UUID

	frames  atomic.Uint64
	dropped atomic.Uint64

	log     *slog.Logger
	metrics *Metrics

	// now is swappable for tests.
	now func() time.Time
}

// NewListenerDispatcher creates a listener-mode dispatcher. A nil logger
// falls back to slog.Default.
func NewListenerDispatcher(log *slog.Logger, metrics *Metrics) *ListenerDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &ListenerDispatcher{log: log, metrics: metrics, now: time.Now}
}

// Bind registers pub as the sole listener, replacing any previous one,
// and returns the registration token.
func (d *ListenerDispatcher) Bind(pub FramePublisher) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pub = pub
	d.token = uuid.New()
	return d.token
}

// Unbind implements Dispatcher.
func (d *ListenerDispatcher) Unbind(token uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.token == token {
		d.pub = nil
		d.token = uuid.UUID{}
	}
}

// Dispatch implements Dispatcher. The raw bytes are copied during base64
// encoding, so nothing retains the producer's buffer past this call.
func (d *ListenerDispatcher) Dispatch(raw *RawFrame) {
	defer d.recoverFrame()

	d.mu.RLock()
	pub := d.pub
	d.mu.RUnlock()
	if pub == nil {
		d.drop()
		return
	}

	ev := &FrameEvent{
		FrameData: encodeFrameData(raw.Data),
		Width:     raw.Width,
		Height:    raw.Height,
		Format:    raw.Format.String(),
		Timestamp: d.now().UnixMilli(),
	}
	if err := pub.PublishFrame(ev); err != nil {
		d.log.Warn("frame publish failed", "err", err)
		d.drop()
		return
	}

	d.delivered()
}

// FramesDelivered implements Dispatcher.
func (d *ListenerDispatcher) FramesDelivered() uint64 {
	return d.frames.Load()
}

func (d *ListenerDispatcher) delivered() {
	n := d.frames.Add(1)
	d.metrics.frameDelivered()
	if n%frameLogInterval == 0 {
		d.log.Debug("published frames to listener", "count", n)
	}
}

func (d *ListenerDispatcher) drop() {
	d.dropped.Add(1)
	d.metrics.frameDropped()
}

func (d *ListenerDispatcher) recoverFrame() {
	if r := recover(); r != nil {
		d.log.Error("panic dispatching frame", "panic", r)
		d.drop()
	}
}

// SinkDispatcher converts raw frames to planar 4:2:0 and pushes them into
// a single registered in-process sink.
type SinkDispatcher struct {
	mu    sync.RWMutex
	sink  VideoSink
	token uuid.UUID

	conv *Converter

	frames  atomic.Uint64
	dropped atomic.Uint64

	log     *slog.Logger
	metrics *Metrics
}

// NewSinkDispatcher creates a sink-mode dispatcher with a converter sized
// for the expected frame geometry.
func NewSinkDispatcher(width, height int, log *slog.Logger, metrics *Metrics) *SinkDispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &SinkDispatcher{
		conv:    NewConverter(width, height),
		log:     log,
		metrics: metrics,
	}
}

// Bind registers sink as the sole consumer, replacing any previous one,
// and returns the registration token.
func (d *SinkDispatcher) Bind(sink VideoSink) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
	d.token = uuid.New()
	return d.token
}

// Unbind implements Dispatcher.
func (d *SinkDispatcher) Unbind(token uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.token == token {
		d.sink = nil
		d.token = uuid.UUID{}
	}
}

// Dispatch implements Dispatcher. The planar frame's buffers are released
// here after the push, never by the sink.
func (d *SinkDispatcher) Dispatch(raw *RawFrame) {
	defer d.recoverFrame()

	d.mu.RLock()
	sink := d.sink
	d.mu.RUnlock()
	if sink == nil {
		d.drop()
		return
	}

	planar, err := d.conv.Convert(raw)
	if err != nil {
		d.log.Warn("frame conversion failed", "err", err,
			"width", raw.Width, "height", raw.Height, "bytes", len(raw.Data))
		d.metrics.conversionError()
		d.drop()
		return
	}

	err = sink.OnFrame(planar, 0, raw.CapturedAt)
	planar.Release()
	if err != nil {
		d.log.Warn("sink push failed", "err", err)
		d.drop()
		return
	}

	d.delivered()
}

// FramesDelivered implements Dispatcher.
func (d *SinkDispatcher) FramesDelivered() uint64 {
	return d.frames.Load()
}

func (d *SinkDispatcher) delivered() {
	n := d.frames.Add(1)
	d.metrics.frameDelivered()
	if n%frameLogInterval == 0 {
		d.log.Debug("pushed frames to sink", "count", n)
	}
}

func (d *SinkDispatcher) drop() {
	d.dropped.Add(1)
	d.metrics.frameDropped()
}

func (d *SinkDispatcher) recoverFrame() {
	if r := recover(); r != nil {
		d.log.Error("panic dispatching frame", "panic", r)
		d.drop()
	}
}
