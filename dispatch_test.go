package uvcstream

import (
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockPublisher records every event it is handed.
type mockPublisher struct {
	mu     sync.Mutex
	events []*FrameEvent
	err    error
}

func (m *mockPublisher) PublishFrame(ev *FrameEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *mockPublisher) published() []*FrameEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*FrameEvent(nil), m.events...)
}

// panicPublisher blows up on every frame.
type panicPublisher struct{}

func (panicPublisher) PublishFrame(*FrameEvent) error { panic("publisher bug") }

func testRawFrame(w, h int) *RawFrame {
	return &RawFrame{
		Data:       makeSemiPlanar(w, h),
		Width:      w,
		Height:     h,
		Format:     PixelFormatSemiPlanar420,
		CapturedAt: time.Now().UnixNano(),
	}
}

func TestListenerDispatcherPublishes(t *testing.T) {
	pub := &mockPublisher{}
	d := NewListenerDispatcher(nil, nil)
	d.now = func() time.Time { return time.UnixMilli(1700000000000) }
	d.Bind(pub)

	raw := testRawFrame(4, 4)
	d.Dispatch(raw)

	events := pub.published()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Width != 4 || ev.Height != 4 {
		t.Errorf("event dims = %dx%d, want 4x4", ev.Width, ev.Height)
	}
	if ev.Format != "YUV420SP" {
		t.Errorf("event format = %q, want YUV420SP", ev.Format)
	}
	if ev.Timestamp != 1700000000000 {
		t.Errorf("event timestamp = %d, want wall-clock millis", ev.Timestamp)
	}

	decoded, err := base64.StdEncoding.DecodeString(ev.FrameData)
	if err != nil {
		t.Fatalf("frameData is not valid base64: %v", err)
	}
	if len(decoded) != len(raw.Data) {
		t.Errorf("decoded %d bytes, want %d", len(decoded), len(raw.Data))
	}

	if d.FramesDelivered() != 1 {
		t.Errorf("FramesDelivered = %d, want 1", d.FramesDelivered())
	}
}

func TestListenerDispatcherNoConsumer(t *testing.T) {
	d := NewListenerDispatcher(nil, nil)

	// No binding yet: frames drop silently.
	d.Dispatch(testRawFrame(4, 4))
	if d.FramesDelivered() != 0 {
		t.Errorf("FramesDelivered = %d, want 0", d.FramesDelivered())
	}
	if d.dropped.Load() != 1 {
		t.Errorf("dropped = %d, want 1", d.dropped.Load())
	}
}

func TestListenerDispatcherPublishError(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broken pipe")}
	d := NewListenerDispatcher(nil, nil)
	d.Bind(pub)

	// A failed publish drops the frame but must not panic or wedge.
	d.Dispatch(testRawFrame(4, 4))
	if d.FramesDelivered() != 0 {
		t.Errorf("FramesDelivered = %d, want 0 after publish error", d.FramesDelivered())
	}

	// Stream continues: clearing the error lets the next frame through.
	pub.err = nil
	d.Dispatch(testRawFrame(4, 4))
	if d.FramesDelivered() != 1 {
		t.Errorf("FramesDelivered = %d, want 1 after recovery", d.FramesDelivered())
	}
}

func TestListenerDispatcherRecoversPanic(t *testing.T) {
	d := NewListenerDispatcher(nil, nil)
	d.Bind(panicPublisher{})

	d.Dispatch(testRawFrame(4, 4)) // Must not propagate the panic
	if d.dropped.Load() != 1 {
		t.Errorf("dropped = %d, want 1 after panic", d.dropped.Load())
	}
}

func TestListenerDispatcherUnbindToken(t *testing.T) {
	pub := &mockPublisher{}
	d := NewListenerDispatcher(nil, nil)

	stale := d.Bind(pub)
	fresh := d.Bind(pub)

	// A stale token must not clear the fresh registration.
	d.Unbind(stale)
	d.Dispatch(testRawFrame(4, 4))
	if len(pub.published()) != 1 {
		t.Fatal("stale unbind cleared the live registration")
	}

	d.Unbind(fresh)
	d.Dispatch(testRawFrame(4, 4))
	if len(pub.published()) != 1 {
		t.Fatal("frame delivered after unbind")
	}
}

// mockSink records pushes and clones frames so assertions can outlive the
// dispatcher's release.
type mockSink struct {
	mu       sync.Mutex
	frames   []*PlanarFrame
	rotation []int
	stamps   []int64
	err      error
}

func (m *mockSink) OnFrame(frame *PlanarFrame, rotationDegrees int, timestampNs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.frames = append(m.frames, frame.Clone())
	m.rotation = append(m.rotation, rotationDegrees)
	m.stamps = append(m.stamps, timestampNs)
	return nil
}

func TestSinkDispatcherConvertsAndPushes(t *testing.T) {
	sink := &mockSink{}
	d := NewSinkDispatcher(4, 4, nil, nil)
	d.Bind(sink)

	raw := testRawFrame(4, 4)
	d.Dispatch(raw)

	if len(sink.frames) != 1 {
		t.Fatalf("pushed %d frames, want 1", len(sink.frames))
	}
	got := sink.frames[0]
	if got.Width != 4 || got.Height != 4 {
		t.Errorf("frame = %dx%d, want 4x4", got.Width, got.Height)
	}
	if got.V[0] != 200 || got.U[0] != 100 {
		t.Errorf("chroma pair 0 = V%d/U%d, want V200/U100", got.V[0], got.U[0])
	}
	if sink.rotation[0] != 0 {
		t.Errorf("rotation = %d, want 0", sink.rotation[0])
	}
	if sink.stamps[0] != raw.CapturedAt {
		t.Errorf("timestamp = %d, want capture time %d", sink.stamps[0], raw.CapturedAt)
	}
	if d.FramesDelivered() != 1 {
		t.Errorf("FramesDelivered = %d, want 1", d.FramesDelivered())
	}
}

func TestSinkDispatcherConversionError(t *testing.T) {
	sink := &mockSink{}
	d := NewSinkDispatcher(4, 4, nil, nil)
	d.Bind(sink)

	// Undersized frame: dropped, stream continues.
	d.Dispatch(&RawFrame{Data: make([]byte, 3), Width: 4, Height: 4})
	if len(sink.frames) != 0 {
		t.Fatal("undersized frame reached the sink")
	}
	if d.dropped.Load() != 1 {
		t.Errorf("dropped = %d, want 1", d.dropped.Load())
	}

	d.Dispatch(testRawFrame(4, 4))
	if len(sink.frames) != 1 {
		t.Fatal("valid frame after conversion error did not reach the sink")
	}
}

func TestSinkDispatcherSinkError(t *testing.T) {
	sink := &mockSink{err: ErrSinkClosed}
	d := NewSinkDispatcher(4, 4, nil, nil)
	d.Bind(sink)

	d.Dispatch(testRawFrame(4, 4))
	if d.FramesDelivered() != 0 {
		t.Errorf("FramesDelivered = %d, want 0 after sink error", d.FramesDelivered())
	}
	if d.dropped.Load() != 1 {
		t.Errorf("dropped = %d, want 1", d.dropped.Load())
	}
}

func TestSinkDispatcherUnbind(t *testing.T) {
	sink := &mockSink{}
	d := NewSinkDispatcher(4, 4, nil, nil)
	token := d.Bind(sink)

	d.Unbind(token)
	d.Dispatch(testRawFrame(4, 4))
	if len(sink.frames) != 0 {
		t.Fatal("frame delivered after unbind")
	}

	// Unbinding the zero token again is harmless.
	d.Unbind(uuid.UUID{})
}

func TestQueueSinkDropsWhenFull(t *testing.T) {
	sink := NewQueueSink(1)
	defer sink.Close()

	frame := NewPlanarFrame(4, 4)
	if err := sink.OnFrame(frame, 0, 1); err != nil {
		t.Fatalf("first push: %v", err)
	}
	// Queue full: push must not block and must not error.
	if err := sink.OnFrame(frame, 0, 2); err != nil {
		t.Fatalf("second push: %v", err)
	}

	select {
	case got := <-sink.Frames():
		if got.Width != 4 {
			t.Errorf("queued frame width = %d, want 4", got.Width)
		}
	default:
		t.Fatal("no frame queued")
	}
	select {
	case <-sink.Frames():
		t.Fatal("overflow frame was queued")
	default:
	}
}
