package uvcstream

import "errors"

// ErrSinkClosed is returned when a frame is pushed into a closed sink.
var ErrSinkClosed = errors.New("sink closed")

// VideoSink receives converted planar frames in-process.
//
// OnFrame must not block: a sink that needs to do slow work queues the
// frame internally (cloning it first, since the dispatcher releases the
// frame's buffers as soon as OnFrame returns).
type VideoSink interface {
	// OnFrame pushes one planar frame with a rotation hint in degrees
	// (fixed at zero for USB capture) and a capture timestamp in
	// nanoseconds. The frame is only valid for the duration of the call.
	OnFrame(frame *PlanarFrame, rotationDegrees int, timestampNs int64) error
}

// QueueSink is a VideoSink that hands frames to a consumer goroutine over
// a bounded channel. Frames are cloned on push and dropped when the queue
// is full, so the producer is never blocked.
type QueueSink struct {
	frames chan *PlanarFrame
	done   chan struct{}
}

// NewQueueSink creates a queue sink with the given capacity.
func NewQueueSink(capacity int) *QueueSink {
	if capacity <= 0 {
		capacity = 4
	}
	return &QueueSink{
		frames: make(chan *PlanarFrame, capacity),
		done:   make(chan struct{}),
	}
}

// OnFrame implements VideoSink.
func (s *QueueSink) OnFrame(frame *PlanarFrame, rotationDegrees int, timestampNs int64) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}

	select {
	case s.frames <- frame.Clone():
		return nil
	default:
		return nil // Queue full, drop rather than block the producer
	}
}

// Frames returns the channel consumers read converted frames from.
func (s *QueueSink) Frames() <-chan *PlanarFrame {
	return s.frames
}

// Close stops the sink. Pending frames remain readable.
func (s *QueueSink) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}
