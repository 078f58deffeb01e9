package uvcstream

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SessionState represents the state of a streaming session.
type SessionState int32

const (
	SessionIdle     SessionState = iota // Not started, or fully torn down
	SessionStarting                     // Start requested, waiting for the device
	SessionActive                       // Frames flowing to the consumer
	SessionStopping                     // Teardown in progress
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionStarting:
		return "starting"
	case SessionActive:
		return "active"
	case SessionStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// StopReason distinguishes how a session ended.
type StopReason string

const (
	// StopReasonRequested is a stop initiated by the host application.
	StopReasonRequested StopReason = "user_requested"

	// StopReasonDisconnected is an involuntary stop: the capture device
	// went away while the session was live.
	StopReasonDisconnected StopReason = "device_disconnected"
)

var (
	// ErrAlreadyStreaming is returned when a start is requested while a
	// session is already live.
	ErrAlreadyStreaming = errors.New("stream already active")

	// ErrSessionNotStarting is returned when device readiness is signaled
	// to a session that is not waiting for it.
	ErrSessionNotStarting = errors.New("session not in starting state")
)

// SessionConfig configures a streaming session. Exactly one consumer
// (Publisher or Sink) must be set.
type SessionConfig struct {
	Width  int // Negotiated frame width
	Height int // Negotiated frame height

	Publisher FramePublisher // Listener mode: serialize and publish raw frames
	Sink      VideoSink      // Sink mode: convert and push planar frames

	Logger  *slog.Logger // nil falls back to slog.Default
	Metrics *Metrics     // nil disables metrics

	// OnStopped is invoked once per session after teardown completes,
	// with the reason streaming ended. May be nil.
	OnStopped func(reason StopReason)
}

// StreamSession owns one activation-to-teardown lifecycle of the frame
// pipeline: the state machine, the consumer registration, and the
// streaming flag the producer callback checks.
//
// A session is single-use. Restarting after a stop means constructing a
// fresh session, so no consumer reference can survive a teardown.
type StreamSession struct {
	id     string
	width  int
	height int

	state     atomic.Int32
	streaming atomic.Bool

	// mu serializes control-thread transitions. The producer thread never
	// takes it: the frame path reads only the streaming flag and the
	// dispatcher's own registration lock.
	mu    sync.Mutex
	disp  Dispatcher
	bind  func() uuid.UUID
	token uuid.UUID

	log       *slog.Logger
	metrics   *Metrics
	onStopped func(StopReason)
}

// NewStreamSession creates an idle session for the given configuration.
func NewStreamSession(cfg SessionConfig) (*StreamSession, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("session: %w: %dx%d", ErrInvalidDimensions, cfg.Width, cfg.Height)
	}
	if (cfg.Publisher == nil) == (cfg.Sink == nil) {
		return nil, errors.New("session: exactly one of Publisher or Sink must be set")
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &StreamSession{
		id:        uuid.NewString(),
		width:     cfg.Width,
		height:    cfg.Height,
		metrics:   cfg.Metrics,
		onStopped: cfg.OnStopped,
	}
	s.log = log.With("session", s.id)

	if cfg.Publisher != nil {
		d := NewListenerDispatcher(s.log, cfg.Metrics)
		s.disp = d
		s.bind = func() uuid.UUID { return d.Bind(cfg.Publisher) }
	} else {
		d := NewSinkDispatcher(cfg.Width, cfg.Height, s.log, cfg.Metrics)
		s.disp = d
		s.bind = func() uuid.UUID { return d.Bind(cfg.Sink) }
	}

	return s, nil
}

// ID returns the session's unique identifier.
func (s *StreamSession) ID() string {
	return s.id
}

// State returns the current session state.
func (s *StreamSession) State() SessionState {
	return SessionState(s.state.Load())
}

// Width returns the negotiated frame width.
func (s *StreamSession) Width() int { return s.width }

// Height returns the negotiated frame height.
func (s *StreamSession) Height() int { return s.height }

// FramesDelivered returns the number of frames delivered to the consumer.
func (s *StreamSession) FramesDelivered() uint64 {
	return s.disp.FramesDelivered()
}

// Start moves the session from Idle to Starting. A session can only be
// started once; starting a used or already-started session returns
// ErrAlreadyStreaming.
func (s *StreamSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CompareAndSwap(int32(SessionIdle), int32(SessionStarting)) {
		return ErrAlreadyStreaming
	}
	s.metrics.setSessionState(SessionStarting)
	s.log.Debug("session starting", "width", s.width, "height", s.height)
	return nil
}

// DeviceReady moves the session from Starting to Active once the device
// collaborator confirms the preview has begun. The consumer registration
// happens atomically with the transition: frames arriving before this
// call are dropped by the dispatcher.
func (s *StreamSession) DeviceReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if SessionState(s.state.Load()) != SessionStarting {
		return ErrSessionNotStarting
	}

	s.token = s.bind()
	s.streaming.Store(true)
	s.state.Store(int32(SessionActive))
	s.metrics.setSessionState(SessionActive)
	s.log.Info("streaming started", "width", s.width, "height", s.height)
	return nil
}

// HandleFrame is the producer-thread frame callback. It returns promptly:
// one flag read on the fast-out path, one conversion plus a non-blocking
// push when streaming.
//
// The streaming flag is read before anything else; once it reads false
// the consumer reference is never touched, so a concurrent stop can never
// expose a half-torn registration.
func (s *StreamSession) HandleFrame(data []byte, capturedAtNanos int64) {
	if !s.streaming.Load() {
		return
	}
	if capturedAtNanos == 0 {
		capturedAtNanos = time.Now().UnixNano()
	}

	raw, err := ViewFrame(data, s.width, s.height, capturedAtNanos)
	if err != nil {
		// Empty frames are expected at stream boundaries: drop quietly.
		s.metrics.frameDropped()
		return
	}
	s.disp.Dispatch(raw)
}

// Stop tears the session down. Idempotent: stopping an Idle or already
// Stopping session is a no-op.
func (s *StreamSession) Stop() {
	s.stop(StopReasonRequested)
}

// DeviceDisconnected tears the session down like Stop, but reports the
// termination as involuntary to the host application.
func (s *StreamSession) DeviceDisconnected() {
	s.stop(StopReasonDisconnected)
}

func (s *StreamSession) stop(reason StopReason) {
	s.mu.Lock()

	switch SessionState(s.state.Load()) {
	case SessionIdle, SessionStopping:
		s.mu.Unlock()
		return
	}

	// Clear the flag before touching the consumer registration so an
	// in-flight producer callback exits early instead of dispatching
	// into a half-torn reference.
	s.streaming.Store(false)
	s.state.Store(int32(SessionStopping))
	s.metrics.setSessionState(SessionStopping)

	s.disp.Unbind(s.token)
	s.token = uuid.UUID{}

	s.state.Store(int32(SessionIdle))
	s.metrics.setSessionState(SessionIdle)
	s.log.Info("streaming stopped", "reason", string(reason),
		"frames", s.disp.FramesDelivered())

	cb := s.onStopped
	s.onStopped = nil
	s.mu.Unlock()

	if cb != nil {
		cb(reason)
	}
}
