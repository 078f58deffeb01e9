package uvcstream

import (
	"context"
	"errors"
)

// ErrDeviceDisconnected is returned by camera operations after the
// underlying device has gone away.
var ErrDeviceDisconnected = errors.New("device disconnected")

// FrameCallback is invoked by the camera once per captured frame. The
// data slice is a view into camera-owned memory, valid only for the
// duration of the call; implementations must return promptly.
type FrameCallback func(data []byte, capturedAtNanos int64)

// PreviewConfig is the capture geometry requested from the camera.
// FrameRate is passed through to the device but the pipeline performs no
// throttling of its own.
type PreviewConfig struct {
	Width     int
	Height    int
	FrameRate int
}

// CameraHandler is the boundary to the external device collaborator that
// owns enumeration, permissions, and USB attach/detach. The pipeline only
// drives acquisition and the per-frame callback through it.
//
// Frames are delivered serially from a single producer thread; the
// handler must not invoke the callback concurrently with itself.
type CameraHandler interface {
	// Open acquires the capture device.
	Open(ctx context.Context) error

	// SetFrameCallback registers the per-frame callback, or clears it
	// when cb is nil. Must be callable before StartPreview.
	SetFrameCallback(cb FrameCallback)

	// StartPreview begins capture at the requested geometry. Frames flow
	// to the registered callback until StopPreview.
	StartPreview(ctx context.Context, cfg PreviewConfig) error

	// StopPreview halts capture. Idempotent.
	StopPreview() error

	// OnDisconnect registers a callback invoked when the device goes
	// away involuntarily (USB detach). The callback must be invoked
	// asynchronously, never from inside Open, StartPreview, or another
	// handler method: the caller may hold control-path locks across
	// those calls.
	OnDisconnect(fn func())

	// Close releases the device. Idempotent.
	Close() error
}
