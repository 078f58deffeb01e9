package uvcstream

import "errors"

// ErrEmptyFrame is returned when the producer hands over a buffer with no
// remaining bytes. Expected transiently at stream start/stop boundaries;
// callers drop such frames without propagating the error upward.
var ErrEmptyFrame = errors.New("empty frame")

// ViewFrame wraps a producer-owned buffer as a RawFrame view.
//
// The view never mutates the underlying region and carries no read-cursor
// state; the producer is free to reuse the region after the callback that
// supplied it returns. The returned frame aliases data directly, so it is
// valid only until that callback returns (Clone to retain).
func ViewFrame(data []byte, width, height int, capturedAt int64) (*RawFrame, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}
	return &RawFrame{
		Data:       data,
		Width:      width,
		Height:     height,
		Format:     PixelFormatSemiPlanar420,
		CapturedAt: capturedAt,
	}, nil
}
