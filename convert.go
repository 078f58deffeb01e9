package uvcstream

import (
	"errors"
	"fmt"
)

// ErrInvalidDimensions is returned when a frame reports a non-positive
// width or height.
var ErrInvalidDimensions = errors.New("invalid frame dimensions")

// UndersizedInputError reports a semi-planar input buffer smaller than the
// minimum 4:2:0 frame size for its dimensions. This happens transiently at
// stream start/stop and must be checked explicitly, never relied on to
// fault out of bounds.
type UndersizedInputError struct {
	Expected int // Minimum bytes required (width*height*3/2)
	Actual   int // Bytes supplied
}

func (e *UndersizedInputError) Error() string {
	return fmt.Sprintf("undersized input: expected at least %d bytes, got %d", e.Expected, e.Actual)
}

// ChromaSizeMismatchError reports a chroma plane that cannot supply the
// number of interleaved sample pairs the frame dimensions require. This is
// reported rather than truncated silently.
type ChromaSizeMismatchError struct {
	Need int // Pairs required: chromaWidth * chromaHeight
	Have int // Pairs available after the luma plane
}

func (e *ChromaSizeMismatchError) Error() string {
	return fmt.Sprintf("chroma size mismatch: need %d sample pairs, have %d", e.Need, e.Have)
}

// Converter converts semi-planar 4:2:0 frames to planar 4:2:0.
//
// Output frames come from a per-converter pool so the per-frame conversion
// path allocates nothing in steady state; callers release frames after
// dispatch via PlanarFrame.Release.
type Converter struct {
	pool *PlanarFramePool
}

// NewConverter creates a converter with a frame pool for the given
// expected geometry. Frames of other dimensions still convert correctly
// but bypass the pool.
func NewConverter(width, height int) *Converter {
	return &Converter{pool: NewPlanarFramePool(width, height)}
}

// Convert converts a semi-planar 4:2:0 frame to a planar 4:2:0 frame.
//
// The luma plane is copied verbatim. The interleaved chroma plane that
// follows it holds V-then-U sample pairs (NV21 pairing); pair i supplies
// V plane position i and U plane position i. The input is never mutated.
func (c *Converter) Convert(raw *RawFrame) (*PlanarFrame, error) {
	if raw.Width <= 0 || raw.Height <= 0 {
		return nil, ErrInvalidDimensions
	}

	lumaSize := raw.Width * raw.Height
	if minSize := SemiPlanarSize(raw.Width, raw.Height); len(raw.Data) < minSize {
		return nil, &UndersizedInputError{Expected: minSize, Actual: len(raw.Data)}
	}

	cw := (raw.Width + 1) / 2
	ch := (raw.Height + 1) / 2
	chromaCount := cw * ch
	if have := (len(raw.Data) - lumaSize) / 2; have < chromaCount {
		return nil, &ChromaSizeMismatchError{Need: chromaCount, Have: have}
	}

	out := c.acquire(raw.Width, raw.Height)
	copy(out.Y[:lumaSize], raw.Data[:lumaSize])

	for i := 0; i < chromaCount; i++ {
		off := lumaSize + 2*i
		out.V[i] = raw.Data[off]
		out.U[i] = raw.Data[off+1]
	}

	return out, nil
}

func (c *Converter) acquire(width, height int) *PlanarFrame {
	if c.pool != nil && c.pool.width == width && c.pool.height == height {
		return c.pool.Get()
	}
	return NewPlanarFrame(width, height)
}
