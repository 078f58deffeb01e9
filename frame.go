// Core frame types used across the streaming pipeline.
package uvcstream

import "sync"

// PixelFormat represents the pixel layouts handled by the pipeline.
type PixelFormat int

const (
	PixelFormatSemiPlanar420 PixelFormat = iota // YUV 4:2:0 semi-planar (Y + interleaved VU), camera wire format
	PixelFormatPlanar420                        // YUV 4:2:0 planar (Y + U + V), sink format
)

// String returns the wire label for the format, matching what the
// camera negotiates ("YUV420SP") and what planar consumers expect ("I420").
func (p PixelFormat) String() string {
	switch p {
	case PixelFormatSemiPlanar420:
		return "YUV420SP"
	case PixelFormatPlanar420:
		return "I420"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatSemiPlanar420:
		return 2 // Y, interleaved VU
	case PixelFormatPlanar420:
		return 3 // Y, U, V
	default:
		return 0
	}
}

// RawFrame is a read-only view over producer-owned memory.
//
// The view is valid only for the duration of the producer callback that
// supplied it: the camera reuses the underlying region for the next frame.
// Code that needs the bytes past the callback must Clone first.
type RawFrame struct {
	Data       []byte      // Frame bytes (view into producer memory, not a copy)
	Width      int         // Frame width in pixels
	Height     int         // Frame height in pixels
	Format     PixelFormat // Always PixelFormatSemiPlanar420 for camera frames
	CapturedAt int64       // Capture timestamp in nanoseconds
}

// Clone creates a deep copy of the raw frame.
// Use this when frame data must outlive the producer callback.
func (f *RawFrame) Clone() *RawFrame {
	clone := &RawFrame{
		Width:      f.Width,
		Height:     f.Height,
		Format:     f.Format,
		CapturedAt: f.CapturedAt,
	}
	if f.Data != nil {
		clone.Data = make([]byte, len(f.Data))
		copy(clone.Data, f.Data)
	}
	return clone
}

// SemiPlanarSize returns the buffer size of a semi-planar 4:2:0 frame.
func SemiPlanarSize(width, height int) int {
	return width * height * 3 / 2
}

// PlanarFrame is an owned, pipeline-allocated 4:2:0 planar frame.
//
// Invariants: StrideY == Width, StrideU == StrideV == ChromaWidth,
// len(Y) >= Width*Height, len(U) and len(V) >= ChromaWidth*ChromaHeight.
// A frame is produced once per input frame, consumed by exactly one
// dispatch and then released; it is never shared across frames.
type PlanarFrame struct {
	Y []byte // Luma plane
	U []byte // Cb plane
	V []byte // Cr plane

	Width        int
	Height       int
	StrideY      int
	StrideU      int
	StrideV      int
	ChromaWidth  int // (Width+1)/2
	ChromaHeight int // (Height+1)/2

	pool *PlanarFramePool // Set when the frame came from a pool
}

// NewPlanarFrame allocates a planar frame for the given dimensions.
func NewPlanarFrame(width, height int) *PlanarFrame {
	cw := (width + 1) / 2
	ch := (height + 1) / 2
	return &PlanarFrame{
		Y:            make([]byte, width*height),
		U:            make([]byte, cw*ch),
		V:            make([]byte, cw*ch),
		Width:        width,
		Height:       height,
		StrideY:      width,
		StrideU:      cw,
		StrideV:      cw,
		ChromaWidth:  cw,
		ChromaHeight: ch,
	}
}

// Clone creates a deep copy of the planar frame. The copy is not pooled.
func (f *PlanarFrame) Clone() *PlanarFrame {
	clone := &PlanarFrame{
		Y:            make([]byte, len(f.Y)),
		U:            make([]byte, len(f.U)),
		V:            make([]byte, len(f.V)),
		Width:        f.Width,
		Height:       f.Height,
		StrideY:      f.StrideY,
		StrideU:      f.StrideU,
		StrideV:      f.StrideV,
		ChromaWidth:  f.ChromaWidth,
		ChromaHeight: f.ChromaHeight,
	}
	copy(clone.Y, f.Y)
	copy(clone.U, f.U)
	copy(clone.V, f.V)
	return clone
}

// Release returns a pooled frame to its pool. Releasing a non-pooled
// frame is a no-op. The frame must not be used after Release.
func (f *PlanarFrame) Release() {
	if f.pool != nil {
		f.pool.put(f)
	}
}

// PlanarFramePool provides pooled allocation of planar frames for a fixed
// geometry, avoiding per-frame allocation churn on the conversion path.
type PlanarFramePool struct {
	width, height int
	pool          sync.Pool
}

// NewPlanarFramePool creates a pool producing frames of the given size.
func NewPlanarFramePool(width, height int) *PlanarFramePool {
	p := &PlanarFramePool{width: width, height: height}
	p.pool.New = func() interface{} {
		f := NewPlanarFrame(width, height)
		f.pool = p
		return f
	}
	return p
}

// Get returns a frame from the pool, allocating if necessary.
func (p *PlanarFramePool) Get() *PlanarFrame {
	return p.pool.Get().(*PlanarFrame)
}

func (p *PlanarFramePool) put(f *PlanarFrame) {
	if f.Width != p.width || f.Height != p.height {
		return // Wrong geometry, let it be collected
	}
	p.pool.Put(f)
}
