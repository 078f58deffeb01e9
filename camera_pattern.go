package uvcstream

import (
	"context"
	"sync"
	"time"
)

// PatternCamera is a CameraHandler that synthesizes semi-planar 4:2:0
// frames on a ticker instead of reading a device. It drives the pipeline
// in examples and end-to-end tests without capture hardware.
type PatternCamera struct {
	mu       sync.Mutex
	cb       FrameCallback
	onLost   func()
	open     bool
	stopPrev chan struct{}
	done     sync.WaitGroup
	frameIdx int
}

// NewPatternCamera creates a closed pattern camera.
func NewPatternCamera() *PatternCamera {
	return &PatternCamera{}
}

// Open implements CameraHandler.
func (p *PatternCamera) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = true
	return nil
}

// SetFrameCallback implements CameraHandler.
func (p *PatternCamera) SetFrameCallback(cb FrameCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cb = cb
}

// OnDisconnect implements CameraHandler.
func (p *PatternCamera) OnDisconnect(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLost = fn
}

// StartPreview implements CameraHandler: it spawns the producer goroutine
// generating one frame per tick at cfg.FrameRate.
func (p *PatternCamera) StartPreview(ctx context.Context, cfg PreviewConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.open {
		return ErrDeviceDisconnected
	}
	if p.stopPrev != nil {
		return nil
	}

	rate := cfg.FrameRate
	if rate <= 0 {
		rate = DefaultFrameRate
	}

	stop := make(chan struct{})
	p.stopPrev = stop
	p.done.Add(1)
	go p.run(cfg.Width, cfg.Height, time.Second/time.Duration(rate), stop)
	return nil
}

// StopPreview implements CameraHandler. Idempotent; returns once the
// producer goroutine has exited, so no callback fires after it.
func (p *PatternCamera) StopPreview() error {
	p.mu.Lock()
	stop := p.stopPrev
	p.stopPrev = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
		p.done.Wait()
	}
	return nil
}

// Close implements CameraHandler.
func (p *PatternCamera) Close() error {
	p.StopPreview()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	return nil
}

// Disconnect simulates the device going away: the preview dies and the
// registered disconnect callback fires.
func (p *PatternCamera) Disconnect() {
	p.StopPreview()
	p.mu.Lock()
	p.open = false
	fn := p.onLost
	p.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (p *PatternCamera) run(width, height int, interval time.Duration, stop chan struct{}) {
	defer p.done.Done()

	buf := make([]byte, SemiPlanarSize(width, height))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			idx := p.frameIdx
			p.frameIdx++
			cb := p.cb
			p.mu.Unlock()

			if cb == nil {
				continue
			}
			fillPattern(buf, width, height, idx)
			cb(buf, time.Now().UnixNano())
		}
	}
}

// fillPattern writes a moving vertical bar over a gray field, with the
// chroma plane holding interleaved V/U sample pairs.
func fillPattern(buf []byte, width, height, frameIdx int) {
	lumaSize := width * height
	barX := (frameIdx * 4) % width

	for y := 0; y < height; y++ {
		row := buf[y*width : (y+1)*width]
		for x := range row {
			if x >= barX && x < barX+32 {
				row[x] = 235
			} else {
				row[x] = 90
			}
		}
	}

	chroma := buf[lumaSize:]
	for i := 0; i+1 < len(chroma); i += 2 {
		chroma[i] = 110 + byte(frameIdx%16)   // V
		chroma[i+1] = 140 - byte(frameIdx%16) // U
	}
}
