package uvcstream

import (
	"errors"
	"testing"
)

func TestViewFrame(t *testing.T) {
	data := make([]byte, SemiPlanarSize(4, 4))
	for i := range data {
		data[i] = byte(i)
	}

	raw, err := ViewFrame(data, 4, 4, 123)
	if err != nil {
		t.Fatalf("ViewFrame: %v", err)
	}
	if raw.Width != 4 || raw.Height != 4 {
		t.Errorf("dimensions = %dx%d, want 4x4", raw.Width, raw.Height)
	}
	if raw.Format != PixelFormatSemiPlanar420 {
		t.Errorf("format = %v, want %v", raw.Format, PixelFormatSemiPlanar420)
	}
	if raw.CapturedAt != 123 {
		t.Errorf("CapturedAt = %d, want 123", raw.CapturedAt)
	}
}

func TestViewFrameEmpty(t *testing.T) {
	if _, err := ViewFrame(nil, 4, 4, 0); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("nil data: err = %v, want ErrEmptyFrame", err)
	}
	if _, err := ViewFrame([]byte{}, 4, 4, 0); !errors.Is(err, ErrEmptyFrame) {
		t.Errorf("empty data: err = %v, want ErrEmptyFrame", err)
	}
}

func TestViewFrameAliases(t *testing.T) {
	data := make([]byte, SemiPlanarSize(4, 4))
	raw, err := ViewFrame(data, 4, 4, 0)
	if err != nil {
		t.Fatal(err)
	}

	// The view aliases producer memory; a write through the source must be
	// visible through the view.
	data[0] = 77
	if raw.Data[0] != 77 {
		t.Error("view does not alias the source buffer")
	}

	// A clone breaks the alias.
	clone := raw.Clone()
	data[0] = 88
	if clone.Data[0] != 77 {
		t.Error("clone still aliases the source buffer")
	}
}
