package testcard

import (
	"bytes"
	"testing"

	"github.com/matt-g-everett/ledpanel/store"
)

func TestGradientEnds(t *testing.T) {
	first := Rainbow.GetColor(0, 0.6, 0.6)
	last := Rainbow.GetColor(1, 0.6, 0.6)
	if first.DistanceRgb(last) > 1e-3 {
		t.Errorf("rainbow does not wrap: %v vs %v", first.Hex(), last.Hex())
	}
	if mid := Rainbow.GetColor(0.56, 0.6, 0.6); mid.DistanceRgb(first) < 0.1 {
		t.Errorf("midpoint %v too close to start %v", mid.Hex(), first.Hex())
	}
}

func TestGradientTrailLoops(t *testing.T) {
	a := New(160, 128)
	f0 := a.CalculateFrame(0)
	f1 := a.CalculateFrame(1)
	again := a.CalculateFrame(0)
	wrapped := a.CalculateFrame(Frames)

	if f0.Bounds().Dx() != 160 || f0.Bounds().Dy() != 128 {
		t.Fatalf("bounds = %v", f0.Bounds())
	}
	if bytes.Equal(f0.Pix, f1.Pix) {
		t.Error("consecutive frames are identical")
	}
	if !bytes.Equal(f0.Pix, again.Pix) {
		t.Error("frames are not deterministic")
	}
	if !bytes.Equal(f0.Pix, wrapped.Pix) {
		t.Error("animation does not loop after Frames")
	}
}

func TestGenerate(t *testing.T) {
	s := store.New(t.TempDir(), 160, 128)
	if err := Generate(s, "testcard", New(160, 128)); err != nil {
		t.Fatal(err)
	}

	frames, err := s.ListFrames("testcard")
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != Frames {
		t.Fatalf("got %d frames, want %d", len(frames), Frames)
	}
	img, err := s.LoadFrame(frames[len(frames)-1].Path)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 160 || img.Bounds().Dy() != 128 {
		t.Errorf("bounds = %v", img.Bounds())
	}
}
