package store

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestIDFromWire(t *testing.T) {
	if got := IDFromWire(7); got != "7" {
		t.Errorf("IDFromWire(7) = %q", got)
	}
	if got := IDFromWire(0xFFFFFFFF); got != "4294967295" {
		t.Errorf("IDFromWire(max) = %q", got)
	}
}

func TestDirRejectsTraversal(t *testing.T) {
	s := New(t.TempDir(), 4, 4)
	for _, id := range []AnimationID{"", ".", "..", "../etc", `a\b`} {
		if _, err := s.Dir(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Dir(%q) err = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestWriteFrameAndList(t *testing.T) {
	root := t.TempDir()
	s := New(root, 4, 4)

	if s.Exists("7") {
		t.Fatalf("animation should not exist yet")
	}
	for _, i := range []int{10, 2, 1} {
		if err := s.WriteFrame("7", i, pngBytes(t, 4, 4, color.White)); err != nil {
			t.Fatalf("WriteFrame(%d): %v", i, err)
		}
	}
	if !s.Exists("7") {
		t.Fatalf("animation should exist after upload")
	}
	if _, err := os.Stat(filepath.Join(root, "7", "0002.png")); err != nil {
		t.Errorf("expected zero padded file name: %v", err)
	}

	// Files that do not look like frames are skipped but still counted.
	os.WriteFile(filepath.Join(root, "7", "notes.txt"), []byte("x"), 0o644)
	os.Mkdir(filepath.Join(root, "7", "sub"), 0o755)

	frames, err := s.ListFrames("7")
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 2, 10}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d", len(frames), len(want))
	}
	for i, f := range frames {
		if f.Index != want[i] {
			t.Errorf("frame %d index = %d, want %d", i, f.Index, want[i])
		}
	}

	n, err := s.FileCount("7")
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("FileCount = %d, want 4", n)
	}
}

func TestListFramesMissing(t *testing.T) {
	s := New(t.TempDir(), 4, 4)
	if _, err := s.ListFrames("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.FileCount("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadFrameScales(t *testing.T) {
	root := t.TempDir()
	s := New(root, 8, 6)
	red := color.RGBA{R: 255, A: 255}
	if err := s.WriteFrame("a", 0, pngBytes(t, 16, 12, red)); err != nil {
		t.Fatal(err)
	}

	img, err := s.LoadFrame(filepath.Join(root, "a", "0000.png"))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 8, 6) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if got := img.(*image.RGBA).RGBAAt(3, 3); got != red {
		t.Errorf("pixel = %v, want %v", got, red)
	}
}

func TestLoadFrameBadData(t *testing.T) {
	root := t.TempDir()
	s := New(root, 4, 4)
	if err := s.WriteFrame("a", 0, []byte("not an image")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadFrame(filepath.Join(root, "a", "0000.png")); err == nil {
		t.Errorf("expected decode error")
	}
}

func TestWatchDebouncesUploads(t *testing.T) {
	root := t.TempDir()
	s := New(root, 4, 4)
	if err := s.WriteFrame("5", 0, pngBytes(t, 4, 4, color.White)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan AnimationID, 10)
	if err := s.Watch(ctx, 50*time.Millisecond, func(id AnimationID) { changed <- id }); err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 5; i++ {
		if err := s.WriteFrame("5", i, pngBytes(t, 4, 4, color.White)); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case id := <-changed:
		if id != "5" {
			t.Errorf("changed id = %q, want 5", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}

	select {
	case id := <-changed:
		t.Errorf("unexpected second notification for %q", id)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchForgetsFiredDebouncers(t *testing.T) {
	root := t.TempDir()
	changed := make(chan AnimationID, 10)
	w := &watch{
		store:    New(root, 4, 4),
		delay:    10 * time.Millisecond,
		onChange: func(id AnimationID) { changed <- id },
		pending:  make(map[AnimationID]*pending),
	}

	for _, id := range []string{"1", "2", "3"} {
		w.handle(fsnotify.Event{Name: filepath.Join(root, id, "0000.png"), Op: fsnotify.Write})
	}
	for i := 0; i < 3; i++ {
		select {
		case <-changed:
		case <-time.After(2 * time.Second):
			t.Fatal("no change notification")
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) != 0 {
		t.Errorf("%d debouncers still pending", len(w.pending))
	}
}
