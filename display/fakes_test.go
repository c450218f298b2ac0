package display

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matt-g-everett/ledpanel/store"
)

// fakeSource serves animations made of 1x1 grey frames whose value encodes
// the animation and frame number.
type fakeSource struct {
	mu         sync.Mutex
	animations map[store.AnimationID]int
	lists      map[store.AnimationID]int
	loads      map[string]int
	broken     map[string]bool
}

func newFakeSource(animations map[store.AnimationID]int) *fakeSource {
	return &fakeSource{
		animations: animations,
		lists:      make(map[store.AnimationID]int),
		loads:      make(map[string]int),
		broken:     make(map[string]bool),
	}
}

func (s *fakeSource) ListFrames(id store.AnimationID) ([]store.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists[id]++
	n, ok := s.animations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	frames := make([]store.Frame, n)
	for i := range frames {
		frames[i] = store.Frame{Index: i, Path: fmt.Sprintf("%s/%d", id, i)}
	}
	return frames, nil
}

func (s *fakeSource) LoadFrame(path string) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loads[path]++
	if s.broken[path] {
		return nil, fmt.Errorf("cannot decode %s", path)
	}
	img := &taggedImage{Gray: image.NewGray(image.Rect(0, 0, 1, 1)), tag: path}
	img.SetGray(0, 0, color.Gray{Y: uint8(len(path))})
	return img, nil
}

func (s *fakeSource) listCount(id store.AnimationID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists[id]
}

func (s *fakeSource) loadCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads[path]
}

// taggedImage remembers the frame it was decoded from.
type taggedImage struct {
	*image.Gray
	tag string
}

type composed struct {
	image.Image
	tag  string
	text string
}

type countingCompositor struct {
	mu    sync.Mutex
	calls map[string]int
}

func newCountingCompositor() *countingCompositor {
	return &countingCompositor{calls: make(map[string]int)}
}

func (c *countingCompositor) Composite(img image.Image, text string) image.Image {
	tag := img.(*taggedImage).tag
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[tag+"|"+text]++
	return &composed{Image: img, tag: tag, text: text}
}

func (c *countingCompositor) count(tag, text string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[tag+"|"+text]
}

func (c *countingCompositor) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

type recordingSink struct {
	mu    sync.Mutex
	shown []string
}

func (s *recordingSink) Show(img image.Image) {
	var name string
	switch v := img.(type) {
	case *taggedImage:
		name = v.tag
	case *composed:
		name = v.tag + "|" + v.text
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, name)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shown)
}

func (s *recordingSink) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.shown) == 0 {
		return ""
	}
	return s.shown[len(s.shown)-1]
}

func (s *recordingSink) since(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.shown[n:]...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func startWorker(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func hasPrefix(names []string, prefix string) bool {
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}
