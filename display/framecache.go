package display

import (
	"errors"
	"fmt"
	"image"

	"github.com/matt-g-everett/ledpanel/store"
)

// A FrameSource lists and decodes the frames of an animation.
type FrameSource interface {
	ListFrames(id store.AnimationID) ([]store.Frame, error)
	LoadFrame(path string) (image.Image, error)
}

// A Compositor draws text on a copy of a frame.
type Compositor interface {
	Composite(img image.Image, text string) image.Image
}

// ErrSkipped wraps the error of a frame that already failed to decode in
// this cache.
var ErrSkipped = errors.New("frame skipped")

type slot struct {
	path string
	raw  image.Image
	live image.Image
	err  error

	// version is the text version live was composed for; 0 means never.
	version uint64
}

// FrameCache holds the frames of one loaded animation. Raw frames are
// decoded on first use and kept for the lifetime of the cache; the composed
// frame is rebuilt only when the requested text version differs from the
// one it was built for. A FrameCache belongs to a single goroutine.
type FrameCache struct {
	id         store.AnimationID
	source     FrameSource
	compositor Compositor
	slots      []slot

	decodes    int
	composites int
}

// LoadCache enumerates the frames of id without decoding any of them.
func LoadCache(source FrameSource, compositor Compositor, id store.AnimationID) (*FrameCache, error) {
	frames, err := source.ListFrames(id)
	if err != nil {
		return nil, err
	}

	c := new(FrameCache)
	c.id = id
	c.source = source
	c.compositor = compositor
	c.slots = make([]slot, len(frames))
	for i, f := range frames {
		c.slots[i].path = f.Path
	}
	return c, nil
}

// ID returns the animation the cache was loaded for.
func (c *FrameCache) ID() store.AnimationID {
	return c.id
}

// Len returns the number of frames.
func (c *FrameCache) Len() int {
	return len(c.slots)
}

// Frame returns frame i with text drawn on it. version identifies text; a
// frame already composed for version is returned as is.
func (c *FrameCache) Frame(i int, text string, version uint64) (image.Image, error) {
	if i < 0 || i >= len(c.slots) {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", i, len(c.slots))
	}
	s := &c.slots[i]

	if s.live != nil && s.version == version {
		return s.live, nil
	}
	if s.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSkipped, s.err)
	}

	if s.raw == nil {
		raw, err := c.source.LoadFrame(s.path)
		if err != nil {
			s.err = err
			return nil, err
		}
		s.raw = raw
		c.decodes++
	}

	if text == "" {
		s.live = s.raw
	} else {
		s.live = c.compositor.Composite(s.raw, text)
		c.composites++
	}
	s.version = version
	return s.live, nil
}

// Stats returns how many frames were decoded and composed so far.
func (c *FrameCache) Stats() (decodes, composites int) {
	return c.decodes, c.composites
}
