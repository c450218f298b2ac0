package testcard

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/matt-g-everett/ledpanel/store"
)

// Frames is the length of the generated animation.
const Frames = 50

// FrameWriter stores encoded frames.
type FrameWriter interface {
	WriteFrame(id store.AnimationID, index int, data []byte) error
}

// New returns the testcard animation at the given size.
func New(width, height int) Animation {
	trail := NewGradientTrail(Rainbow, width, height, width, Frames)
	white, _ := colorful.Hex("#ffffff")
	return NewTwinkle(trail, width*height/200, width, height*2/3, Frames/2, white, 1)
}

// Generate writes Frames PNG frames of a as animation id.
func Generate(w FrameWriter, id store.AnimationID, a Animation) error {
	var buf bytes.Buffer
	for i := 0; i < Frames; i++ {
		buf.Reset()
		if err := png.Encode(&buf, a.CalculateFrame(i)); err != nil {
			return fmt.Errorf("encode frame %d: %w", i, err)
		}
		if err := w.WriteFrame(id, i, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
