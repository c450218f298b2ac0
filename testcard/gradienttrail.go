package testcard

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// A GradientTrail scrolls a gradient across the top of the frame above a
// grey ramp.
type GradientTrail struct {
	gradient    GradientTable
	width       int
	height      int
	trailLength int
	period      int
}

// NewGradientTrail creates a GradientTrail that moves one trailLength every
// period frames.
func NewGradientTrail(gradient GradientTable, width, height, trailLength, period int) *GradientTrail {
	g := new(GradientTrail)
	g.gradient = gradient
	g.width = width
	g.height = height
	g.trailLength = trailLength
	g.period = max(period, 1)
	return g
}

// CalculateFrame renders frame n.
func (g *GradientTrail) CalculateFrame(n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, g.width, g.height))
	split := g.height * 2 / 3
	offset := float64(n%g.period) * float64(g.trailLength) / float64(g.period)
	for x := 0; x < g.width; x++ {
		t := math.Mod(float64(x)+offset, float64(g.trailLength)) / float64(g.trailLength)
		top := rgba(g.gradient.GetColor(t, 0.6, 0.6))
		v := uint8(x * 255 / max(g.width-1, 1))
		bottom := color.RGBA{v, v, v, 0xff}
		for y := 0; y < g.height; y++ {
			if y < split {
				img.SetRGBA(x, y, top)
			} else {
				img.SetRGBA(x, y, bottom)
			}
		}
	}
	return img
}

func rgba(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{r, g, b, 0xff}
}
