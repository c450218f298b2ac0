package testcard

import (
	"image"
	"math"
	"math/rand"

	"github.com/lucasb-eyer/go-colorful"
)

type particle struct {
	x, y  int
	phase int
}

// A Twinkle pulses random particles over another Animation.
type Twinkle struct {
	base      Animation
	colour    colorful.Color
	period    int
	particles []particle
}

// NewTwinkle places numParticles at positions drawn from seed. Each particle
// brightens and fades once every period frames.
func NewTwinkle(base Animation, numParticles, width, height, period int, colour colorful.Color, seed int64) *Twinkle {
	t := new(Twinkle)
	t.base = base
	t.colour = colour
	t.period = max(period, 1)

	r := rand.New(rand.NewSource(seed))
	for i := 0; i < numParticles; i++ {
		t.particles = append(t.particles, particle{
			x:     r.Intn(width),
			y:     r.Intn(height),
			phase: r.Intn(t.period),
		})
	}
	return t
}

// CalculateFrame renders frame n of the base animation with particles on top.
func (t *Twinkle) CalculateFrame(n int) *image.RGBA {
	img := t.base.CalculateFrame(n)
	for _, p := range t.particles {
		level := math.Sin(math.Pi * float64((n+p.phase)%t.period) / float64(t.period))
		under, _ := colorful.MakeColor(img.RGBAAt(p.x, p.y))
		img.SetRGBA(p.x, p.y, rgba(under.BlendRgb(t.colour, level)))
	}
	return img
}
