package testcard

import (
	"github.com/lucasb-eyer/go-colorful"
)

// GradientTable is a look-up table of hues keyed by position in [0,1].
type GradientTable []struct {
	Hue float64
	Pos float64
}

// Rainbow wraps once around the hue circle.
var Rainbow = GradientTable{
	{0.0, 0.0},
	{6.0, 0.04},
	{87.0, 0.14},
	{88.0, 0.28},
	{98.0, 0.42},
	{180.0, 0.56},
	{190.0, 0.70},
	{320.0, 0.84},
	{328.0, 0.91},
	{360.0, 1.0},
}

// GetColor returns the colour at t with chroma c and luminance l.
func (g GradientTable) GetColor(t, c, l float64) colorful.Color {
	for i := 0; i < len(g)-1; i++ {
		c1, c2 := g[i], g[i+1]
		if c1.Pos <= t && t <= c2.Pos {
			h := (t-c1.Pos)/(c2.Pos-c1.Pos)*(c2.Hue-c1.Hue) + c1.Hue
			return colorful.Hcl(h, c, l)
		}
	}
	return colorful.Hcl(g[len(g)-1].Hue, c, l)
}
