// Package overlay draws wrapped text boxes on top of animation frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/matt-g-everett/ledpanel/config"
)

// Style controls the geometry and colours of the text box.
type Style struct {
	LineHeight int
	Padding    int
	Margin     int
	Background color.Color
	Foreground color.Color
}

// DefaultStyle is a white on black box with 12px lines.
var DefaultStyle = Style{
	LineHeight: 12,
	Padding:    4,
	Margin:     5,
	Background: color.Black,
	Foreground: color.White,
}

// StyleFromConfig converts the overlay section of the config file.
func StyleFromConfig(c config.Overlay) (Style, error) {
	bg, err := colorful.Hex(c.Background)
	if err != nil {
		return Style{}, fmt.Errorf("overlay background %q: %w", c.Background, err)
	}
	fg, err := colorful.Hex(c.Foreground)
	if err != nil {
		return Style{}, fmt.Errorf("overlay foreground %q: %w", c.Foreground, err)
	}

	return Style{
		LineHeight: c.LineHeight,
		Padding:    c.Padding,
		Margin:     c.Margin,
		Background: opaque(bg),
		Foreground: opaque(fg),
	}, nil
}

func opaque(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}

// LoadFace opens a TrueType/OpenType font at the given size. An empty path
// selects the embedded Go Regular font.
func LoadFace(path string, size float64) (font.Face, error) {
	data := goregular.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = b
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// A Compositor renders text onto copies of frames. Faces keep glyph caches,
// so calls are serialised.
type Compositor struct {
	mu    sync.Mutex
	face  font.Face
	style Style
}

// NewCompositor creates a Compositor drawing with face.
func NewCompositor(face font.Face, style Style) *Compositor {
	c := new(Compositor)
	c.face = face
	c.style = style
	return c
}

// Composite returns img with text boxed and centred on the lower third.
// Empty or blank text returns img itself.
func (c *Compositor) Composite(img image.Image, text string) image.Image {
	if text == "" {
		return img
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	b := img.Bounds()
	lines := c.wrap(text, b.Dx()-2*c.style.Margin)
	if len(lines) == 0 {
		return img
	}

	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)

	pad := c.style.Padding
	total := len(lines)*c.style.LineHeight + 2*pad
	yStart := int(float64(b.Dy())*2/3 - float64(total)/2)

	box := image.Rect(0, yStart-pad, b.Dx(), yStart+total-pad).Add(b.Min).Intersect(b)
	draw.Draw(dst, box, image.NewUniform(c.style.Background), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c.style.Foreground),
		Face: c.face,
	}
	ascent := c.face.Metrics().Ascent.Ceil()
	for i, line := range lines {
		y := yStart + i*c.style.LineHeight
		d.Dot = fixed.P(b.Min.X+c.style.Margin, b.Min.Y+y+ascent)
		d.DrawString(line)
	}

	return dst
}

// Wrap splits text into lines no wider than maxWidth pixels. A word that is
// wider than maxWidth on its own gets a line to itself.
func (c *Compositor) Wrap(text string, maxWidth int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wrap(text, maxWidth)
}

// Measure returns the rendered width of s in pixels.
func (c *Compositor) Measure(s string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.measure(s)
}

func (c *Compositor) measure(s string) int {
	return font.MeasureString(c.face, s).Ceil()
}

func (c *Compositor) wrap(text string, maxWidth int) []string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}

		if c.measure(candidate) <= maxWidth {
			line = candidate
			continue
		}

		if line != "" {
			lines = append(lines, line)
		}
		line = word
	}

	if line != "" {
		lines = append(lines, line)
	}
	return lines
}
