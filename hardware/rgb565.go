package hardware

import (
	"image"
	"image/color"
)

// EncodeRGB565 appends the w x h top-left region of img to dst as big-endian
// RGB565. Pixels outside img are black.
func EncodeRGB565(dst []byte, img image.Image, w, h int) []byte {
	b := img.Bounds()
	rgba, fast := img.(*image.RGBA)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px, py := b.Min.X+x, b.Min.Y+y
			if px >= b.Max.X || py >= b.Max.Y {
				dst = append(dst, 0, 0)
				continue
			}
			var c color.RGBA
			if fast {
				c = rgba.RGBAAt(px, py)
			} else {
				c = color.RGBAModel.Convert(img.At(px, py)).(color.RGBA)
			}
			v := Pack565(c.R, c.G, c.B)
			dst = append(dst, byte(v>>8), byte(v))
		}
	}
	return dst
}

// Pack565 packs an 8-bit colour into RGB565.
func Pack565(r, g, b uint8) uint16 {
	return uint16(r&0xF8)<<8 | uint16(g&0xFC)<<3 | uint16(b)>>3
}
