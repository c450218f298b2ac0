// Package testcard generates the built-in startup animation.
package testcard

import "image"

// An Animation renders numbered frames of a fixed size.
type Animation interface {
	CalculateFrame(n int) *image.RGBA
}
