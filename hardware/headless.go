package hardware

import (
	"image"
	"sync/atomic"
)

// NullPanel accepts frames without a display attached.
type NullPanel struct {
	name   string
	frames atomic.Uint64
}

// NewNullPanel creates a NullPanel named after the display it stands in for.
func NewNullPanel(name string) *NullPanel {
	return &NullPanel{name: name}
}

// Show counts the frame.
func (p *NullPanel) Show(img image.Image) {
	if p.frames.Add(1) == 1 {
		log.Infof("%s: first frame %v (headless)", p.name, img.Bounds())
	}
}

// Frames returns the number of frames shown.
func (p *NullPanel) Frames() uint64 {
	return p.frames.Load()
}

// LogBacklight records backlight changes without a PWM pin.
type LogBacklight struct{}

// SetIntensity logs the drive level.
func (LogBacklight) SetIntensity(percent float64) {
	log.Debugf("backlight disable duty %.1f%% (headless)", percent)
}
