// Package hardware binds the display server to the board through periph.io:
// the panel power and reset lines, the PWM backlight and the SPI panels.
package hardware

import (
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/matt-g-everett/ledpanel/config"
)

var log = logging.Logger("hardware")

// PowerDelay is how long the panels need after a reset edge.
const PowerDelay = 250 * time.Millisecond

// Init loads the periph.io host drivers.
func Init() error {
	state, err := host.Init()
	if err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}
	for _, d := range state.Failed {
		log.Debugf("driver %s failed: %v", d.D, d.Err)
	}
	return nil
}

// Pins are the control lines shared by both panels. All are active low
// except BacklightDisable, which darkens the panels when high.
type Pins struct {
	BacklightDisable gpio.PinIO
	DisplayEnable    gpio.PinIO
	DisplayReset     gpio.PinIO
}

// OpenPins looks up the control lines named in the config.
func OpenPins(c config.Hardware) (*Pins, error) {
	p := new(Pins)
	var err error
	if p.BacklightDisable, err = pin(c.BacklightDisable); err != nil {
		return nil, err
	}
	if p.DisplayEnable, err = pin(c.DisplayEnable); err != nil {
		return nil, err
	}
	if p.DisplayReset, err = pin(c.DisplayReset); err != nil {
		return nil, err
	}
	return p, nil
}

// PowerUp switches the backlight off, enables the panels and pulses reset.
func (p *Pins) PowerUp() error {
	steps := []struct {
		pin   gpio.PinIO
		level gpio.Level
		wait  time.Duration
	}{
		{p.BacklightDisable, gpio.High, 0},
		{p.DisplayEnable, gpio.Low, 0},
		{p.DisplayReset, gpio.Low, PowerDelay},
		{p.DisplayReset, gpio.High, PowerDelay},
	}
	for _, s := range steps {
		if err := s.pin.Out(s.level); err != nil {
			return fmt.Errorf("drive %s %s: %w", s.pin, s.level, err)
		}
		time.Sleep(s.wait)
	}
	return nil
}

func pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown gpio %q", name)
	}
	return p, nil
}
