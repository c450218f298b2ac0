package hardware

import (
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Backlight drives the backlight-disable line with hardware PWM.
type Backlight struct {
	pin  gpio.PinIO
	freq physic.Frequency

	mu   sync.Mutex
	last gpio.Duty
}

// NewBacklight creates a Backlight on pin switching at hz.
func NewBacklight(pin gpio.PinIO, hz int) *Backlight {
	b := new(Backlight)
	b.pin = pin
	b.freq = physic.Frequency(hz) * physic.Hertz
	b.last = -1
	return b
}

// SetIntensity sets the duty cycle of the disable line in percent.
func (b *Backlight) SetIntensity(percent float64) {
	duty := Duty(percent)

	b.mu.Lock()
	defer b.mu.Unlock()
	if duty == b.last {
		return
	}

	var err error
	switch duty {
	case 0:
		err = b.pin.Out(gpio.Low)
	case gpio.DutyMax:
		err = b.pin.Out(gpio.High)
	default:
		err = b.pin.PWM(duty, b.freq)
	}
	if err != nil {
		log.Warnf("backlight %s duty %s: %v", b.pin, duty, err)
		return
	}
	b.last = duty
}

// Duty converts a percentage to a periph.io duty cycle.
func Duty(percent float64) gpio.Duty {
	switch {
	case percent <= 0:
		return 0
	case percent >= 100:
		return gpio.DutyMax
	}
	return gpio.Duty(float64(gpio.DutyMax) * percent / 100)
}
