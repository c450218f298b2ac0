package hardware

import (
	"image"
	"image/color"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestPack565(t *testing.T) {
	cases := []struct {
		r, g, b uint8
		want    uint16
	}{
		{0, 0, 0, 0x0000},
		{255, 255, 255, 0xFFFF},
		{255, 0, 0, 0xF800},
		{0, 255, 0, 0x07E0},
		{0, 0, 255, 0x001F},
	}
	for _, c := range cases {
		if got := Pack565(c.r, c.g, c.b); got != c.want {
			t.Errorf("Pack565(%d, %d, %d) = %#04x, want %#04x", c.r, c.g, c.b, got, c.want)
		}
	}
}

func TestEncodeRGB565(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	img.Set(1, 0, color.RGBA{0, 0, 255, 255})

	got := EncodeRGB565(nil, img, 3, 1)
	want := []byte{0xF8, 0x00, 0x00, 0x1F, 0x00, 0x00}
	if string(got) != string(want) {
		t.Fatalf("EncodeRGB565 = % x, want % x", got, want)
	}

	gray := image.NewGray(image.Rect(4, 4, 5, 5))
	gray.SetGray(4, 4, color.Gray{Y: 255})
	if got := EncodeRGB565(nil, gray, 1, 1); got[0] != 0xFF || got[1] != 0xFF {
		t.Fatalf("offset gray image = % x", got)
	}
}

func TestDuty(t *testing.T) {
	if Duty(-3) != 0 || Duty(0) != 0 {
		t.Error("non-positive percent should give zero duty")
	}
	if Duty(100) != gpio.DutyMax || Duty(250) != gpio.DutyMax {
		t.Error("100% and above should give full duty")
	}
	if got, want := Duty(50), gpio.DutyHalf; got != want {
		t.Errorf("Duty(50) = %s, want %s", got, want)
	}
}

func TestBacklight(t *testing.T) {
	p := &gpiotest.Pin{N: "GPIO26", Num: 26}
	b := NewBacklight(p, 1000)

	b.SetIntensity(100)
	if p.L != gpio.High {
		t.Errorf("100%% left pin at %s", p.L)
	}
	b.SetIntensity(0)
	if p.L != gpio.Low {
		t.Errorf("0%% left pin at %s", p.L)
	}
	b.SetIntensity(50)
	if p.D != gpio.DutyHalf {
		t.Errorf("duty = %s, want %s", p.D, gpio.DutyHalf)
	}
}

func TestPowerUp(t *testing.T) {
	pins := &Pins{
		BacklightDisable: &gpiotest.Pin{N: "GPIO26"},
		DisplayEnable:    &gpiotest.Pin{N: "GPIO5", L: gpio.High},
		DisplayReset:     &gpiotest.Pin{N: "GPIO6"},
	}
	if err := pins.PowerUp(); err != nil {
		t.Fatal(err)
	}
	if l := pins.BacklightDisable.Read(); l != gpio.High {
		t.Errorf("backlight disable = %s", l)
	}
	if l := pins.DisplayEnable.Read(); l != gpio.Low {
		t.Errorf("display enable = %s", l)
	}
	if l := pins.DisplayReset.Read(); l != gpio.High {
		t.Errorf("display reset = %s", l)
	}
}

func TestMadctl(t *testing.T) {
	if madctl(90) != madctl(-270) {
		t.Error("rotation should wrap")
	}
	if madctl(90)&madMV == 0 || madctl(270)&madMV == 0 {
		t.Error("landscape rotations should swap rows and columns")
	}
	if madctl(0)&madMV != 0 || madctl(180)&madMV != 0 {
		t.Error("portrait rotations should not swap")
	}
}

func TestNullPanel(t *testing.T) {
	p := NewNullPanel("left")
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	p.Show(img)
	p.Show(img)
	if p.Frames() != 2 {
		t.Errorf("frames = %d", p.Frames())
	}
}
