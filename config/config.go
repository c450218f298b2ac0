// Package config holds the YAML configuration of the display server.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Server struct {
		Address    string `yaml:"address"`
		ID         int    `yaml:"id"`
		MaxPayload uint32 `yaml:"maxPayload"`
	} `yaml:"server"`

	Animations struct {
		Root    string `yaml:"root"`
		Startup string `yaml:"startup"`
		Watch   bool   `yaml:"watch"`
		Width   int    `yaml:"width"`
		Height  int    `yaml:"height"`
	} `yaml:"animations"`

	Playback struct {
		FrameRate float64       `yaml:"frameRate"`
		IdlePoll  time.Duration `yaml:"idlePoll"`
	} `yaml:"playback"`

	Overlay Overlay `yaml:"overlay"`

	Brightness struct {
		Tick         time.Duration `yaml:"tick"`
		PWMFrequency int           `yaml:"pwmFrequency"`
		Initial      float64       `yaml:"initial"`
	} `yaml:"brightness"`

	Hardware Hardware `yaml:"hardware"`

	Mqtt struct {
		URL            string        `yaml:"url"`
		Username       string        `yaml:"username"`
		Password       string        `yaml:"password"`
		StatusInterval time.Duration `yaml:"statusInterval"`
		Topics         struct {
			Command string `yaml:"command"`
			Ack     string `yaml:"ack"`
			Status  string `yaml:"status"`
		} `yaml:"topics"`
	} `yaml:"mqtt"`

	API struct {
		Listen string `yaml:"listen"`
	} `yaml:"api"`

	Log struct {
		Level      string            `yaml:"level"`
		Subsystems map[string]string `yaml:"subsystems"`
	} `yaml:"log"`
}

// Overlay configures text rendering on top of animation frames.
type Overlay struct {
	FontPath   string  `yaml:"fontPath"`
	FontSize   float64 `yaml:"fontSize"`
	LineHeight int     `yaml:"lineHeight"`
	Padding    int     `yaml:"padding"`
	Margin     int     `yaml:"margin"`
	Background string  `yaml:"background"`
	Foreground string  `yaml:"foreground"`
}

// Hardware names the pins and buses of the board.
type Hardware struct {
	Headless         bool      `yaml:"headless"`
	BacklightDisable string    `yaml:"backlightDisable"`
	DisplayEnable    string    `yaml:"displayEnable"`
	DisplayReset     string    `yaml:"displayReset"`
	Displays         []Display `yaml:"displays"`
}

// Display describes one SPI attached panel.
type Display struct {
	Name     string `yaml:"name"`
	SPIPort  string `yaml:"spiPort"`
	DC       string `yaml:"dc"`
	SpeedHz  int    `yaml:"speedHz"`
	Rotation int    `yaml:"rotation"`
}

// Default returns a configuration matching the reference board: two 160x128
// ST7735 panels on SPI0 and SPI1 sharing a backlight.
func Default() Config {
	var c Config
	c.Server.Address = "192.168.4.1:25621"
	c.Server.MaxPayload = 16 << 20

	c.Animations.Root = "animations"
	c.Animations.Startup = "testcard"
	c.Animations.Width = 160
	c.Animations.Height = 128

	c.Playback.FrameRate = 25
	c.Playback.IdlePoll = 100 * time.Millisecond

	c.Overlay = Overlay{
		FontSize:   14,
		LineHeight: 12,
		Padding:    4,
		Margin:     5,
		Background: "#000000",
		Foreground: "#ffffff",
	}

	c.Brightness.Tick = 2 * time.Millisecond
	c.Brightness.PWMFrequency = 1000
	c.Brightness.Initial = 1

	c.Hardware = Hardware{
		BacklightDisable: "GPIO5",
		DisplayEnable:    "GPIO6",
		DisplayReset:     "GPIO26",
		Displays: []Display{
			{Name: "Display 1", SPIPort: "SPI0.1", DC: "GPIO23", SpeedHz: 50000000, Rotation: 90},
			{Name: "Display 2", SPIPort: "SPI1.1", DC: "GPIO12", SpeedHz: 50000000, Rotation: 90},
		},
	}

	c.Mqtt.StatusInterval = 5 * time.Second
	c.Mqtt.Topics.Command = "ledpanel/command"
	c.Mqtt.Topics.Ack = "ledpanel/ack"
	c.Mqtt.Topics.Status = "ledpanel/status"

	c.Log.Level = "info"
	return c
}

// Load reads the YAML file at path on top of the defaults.
func Load(path string) (Config, error) {
	c := Default()
	f, err := os.Open(path)
	if err != nil {
		return c, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&c); err != nil {
		return c, fmt.Errorf("decode %s: %w", path, err)
	}
	return c, c.Validate()
}

// FramePeriod is the time budget of a single animation frame.
func (c Config) FramePeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.Playback.FrameRate)
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.Server.Address == "":
		return errors.New("server.address is required")
	case c.Server.ID < 0 || c.Server.ID > 0xFF:
		return fmt.Errorf("server.id %d does not fit in a byte", c.Server.ID)
	case c.Animations.Root == "":
		return errors.New("animations.root is required")
	case c.Animations.Width <= 0 || c.Animations.Height <= 0:
		return fmt.Errorf("invalid panel size %dx%d", c.Animations.Width, c.Animations.Height)
	case c.Playback.FrameRate <= 0:
		return fmt.Errorf("playback.frameRate must be positive, got %v", c.Playback.FrameRate)
	case c.Playback.IdlePoll <= 0:
		return errors.New("playback.idlePoll must be positive")
	case c.Brightness.Tick <= 0:
		return errors.New("brightness.tick must be positive")
	case c.Brightness.Initial < 0 || c.Brightness.Initial > 1:
		return fmt.Errorf("brightness.initial %v outside [0,1]", c.Brightness.Initial)
	case c.Overlay.FontSize <= 0 || c.Overlay.LineHeight <= 0:
		return errors.New("overlay.fontSize and overlay.lineHeight must be positive")
	case !c.Hardware.Headless && len(c.Hardware.Displays) != 2:
		return fmt.Errorf("expected 2 displays, got %d", len(c.Hardware.Displays))
	}
	return nil
}
