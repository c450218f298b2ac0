package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	logging "github.com/ipfs/go-log/v2"

	"github.com/matt-g-everett/ledpanel/api"
	"github.com/matt-g-everett/ledpanel/bridge"
	"github.com/matt-g-everett/ledpanel/brightness"
	"github.com/matt-g-everett/ledpanel/config"
	"github.com/matt-g-everett/ledpanel/display"
	"github.com/matt-g-everett/ledpanel/hardware"
	"github.com/matt-g-everett/ledpanel/overlay"
	"github.com/matt-g-everett/ledpanel/protocol"
	"github.com/matt-g-everett/ledpanel/store"
	"github.com/matt-g-everett/ledpanel/testcard"
)

var log = logging.Logger("ledpanel")

type app struct {
	Config     config.Config
	Store      *store.Store
	Brightness *brightness.Controller
	Workers    []*display.Worker
	Dispatcher *protocol.Dispatcher
	Api        *api.Api
	Client     mqtt.Client
	Bridge     *bridge.Bridge

	pins *hardware.Pins
}

func newApp() *app {
	a := new(app)
	return a
}

func (a *app) readConfig(configPath string) error {
	c, err := config.Load(configPath)
	if os.IsNotExist(err) {
		log.Warnf("%s not found, using defaults", configPath)
		c, err = config.Default(), nil
	}
	if err != nil {
		return err
	}
	a.Config = c
	return nil
}

func (a *app) setLogLevels() error {
	lvl, err := logging.LevelFromString(a.Config.Log.Level)
	if err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	logging.SetAllLoggers(lvl)
	for name, level := range a.Config.Log.Subsystems {
		if err := logging.SetLogLevel(name, level); err != nil {
			return fmt.Errorf("log.subsystems.%s: %w", name, err)
		}
	}
	return nil
}

// build creates the store, sinks, workers and dispatcher.
func (a *app) build() error {
	c := a.Config
	if err := os.MkdirAll(c.Animations.Root, 0o755); err != nil {
		return err
	}
	a.Store = store.New(c.Animations.Root, c.Animations.Width, c.Animations.Height)

	style, err := overlay.StyleFromConfig(c.Overlay)
	if err != nil {
		return err
	}

	names := []string{"left", "right"}
	for i, d := range c.Hardware.Displays {
		if i < len(names) && d.Name != "" {
			names[i] = d.Name
		}
	}

	var backlight brightness.IntensitySink
	sinks := make([]display.Sink, len(names))
	if c.Hardware.Headless {
		log.Info("headless: frames and backlight changes are only logged")
		backlight = hardware.LogBacklight{}
		for i, name := range names {
			sinks[i] = hardware.NewNullPanel(name)
		}
	} else {
		if err := hardware.Init(); err != nil {
			return err
		}
		if a.pins, err = hardware.OpenPins(c.Hardware); err != nil {
			return err
		}
		if err := a.pins.PowerUp(); err != nil {
			return err
		}
		backlight = hardware.NewBacklight(a.pins.BacklightDisable, c.Brightness.PWMFrequency)
		for i, d := range c.Hardware.Displays {
			panel, err := hardware.OpenPanel(d, c.Animations.Width, c.Animations.Height)
			if err != nil {
				return err
			}
			sinks[i] = panel
		}
	}
	a.Brightness = brightness.NewController(backlight, c.Brightness.Tick)

	displays := make([]protocol.Display, 0, len(names))
	reporters := make([]api.Display, 0, len(names))
	for i, name := range names {
		// Faces are not safe for concurrent use.
		face, err := overlay.LoadFace(c.Overlay.FontPath, c.Overlay.FontSize)
		if err != nil {
			return err
		}
		w := display.NewWorker(name, sinks[i], a.Store, overlay.NewCompositor(face, style),
			display.WithFramePeriod(c.FramePeriod()),
			display.WithIdlePoll(c.Playback.IdlePoll))
		a.Workers = append(a.Workers, w)
		displays = append(displays, w)
		reporters = append(reporters, w)
	}

	a.Dispatcher = protocol.NewDispatcher(a.Store, a.Brightness, displays...)
	a.Dispatcher.SetMaxPayload(c.Server.MaxPayload)
	a.Api = api.NewApi(a.Brightness, reporters...)
	return nil
}

func (a *app) handleOnConnect(client mqtt.Client) {
	log.Info("mqtt connected")
	a.Bridge.Subscribe()
}

// start runs the workers and the optional services in the background.
func (a *app) start(ctx context.Context) {
	c := a.Config
	if startup := store.AnimationID(c.Animations.Startup); startup != "" {
		if !a.Store.Exists(startup) {
			log.Infof("generating startup animation %s", startup)
			err := testcard.Generate(a.Store, startup, testcard.New(c.Animations.Width, c.Animations.Height))
			if err != nil {
				log.Warnf("generate %s: %v", startup, err)
			}
		}
		for _, w := range a.Workers {
			w.SetAnimation(startup)
		}
	}
	for _, w := range a.Workers {
		go w.Run(ctx)
	}

	if c.Animations.Watch {
		go func() {
			err := a.Store.Watch(ctx, 500*time.Millisecond, func(id store.AnimationID) {
				for _, w := range a.Workers {
					w.Reload(id)
				}
			})
			if err != nil {
				log.Errorf("watch %s: %v", a.Store.Root(), err)
			}
		}()
	}

	if c.API.Listen != "" {
		go func() {
			if err := a.Api.Serve(ctx, c.API.Listen); err != nil {
				log.Errorf("api: %v", err)
			}
		}()
	}

	if c.Mqtt.URL != "" {
		a.Client = mqtt.NewClient(bridge.ClientOptions(c, a.handleOnConnect))
		a.Bridge = bridge.NewBridge(a.Client, a.Dispatcher, a.Api, c)
		token := a.Client.Connect()
		go func() {
			if token.Wait() && token.Error() != nil {
				log.Errorf("mqtt connect %s: %v", c.Mqtt.URL, token.Error())
			}
		}()
		go a.Bridge.Run(ctx)
	}

	if !c.Hardware.Headless {
		time.Sleep(hardware.PowerDelay)
	}
	a.Brightness.SetImmediate(c.Brightness.Initial)
}

// run connects to the controller and serves commands until the stream fails.
func (a *app) run() error {
	addr := a.Config.Server.Address
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()
	log.Infof("connected to %s", addr)

	if _, err := conn.Write(protocol.Handshake(byte(a.Config.Server.ID))); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	return a.Dispatcher.Serve(conn)
}

func (a *app) shutdown() {
	a.Brightness.Stop()
	if a.Client != nil && a.Client.IsConnected() {
		a.Client.Disconnect(250)
	}
}

func main() {
	mqtt.ERROR = stdlog.New(os.Stdout, "mqtt ", 0)
	mqtt.CRITICAL = stdlog.New(os.Stdout, "mqtt ", 0)

	// Parse command line parameters
	configPath := flag.String("config", "config.yaml", "YAML config file.")
	flag.Parse()

	// Read the config
	a := newApp()
	if err := a.readConfig(*configPath); err != nil {
		log.Fatal(err)
	}
	if err := a.setLogLevels(); err != nil {
		log.Fatal(err)
	}
	log.Debugf("Config: %+v", a.Config)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.build(); err != nil {
		log.Fatal(err)
	}
	a.start(ctx)

	errs := make(chan error, 1)
	go func() { errs <- a.run() }()

	select {
	case err := <-errs:
		a.shutdown()
		log.Fatal(err)
	case <-ctx.Done():
		log.Info("shutting down")
		a.shutdown()
	}
}
