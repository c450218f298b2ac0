// Package api serves the display server status over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/matt-g-everett/ledpanel/display"
)

var log = logging.Logger("api")

// Brightness is the backlight state reported by the API.
type Brightness interface {
	Value() float64
	Fading() bool
}

// Display is a display whose status is reported by the API.
type Display interface {
	Status() display.Status
}

// Snapshot is the JSON status document.
type Snapshot struct {
	Brightness float64          `json:"brightness"`
	Fading     bool             `json:"fading"`
	Uptime     string           `json:"uptime"`
	Displays   []display.Status `json:"displays"`
}

// Api reports brightness and display state.
type Api struct {
	brightness Brightness
	displays   []Display
	started    time.Time
}

// NewApi creates an Api over the given brightness controller and displays.
func NewApi(b Brightness, displays ...Display) *Api {
	a := new(Api)
	a.brightness = b
	a.displays = displays
	a.started = time.Now()
	return a
}

// Snapshot collects the current status.
func (a *Api) Snapshot() Snapshot {
	s := Snapshot{
		Brightness: a.brightness.Value(),
		Fading:     a.brightness.Fading(),
		Uptime:     time.Since(a.started).Truncate(time.Second).String(),
		Displays:   make([]display.Status, 0, len(a.displays)),
	}
	for _, d := range a.displays {
		s.Displays = append(s.Displays, d.Status())
	}
	return s
}

// Handler returns the HTTP routes.
func (a *Api) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(a.Snapshot()); err != nil {
			log.Debugf("write status: %v", err)
		}
	})
	return mux
}

// Serve listens on addr until ctx is cancelled.
func (a *Api) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	log.Infof("listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
