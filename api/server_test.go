package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matt-g-everett/ledpanel/display"
)

type fixedBrightness struct {
	value  float64
	fading bool
}

func (b fixedBrightness) Value() float64 { return b.value }
func (b fixedBrightness) Fading() bool   { return b.fading }

type fixedDisplay display.Status

func (d fixedDisplay) Status() display.Status { return display.Status(d) }

func TestStatus(t *testing.T) {
	a := NewApi(fixedBrightness{0.25, true},
		fixedDisplay{Name: "left", State: display.Playing, Animation: "7", Frames: 3, Shown: 10},
		fixedDisplay{Name: "right", State: display.Idle},
	)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var got struct {
		Brightness float64 `json:"brightness"`
		Fading     bool    `json:"fading"`
		Displays   []struct {
			Name      string `json:"name"`
			State     string `json:"state"`
			Animation string `json:"animation"`
			Frames    int    `json:"frames"`
			Shown     uint64 `json:"shown"`
		} `json:"displays"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Brightness != 0.25 || !got.Fading {
		t.Errorf("brightness = %v fading = %v", got.Brightness, got.Fading)
	}
	if len(got.Displays) != 2 {
		t.Fatalf("displays = %+v", got.Displays)
	}
	left := got.Displays[0]
	if left.Name != "left" || left.State != "playing" || left.Animation != "7" || left.Frames != 3 || left.Shown != 10 {
		t.Errorf("left = %+v", left)
	}
	if got.Displays[1].State != "idle" {
		t.Errorf("right = %+v", got.Displays[1])
	}
}

func TestStatusMethod(t *testing.T) {
	srv := httptest.NewServer(NewApi(fixedBrightness{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/status", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /status = %d", resp.StatusCode)
	}
}
