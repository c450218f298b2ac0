// Package display plays animations on a single display. Each Worker runs
// its own render loop and is steered through SetAnimation and SetText.
package display

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/matt-g-everett/ledpanel/store"
)

var log = logging.Logger("display")

const (
	// DefaultFramePeriod plays animations at 25 fps.
	DefaultFramePeriod = 40 * time.Millisecond
	// DefaultIdlePoll is how often an idle worker looks for work.
	DefaultIdlePoll = 100 * time.Millisecond
)

// A Sink shows a rendered frame on a physical display.
type Sink interface {
	Show(img image.Image)
}

// State is the phase of a Worker's render loop.
type State int

const (
	Idle State = iota
	Loading
	Playing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	}
	return "unknown"
}

// MarshalText lets State appear by name in JSON status documents.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a snapshot of a Worker.
type Status struct {
	Name      string            `json:"name"`
	State     State             `json:"state"`
	Animation store.AnimationID `json:"animation"`
	Text      string            `json:"text"`
	Frames    int               `json:"frames"`
	Shown     uint64            `json:"shown"`
}

// mailbox holds the latest requests made to a Worker. Newer requests
// overwrite older ones.
type mailbox struct {
	animation        store.AnimationID
	assigned         bool
	animationChanged bool

	text        string
	textVersion uint64
}

// Worker renders one display.
type Worker struct {
	name       string
	sink       Sink
	source     FrameSource
	compositor Compositor
	period     time.Duration
	idlePoll   time.Duration

	mu     sync.Mutex
	box    mailbox
	state  State
	frames int

	shown atomic.Uint64
}

// An Option configures a Worker.
type Option func(*Worker)

// WithFramePeriod sets the time budget of one frame.
func WithFramePeriod(d time.Duration) Option {
	return func(w *Worker) { w.period = d }
}

// WithIdlePoll sets how often an idle Worker checks its mailbox.
func WithIdlePoll(d time.Duration) Option {
	return func(w *Worker) { w.idlePoll = d }
}

// NewWorker creates a Worker for sink. It does nothing until Run is called.
func NewWorker(name string, sink Sink, source FrameSource, compositor Compositor, opts ...Option) *Worker {
	w := new(Worker)
	w.name = name
	w.sink = sink
	w.source = source
	w.compositor = compositor
	w.period = DefaultFramePeriod
	w.idlePoll = DefaultIdlePoll
	w.box.textVersion = 1
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the display name given to NewWorker.
func (w *Worker) Name() string {
	return w.name
}

// SetAnimation switches to animation id. The render loop picks the change up
// before its next frame. Setting the current animation again does nothing.
func (w *Worker) SetAnimation(id store.AnimationID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.box.assigned && w.box.animation == id {
		return
	}
	w.box.animation = id
	w.box.assigned = true
	w.box.animationChanged = true
}

// Reload re-reads the frames of id if it is the current animation.
func (w *Worker) Reload(id store.AnimationID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.box.assigned && w.box.animation == id {
		w.box.animationChanged = true
	}
}

// SetText changes the overlay text. Every frame is composed once more with
// the new text; setting the current text again does nothing.
func (w *Worker) SetText(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if text == w.box.text {
		return
	}
	w.box.text = text
	w.box.textVersion++
}

// Status returns a snapshot of the Worker.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	return Status{
		Name:      w.name,
		State:     w.state,
		Animation: w.box.animation,
		Text:      w.box.text,
		Frames:    w.frames,
		Shown:     w.shown.Load(),
	}
}

// Run is the render loop. It returns when ctx is done.
func (w *Worker) Run(ctx context.Context) {
	log.Infof("%s: render loop started", w.name)
	defer log.Infof("%s: render loop stopped", w.name)

	var cache *FrameCache
	index := 0
	for ctx.Err() == nil {
		box := w.checkpoint()

		if box.animationChanged {
			w.setState(Loading, 0)
			cache = w.load(box.animation)
			index = 0
		}

		if cache == nil || cache.Len() == 0 {
			w.setState(Idle, 0)
			sleep(ctx, w.idlePoll)
			continue
		}
		w.setState(Playing, cache.Len())

		start := time.Now()
		img, err := cache.Frame(index, box.text, box.textVersion)
		switch {
		case errors.Is(err, ErrSkipped):
			log.Debugf("%s: frame %d of %s: %v", w.name, index, cache.ID(), err)
		case err != nil:
			log.Warnf("%s: frame %d of %s: %v", w.name, index, cache.ID(), err)
		default:
			w.sink.Show(img)
			w.shown.Add(1)
		}
		index = (index + 1) % cache.Len()

		sleep(ctx, w.period-time.Since(start))
	}
}

// checkpoint copies the mailbox and consumes the animation change flag.
func (w *Worker) checkpoint() mailbox {
	w.mu.Lock()
	defer w.mu.Unlock()

	box := w.box
	w.box.animationChanged = false
	return box
}

func (w *Worker) setState(s State, frames int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != s {
		log.Debugf("%s: %s -> %s", w.name, w.state, s)
	}
	w.state = s
	w.frames = frames
}

func (w *Worker) load(id store.AnimationID) *FrameCache {
	cache, err := LoadCache(w.source, w.compositor, id)
	if err != nil {
		log.Warnf("%s: failed to load animation %s: %v", w.name, id, err)
		return nil
	}
	log.Infof("%s: playing %s (%d frames)", w.name, id, cache.Len())
	return cache
}

// sleep waits for d or until ctx is done. Non-positive durations return
// immediately.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
