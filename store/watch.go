package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// Watch calls onChange with the id of every animation whose directory is
// modified, created or removed, until ctx is done. Bursts of events for one
// animation (an upload of many frames) are collapsed into a single call
// made delay after the last event.
func (s *Store) Watch(ctx context.Context, delay time.Duration, onChange func(AnimationID)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(s.root); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.root, err)
	}

	entries, err := readDirs(s.root)
	if err != nil {
		watcher.Close()
		return err
	}
	for _, dir := range entries {
		if err := watcher.Add(dir); err != nil {
			log.Warnf("watch %s: %v", dir, err)
		}
	}

	w := &watch{
		store:    s,
		watcher:  watcher,
		delay:    delay,
		onChange: onChange,
		pending:  make(map[AnimationID]*pending),
	}
	go w.loop(ctx)
	return nil
}

type watch struct {
	store    *Store
	watcher  *fsnotify.Watcher
	delay    time.Duration
	onChange func(AnimationID)

	mu      sync.Mutex
	pending map[AnimationID]*pending
}

// pending is the debouncer of one animation. It is dropped once it fires.
type pending struct {
	fire func(func())
}

func (w *watch) loop(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("watcher error: %v", err)
		}
	}
}

func (w *watch) handle(event fsnotify.Event) {
	root := filepath.Clean(w.store.root)
	parent := filepath.Dir(filepath.Clean(event.Name))

	var id AnimationID
	switch parent {
	case root:
		// An animation directory itself appeared or went away.
		id = AnimationID(filepath.Base(event.Name))
		if event.Op&fsnotify.Create != 0 {
			if err := w.watcher.Add(event.Name); err != nil {
				log.Debugf("watch %s: %v", event.Name, err)
			}
		}
	default:
		if filepath.Dir(parent) != root {
			return
		}
		if !frameName.MatchString(filepath.Base(event.Name)) {
			return
		}
		id = AnimationID(filepath.Base(parent))
	}

	w.mu.Lock()
	p, ok := w.pending[id]
	if !ok {
		p = &pending{fire: debounce.New(w.delay)}
		w.pending[id] = p
	}
	w.mu.Unlock()

	p.fire(func() {
		w.mu.Lock()
		if w.pending[id] == p {
			delete(w.pending, id)
		}
		w.mu.Unlock()

		log.Debugf("animation %s changed on disk", id)
		w.onChange(id)
	})
}

func readDirs(root string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*"))
	if err != nil {
		return nil, err
	}
	dirs := matches[:0]
	for _, m := range matches {
		if ok, _ := isDir(m); ok {
			dirs = append(dirs, m)
		}
	}
	return dirs, nil
}

func isDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
