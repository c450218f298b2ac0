// Package store keeps animations on disk, one directory of numbered frame
// images per animation id.
package store

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var log = logging.Logger("store")

var (
	// ErrNotFound is returned for animations without a directory.
	ErrNotFound = errors.New("animation not found")
	// ErrInvalidID is returned for ids that cannot name a directory.
	ErrInvalidID = errors.New("invalid animation id")
)

var frameName = regexp.MustCompile(`^(\d+)\.(?i:png|bmp|webp|gif|jpe?g)$`)

// AnimationID names an animation directory below the store root.
type AnimationID string

// IDFromWire converts the numeric id used by the command protocol.
func IDFromWire(v uint32) AnimationID {
	return AnimationID(strconv.FormatUint(uint64(v), 10))
}

// Frame is one frame file of an animation.
type Frame struct {
	Index int
	Path  string
}

// Store reads and writes animations below a root directory. Decoded frames
// are scaled to Width x Height.
type Store struct {
	root   string
	width  int
	height int
}

// New creates a Store rooted at root.
func New(root string, width, height int) *Store {
	s := new(Store)
	s.root = root
	s.width = width
	s.height = height
	return s
}

// Root returns the directory holding all animations.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory of an animation.
func (s *Store) Dir(id AnimationID) (string, error) {
	name := string(id)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, name)
	}
	return filepath.Join(s.root, name), nil
}

// Exists reports whether the animation directory exists.
func (s *Store) Exists(id AnimationID) bool {
	dir, err := s.Dir(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// FileCount returns the number of regular files in the animation directory.
func (s *Store) FileCount(id AnimationID) (int, error) {
	entries, err := s.readDir(id)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() {
			n++
		}
	}
	return n, nil
}

// ListFrames returns the frame files of an animation in ascending frame
// number. Files not named like a frame are skipped.
func (s *Store) ListFrames(id AnimationID) ([]Frame, error) {
	entries, err := s.readDir(id)
	if err != nil {
		return nil, err
	}
	dir, _ := s.Dir(id)

	frames := make([]Frame, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		m := frameName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		frames = append(frames, Frame{Index: index, Path: filepath.Join(dir, e.Name())})
	}

	sort.SliceStable(frames, func(i, j int) bool {
		return frames[i].Index < frames[j].Index
	})
	return frames, nil
}

// WriteFrame stores the image bytes of frame index. The animation directory
// is created when missing. The file is renamed into place so readers never
// see a partial frame.
func (s *Store) WriteFrame(id AnimationID, index int, data []byte) error {
	dir, err := s.Dir(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp frame: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write frame: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close frame: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%04d.png", index))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store frame %s: %w", path, err)
	}
	log.Debugf("stored %s (%d bytes)", path, len(data))
	return nil
}

// LoadFrame decodes a frame file into an RGBA image of the store's size.
func (s *Store) LoadFrame(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	if src.Bounds().Size() == dst.Bounds().Size() {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	}
	return dst, nil
}

func (s *Store) readDir(id AnimationID) ([]os.DirEntry, error) {
	dir, err := s.Dir(id)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entries, err
}
