package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/matt-g-everett/ledpanel/store"
	"github.com/matt-g-everett/ledpanel/util"
)

var log = logging.Logger("protocol")

// A Store answers animation queries and stores uploaded frames.
type Store interface {
	Exists(id store.AnimationID) bool
	FileCount(id store.AnimationID) (int, error)
	WriteFrame(id store.AnimationID, index int, data []byte) error
}

// A Display accepts animation and text changes.
type Display interface {
	SetAnimation(id store.AnimationID)
	SetText(text string)
}

// Brightness controls the shared backlight.
type Brightness interface {
	SetImmediate(value float64)
	StartFade(rate, initial float64)
}

// Dispatcher executes commands against the displays, the brightness
// controller and the animation store.
type Dispatcher struct {
	store      Store
	brightness Brightness
	displays   []Display
	maxPayload uint32
}

// NewDispatcher creates a Dispatcher. displays[i] is addressed by bit i of
// the PlayAnimation and ShowText parameter.
func NewDispatcher(s Store, b Brightness, displays ...Display) *Dispatcher {
	d := new(Dispatcher)
	d.store = s
	d.brightness = b
	d.displays = displays
	return d
}

// SetMaxPayload limits the accepted payload size. 0 means MaxPayload.
func (d *Dispatcher) SetMaxPayload(n uint32) {
	d.maxPayload = n
}

// Serve reads and executes commands from rw until the stream fails, writing
// acknowledgements back to rw. It always returns a non-nil error; errors
// wrapping ErrPeerClosed mean the peer hung up.
func (d *Dispatcher) Serve(rw io.ReadWriter) error {
	session := uuid.NewString()
	log.Infof("session %s: serving commands", session)

	for {
		cmd, err := ReadCommand(rw, d.maxPayload)
		if errors.Is(err, ErrDropped) {
			log.Debugf("session %s: %v", session, err)
			continue
		}
		if err != nil {
			log.Warnf("session %s: %v", session, err)
			return err
		}

		if err := d.Execute(cmd, rw); err != nil {
			log.Warnf("session %s: %v", session, err)
			return err
		}
	}
}

// Execute runs a single command and writes its acknowledgement, if one is
// due, to w. Only a failure to write is returned.
func (d *Dispatcher) Execute(cmd Command, w io.Writer) error {
	success, answer := d.handle(cmd)
	log.Debugf("%s cb=%s param=%d len=%d -> answer=%t success=%t",
		cmd.Opcode, cmd.Callback, cmd.Parameter, len(cmd.Payload), answer, success)

	if !answer || !cmd.Callback.Requested() {
		return nil
	}
	if _, err := w.Write(EncodeAck(cmd.Callback, success)); err != nil {
		return fmt.Errorf("write acknowledgement: %w", err)
	}
	return nil
}

// handle reports the outcome of cmd and whether the opcode answers at all.
func (d *Dispatcher) handle(cmd Command) (success, answer bool) {
	answer = cmd.Opcode == QueryAnimation || cmd.Opcode == UploadFrame || cmd.Opcode == SetBrightness
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s panicked: %v", cmd.Opcode, r)
			success = false
		}
	}()

	switch cmd.Opcode {
	case QueryAnimation:
		return d.queryAnimation(cmd), answer
	case UploadFrame:
		return d.uploadFrame(cmd), answer
	case PlayAnimation:
		d.playAnimation(cmd)
	case ShowText:
		d.showText(cmd)
	case SetBrightness:
		return d.setBrightness(cmd), answer
	}
	return false, answer
}

func (d *Dispatcher) queryAnimation(cmd Command) bool {
	if len(cmd.Payload) != 4 {
		log.Warnf("QueryAnimation: payload of %d bytes", len(cmd.Payload))
		return false
	}
	id := store.IDFromWire(binary.BigEndian.Uint32(cmd.Payload))
	if !d.store.Exists(id) {
		return false
	}

	n, err := d.store.FileCount(id)
	if err != nil {
		log.Warnf("QueryAnimation %s: %v", id, err)
		return false
	}
	return n == int(cmd.Parameter)
}

func (d *Dispatcher) uploadFrame(cmd Command) bool {
	if len(cmd.Payload) < 4 {
		log.Warnf("UploadFrame: payload of %d bytes", len(cmd.Payload))
		return false
	}
	id := store.IDFromWire(binary.BigEndian.Uint32(cmd.Payload[:4]))

	if err := d.store.WriteFrame(id, int(cmd.Parameter), cmd.Payload[4:]); err != nil {
		log.Warnf("UploadFrame %s/%04d: %v", id, cmd.Parameter, err)
		return false
	}
	return true
}

func (d *Dispatcher) playAnimation(cmd Command) {
	if len(cmd.Payload) != 4 {
		log.Warnf("PlayAnimation: payload of %d bytes", len(cmd.Payload))
		return
	}
	id := store.IDFromWire(binary.BigEndian.Uint32(cmd.Payload))
	if !d.store.Exists(id) {
		log.Infof("PlayAnimation: %s does not exist", id)
		return
	}

	for _, display := range d.targets(cmd.Parameter) {
		display.SetAnimation(id)
	}
}

func (d *Dispatcher) showText(cmd Command) {
	if !utf8.Valid(cmd.Payload) {
		log.Warnf("ShowText: payload is not UTF-8")
		return
	}
	text := string(cmd.Payload)

	for _, display := range d.targets(cmd.Parameter) {
		display.SetText(text)
	}
}

func (d *Dispatcher) setBrightness(cmd Command) bool {
	if len(cmd.Payload) != 2 {
		log.Warnf("SetBrightness: payload of %d bytes", len(cmd.Payload))
		return false
	}
	target := util.Unscale16(cmd.Parameter)
	decrement := util.Unscale16(binary.BigEndian.Uint16(cmd.Payload))

	if decrement > 0 {
		d.brightness.StartFade(decrement, target)
	} else {
		d.brightness.SetImmediate(target)
	}
	return true
}

func (d *Dispatcher) targets(mask uint16) []Display {
	var out []Display
	for i, display := range d.displays {
		if i < 16 && mask&(1<<i) != 0 && display != nil {
			out = append(out, display)
		}
	}
	return out
}
