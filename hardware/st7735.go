package hardware

import (
	"fmt"
	"image"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/matt-g-everett/ledpanel/config"
)

// ST7735 command set.
const (
	cmdSWRESET = 0x01
	cmdSLPOUT  = 0x11
	cmdNORON   = 0x13
	cmdINVOFF  = 0x20
	cmdDISPON  = 0x29
	cmdCASET   = 0x2A
	cmdRASET   = 0x2B
	cmdRAMWR   = 0x2C
	cmdMADCTL  = 0x36
	cmdCOLMOD  = 0x3A
	cmdFRMCTR1 = 0xB1
	cmdINVCTR  = 0xB4
	cmdPWCTR1  = 0xC0
	cmdVMCTR1  = 0xC5
)

const (
	madMY  = 0x80
	madMX  = 0x40
	madMV  = 0x20
	madBGR = 0x08

	defaultChunk = 4096
)

// Panel is an ST7735 panel on an SPI port with a data/command line.
type Panel struct {
	name   string
	port   spi.PortCloser
	conn   spi.Conn
	dc     gpio.PinIO
	width  int
	height int
	chunk  int

	mu  sync.Mutex
	buf []byte
}

// OpenPanel opens and initialises the panel described by c. The panel
// accepts frames of width x height pixels after rotation.
func OpenPanel(c config.Display, width, height int) (*Panel, error) {
	dc, err := pin(c.DC)
	if err != nil {
		return nil, err
	}
	port, err := spireg.Open(c.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.SPIPort, err)
	}
	sc, err := port.Connect(physic.Frequency(c.SpeedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect %s: %w", c.SPIPort, err)
	}

	p := new(Panel)
	p.name = c.Name
	p.port = port
	p.conn = sc
	p.dc = dc
	p.width = width
	p.height = height
	p.chunk = defaultChunk
	if l, ok := sc.(conn.Limits); ok && l.MaxTxSize() > 0 && l.MaxTxSize() < p.chunk {
		p.chunk = l.MaxTxSize()
	}

	if err := p.init(madctl(c.Rotation)); err != nil {
		port.Close()
		return nil, fmt.Errorf("init %s: %w", c.Name, err)
	}
	log.Infof("%s: st7735 on %s, %dx%d rotation %d", c.Name, c.SPIPort, width, height, c.Rotation)
	return p, nil
}

func (p *Panel) init(mad byte) error {
	seq := []struct {
		cmd  byte
		data []byte
		wait time.Duration
	}{
		{cmdSWRESET, nil, 150 * time.Millisecond},
		{cmdSLPOUT, nil, 500 * time.Millisecond},
		{cmdFRMCTR1, []byte{0x01, 0x2C, 0x2D}, 0},
		{cmdINVCTR, []byte{0x07}, 0},
		{cmdPWCTR1, []byte{0xA2, 0x02, 0x84}, 0},
		{cmdVMCTR1, []byte{0x0E}, 0},
		{cmdINVOFF, nil, 0},
		{cmdMADCTL, []byte{mad}, 0},
		{cmdCOLMOD, []byte{0x05}, 0},
		{cmdNORON, nil, 10 * time.Millisecond},
		{cmdDISPON, nil, 100 * time.Millisecond},
	}
	for _, s := range seq {
		if err := p.command(s.cmd, s.data...); err != nil {
			return err
		}
		time.Sleep(s.wait)
	}
	return nil
}

// Show writes img to the panel. Errors are logged; the next frame retries.
func (p *Panel) Show(img image.Image) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = EncodeRGB565(p.buf[:0], img, p.width, p.height)
	if err := p.window(p.width, p.height); err != nil {
		log.Warnf("%s: window: %v", p.name, err)
		return
	}
	if err := p.command(cmdRAMWR); err != nil {
		log.Warnf("%s: ramwr: %v", p.name, err)
		return
	}
	if err := p.data(p.buf); err != nil {
		log.Warnf("%s: write frame: %v", p.name, err)
	}
}

// Close releases the SPI port.
func (p *Panel) Close() error {
	return p.port.Close()
}

func (p *Panel) window(w, h int) error {
	xe, ye := uint16(w-1), uint16(h-1)
	if err := p.command(cmdCASET, 0, 0, byte(xe>>8), byte(xe)); err != nil {
		return err
	}
	return p.command(cmdRASET, 0, 0, byte(ye>>8), byte(ye))
}

func (p *Panel) command(cmd byte, args ...byte) error {
	if err := p.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := p.conn.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	return p.data(args)
}

func (p *Panel) data(b []byte) error {
	if err := p.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(b) > 0 {
		n := min(len(b), p.chunk)
		if err := p.conn.Tx(b[:n], nil); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func madctl(rotation int) byte {
	switch ((rotation % 360) + 360) % 360 {
	case 90:
		return madMY | madMV | madBGR
	case 180:
		return madBGR
	case 270:
		return madMX | madMV | madBGR
	default:
		return madMX | madMY | madBGR
	}
}
