// Package oled drives the Waveshare 1.5" RGB OLED (SSD1351 controller)
// over SPI. It implements the display sink the session loop submits
// RGB565 frames to.
package oled

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/one-project/oledcam/internal/logger"
	"github.com/one-project/oledcam/pkg/types"
)

// Config names the SPI port and control pins wired to the panel.
type Config struct {
	SPIPort string // e.g. "/dev/spidev0.0" or "" for the first port
	DCPin   string // data/command select, e.g. "GPIO22"
	RSTPin  string // hardware reset, e.g. "GPIO13"
	Speed   physic.Frequency
}

// DefaultConfig matches the reference wiring of the panel.
func DefaultConfig() Config {
	return Config{
		SPIPort: "",
		DCPin:   "GPIO22",
		RSTPin:  "GPIO13",
		Speed:   16 * physic.MegaHertz,
	}
}

// maxTxSize bounds a single SPI transfer; Linux spidev commonly caps the
// buffer at 4096 bytes.
const maxTxSize = 4096

// Device is an open SSD1351 panel.
type Device struct {
	port spi.PortCloser
	conn spi.Conn
	dc   gpio.PinOut
	rst  gpio.PinOut
	res  types.Resolution
}

// Open initializes the host, connects to the panel over SPI, performs the
// hardware reset and runs the SSD1351 init sequence, leaving the display
// on and cleared.
func Open(cfg Config, res types.Resolution) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", cfg.SPIPort, err)
	}

	conn, err := port.Connect(cfg.Speed, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect spi: %w", err)
	}

	dc := gpioreg.ByName(cfg.DCPin)
	if dc == nil {
		port.Close()
		return nil, fmt.Errorf("dc pin %q not found", cfg.DCPin)
	}
	rst := gpioreg.ByName(cfg.RSTPin)
	if rst == nil {
		port.Close()
		return nil, fmt.Errorf("rst pin %q not found", cfg.RSTPin)
	}

	d := &Device{port: port, conn: conn, dc: dc, rst: rst, res: res}
	if err := d.init(); err != nil {
		port.Close()
		return nil, err
	}

	logger.Info("OLED", "Panel initialized (%s, SPI %s)", res, cfg.Speed)
	return d, nil
}

func (d *Device) init() error {
	if err := d.reset(); err != nil {
		return fmt.Errorf("panel reset: %w", err)
	}

	seq := []struct {
		cmd  byte
		args []byte
	}{
		{0xFD, []byte{0x12}},             // unlock driver IC
		{0xFD, []byte{0xB1}},             // unlock commands
		{0xAE, nil},                      // display off
		{0xB3, []byte{0xF1}},             // clock divider / oscillator
		{0xCA, []byte{0x7F}},             // mux ratio 1/128
		{0xA0, []byte{0x74}},             // remap, 65k color, COM split
		{0x15, []byte{0x00, 0x7F}},       // column range
		{0x75, []byte{0x00, 0x7F}},       // row range
		{0xA1, []byte{0x00}},             // display start line
		{0xA2, []byte{0x00}},             // display offset
		{0xB5, []byte{0x00}},             // GPIO disabled
		{0xAB, []byte{0x01}},             // internal VDD regulator
		{0xB1, []byte{0x32}},             // phase 1/2 periods
		{0xBE, []byte{0x05}},             // VCOMH
		{0xA6, nil},                      // normal display mode
		{0xC1, []byte{0xC8, 0x80, 0xC8}}, // channel contrast
		{0xC7, []byte{0x0F}},             // master contrast
		{0xB4, []byte{0xA0, 0xB5, 0x55}}, // segment low voltage
		{0xB6, []byte{0x01}},             // phase 3 period
	}
	for _, s := range seq {
		if err := d.command(s.cmd, s.args...); err != nil {
			return fmt.Errorf("init command %#02x: %w", s.cmd, err)
		}
	}

	if err := d.Clear(); err != nil {
		return err
	}
	if err := d.command(0xAF); err != nil { // display on
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

func (d *Device) reset() error {
	if err := d.rst.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.rst.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.rst.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

func (d *Device) command(cmd byte, args ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	return d.data(args)
}

func (d *Device) data(p []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(p) > 0 {
		n := len(p)
		if n > maxTxSize {
			n = maxTxSize
		}
		if err := d.conn.Tx(p[:n], nil); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// setWindow addresses the full panel and opens the RAM write.
func (d *Device) setWindow() error {
	if err := d.command(0x15, 0x00, byte(d.res.Width-1)); err != nil {
		return err
	}
	if err := d.command(0x75, 0x00, byte(d.res.Height-1)); err != nil {
		return err
	}
	return d.command(0x5C) // write RAM
}

// Display transfers one full RGB565 frame to the panel. frame must be
// exactly DisplayFrameSize bytes, big-endian per pixel, row-major.
func (d *Device) Display(frame []byte) error {
	if len(frame) != d.res.DisplayFrameSize() {
		return fmt.Errorf("display frame is %d bytes, want %d", len(frame), d.res.DisplayFrameSize())
	}
	if err := d.setWindow(); err != nil {
		return fmt.Errorf("set window: %w", err)
	}
	if err := d.data(frame); err != nil {
		return fmt.Errorf("frame transfer: %w", err)
	}
	return nil
}

// Clear blanks the panel RAM.
func (d *Device) Clear() error {
	if err := d.setWindow(); err != nil {
		return err
	}
	return d.data(make([]byte, d.res.DisplayFrameSize()))
}

// Close blanks and powers down the panel, then releases the SPI port.
func (d *Device) Close() error {
	if err := d.Clear(); err != nil {
		logger.Warn("OLED", "Clear on close: %v", err)
	}
	if err := d.command(0xAE); err != nil { // display off
		logger.Warn("OLED", "Display off on close: %v", err)
	}
	return d.port.Close()
}
