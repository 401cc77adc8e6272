package gpsfeed

import (
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
)

// Porter defines the minimal interface needed for a serial port.
// This abstraction enables unit testing without real GNSS hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// PortOptions describes the serial connection parameters used when opening a
// real port. The zero value normalizes to 9600 8N1, the NMEA 0183 default.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// parityLetters canonicalizes the accepted parity spellings.
var parityLetters = map[string]string{
	"":     "N",
	"N":    "N",
	"NONE": "N",
	"E":    "E",
	"EVEN": "E",
	"O":    "O",
	"ODD":  "O",
}

var parityModes = map[string]serial.Parity{
	"N": serial.NoParity,
	"E": serial.EvenParity,
	"O": serial.OddParity,
}

// Normalize fills defaults for unset fields and canonicalizes parity, or
// rejects values no serial driver accepts.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 9600
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("data bits %d out of range 5..8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("stop bits %d: only 1 or 2 work", opts.StopBits)
	}

	letter, ok := parityLetters[strings.ToUpper(strings.TrimSpace(opts.Parity))]
	if !ok {
		return opts, fmt.Errorf("unknown parity %q: use N, E, or O", opts.Parity)
	}
	opts.Parity = letter

	return opts, nil
}

// SerialMode renders the options as the mode go.bug.st/serial opens with.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	// StopBits(1) would be OnePointFiveStopBits; map explicitly.
	stop := serial.OneStopBit
	if opts.StopBits == 2 {
		stop = serial.TwoStopBits
	}

	return &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: stop,
		Parity:   parityModes[opts.Parity],
	}, nil
}

// NewSerialFeed creates a Feed backed by a real serial port at the given
// path using the provided options. The feed can reopen the device after a
// read failure, so an unplugged receiver resumes when it comes back.
func NewSerialFeed(path string, opts PortOptions) (*Feed[serial.Port], error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	f := NewFeed[serial.Port](port)
	f.reopen = func() (serial.Port, error) {
		return serial.Open(path, mode)
	}
	return f, nil
}
