// Package serial opens the communication channel used by serial attached trackers.
package serial

import (
	"io"
	"time"

	"github.com/pkg/errors"
	ser "go.bug.st/serial"
)

// Options mirror the port settings tracker configurations carry.
type Options struct {
	BaudRate int
	DataBits int
	StopBits StopBits
	Parity   Parity
	// Handshake turns on RTS/CTS hardware flow control.
	Handshake bool
	// ReadTimeout is in milliseconds. Zero blocks until data arrives.
	ReadTimeout int
}

// DefaultOptions are 8N1 at 115200 baud with a 100ms read timeout.
func DefaultOptions() Options {
	return Options{BaudRate: 115200, DataBits: 8, StopBits: OneStopBit, Parity: NoParity, ReadTimeout: 100}
}

// Parity describes a serial port parity setting.
type Parity int

const (
	// NoParity disable parity control (default).
	NoParity Parity = iota
	// OddParity enable odd-parity check.
	OddParity
	// EvenParity enable even-parity check.
	EvenParity
	// MarkParity enable mark-parity (always 1) check.
	MarkParity
	// SpaceParity enable space-parity (always 0) check.
	SpaceParity
)

// ParseParity maps the configuration spelling of a parity ("none", "odd", "even", "mark",
// "space") to a Parity.
func ParseParity(s string) (Parity, error) {
	switch s {
	case "", "none", "N":
		return NoParity, nil
	case "odd", "O":
		return OddParity, nil
	case "even", "E":
		return EvenParity, nil
	case "mark", "M":
		return MarkParity, nil
	case "space", "S":
		return SpaceParity, nil
	default:
		return NoParity, errors.Errorf("unknown parity %q", s)
	}
}

// StopBits describe a serial port stop bits setting.
type StopBits int

const (
	// OneStopBit sets 1 stop bit (default).
	OneStopBit StopBits = iota
	// OnePointFiveStopBits sets 1.5 stop bits.
	OnePointFiveStopBits
	// TwoStopBits sets 2 stop bits.
	TwoStopBits
)

// Port is an open serial channel.
type Port interface {
	io.ReadWriteCloser
}

func (o Options) mode() *ser.Mode {
	dataBits := o.DataBits
	if dataBits == 0 {
		dataBits = 8
	}
	return &ser.Mode{
		BaudRate: o.BaudRate,
		Parity:   ser.Parity(o.Parity),
		DataBits: dataBits,
		StopBits: ser.StopBits(o.StopBits),
	}
}

// Open opens the serial device at devicePath. It is a variable so tests can replace it.
var Open = func(devicePath string, options Options) (Port, error) {
	device, err := ser.Open(devicePath, options.mode())
	if err != nil {
		return nil, errors.Wrapf(err, "opening serial port %q", devicePath)
	}
	if err := applyLineSettings(device, options); err != nil {
		return nil, errors.Wrapf(multiClose(err, device), "configuring serial port %q", devicePath)
	}
	return device, nil
}

// SetOptions reconfigures a port that is already open.
var SetOptions = func(p Port, options Options) error {
	port, ok := p.(ser.Port)
	if !ok {
		return errors.New("couldn't convert to underlying Port interface")
	}
	if err := port.SetMode(options.mode()); err != nil {
		return err
	}
	return applyLineSettings(port, options)
}

func applyLineSettings(port ser.Port, options Options) error {
	if options.ReadTimeout > 0 {
		if err := port.SetReadTimeout(time.Duration(options.ReadTimeout) * time.Millisecond); err != nil {
			return err
		}
	}
	if options.Handshake {
		if err := port.SetRTS(true); err != nil {
			return err
		}
	}
	return nil
}

func multiClose(err error, c io.Closer) error {
	if closeErr := c.Close(); closeErr != nil {
		return errors.Wrapf(err, "also failed to close: %v", closeErr)
	}
	return err
}

// ListPorts returns the names of the serial ports present on the host.
func ListPorts() ([]string, error) {
	return ser.GetPortsList()
}
