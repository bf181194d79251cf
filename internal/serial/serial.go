package serial

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// TouchBaudRate is the baud rate that asks a USB CDC bootloader to reboot
// into DFU mode.
const TouchBaudRate = 1200

// openPort is replaced in tests.
var openPort = serial.Open

// Port wraps a serial port.
type Port struct {
	port     serial.Port
	portName string
}

// Open opens a serial port with the specified baud rate.
func Open(portName string, baudRate int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := openPort(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, err)
	}

	return &Port{
		port:     port,
		portName: portName,
	}, nil
}

// Close closes the serial port.
func (p *Port) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// SetDTR sets the DTR signal.
func (p *Port) SetDTR(value bool) error {
	return p.port.SetDTR(value)
}

// SetRTS sets the RTS signal.
func (p *Port) SetRTS(value bool) error {
	return p.port.SetRTS(value)
}

// TouchReset opens the port at 1200 baud, drops DTR and closes it again.
// Boards running a USB CDC bootloader take this as a request to restart
// in DFU mode. settle is how long to wait for the device to re-enumerate.
func TouchReset(portName string, settle time.Duration) error {
	p, err := Open(portName, TouchBaudRate)
	if err != nil {
		return err
	}

	if err := p.SetRTS(true); err != nil {
		p.Close()
		return fmt.Errorf("failed to set RTS: %w", err)
	}
	if err := p.SetDTR(false); err != nil {
		p.Close()
		return fmt.Errorf("failed to clear DTR: %w", err)
	}

	if err := p.Close(); err != nil {
		return fmt.Errorf("failed to close port %s: %w", p.portName, err)
	}

	if settle > 0 {
		time.Sleep(settle)
	}
	return nil
}

// ListPorts returns a list of available serial ports.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	return ports, nil
}
