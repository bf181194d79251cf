package flasher

import (
	"errors"
	"fmt"

	"github.com/bigbag/dfuse-flasher/internal/protocol"
)

var (
	// ErrProtocol is matched by every error caused by the device or the
	// transport. The device may be left in an indeterminate state.
	ErrProtocol = errors.New("dfu protocol error")

	// ErrConfig is matched by configuration errors, which are always
	// reported before the device is touched.
	ErrConfig = errors.New("invalid flasher configuration")
)

// ConfigError describes an unsupported configuration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// AddressError indicates a write that falls outside the allowed memory.
type AddressError struct {
	Address uint32
	Size    int
	Window  AddressWindow
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("address 0x%08X (%d bytes) out of bounds 0x%08X-0x%08X",
		e.Address, e.Size, e.Window.Start, e.Window.End)
}

func (e *AddressError) Unwrap() error { return ErrConfig }

// TransportError wraps a failed USB request.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "dfu: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrProtocol }

// StateError indicates the device reported an unexpected state.
type StateError struct {
	Op     string
	Want   protocol.State
	Status protocol.Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: expected %s, device reports %s", e.Op, e.Want, e.Status)
}

func (e *StateError) Unwrap() error { return ErrProtocol }

// ProtocolError indicates the device reported an error status.
type ProtocolError struct {
	Op     string
	Status protocol.Status
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Status)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// TransferError indicates the device accepted fewer bytes than were sent.
type TransferError struct {
	Address uint32
	Want    int
	Got     int
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("failed to write whole chunk at 0x%08X: sent %d of %d bytes",
		e.Address, e.Got, e.Want)
}

func (e *TransferError) Unwrap() error { return ErrProtocol }
