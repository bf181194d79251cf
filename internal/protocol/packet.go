package protocol

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Status is the decoded payload of a GETSTATUS request.
type Status struct {
	Status      StatusCode
	PollTimeout time.Duration
	State       State
	StringIndex byte
}

// DecodeStatus parses the 6-byte GETSTATUS payload.
func DecodeStatus(data []byte) (Status, error) {
	// Payload format:
	// 0: bStatus
	// 1-3: bwPollTimeout (little-endian, milliseconds)
	// 4: bState
	// 5: iString
	if len(data) < StatusPayloadSize {
		return Status{}, fmt.Errorf("status too short: %d bytes", len(data))
	}

	timeout := uint32(data[1]) | uint32(data[2])<<8 | uint32(data[3])<<16

	return Status{
		Status:      StatusCode(data[0]),
		PollTimeout: time.Duration(timeout) * time.Millisecond,
		State:       State(data[4]),
		StringIndex: data[5],
	}, nil
}

// Encode serializes the status the way a device reports it.
func (s Status) Encode() []byte {
	ms := uint32(s.PollTimeout / time.Millisecond)
	if ms > 0xFFFFFF {
		ms = 0xFFFFFF
	}

	data := make([]byte, StatusPayloadSize)
	data[0] = byte(s.Status)
	data[1] = byte(ms)
	data[2] = byte(ms >> 8)
	data[3] = byte(ms >> 16)
	data[4] = byte(s.State)
	data[5] = s.StringIndex
	return data
}

// IsOK returns true if the device reports no error condition.
func (s Status) IsOK() bool {
	return s.Status == StatusOK
}

// String returns the decoded state and status text.
func (s Status) String() string {
	return fmt.Sprintf("state(%d) = %s, status(%d) = %s",
		byte(s.State), s.State, byte(s.Status), s.Status)
}

// SetAddressPointerCommand creates the DfuSe payload that moves the
// device address pointer.
func SetAddressPointerCommand(address uint32) []byte {
	return vendorCommand(CmdSetAddressPointer, address)
}

// ErasePageCommand creates the DfuSe payload that erases the flash page
// containing address.
func ErasePageCommand(address uint32) []byte {
	return vendorCommand(CmdErase, address)
}

func vendorCommand(cmd byte, address uint32) []byte {
	data := make([]byte, CommandPayloadSize)
	data[0] = cmd
	binary.LittleEndian.PutUint32(data[1:5], address)
	return data
}

// CommandName returns a human-readable name for a DfuSe command byte.
func CommandName(cmd byte) string {
	switch cmd {
	case CmdGetCommands:
		return "get commands"
	case CmdSetAddressPointer:
		return "set address pointer"
	case CmdErase:
		return "erase page"
	case CmdReadUnprotect:
		return "read unprotect"
	default:
		return "unknown command"
	}
}
