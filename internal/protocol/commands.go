package protocol

import "fmt"

// DFU class-specific requests
const (
	ReqDnload    = 0x01
	ReqUpload    = 0x02
	ReqGetStatus = 0x03
	ReqClrStatus = 0x04
	ReqAbort     = 0x06
)

// DfuSe vendor commands, sent as the first byte of a DNLOAD with block 0
const (
	CmdGetCommands       = 0x00
	CmdSetAddressPointer = 0x21
	CmdErase             = 0x41
	CmdReadUnprotect     = 0x92
)

// Block numbers 0 and 1 are reserved for DfuSe commands; data transfers
// start at 2.
const (
	CommandTransaction   = 0
	FirstDataTransaction = 2
	StatusPayloadSize    = 6
	CommandPayloadSize   = 5
)

// State is the DFU device state reported by GETSTATUS.
type State byte

const (
	StateAppIdle              State = 0
	StateAppDetach            State = 1
	StateDfuIdle              State = 2
	StateDfuDnloadSync        State = 3
	StateDfuDnbusy            State = 4
	StateDfuDnloadIdle        State = 5
	StateDfuManifestSync      State = 6
	StateDfuManifest          State = 7
	StateDfuManifestWaitReset State = 8
	StateDfuUploadIdle        State = 9
	StateDfuError             State = 10
)

var stateNames = [...]string{
	StateAppIdle:              "appIDLE",
	StateAppDetach:            "appDETACH",
	StateDfuIdle:              "dfuIDLE",
	StateDfuDnloadSync:        "dfuDNLOAD-SYNC",
	StateDfuDnbusy:            "dfuDNBUSY",
	StateDfuDnloadIdle:        "dfuDNLOAD-IDLE",
	StateDfuManifestSync:      "dfuMANIFEST-SYNC",
	StateDfuManifest:          "dfuMANIFEST",
	StateDfuManifestWaitReset: "dfuMANIFEST-WAIT-RESET",
	StateDfuUploadIdle:        "dfuUPLOAD-IDLE",
	StateDfuError:             "dfuERROR",
}

// String returns the DFU 1.1 name of the state.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("unknown state 0x%02X", byte(s))
}

// StatusCode is the bStatus field reported by GETSTATUS.
type StatusCode byte

const (
	StatusOK             StatusCode = 0x00
	StatusErrTarget      StatusCode = 0x01
	StatusErrFile        StatusCode = 0x02
	StatusErrWrite       StatusCode = 0x03
	StatusErrErase       StatusCode = 0x04
	StatusErrCheckErased StatusCode = 0x05
	StatusErrProg        StatusCode = 0x06
	StatusErrVerify      StatusCode = 0x07
	StatusErrAddress     StatusCode = 0x08
	StatusErrNotDone     StatusCode = 0x09
	StatusErrFirmware    StatusCode = 0x0A
	StatusErrVendor      StatusCode = 0x0B
	StatusErrUSBR        StatusCode = 0x0C
	StatusErrPOR         StatusCode = 0x0D
	StatusErrUnknown     StatusCode = 0x0E
	StatusErrStalledPkt  StatusCode = 0x0F
)

var statusMessages = [...]string{
	StatusOK:             "no error condition is present",
	StatusErrTarget:      "file is not targeted for use by this device",
	StatusErrFile:        "file is for this device but fails some vendor-specific test",
	StatusErrWrite:       "device is unable to write memory",
	StatusErrErase:       "memory erase function failed",
	StatusErrCheckErased: "memory erase check failed",
	StatusErrProg:        "program memory function failed",
	StatusErrVerify:      "programmed memory failed verification",
	StatusErrAddress:     "cannot program memory due to received address that is out of range",
	StatusErrNotDone:     "received DFU_DNLOAD with wLength = 0, but device does not think that it has all data yet",
	StatusErrFirmware:    "device's firmware is corrupt; it cannot return to run-time (non-DFU) operations",
	StatusErrVendor:      "iString indicates a vendor specific error",
	StatusErrUSBR:        "device detected unexpected USB reset signalling",
	StatusErrPOR:         "device detected unexpected power on reset",
	StatusErrUnknown:     "something went wrong, but the device does not know what it was",
	StatusErrStalledPkt:  "device stalled an unexpected request",
}

// String returns a human-readable description of the status code.
func (c StatusCode) String() string {
	if int(c) < len(statusMessages) {
		return statusMessages[c]
	}
	return "unknown error"
}
