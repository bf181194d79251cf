package protocol

import (
	"strings"
	"testing"
)

func TestState_String_Known(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateAppIdle, "appIDLE"},
		{StateDfuIdle, "dfuIDLE"},
		{StateDfuDnbusy, "dfuDNBUSY"},
		{StateDfuDnloadIdle, "dfuDNLOAD-IDLE"},
		{StateDfuManifestSync, "dfuMANIFEST-SYNC"},
		{StateDfuManifest, "dfuMANIFEST"},
		{StateDfuUploadIdle, "dfuUPLOAD-IDLE"},
		{StateDfuError, "dfuERROR"},
	}

	for _, tc := range tests {
		result := tc.state.String()
		if result != tc.expected {
			t.Errorf("State(%d).String() = %q, want %q", byte(tc.state), result, tc.expected)
		}
	}
}

func TestState_String_Unknown(t *testing.T) {
	unknown := []State{11, 0x42, 0xFF}
	for _, s := range unknown {
		result := s.String()
		if !strings.HasPrefix(result, "unknown state") {
			t.Errorf("State(0x%02X).String() = %q, want 'unknown state' prefix", byte(s), result)
		}
	}
}

func TestStatusCode_String_AllCodes(t *testing.T) {
	for code := StatusOK; code <= StatusErrStalledPkt; code++ {
		result := code.String()
		if result == "" || result == "unknown error" {
			t.Errorf("StatusCode(0x%02X).String() = %q, want a description", byte(code), result)
		}
	}
}

func TestStatusCode_String_Unknown(t *testing.T) {
	unknown := []StatusCode{0x10, 0x80, 0xFF}
	for _, code := range unknown {
		if result := code.String(); result != "unknown error" {
			t.Errorf("StatusCode(0x%02X).String() = %q, want %q", byte(code), result, "unknown error")
		}
	}
}

func TestCommandName(t *testing.T) {
	tests := []struct {
		cmd      byte
		expected string
	}{
		{CmdSetAddressPointer, "set address pointer"},
		{CmdErase, "erase page"},
		{CmdReadUnprotect, "read unprotect"},
		{CmdGetCommands, "get commands"},
		{0x77, "unknown command"},
	}

	for _, tc := range tests {
		if result := CommandName(tc.cmd); result != tc.expected {
			t.Errorf("CommandName(0x%02X) = %q, want %q", tc.cmd, result, tc.expected)
		}
	}
}

func TestConstants(t *testing.T) {
	requests := map[string][2]byte{
		"ReqDnload":    {ReqDnload, 0x01},
		"ReqUpload":    {ReqUpload, 0x02},
		"ReqGetStatus": {ReqGetStatus, 0x03},
		"ReqClrStatus": {ReqClrStatus, 0x04},
		"ReqAbort":     {ReqAbort, 0x06},
	}
	for name, v := range requests {
		if v[0] != v[1] {
			t.Errorf("%s = 0x%02X, want 0x%02X", name, v[0], v[1])
		}
	}

	if CmdSetAddressPointer != 0x21 {
		t.Errorf("CmdSetAddressPointer = 0x%02X, want 0x21", CmdSetAddressPointer)
	}
	if CmdErase != 0x41 {
		t.Errorf("CmdErase = 0x%02X, want 0x41", CmdErase)
	}
	if FirstDataTransaction != 2 {
		t.Errorf("FirstDataTransaction = %d, want 2", FirstDataTransaction)
	}
}
