package protocol

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
	"time"
)

func TestDecodeStatus_Valid(t *testing.T) {
	data := []byte{0x00, 0x64, 0x00, 0x00, byte(StateDfuDnbusy), 0x00}

	st, err := DecodeStatus(data)
	if err != nil {
		t.Fatalf("DecodeStatus() error = %v", err)
	}

	if st.Status != StatusOK {
		t.Errorf("DecodeStatus Status = %v, want %v", st.Status, StatusOK)
	}
	if st.PollTimeout != 100*time.Millisecond {
		t.Errorf("DecodeStatus PollTimeout = %v, want 100ms", st.PollTimeout)
	}
	if st.State != StateDfuDnbusy {
		t.Errorf("DecodeStatus State = %v, want %v", st.State, StateDfuDnbusy)
	}
}

func TestDecodeStatus_PollTimeout24Bit(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02, 0x03, byte(StateDfuIdle), 0x00}

	st, err := DecodeStatus(data)
	if err != nil {
		t.Fatalf("DecodeStatus() error = %v", err)
	}

	want := time.Duration(0x030201) * time.Millisecond
	if st.PollTimeout != want {
		t.Errorf("DecodeStatus PollTimeout = %v, want %v", st.PollTimeout, want)
	}
}

func TestDecodeStatus_ErrorStatus(t *testing.T) {
	data := []byte{byte(StatusErrAddress), 0x00, 0x00, 0x00, byte(StateDfuError), 0x07}

	st, err := DecodeStatus(data)
	if err != nil {
		t.Fatalf("DecodeStatus() error = %v", err)
	}
	if st.IsOK() {
		t.Error("IsOK() = true for errADDRESS, want false")
	}
	if st.StringIndex != 0x07 {
		t.Errorf("DecodeStatus StringIndex = %d, want 7", st.StringIndex)
	}
}

func TestDecodeStatus_TooShort(t *testing.T) {
	short := [][]byte{
		nil,
		{},
		{0x00},
		make([]byte, 5),
	}

	for _, data := range short {
		_, err := DecodeStatus(data)
		if err == nil {
			t.Errorf("DecodeStatus(%v) expected error, got nil", data)
		}
	}
}

func TestStatus_Encode_RoundTrip(t *testing.T) {
	st := Status{
		Status:      StatusErrWrite,
		PollTimeout: 1500 * time.Millisecond,
		State:       StateDfuError,
		StringIndex: 3,
	}

	decoded, err := DecodeStatus(st.Encode())
	if err != nil {
		t.Fatalf("DecodeStatus() error = %v", err)
	}
	if decoded != st {
		t.Errorf("DecodeStatus(Encode()) = %+v, want %+v", decoded, st)
	}
}

func TestStatus_Encode_ClampsTimeout(t *testing.T) {
	st := Status{PollTimeout: time.Hour * 10}
	data := st.Encode()
	if !bytes.Equal(data[1:4], []byte{0xFF, 0xFF, 0xFF}) {
		t.Errorf("Encode() timeout bytes = %v, want [0xFF 0xFF 0xFF]", data[1:4])
	}
}

func TestStatus_String(t *testing.T) {
	st := Status{Status: StatusErrErase, State: StateDfuError}
	result := st.String()

	if !strings.Contains(result, "dfuERROR") {
		t.Errorf("String() = %q, should contain 'dfuERROR'", result)
	}
	if !strings.Contains(result, "erase") {
		t.Errorf("String() = %q, should contain the status text", result)
	}
}

func TestSetAddressPointerCommand(t *testing.T) {
	data := SetAddressPointerCommand(0x08004000)

	if len(data) != CommandPayloadSize {
		t.Fatalf("SetAddressPointerCommand() length = %d, want %d", len(data), CommandPayloadSize)
	}
	if data[0] != CmdSetAddressPointer {
		t.Errorf("SetAddressPointerCommand()[0] = 0x%02X, want 0x21", data[0])
	}
	if addr := binary.LittleEndian.Uint32(data[1:]); addr != 0x08004000 {
		t.Errorf("SetAddressPointerCommand() address = 0x%08X, want 0x08004000", addr)
	}
}

func TestErasePageCommand(t *testing.T) {
	data := ErasePageCommand(0x12345678)
	expected := []byte{CmdErase, 0x78, 0x56, 0x34, 0x12}
	if !bytes.Equal(data, expected) {
		t.Errorf("ErasePageCommand() = %v, want %v", data, expected)
	}
}
