package flasher

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/bigbag/dfuse-flasher/internal/protocol"
)

// call records one request made to the mock device.
type call struct {
	Kind        string // erase, setptr, write, end, abort, clear, status, upload, alt
	Address     uint32
	Size        int
	Transaction uint16
}

// MockDevice simulates a DfuSe bootloader on the transport level.
type MockDevice struct {
	calls   []call
	state   protocol.State
	pending []protocol.State
	pointer uint32

	pollTimeout time.Duration

	// statusHook may replace the status returned by the nth GETSTATUS (0-based).
	statusHook func(n int, st protocol.Status) protocol.Status
	statusN    int

	downloadErr error
	shortWrite  int

	uploadSizes []int
	uploadIdx   int

	memory map[uint32]byte
}

func NewMockDevice() *MockDevice {
	return &MockDevice{
		state:       protocol.StateDfuIdle,
		pollTimeout: 5 * time.Millisecond,
		memory:      make(map[uint32]byte),
	}
}

func (m *MockDevice) Download(data []byte, transaction uint16) (int, error) {
	if m.downloadErr != nil {
		return 0, m.downloadErr
	}

	switch {
	case transaction == protocol.CommandTransaction && len(data) == protocol.CommandPayloadSize:
		address := binary.LittleEndian.Uint32(data[1:5])
		kind := "setptr"
		if data[0] == protocol.CmdErase {
			kind = "erase"
		} else {
			m.pointer = address
		}
		m.calls = append(m.calls, call{Kind: kind, Address: address, Transaction: transaction})
		m.state = protocol.StateDfuDnloadIdle
		m.pending = []protocol.State{protocol.StateDfuDnbusy}
		return len(data), nil

	case len(data) == 0:
		m.calls = append(m.calls, call{Kind: "end", Transaction: transaction})
		m.state = protocol.StateDfuIdle
		m.pending = []protocol.State{protocol.StateDfuManifestSync, protocol.StateDfuManifest}
		return 0, nil

	default:
		n := len(data)
		if m.shortWrite > 0 && n > m.shortWrite {
			n = m.shortWrite
		}
		m.calls = append(m.calls, call{Kind: "write", Address: m.pointer, Size: n, Transaction: transaction})
		for i := 0; i < n; i++ {
			m.memory[m.pointer+uint32(i)] = data[i]
		}
		m.state = protocol.StateDfuDnloadIdle
		m.pending = []protocol.State{protocol.StateDfuDnbusy}
		return n, nil
	}
}

func (m *MockDevice) Upload(buf []byte, transaction uint16) (int, error) {
	if m.uploadIdx >= len(m.uploadSizes) {
		return 0, errors.New("unexpected upload")
	}
	n := m.uploadSizes[m.uploadIdx]
	m.uploadIdx++
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n; i++ {
		buf[i] = byte(int(transaction) + i)
	}
	m.calls = append(m.calls, call{Kind: "upload", Size: n, Transaction: transaction})
	return n, nil
}

func (m *MockDevice) GetStatus() (protocol.Status, error) {
	state := m.state
	if len(m.pending) > 0 {
		state = m.pending[0]
		m.pending = m.pending[1:]
	}
	st := protocol.Status{Status: protocol.StatusOK, PollTimeout: m.pollTimeout, State: state}
	if m.statusHook != nil {
		st = m.statusHook(m.statusN, st)
	}
	m.statusN++
	m.calls = append(m.calls, call{Kind: "status"})
	return st, nil
}

func (m *MockDevice) ClearStatus() error {
	m.calls = append(m.calls, call{Kind: "clear"})
	m.state = protocol.StateDfuIdle
	return nil
}

func (m *MockDevice) Abort() error {
	m.calls = append(m.calls, call{Kind: "abort"})
	m.state = protocol.StateDfuIdle
	m.pending = nil
	return nil
}

func (m *MockDevice) SetAltSetting(alt uint8) error {
	m.calls = append(m.calls, call{Kind: "alt", Size: int(alt)})
	return nil
}

// only returns the calls of the given kinds.
func (m *MockDevice) only(kinds ...string) []call {
	var out []call
	for _, c := range m.calls {
		for _, k := range kinds {
			if c.Kind == k {
				out = append(out, c)
			}
		}
	}
	return out
}

func (m *MockDevice) kinds() string {
	s := ""
	for _, c := range m.calls {
		if c.Kind == "status" {
			continue
		}
		if s != "" {
			s += " "
		}
		s += c.Kind
	}
	return s
}

// plainTransport hides the optional AltSetter of the wrapped transport.
type plainTransport struct {
	protocol.Transport
}

// fakeClock records sleeps instead of waiting.
type fakeClock struct {
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
}

func (c *fakeClock) total() time.Duration {
	var t time.Duration
	for _, d := range c.sleeps {
		t += d
	}
	return t
}

// recordingLogger collects messages for assertions.
type recordingLogger struct {
	debug []string
	info  []string
	errs  []string
}

func (l *recordingLogger) Debug(msg string, kv ...interface{}) {
	l.debug = append(l.debug, msg)
}

func (l *recordingLogger) Info(msg string, kv ...interface{}) {
	l.info = append(l.info, msg)
}

func (l *recordingLogger) Error(msg string, kv ...interface{}) {
	l.errs = append(l.errs, fmt.Sprint(append([]interface{}{msg}, kv...)...))
}
