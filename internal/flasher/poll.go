package flasher

import (
	"github.com/bigbag/dfuse-flasher/internal/protocol"
)

type pollAction int

const (
	pollWait pollAction = iota
	pollDone
	pollFail
)

// nextPollAction decides what to do after a status request: keep waiting
// while the device is in one of the busy states, fail on any error, and
// stop otherwise.
func nextPollAction(st protocol.Status, busy ...protocol.State) pollAction {
	if st.State == protocol.StateDfuError || !st.IsOK() {
		return pollFail
	}
	for _, s := range busy {
		if st.State == s {
			return pollWait
		}
	}
	return pollDone
}

// getStatus issues GETSTATUS and waits the poll timeout the device asks for.
func (f *Flasher) getStatus(op string) (protocol.Status, error) {
	st, err := f.dev.GetStatus()
	if err != nil {
		return st, &TransportError{Op: op + ": get status", Err: err}
	}
	f.sleep(st.PollTimeout)
	return st, nil
}

// poll requests the status until the device leaves the busy states.
func (f *Flasher) poll(op string, busy ...protocol.State) (protocol.Status, error) {
	for {
		st, err := f.getStatus(op)
		if err != nil {
			return st, err
		}

		switch nextPollAction(st, busy...) {
		case pollWait:
			continue
		case pollFail:
			return st, &ProtocolError{Op: op, Status: st}
		default:
			return st, nil
		}
	}
}
