package flasher

import (
	"github.com/bigbag/dfuse-flasher/internal/protocol"
)

// SetAddressPointer moves the device address pointer used by the next
// DNLOAD or UPLOAD.
func (f *Flasher) SetAddressPointer(address uint32) error {
	return f.setOrErasePointer(address, false)
}

// ErasePage erases the flash page containing address.
func (f *Flasher) ErasePage(address uint32) error {
	return f.setOrErasePointer(address, true)
}

// setOrErasePointer sends a DfuSe vendor command and walks the device back
// to dfuIDLE. The device executes the command while reporting dfuDNBUSY,
// signals the result in the following status and needs an ABORT before it
// accepts a regular DNLOAD again.
func (f *Flasher) setOrErasePointer(address uint32, erase bool) error {
	cmd := protocol.SetAddressPointerCommand(address)
	if erase {
		cmd = protocol.ErasePageCommand(address)
	}
	op := protocol.CommandName(cmd[0])
	f.logDebug("sending command", "command", op, "address", hex32(address))

	if _, err := f.dev.Download(cmd, protocol.CommandTransaction); err != nil {
		return &TransportError{Op: op, Err: err}
	}

	st, err := f.getStatus(op)
	if err != nil {
		return err
	}
	if st.State != protocol.StateDfuDnbusy {
		return &StateError{Op: op, Want: protocol.StateDfuDnbusy, Status: st}
	}

	st, err = f.getStatus(op)
	if err != nil {
		return err
	}
	if !st.IsOK() {
		return &ProtocolError{Op: op, Status: st}
	}

	if err := f.dev.Abort(); err != nil {
		return &TransportError{Op: op + ": abort", Err: err}
	}

	st, err = f.getStatus(op)
	if err != nil {
		return err
	}
	if st.State != protocol.StateDfuIdle {
		return &StateError{Op: op + ": abort", Want: protocol.StateDfuIdle, Status: st}
	}

	if erase {
		f.lastErased = f.pageBase(address)
		f.erased = true
	}
	return nil
}

// DownloadChunk sends one DNLOAD and waits for the device to finish
// processing it. The device must settle in dfuDNLOAD-IDLE.
func (f *Flasher) DownloadChunk(data []byte, transaction uint16) (int, error) {
	n, err := f.dev.Download(data, transaction)
	if err != nil {
		return n, &TransportError{Op: "download", Err: err}
	}

	st, err := f.poll("download", protocol.StateDfuDnbusy, protocol.StateDfuDnloadSync)
	if err != nil {
		return n, err
	}
	if st.State != protocol.StateDfuDnloadIdle {
		return n, &StateError{Op: "download", Want: protocol.StateDfuDnloadIdle, Status: st}
	}
	return n, nil
}

// UploadChunk issues one UPLOAD for at most len(buf) bytes.
func (f *Flasher) UploadChunk(buf []byte, transaction uint16) (int, error) {
	n, err := f.dev.Upload(buf, transaction)
	if err != nil {
		return n, &TransportError{Op: "upload", Err: err}
	}
	return n, nil
}

// EnsureIdle brings the device to dfuIDLE before a transfer: an error
// state is cleared and an unfinished transfer is aborted.
func (f *Flasher) EnsureIdle() error {
	st, err := f.getStatus("prepare")
	if err != nil {
		return err
	}

	if st.State == protocol.StateDfuError {
		f.logInfo("clearing error status", "status", st.Status.String())
		if err := f.dev.ClearStatus(); err != nil {
			return &TransportError{Op: "clear status", Err: err}
		}
		if st, err = f.getStatus("prepare"); err != nil {
			return err
		}
	}

	if st.State != protocol.StateDfuIdle {
		f.logDebug("aborting pending transfer", "state", st.State.String())
		if err := f.dev.Abort(); err != nil {
			return &TransportError{Op: "prepare: abort", Err: err}
		}
		if st, err = f.getStatus("prepare"); err != nil {
			return err
		}
	}

	if st.State != protocol.StateDfuIdle {
		return &StateError{Op: "prepare", Want: protocol.StateDfuIdle, Status: st}
	}
	return nil
}
