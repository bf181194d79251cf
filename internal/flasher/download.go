package flasher

import (
	"context"
	"errors"
	"fmt"

	"github.com/bigbag/dfuse-flasher/internal/dfuse"
	"github.com/bigbag/dfuse-flasher/internal/protocol"
)

// DownloadImage writes every element of a parsed DfuSe image to the device,
// target by target, then signals the end of the transfer and waits for the
// device to finish manifestation.
//
// The configuration and every element address are checked before the
// device is touched. A failure aborts the whole image; the device is not
// rolled back.
func (f *Flasher) DownloadImage(ctx context.Context, img *dfuse.FirmwareImage) error {
	if img == nil {
		return errors.New("image cannot be nil")
	}

	var elements []*dfuse.Element
	for _, t := range img.Targets {
		elements = append(elements, t.Elements...)
	}
	if err := f.preflight(elements); err != nil {
		return err
	}

	f.begin(img.PayloadSize())

	for i, t := range img.Targets {
		if err := f.selectAltSetting(t.AlternateSetting); err != nil {
			return fmt.Errorf("target %d: %w", i+1, err)
		}

		f.logInfo("downloading target",
			"target", i+1,
			"alt", t.AlternateSetting,
			"name", t.Name,
			"elements", len(t.Elements),
		)

		for j, e := range t.Elements {
			if err := f.downloadElement(ctx, e); err != nil {
				return fmt.Errorf("target %d element %d at 0x%08X: %w", i+1, j+1, e.Address, err)
			}
		}
	}

	return f.finishDownload(ctx)
}

// DownloadBinary writes a raw binary to the device starting at address.
func (f *Flasher) DownloadBinary(ctx context.Context, address uint32, data []byte) error {
	e := &dfuse.Element{Address: address, Data: data}
	if err := f.preflight([]*dfuse.Element{e}); err != nil {
		return err
	}

	f.begin(len(data))

	if err := f.downloadElement(ctx, e); err != nil {
		return fmt.Errorf("binary at 0x%08X: %w", address, err)
	}

	return f.finishDownload(ctx)
}

// preflight rejects configurations and addresses the download cannot
// handle safely.
func (f *Flasher) preflight(elements []*dfuse.Element) error {
	if err := f.checkTransferConfig(); err != nil {
		return err
	}
	if f.config.PageSize <= 0 {
		return &ConfigError{Reason: fmt.Sprintf("page size %d must be positive", f.config.PageSize)}
	}
	if f.config.TransferSize != f.config.PageSize {
		return &ConfigError{Reason: fmt.Sprintf(
			"transfer size %d different from flash page size %d is not supported",
			f.config.TransferSize, f.config.PageSize)}
	}

	full := AddressWindow{Start: 0, End: 0xFFFFFFFF}
	for _, e := range elements {
		if len(e.Data) == 0 {
			continue
		}
		if e.End() > 1<<32 {
			return &AddressError{Address: e.Address, Size: len(e.Data), Window: full}
		}
		w := f.config.SafeWindow
		if w == nil {
			continue
		}
		if !w.Contains(e.Address, len(e.Data)) {
			return &AddressError{Address: e.Address, Size: len(e.Data), Window: *w}
		}

		// Erases cover whole pages, which may reach past an unaligned window.
		first := f.pageBase(e.Address)
		end := uint64(f.pageBase(uint32(e.End()-1))) + uint64(f.config.PageSize)
		if size := end - uint64(first); !w.Contains(first, int(size)) {
			return &AddressError{Address: first, Size: int(size), Window: *w}
		}
	}
	return nil
}

func (f *Flasher) checkTransferConfig() error {
	if f.config.TransferSize <= 0 || f.config.TransferSize > 0xFFFF {
		return &ConfigError{Reason: fmt.Sprintf("transfer size %d out of range 1-65535", f.config.TransferSize)}
	}
	return nil
}

// begin resets the per-operation counters.
func (f *Flasher) begin(total int) {
	f.transaction = protocol.FirstDataTransaction
	f.done = 0
	f.total = total
}

// selectAltSetting switches the interface to the alternate setting a target
// is meant for.
func (f *Flasher) selectAltSetting(alt uint8) error {
	if alt == f.alt {
		return nil
	}

	setter, ok := f.dev.(protocol.AltSetter)
	if !ok {
		return &ConfigError{Reason: fmt.Sprintf(
			"image targets alternate setting %d but the interface is using %d and cannot switch",
			alt, f.alt)}
	}
	if err := setter.SetAltSetting(alt); err != nil {
		return &TransportError{Op: fmt.Sprintf("set alternate setting %d", alt), Err: err}
	}

	f.logDebug("switched alternate setting", "from", f.alt, "to", alt)
	f.alt = alt
	return nil
}

// downloadElement streams one element in transfer-size chunks, erasing
// each page before the first write into it.
func (f *Flasher) downloadElement(ctx context.Context, e *dfuse.Element) error {
	chunkSize := f.config.TransferSize

	for p := 0; p < len(e.Data); p += chunkSize {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		address := e.Address + uint32(p)
		end := p + chunkSize
		if end > len(e.Data) {
			end = len(e.Data)
		}
		chunk := e.Data[p:end]

		if err := f.erasePagesFor(address, len(chunk)); err != nil {
			return err
		}

		if err := f.SetAddressPointer(address); err != nil {
			return err
		}

		// Block number 2 means no offset from the address pointer.
		n, err := f.DownloadChunk(chunk, f.transaction)
		if err != nil {
			f.logError("chunk write failed", "address", hex32(address), "size", len(chunk), "error", err)
			return err
		}
		if n != len(chunk) {
			return &TransferError{Address: address, Want: len(chunk), Got: n}
		}

		f.logDebug("wrote chunk", "address", hex32(address), "size", n)

		f.done += n
		f.reportProgress(f.done, f.total)
	}

	return nil
}

// erasePagesFor erases the page holding address unless it was the last one
// erased, and the following page when the chunk crosses into it.
func (f *Flasher) erasePagesFor(address uint32, size int) error {
	if !f.erased || f.pageBase(address) != f.lastErased {
		if err := f.ErasePage(f.pageBase(address)); err != nil {
			return err
		}
	}

	last := address + uint32(size) - 1
	if f.pageBase(last) != f.lastErased {
		if err := f.ErasePage(f.pageBase(last)); err != nil {
			return err
		}
	}
	return nil
}

// finishDownload sends the zero-length DNLOAD that ends the transfer and
// waits until the device is idle again.
func (f *Flasher) finishDownload(ctx context.Context) error {
	if _, err := f.dev.Download(nil, f.transaction); err != nil {
		return &TransportError{Op: "end of transfer", Err: err}
	}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled during manifestation: %w", err)
		}

		st, err := f.getStatus("manifest")
		if err != nil {
			return err
		}

		switch nextPollAction(st, protocol.StateDfuManifestSync, protocol.StateDfuManifest) {
		case pollWait:
			f.logDebug("device manifesting", "state", st.State.String())
			f.sleep(f.config.ManifestPollInterval)
			continue
		case pollFail:
			return &ProtocolError{Op: "manifest", Status: st}
		}

		switch st.State {
		case protocol.StateDfuIdle:
			f.logInfo("download complete", "bytes", f.done)
			return nil
		case protocol.StateDfuManifestWaitReset:
			f.logInfo("download complete, device waiting for reset", "bytes", f.done)
			return nil
		default:
			return &StateError{Op: "manifest", Want: protocol.StateDfuIdle, Status: st}
		}
	}
}

func hex32(v uint32) string {
	return fmt.Sprintf("0x%08X", v)
}
