package flasher

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bigbag/dfuse-flasher/internal/protocol"
)

// ErrTransactionOverflow is returned when a transfer needs more blocks than
// the 16-bit block number can address without reusing the reserved values.
var ErrTransactionOverflow = errors.New("transfer exceeds the block number range")

// Upload reads device memory in transfer-size chunks and writes it to w.
// A chunk shorter than requested ends the upload, as does reaching the
// configured upload limit. It returns the number of bytes retrieved.
func (f *Flasher) Upload(ctx context.Context, w io.Writer) (int, error) {
	if err := f.checkTransferConfig(); err != nil {
		return 0, err
	}

	chunkSize := f.config.TransferSize
	limit := f.config.UploadLimit
	buf := make([]byte, chunkSize)

	f.begin(limit)

	for {
		if err := ctx.Err(); err != nil {
			return f.done, fmt.Errorf("cancelled: %w", err)
		}
		if f.transaction < protocol.FirstDataTransaction {
			return f.done, ErrTransactionOverflow
		}

		want := chunkSize
		if limit > 0 && limit-f.done < want {
			want = limit - f.done
		}

		n, err := f.UploadChunk(buf[:want], f.transaction)
		if err != nil {
			return f.done, fmt.Errorf("upload block %d: %w", f.transaction, err)
		}
		f.transaction++

		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return f.done, fmt.Errorf("short file write: %w", err)
			}
		}
		f.done += n
		f.reportProgress(f.done, limit)

		if n < want {
			break
		}
		if limit > 0 && f.done >= limit {
			// The device is still in dfuUPLOAD-IDLE.
			if err := f.dev.Abort(); err != nil {
				return f.done, &TransportError{Op: "abort upload", Err: err}
			}
			break
		}
	}

	f.logInfo("upload finished", "bytes", f.done)
	return f.done, nil
}

// UploadFrom moves the address pointer to address and then uploads.
func (f *Flasher) UploadFrom(ctx context.Context, address uint32, w io.Writer) (int, error) {
	if err := f.checkTransferConfig(); err != nil {
		return 0, err
	}
	if err := f.SetAddressPointer(address); err != nil {
		return 0, fmt.Errorf("set upload address: %w", err)
	}
	return f.Upload(ctx, w)
}
