package dfuse

import (
	"errors"
	"fmt"
)

// ErrFormat is matched by every fatal parse error.
var ErrFormat = errors.New("invalid DfuSe file")

var (
	ErrFileTooSmall       = fmt.Errorf("%w: file too small for a DfuSe file", ErrFormat)
	ErrBadPrefixSignature = fmt.Errorf("%w: no valid DfuSe signature", ErrFormat)
	ErrBadSuffixSignature = fmt.Errorf("%w: no valid DFU suffix signature", ErrFormat)
)

// VersionError indicates an unsupported DfuSe format revision.
type VersionError struct {
	Version byte
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("DFU format revision %d not supported", e.Version)
}

func (e *VersionError) Unwrap() error { return ErrFormat }

// TargetSignatureError indicates a target prefix without the "Target" signature.
type TargetSignatureError struct {
	Target int
	Offset int
}

func (e *TargetSignatureError) Error() string {
	return fmt.Sprintf("no valid target signature for image %d at offset %d", e.Target, e.Offset)
}

func (e *TargetSignatureError) Unwrap() error { return ErrFormat }

// DFUVersionError indicates a suffix with an unsupported bcdDFU.
type DFUVersionError struct {
	Version uint16
}

func (e *DFUVersionError) Error() string {
	return fmt.Sprintf("unsupported DfuSe version 0x%04X in suffix", e.Version)
}

func (e *DFUVersionError) Unwrap() error { return ErrFormat }

// TruncatedError indicates a section that extends past the available bytes.
type TruncatedError struct {
	Section string
	Offset  int
	Need    int
	Have    int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("file too small for %s at offset %d: need %d bytes, have %d",
		e.Section, e.Offset, e.Need, e.Have)
}

func (e *TruncatedError) Unwrap() error { return ErrFormat }

// TargetSizeError indicates a target whose declared size does not match
// the elements that follow it.
type TargetSizeError struct {
	Target   int
	Declared uint32
	Actual   uint32
}

func (e *TargetSizeError) Error() string {
	return fmt.Sprintf("target %d declares %d bytes, elements occupy %d",
		e.Target, e.Declared, e.Actual)
}

func (e *TargetSizeError) Unwrap() error { return ErrFormat }

// SizeWarning reports a byte count that does not match a declared size.
// It is never fatal.
type SizeWarning struct {
	Field    string
	Declared int
	Actual   int
}

func (w *SizeWarning) Error() string {
	return fmt.Sprintf("%s: read %d bytes, declared %d", w.Field, w.Actual, w.Declared)
}

// CRCWarning reports a suffix CRC that does not match the file contents.
type CRCWarning struct {
	Stored     uint32
	Calculated uint32
}

func (w *CRCWarning) Error() string {
	return fmt.Sprintf("suffix CRC 0x%08X does not match calculated 0x%08X", w.Stored, w.Calculated)
}
