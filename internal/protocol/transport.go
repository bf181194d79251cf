package protocol

// Transport performs DFU class requests against an opened device interface.
// Implementations are bound to one interface when they are opened.
type Transport interface {
	// Download sends a DNLOAD request with the given block number. A nil or
	// empty data slice is a zero-length download.
	Download(data []byte, transaction uint16) (int, error)

	// Upload issues an UPLOAD request for at most len(buf) bytes.
	Upload(buf []byte, transaction uint16) (int, error)

	GetStatus() (Status, error)
	ClearStatus() error
	Abort() error
}

// AltSetter is implemented by transports that can switch the alternate
// setting of the claimed interface.
type AltSetter interface {
	SetAltSetting(alt uint8) error
}
