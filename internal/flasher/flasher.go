package flasher

import (
	"time"

	"github.com/bigbag/dfuse-flasher/internal/protocol"
)

// Flasher holds the protocol and erase state of one flashing session with
// a DfuSe device. A Flasher must not be used by more than one operation at
// a time.
type Flasher struct {
	dev    protocol.Transport
	config Config

	transaction uint16
	lastErased  uint32
	erased      bool
	alt         uint8

	done  int
	total int
}

// New creates a new Flasher for the given transport.
//
// Example:
//
//	f := flasher.New(conn,
//	    flasher.WithTransferSize(1024),
//	    flasher.WithPageSize(1024),
//	)
func New(dev protocol.Transport, opts ...Option) *Flasher {
	if dev == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Flasher{
		dev:         dev,
		config:      cfg,
		transaction: protocol.FirstDataTransaction,
		alt:         cfg.AltSetting,
	}
}

// SetProgressCallback sets the progress callback function.
func (f *Flasher) SetProgressCallback(cb ProgressCallback) {
	f.config.ProgressCallback = cb
}

// Config returns the active configuration.
func (f *Flasher) Config() Config {
	return f.config
}

// pageBase returns the address of the flash page containing address.
func (f *Flasher) pageBase(address uint32) uint32 {
	return address - address%uint32(f.config.PageSize)
}

// reportProgress calls the progress callback if set.
func (f *Flasher) reportProgress(current, total int) {
	if f.config.ProgressCallback != nil {
		f.config.ProgressCallback(current, total)
	}
}

func (f *Flasher) sleep(d time.Duration) {
	if d > 0 {
		f.config.Clock.Sleep(d)
	}
}

func (f *Flasher) logDebug(msg string, keysAndValues ...interface{}) {
	if f.config.Logger != nil {
		f.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (f *Flasher) logInfo(msg string, keysAndValues ...interface{}) {
	if f.config.Logger != nil {
		f.config.Logger.Info(msg, keysAndValues...)
	}
}

func (f *Flasher) logError(msg string, keysAndValues ...interface{}) {
	if f.config.Logger != nil {
		f.config.Logger.Error(msg, keysAndValues...)
	}
}
