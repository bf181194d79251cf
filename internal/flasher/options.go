package flasher

import "time"

// Defaults for STM32 connectivity-line and high-density parts.
const (
	DefaultTransferSize         = 2048
	DefaultPageSize             = 2048
	DefaultManifestPollInterval = time.Second
)

// AddressWindow is a range of device memory [Start, End) that may be written.
type AddressWindow struct {
	Start uint32
	End   uint32
}

// Contains reports whether [address, address+size) lies inside the window.
func (w AddressWindow) Contains(address uint32, size int) bool {
	end := uint64(address) + uint64(size)
	return address >= w.Start && end <= uint64(w.End)
}

// Config holds the flasher configuration.
type Config struct {
	// TransferSize is the maximum number of bytes per DNLOAD/UPLOAD request
	TransferSize int

	// PageSize is the flash erase granularity of the device
	PageSize int

	// SafeWindow, when set, rejects any write outside of it before the
	// device is touched
	SafeWindow *AddressWindow

	// UploadLimit caps the number of bytes read by Upload (0 = no limit)
	UploadLimit int

	// AltSetting is the alternate setting the transport was opened with
	AltSetting uint8

	// ManifestPollInterval is the extra wait between status requests while
	// the device is manifesting
	ManifestPollInterval time.Duration

	Clock            Clock
	Logger           Logger
	ProgressCallback ProgressCallback
}

func defaultConfig() Config {
	return Config{
		TransferSize:         DefaultTransferSize,
		PageSize:             DefaultPageSize,
		ManifestPollInterval: DefaultManifestPollInterval,
		Clock:                realClock{},
	}
}

// Option is a functional option for configuring the Flasher.
type Option func(*Config)

// WithTransferSize sets the negotiated transfer size.
func WithTransferSize(size int) Option {
	return func(c *Config) {
		c.TransferSize = size
	}
}

// WithPageSize sets the flash page size used for erase alignment.
func WithPageSize(size int) Option {
	return func(c *Config) {
		c.PageSize = size
	}
}

// WithSafeWindow restricts writes to [start, end).
//
// Example:
//
//	f := flasher.New(dev, flasher.WithSafeWindow(0x08004000, 0x08020000))
func WithSafeWindow(start, end uint32) Option {
	return func(c *Config) {
		c.SafeWindow = &AddressWindow{Start: start, End: end}
	}
}

// WithUploadLimit caps the number of bytes Upload reads.
func WithUploadLimit(limit int) Option {
	return func(c *Config) {
		if limit >= 0 {
			c.UploadLimit = limit
		}
	}
}

// WithAltSetting records the alternate setting the transport is using.
func WithAltSetting(alt uint8) Option {
	return func(c *Config) {
		c.AltSetting = alt
	}
}

// WithManifestPollInterval sets the wait between status requests during
// manifestation.
func WithManifestPollInterval(d time.Duration) Option {
	return func(c *Config) {
		c.ManifestPollInterval = d
	}
}

// WithClock replaces the clock used for device-requested waits.
func WithClock(clock Clock) Option {
	return func(c *Config) {
		if clock != nil {
			c.Clock = clock
		}
	}
}

// WithLogger sets a logger for flasher operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithProgressCallback sets the progress callback.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = cb
	}
}
