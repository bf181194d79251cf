package flasher

import "time"

// ProgressCallback is called to report transfer progress in bytes. total is
// zero when the size of the transfer is not known in advance.
type ProgressCallback func(current, total int)

// Logger is an optional logging interface for flasher operations.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Clock performs the waits the device asks for between status requests.
type Clock interface {
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}
