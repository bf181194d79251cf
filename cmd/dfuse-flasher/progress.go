package main

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/bigbag/dfuse-flasher/internal/flasher"
)

func interactive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// newProgress returns a byte progress bar and the callback driving it.
// Both are nil when stdout is not a terminal. A total of -1 shows a
// spinner for transfers of unknown size.
func newProgress(total int, description string) (*progressbar.ProgressBar, flasher.ProgressCallback) {
	if !interactive() {
		return nil, nil
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	return bar, func(current, _ int) {
		bar.Set(current)
	}
}

func finishProgress(bar *progressbar.ProgressBar) {
	if bar != nil {
		bar.Finish()
	}
}
