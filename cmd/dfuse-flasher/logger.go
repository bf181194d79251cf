package main

import (
	"fmt"
	"io"
	"strings"
)

// consoleLogger prints flasher log records as "message key=value ...".
// Debug records are only shown in verbose mode.
type consoleLogger struct {
	out     io.Writer
	errOut  io.Writer
	verbose bool
}

func (l *consoleLogger) Debug(msg string, keysAndValues ...interface{}) {
	if l.verbose {
		l.print(l.out, msg, keysAndValues)
	}
}

func (l *consoleLogger) Info(msg string, keysAndValues ...interface{}) {
	l.print(l.out, msg, keysAndValues)
}

func (l *consoleLogger) Error(msg string, keysAndValues ...interface{}) {
	l.print(l.errOut, "Error: "+msg, keysAndValues)
}

func (l *consoleLogger) print(w io.Writer, msg string, keysAndValues []interface{}) {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&b, " %v", keysAndValues[i])
		}
	}
	fmt.Fprintln(w, b.String())
}
