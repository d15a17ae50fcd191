// Package log provides the leveled debug logger used across the session core.
// Output is off by default and enabled by the CLI's verbosity flags.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Level controls how much debug output is emitted.
type Level int

const (
	Off Level = iota
	Basic
	Detailed
	Trace
	Wire
)

// LevelFromInt clamps an arbitrary verbosity count to a valid Level.
func LevelFromInt(v int) Level {
	switch {
	case v <= 0:
		return Off
	case v >= int(Wire):
		return Wire
	default:
		return Level(v)
	}
}

func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Basic:
		return "basic"
	case Detailed:
		return "detailed"
	case Trace:
		return "trace"
	case Wire:
		return "wire"
	}
	return "unknown"
}

var (
	mu      sync.Mutex
	current = Off
	out     io.Writer = os.Stderr
)

// SetLevel sets the global debug level.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// SetOutput redirects debug output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Enabled reports whether messages at level l would be written.
func Enabled(l Level) bool {
	mu.Lock()
	defer mu.Unlock()
	return l != Off && current >= l
}

// Logf writes a formatted debug line when the global level admits l.
func Logf(l Level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if l == Off || current < l {
		return
	}
	fmt.Fprintf(out, "[%s] %s\n", l, fmt.Sprintf(format, args...))
}

// Basicf logs at Basic level.
func Basicf(format string, args ...any) { Logf(Basic, format, args...) }

// Detailedf logs at Detailed level.
func Detailedf(format string, args ...any) { Logf(Detailed, format, args...) }

// Tracef logs at Trace level.
func Tracef(format string, args ...any) { Logf(Trace, format, args...) }
