// Package logging provides the structured DEBUG/INFO/WARN/ERROR log lines
// called for in §6 ("Observable side effects"). It follows the teacher's
// internal/debug package: package-level mutable state changed through the
// SetLevel/SetOutput setters, plain functions rather than a logger object
// threaded everywhere, and no third-party logging library — the teacher
// itself reaches for neither zap nor zerolog anywhere in its tree, so
// reconciliation logging stays on the same footing (see DESIGN.md).
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level orders the four levels the spec calls for.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var (
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	minimum           = LevelInfo
)

// SetLevel changes the minimum level that is actually written.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minimum = l
}

// SetOutput redirects log output, primarily for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

func logf(level Level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if level < minimum {
		return
	}
	fmt.Fprintf(out, "%s [%s] %s\n", time.Now().UTC().Format(time.RFC3339), level, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) { logf(LevelDebug, format, args...) }
func Infof(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warnf(format string, args ...any)  { logf(LevelWarn, format, args...) }
func Errorf(format string, args ...any) { logf(LevelError, format, args...) }
