// Package diagnostics is the compiler's leveled logger: every pipeline
// stage (specialize, optimize, lower) reports progress and timing through
// a *Logger rather than calling the stdlib log package directly, the way
// the teacher's cmd/sentra reports VM/compile diagnostics straight to
// stdout/stderr via log.Printf. Three go.mod dependencies that otherwise
// had no call site anywhere in the retrieved teacher source are wired in
// here rather than dropped: github.com/mattn/go-isatty gates ANSI color
// on whether the destination is actually a terminal,
// github.com/dustin/go-humanize renders pass durations and cache sizes in
// human units instead of raw nanoseconds/bytes, and github.com/kr/pretty
// renders verbose IR/type dumps when Verbose is set instead of relying on
// %+v's far noisier struct formatting.
package diagnostics

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kr/pretty"
	"github.com/mattn/go-isatty"
)

// Level orders diagnostic severity, least to most urgent.
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

var levelColor = map[Level]string{
	LevelDebug: "\x1b[90m",
	LevelInfo:  "\x1b[36m",
	LevelWarn:  "\x1b[33m",
	LevelError: "\x1b[31m",
}

const colorReset = "\x1b[0m"

// Logger writes leveled diagnostic lines to an underlying writer, with
// ANSI coloring enabled only when that writer is a real terminal.
type Logger struct {
	w       io.Writer
	min     Level
	color   bool
	verbose bool
}

// New constructs a Logger writing to w, filtering out anything below min.
// Color is auto-detected via go-isatty when w is an *os.File; any other
// io.Writer (a bytes.Buffer in tests, a log file) never gets escape codes.
func New(w io.Writer, min Level) *Logger {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Logger{w: w, min: min, color: color}
}

// WithVerbose returns a copy of l with verbose IR/type dumps enabled.
func (l *Logger) WithVerbose(verbose bool) *Logger {
	out := *l
	out.verbose = verbose
	return &out
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.color {
		fmt.Fprintf(l.w, "%s[%s]%s %s\n", levelColor[level], level, colorReset, msg)
		return
	}
	fmt.Fprintf(l.w, "[%s] %s\n", level, msg)
}

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

// Stage reports a named pipeline stage's elapsed duration as a coarse
// human phrase rather than a raw time.Duration: under a microsecond it
// prints "Nns", otherwise humanize.RelTime's wording ("now" for anything
// under a second, then phrases such as "1 second" or "3 minutes").
func (l *Logger) Stage(name string, elapsed time.Duration) {
	l.Infof("%s: %s", name, humanizeDuration(elapsed))
}

// CacheStats reports the specialization cache's recorded digest count and
// the on-disk size of its backing file, in human-readable units.
func (l *Logger) CacheStats(digestCount int64, path string) {
	size := "n/a"
	if path != "" {
		if info, err := os.Stat(path); err == nil {
			size = humanize.Bytes(uint64(info.Size()))
		}
	}
	l.Infof("cache: %s digest(s) recorded, %s on disk", humanize.Comma(digestCount), size)
}

// Dump renders v with kr/pretty's struct formatter (field names, nested
// structure, no pointer-address noise) when verbose diagnostics are
// enabled; it is a no-op otherwise, since IR/type dumps are expensive to
// format for output nobody asked to see.
func (l *Logger) Dump(label string, v any) {
	if !l.verbose {
		return
	}
	fmt.Fprintf(l.w, "--- %s ---\n", label)
	pretty.Fprintf(l.w, "%# v\n", v)
}

func humanizeDuration(d time.Duration) string {
	if d < time.Microsecond {
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
	return humanize.RelTime(time.Now().Add(-d), time.Now(), "", "")
}
