package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Output writes user-facing messages and debug diagnostics for one invocation.
// Messages go to the message writer (stderr by default); the final result of a
// command, like a deployment URL, goes to the result writer (stdout).
type Output struct {
	mu      sync.Mutex
	msg     io.Writer
	result  io.Writer
	debug   bool
	logger  zerolog.Logger
	lineOut int
}

// New creates an Output. When debug is true, diagnostics are written through
// a zerolog console writer on msg.
func New(msg, result io.Writer, debug bool) *Output {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: msg, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()

	return &Output{
		msg:    msg,
		result: result,
		debug:  debug,
		logger: logger,
	}
}

// Default returns an Output bound to the process stderr/stdout
func Default(debug bool) *Output {
	return New(os.Stderr, os.Stdout, debug)
}

// Discard returns an Output that drops everything. Used by tests.
func Discard() *Output {
	return New(io.Discard, io.Discard, false)
}

// IsDebug reports whether debug diagnostics are enabled
func (o *Output) IsDebug() bool {
	return o.debug
}

// Logger returns the debug logger
func (o *Output) Logger() zerolog.Logger {
	return o.logger
}

// Debugf writes a debug diagnostic
func (o *Output) Debugf(format string, args ...any) {
	o.logger.Debug().Msgf(format, args...)
}

// Log writes a "> " prefixed message line
func (o *Output) Log(format string, args ...any) {
	o.writeLine("> " + fmt.Sprintf(format, args...))
}

// Error writes an error message line
func (o *Output) Error(format string, args ...any) {
	o.writeLine("> Error! " + fmt.Sprintf(format, args...))
}

// Note writes a note line
func (o *Output) Note(format string, args ...any) {
	o.writeLine("> NOTE: " + fmt.Sprintf(format, args...))
}

// Result writes s to the result writer without a trailing newline
func (o *Output) Result(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprint(o.result, s)
}

// EraseLines clears the last n lines written to the message writer
func (o *Output) EraseLines(n int) {
	if n <= 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprint(o.msg, eraseLines(n))
	o.lineOut -= n
	if o.lineOut < 0 {
		o.lineOut = 0
	}
}

// LinesWritten returns how many message lines were written so far
func (o *Output) LinesWritten() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lineOut
}

func (o *Output) writeLine(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.msg, s)
	o.lineOut += strings.Count(s, "\n") + 1
}

// eraseLines builds the escape sequence that moves the cursor up n lines,
// clearing each one.
func eraseLines(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("\x1b[2K") // clear line
		b.WriteString("\x1b[1A") // cursor up
	}
	b.WriteString("\x1b[2K\x1b[G")
	return b.String()
}
