package events

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bartdeslagmulder/now-cli/internal/api"
	"github.com/bartdeslagmulder/now-cli/internal/output"
	"github.com/cenkalti/backoff/v5"
)

// MaxAttempts bounds how many times the feed is (re)connected
const MaxAttempts = 4

const maxLineSize = 1 << 20

var errStreamEnded = errors.New("event stream ended before the deployment started")

// Opener opens the event feed of a deployment
type Opener interface {
	OpenEvents(ctx context.Context, deploymentID string) (io.ReadCloser, error)
}

// Reader follows the event feed of one deployment until an instance starts
type Reader struct {
	Opener Opener
	// BackOff paces reconnects. Defaults to exponential backoff.
	BackOff backoff.BackOff
	// Quiet ignores everything but instance-start
	Quiet bool
	Out   *output.Output
	// OnOpen runs once, on the first successful connection
	OnOpen func()

	mu       sync.Mutex
	state    State
	broken   bool
	attempts int
	opened   bool
	lines    int
}

// State returns the current observation state
func (r *Reader) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken && !r.state.IsTerminal() {
		return StreamBroken
	}
	return r.state
}

// Attempts returns how many connections were tried
func (r *Reader) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

// Follow reads the feed of deploymentID until instance-start. Responses
// below 500 fail at once; server errors and broken streams are retried up to
// MaxAttempts connections in total.
func (r *Reader) Follow(ctx context.Context, deploymentID string) error {
	b := r.BackOff
	if b == nil {
		b = backoff.NewExponentialBackOff()
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, r.attempt(ctx, deploymentID)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.out().Debugf("event stream attempt failed, retrying in %s: %v", next, err)
		}),
	)
	if err != nil {
		r.mu.Lock()
		r.state = Errored
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *Reader) attempt(ctx context.Context, deploymentID string) error {
	r.mu.Lock()
	r.attempts++
	n := r.attempts
	r.mu.Unlock()

	if n > 1 {
		r.out().Debugf("retrying events")
		r.eraseShown()
	}

	body, err := r.Opener.OpenEvents(ctx, deploymentID)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		r.markBroken()
		return err
	}
	defer body.Close()

	r.connected()

	err = r.consume(body)
	if err != nil && ctx.Err() != nil {
		return backoff.Permanent(ctx.Err())
	}
	if err != nil {
		r.markBroken()
		return fmt.Errorf("deployment event stream error: %w", err)
	}
	return nil
}

// consume reads events until instance-start; it returns nil only then
func (r *Reader) consume(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := Parse(line)
		if err != nil {
			r.out().Debugf("skipping event: %v", err)
			continue
		}
		if r.handle(ev) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errStreamEnded
}

// handle surfaces one event and reports whether observation is done
func (r *Reader) handle(ev Event) bool {
	if r.Quiet {
		if ev.Type == InstanceStart {
			r.transition(InstanceStarted)
			return true
		}
		return false
	}

	switch ev.Type {
	case BuildStart:
		r.transition(BuildRunning)
		r.print("Building…")
	case Stdout, Stderr:
		r.print(ev.Payload)
	case BuildComplete:
		r.transition(BuildCompleted)
		r.print("Success! Build complete")
	case InstanceStart:
		r.transition(InstanceStarted)
		r.print("Success! Deployment ready")
		return true
	default:
		r.out().Debugf("ignoring event of type %q", ev.Name)
	}
	return false
}

func (r *Reader) transition(next State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.advance(next) {
		r.broken = false
		r.out().Debugf("deployment is now %s", next)
	}
}

func (r *Reader) print(msg string) {
	before := r.out().LinesWritten()
	r.out().Log("%s", msg)
	r.mu.Lock()
	r.lines += r.out().LinesWritten() - before
	r.mu.Unlock()
}

// eraseShown clears what the previous connection displayed; the feed replays
// it from the start after a reconnect.
func (r *Reader) eraseShown() {
	r.mu.Lock()
	n := r.lines
	r.lines = 0
	r.mu.Unlock()
	if !r.Quiet && n > 0 {
		r.out().EraseLines(n)
	}
}

// connected marks the feed as streaming again and runs OnOpen the first time
func (r *Reader) connected() {
	r.mu.Lock()
	r.broken = false
	first := !r.opened
	r.opened = true
	r.mu.Unlock()

	if first && r.OnOpen != nil {
		r.OnOpen()
	}
}

func (r *Reader) markBroken() {
	r.mu.Lock()
	r.broken = true
	r.mu.Unlock()
}

func (r *Reader) out() *output.Output {
	if r.Out == nil {
		r.Out = output.Discard()
	}
	return r.Out
}
