package logstream

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/bartdeslagmulder/now-cli/internal/model"
	"github.com/bartdeslagmulder/now-cli/internal/output"
	"github.com/bartdeslagmulder/now-cli/internal/regions"
)

// State of the log tail
type State int

const (
	Connecting State = iota
	Streaming
	ClosedSuccess
	ClosedFailure
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case ClosedSuccess:
		return "closed-success"
	case ClosedFailure:
		return "closed-failure"
	default:
		return "unknown"
	}
}

// ErrDeploymentFailed is returned when the feed ends with an error signal
var ErrDeploymentFailed = errors.New("deployment failed")

// Tailer prints the logs of a deployment until it is ready or fails
type Tailer struct {
	Transport Transport
	Out       *output.Output
	Quiet     bool
	// Scale is the deployment's echoed scale; its keys are reported on success
	Scale map[string]model.Scale
	// Release frees the temporary checkout, if any. It runs once either way.
	Release func()

	mu    sync.Mutex
	state State
}

// State returns the current state
func (t *Tailer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tailer) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
	t.out().Debugf("log stream %s", s)
}

// Run tails until Close (nil) or Error (a *model.ReportedError wrapping
// ErrDeploymentFailed). A dropped connection counts as an error.
func (t *Tailer) Run(ctx context.Context) error {
	defer t.release()

	t.setState(Connecting)
	feed, err := t.Transport.Open(ctx)
	if err != nil {
		return t.fail(Message{Signal: Error, Text: err.Error()})
	}
	t.setState(Streaming)

	for msg := range feed {
		switch msg.Signal {
		case Line:
			if !t.Quiet && msg.Text != "" {
				t.out().Log("%s", strings.TrimRight(msg.Text, "\n"))
			}
		case Error:
			return t.fail(msg)
		case Close:
			t.succeed()
			return nil
		}
	}

	if ctx.Err() != nil {
		t.setState(ClosedFailure)
		return ctx.Err()
	}
	return t.fail(Message{Signal: Error, Text: "log stream ended unexpectedly"})
}

func (t *Tailer) fail(msg Message) error {
	t.setState(ClosedFailure)
	if msg.Text != "" {
		t.out().Debugf("log stream error: %s", msg.Text)
	}
	if !t.Quiet {
		if msg.Type == BuildErrorType {
			t.out().Error("The build step of your project failed. To retry, run `now --force`.")
		} else {
			t.out().Error("Deployment failed")
		}
	}
	return &model.ReportedError{Err: ErrDeploymentFailed}
}

func (t *Tailer) succeed() {
	t.setState(ClosedSuccess)
	if t.Quiet {
		return
	}
	t.out().Log("Deployment complete!")
	if dcs := regions.Keys(t.Scale); len(dcs) > 0 {
		t.out().Log("Running in %s", strings.Join(dcs, ", "))
	}
}

func (t *Tailer) release() {
	if t.Release == nil {
		return
	}
	t.Release()
	t.Release = nil
}

func (t *Tailer) out() *output.Output {
	if t.Out == nil {
		t.Out = output.Discard()
	}
	return t.Out
}
