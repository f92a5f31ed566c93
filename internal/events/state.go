package events

// State is how far the observed deployment has progressed
type State int

const (
	Connecting State = iota
	BuildRunning
	BuildCompleted
	InstanceStarted
	Errored
	StreamBroken
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case BuildRunning:
		return "build-running"
	case BuildCompleted:
		return "build-complete"
	case InstanceStarted:
		return "instance-started"
	case Errored:
		return "errored"
	case StreamBroken:
		return "stream-broken"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether observation is over
func (s State) IsTerminal() bool {
	return s == InstanceStarted || s == Errored
}

// milestone orders the progress states; errors and broken streams sit outside it
func (s State) milestone() int {
	switch s {
	case BuildRunning:
		return 1
	case BuildCompleted:
		return 2
	case InstanceStarted:
		return 3
	default:
		return 0
	}
}

// advance moves to next only when it is further along. It reports whether
// the state changed.
func (s *State) advance(next State) bool {
	if next.milestone() <= s.milestone() {
		return false
	}
	*s = next
	return true
}
