package events

import (
	"encoding/json"
	"fmt"
)

// Type is a build event kind reported by the event feed
type Type int

const (
	Unknown Type = iota
	BuildStart
	Stdout
	Stderr
	BuildComplete
	InstanceStart
)

var typeNames = map[string]Type{
	"build-start":    BuildStart,
	"stdout":         Stdout,
	"stderr":         Stderr,
	"build-complete": BuildComplete,
	"instance-start": InstanceStart,
}

func (t Type) String() string {
	for name, v := range typeNames {
		if v == t {
			return name
		}
	}
	return "unknown"
}

// Event is one line of the feed
type Event struct {
	Type    Type
	Name    string
	Payload string
}

type rawEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Parse decodes one feed line. Types the client doesn't know come back as
// Unknown with Name set.
func Parse(line []byte) (Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return Event{}, fmt.Errorf("invalid event %q: %w", line, err)
	}

	ev := Event{Type: typeNames[raw.Type], Name: raw.Type}
	if len(raw.Payload) > 0 {
		var s string
		if err := json.Unmarshal(raw.Payload, &s); err == nil {
			ev.Payload = s
		} else {
			ev.Payload = string(raw.Payload)
		}
	}
	return ev, nil
}
