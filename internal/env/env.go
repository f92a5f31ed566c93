package env

import (
	"sort"
	"strings"
)

// Kind tells how a raw env value gets its final value
type Kind int

const (
	// KindLiteral is a value given explicitly (it may still be a @secret reference)
	KindLiteral Kind = iota
	// KindPrompt values are asked for interactively before submission
	KindPrompt
	// KindInherit values are read from the invoking process environment
	KindInherit
)

func (k Kind) String() string {
	switch k {
	case KindPrompt:
		return "prompt"
	case KindInherit:
		return "inherit"
	default:
		return "literal"
	}
}

// RawValue is an env value before prompt/inherit/secret resolution
type RawValue struct {
	Kind    Kind
	Literal string
}

// Entry is one key/raw value pair from a single source
type Entry struct {
	Key   string
	Value RawValue
}

// ParseEntries parses KEY=value items. Items with no "=" get a value of the
// given empty kind; "KEY=" is a literal empty string.
func ParseEntries(items []string, empty Kind) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		key, value, found := strings.Cut(item, "=")
		if !found {
			entries = append(entries, Entry{Key: key, Value: RawValue{Kind: empty}})
			continue
		}
		entries = append(entries, Entry{Key: key, Value: RawValue{Kind: KindLiteral, Literal: value}})
	}
	return entries
}

// FromMap turns a plain key/value mapping (a parsed dotenv file) into entries
func FromMap(m map[string]string) []Entry {
	entries := make([]Entry, 0, len(m))
	for _, k := range sortedKeys(m) {
		entries = append(entries, Entry{Key: k, Value: RawValue{Kind: KindLiteral, Literal: m[k]}})
	}
	return entries
}

// FromConfig turns a project config env mapping into entries. Keys without
// a value (nil) must be prompted for.
func FromConfig(m map[string]*string) []Entry {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(m))
	for _, k := range keys {
		v := m[k]
		if v == nil {
			entries = append(entries, Entry{Key: k, Value: RawValue{Kind: KindPrompt}})
			continue
		}
		entries = append(entries, Entry{Key: k, Value: RawValue{Kind: KindLiteral, Literal: *v}})
	}
	return entries
}

// Merged is the result of merging env sources, keeping first-seen key order
type Merged struct {
	keys   []string
	values map[string]RawValue
}

// Keys returns the merged keys in first-seen order
func (m *Merged) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Get returns the raw value for key
func (m *Merged) Get(key string) (RawValue, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of merged keys
func (m *Merged) Len() int {
	return len(m.keys)
}

// Merge combines sources from lowest to highest priority; later sources win.
// It also returns every key that was overridden, once per key, in the order
// the first override happened.
func Merge(sources ...[]Entry) (*Merged, []string) {
	m := &Merged{values: map[string]RawValue{}}
	var duplicates []string
	reported := map[string]bool{}

	for _, src := range sources {
		for _, e := range src {
			if _, exists := m.values[e.Key]; exists {
				if !reported[e.Key] {
					reported[e.Key] = true
					duplicates = append(duplicates, e.Key)
				}
			} else {
				m.keys = append(m.keys, e.Key)
			}
			m.values[e.Key] = e.Value
		}
	}
	return m, duplicates
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
