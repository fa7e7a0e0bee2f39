// Package stage tracks where a conversation stands on the way from the
// first message to a confirmed meet-up.
//
// Stages are totally ordered. A request's stage is the maximum of a
// keyword heuristic over the window and a one-token vote from the
// generator, so for a given window the answer never falls below what the
// heuristic alone reads. Nothing is persisted between requests.
package stage

import (
	"fmt"
	"strings"
)

// Stage is a conversational phase.
type Stage int

const (
	Opener Stage = iota
	Banter
	Rapport
	Logistics
	Plan
	Confirm
	Wrap
)

var names = [...]string{"opener", "banter", "rapport", "logistics", "plan", "confirm", "wrap"}

// All lists every stage in order.
func All() []Stage {
	return []Stage{Opener, Banter, Rapport, Logistics, Plan, Confirm, Wrap}
}

// Labels returns the stage names in order.
func Labels() []string {
	return append([]string(nil), names[:]...)
}

func (s Stage) String() string {
	if s.Valid() {
		return names[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Valid reports whether s is one of the seven stages.
func (s Stage) Valid() bool { return s >= Opener && s <= Wrap }

// Next returns the stage after s and false when s is Wrap.
func (s Stage) Next() (Stage, bool) {
	if s >= Wrap {
		return Wrap, false
	}
	return s + 1, true
}

// Parse reads a stage name, case-insensitively.
func Parse(name string) (Stage, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range names {
		if n == name {
			return Stage(i), true
		}
	}
	return Banter, false
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("stage: invalid value %d", int(s))
	}
	return []byte(names[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	v, ok := Parse(string(text))
	if !ok {
		return fmt.Errorf("stage: unknown stage %q", text)
	}
	*s = v
	return nil
}

// Fuse combines the heuristic and generator estimates. The result is never
// below either input.
func Fuse(heuristic, vote Stage) Stage {
	return max(heuristic, vote)
}
