package treesync

import (
	"errors"
	"fmt"
	"slices"
)

// State is the expansion state of one organization.
type State int

const (
	Unexpanded State = iota
	ExpandedCached
	ExpandedPlaceholder
	Refreshing
	ExpandedLive
)

func (s State) String() string {
	switch s {
	case Unexpanded:
		return "unexpanded"
	case ExpandedCached:
		return "expanded-cached"
	case ExpandedPlaceholder:
		return "expanded-placeholder"
	case Refreshing:
		return "refreshing"
	case ExpandedLive:
		return "expanded-live"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Expanded reports whether the org is shown expanded.
func (s State) Expanded() bool {
	return s != Unexpanded
}

// ErrIllegalTransition is returned when an operation is not allowed in the
// org's current state.
var ErrIllegalTransition = errors.New("illegal state transition")

// transitions lists the legal target states of every state.
// Refreshing may fall back to any expanded state when a refresh is cancelled.
var transitions = map[State][]State{
	Unexpanded:          {ExpandedCached, ExpandedPlaceholder},
	ExpandedCached:      {Refreshing, Unexpanded},
	ExpandedPlaceholder: {Refreshing, Unexpanded},
	ExpandedLive:        {Refreshing, Unexpanded},
	Refreshing:          {ExpandedLive, Unexpanded, ExpandedCached, ExpandedPlaceholder},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

func checkTransition(orgID string, from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: org %s %s -> %s", ErrIllegalTransition, orgID, from, to)
	}
	return nil
}
