package od

import (
	"fmt"
	"strings"
)

// Mode selects how a trip's (origin, destination) becomes a flow key
type Mode string

const (
	// DirectedAB keys flows as (origin, destination)
	DirectedAB Mode = "ab"
	// DirectedBA keys flows as (destination, origin)
	DirectedBA Mode = "ba"
	// Symmetric keys flows by the sorted pair, merging A->B and B->A
	Symmetric Mode = "symmetric"
)

// UnknownModeError is returned by ParseMode
type UnknownModeError struct {
	Value string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown aggregation mode: %q (want ab, ba or symmetric)", e.Value)
}

// ParseMode accepts the mode names used in query strings. Empty means def.
func ParseMode(s string, def Mode) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "ab", "directed", "directed_ab":
		return DirectedAB, nil
	case "ba", "reversed", "directed_ba":
		return DirectedBA, nil
	case "symmetric", "undirected", "sym":
		return Symmetric, nil
	}
	return "", &UnknownModeError{Value: s}
}

// Pair is a flow key. Under Symmetric, A <= B.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

func (p Pair) String() string {
	return p.A + " -> " + p.B
}

func (p Pair) less(o Pair) bool {
	if p.A != o.A {
		return p.A < o.A
	}
	return p.B < o.B
}

// key returns the flow key of a trip under mode
func (m Mode) key(origin, destination string) Pair {
	switch m {
	case DirectedBA:
		return Pair{A: destination, B: origin}
	case Symmetric:
		if destination < origin {
			return Pair{A: destination, B: origin}
		}
		return Pair{A: origin, B: destination}
	default:
		return Pair{A: origin, B: destination}
	}
}
