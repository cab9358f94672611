// Package event defines the closed set of outcome kinds a running test can
// emit, together with the per-sink subscription mask and the counts vector
// aggregated across a run. Kind ordinals mirror the engine's own numbering
// and are part of the wire contract: counters are reported positionally.
package event

import (
	"strconv"
	"strings"
)

// Kind is one of the six closed outcome categories a running unit can emit.
type Kind int

const (
	Failure Kind = iota
	Success
	Exception
	Timing
	Skipped
	Traceback

	// NumKinds is the size of the counts vector and the engine fan-out.
	NumKinds = 6

	// NumMasked is the number of independently maskable kinds. Traceback is
	// never masked: it is always delivered so sinks can buffer it into the
	// next exception event.
	NumMasked = 5
)

var kindNames = [NumKinds]string{"Failure", "Success", "Exception", "Timing", "Skipped", "Traceback"}

// String returns the display name of the kind, or its ordinal if out of range.
func (k Kind) String() string {
	if k < 0 || int(k) >= NumKinds {
		return strconv.Itoa(int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the six defined kinds.
func (k Kind) Valid() bool {
	return k >= 0 && int(k) < NumKinds
}

// Mask is a per-sink subscription vector over the maskable kinds.
// The zero value subscribes to nothing (except traceback, which is
// unconditional).
type Mask [NumMasked]bool

// NewMask builds a mask from the five display flags in kind order.
func NewMask(failure, success, exception, timing, skipped bool) Mask {
	return Mask{failure, success, exception, timing, skipped}
}

// FailuresOnly is the mask conventionally used by CI and XML sinks:
// failures and exceptions, nothing else.
func FailuresOnly() Mask {
	return Mask{Failure: true, Exception: true}
}

// Accepts reports whether events of kind k should be delivered to a sink
// registered with this mask. Traceback events are always accepted.
func (m Mask) Accepts(k Kind) bool {
	if k == Traceback {
		return true
	}
	if k < 0 || int(k) >= NumMasked {
		return false
	}
	return m[k]
}

// Empty reports whether the mask subscribes to no maskable kind.
func (m Mask) Empty() bool {
	return m == Mask{}
}

// Counts is the per-kind event tally for one unit or one whole run,
// indexed by Kind ordinal. It is a value type; aggregation is a pure fold.
type Counts [NumKinds]int

// Add returns the element-wise sum of c and other.
func (c Counts) Add(other Counts) Counts {
	var out Counts
	for i := range c {
		out[i] = c[i] + other[i]
	}
	return out
}

// Total returns the sum over all kinds.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Any reports whether any kind was counted.
func (c Counts) Any() bool {
	return c != Counts{}
}

// Delimiter joins nested scope names for display purposes.
const Delimiter = "/"

// JoinScopes renders a scope path with the display delimiter.
func JoinScopes(scopes []string) string {
	return strings.Join(scopes, Delimiter)
}
