// Package reporting defines the report sink contract and the sinks shipped
// with the orchestrator: console, JUnit-style XML, TeamCity-style CI stream,
// and structured JSON. Sinks share one lifecycle, driven by the dispatcher:
// Enter, a Test handle per execution unit, Finalize with the run summary,
// and Close. Close is reached on every exit path once Enter succeeded,
// including interruption.
package reporting

import (
	"time"

	"github.com/mfornace/lilwil/engine"
	"github.com/mfornace/lilwil/event"
)

// Summary is the aggregate over all execution units of one run: unit count,
// summed per-unit elapsed time (not wall clock), and the per-kind counts
// vector.
type Summary struct {
	Units   int
	Elapsed time.Duration
	Counts  event.Counts
}

// Fold returns the summary extended by one unit's outcome. Summaries are
// value types; aggregation never mutates.
func (s Summary) Fold(res engine.UnitResult) Summary {
	return Summary{
		Units:   s.Units + 1,
		Elapsed: s.Elapsed + res.Elapsed,
		Counts:  s.Counts.Add(res.Counts),
	}
}

// TestHandle receives one unit's events and its outcome. Handles are only
// invoked from a single goroutine at a time.
type TestHandle interface {
	// Event delivers one emitted event in emission order.
	Event(kind event.Kind, scopes []string, logs event.Logs)

	// Finalize delivers the unit's outcome, exactly once, after its last
	// event.
	Finalize(res engine.UnitResult)
}

// Sink is one report collaborator. Sinks must not return errors for
// recoverable conditions during event delivery; a sink failure is fatal to
// the run.
type Sink interface {
	// Enter acquires the sink's resources and emits any suite-start
	// marker. Called once before the first unit runs.
	Enter() error

	// Test returns a handle for one execution unit.
	Test(index int, pack engine.Pack, info engine.TestInfo) TestHandle

	// Finalize delivers the run summary and the concatenated captured
	// output across all units. Called exactly once, after all units
	// complete or after interruption.
	Finalize(sum Summary, stdout, stderr string)

	// Close releases the sink's resources. Called once Enter succeeded,
	// on every exit path, even when Finalize was skipped by an error.
	Close() error
}

// Registration pairs a sink with its event subscription. Registration
// order determines forwarding order.
type Registration struct {
	Sink Sink
	Mask event.Mask
}
