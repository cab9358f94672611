// Package engine defines the capability surface of a test engine: the
// external collaborator that owns the test catalog and knows how to execute
// a single test body. The orchestration layer never assumes anything about
// how an engine runs tests; it only drives this interface.
package engine

import (
	"context"
	"time"

	"github.com/mfornace/lilwil/event"
)

// EventFn is the callback an engine invokes for each emitted event during a
// unit's execution. A nil EventFn means nobody is listening for that kind
// and the engine must skip delivery entirely.
type EventFn func(kind event.Kind, scopes []string, logs event.Logs)

// Fanout holds one callback per event kind, indexed by Kind ordinal.
// Entries may be nil.
type Fanout [event.NumKinds]EventFn

// Emit delivers one event to the kind's callback, if any.
func (f Fanout) Emit(kind event.Kind, scopes []string, logs event.Logs) {
	if !kind.Valid() {
		return
	}
	if fn := f[kind]; fn != nil {
		fn(kind, scopes, logs)
	}
}

// TestInfo describes one catalog entry for display purposes.
type TestInfo struct {
	Name    string
	File    string
	Line    int
	Comment string
}

// CompileInfo is supplied once by the engine at startup and passed through
// to report sinks verbatim.
type CompileInfo struct {
	Compiler string
	Date     string
	Time     string
}

// UnitRequest carries everything needed to execute one (test, pack) unit.
type UnitRequest struct {
	Index int
	Pack  Pack
	// Fanout receives the unit's events as they are emitted. Nil entries
	// must not be invoked.
	Fanout Fanout
	// HoldLock asks the engine to hold its global execution lock for the
	// duration of the unit. When set, the caller serializes units itself.
	HoldLock      bool
	CaptureStdout bool
	CaptureStderr bool
}

// UnitResult is the outcome of one executed unit.
type UnitResult struct {
	// Value is the test body's optional scalar return value.
	Value   any
	Elapsed time.Duration
	Counts  event.Counts
	Stdout  string
	Stderr  string
}

// Engine is the injected handle to the external test engine. The catalog
// and compile info are read once at startup and are stable for a run.
type Engine interface {
	// TestNames returns the full ordered test-name list. Indices into this
	// list are stable for the duration of one run.
	TestNames() []string

	// NumParameters returns the number of preregistered argument packs for
	// the test at the given index.
	NumParameters(index int) int

	// TestInfo returns display information for the test at the given index.
	TestInfo(index int) TestInfo

	// CompileInfo returns the engine's build identity.
	CompileInfo() CompileInfo

	// RunUnit executes one unit, invoking req.Fanout for each emitted event
	// before returning. The returned error covers operational failures only;
	// failing assertions and thrown exceptions inside the test body are
	// ordinary events reflected in the counts vector.
	RunUnit(ctx context.Context, req UnitRequest) (UnitResult, error)
}
