// Package enginetest provides a scriptable in-memory Engine for exercising
// the orchestration layer without a real test engine. Each scripted test
// declares the events it emits and the outcome it returns; the fake records
// every RunUnit call so tests can assert on fan-out wiring.
package enginetest

import (
	"context"
	"sync"
	"time"

	"github.com/mfornace/lilwil/engine"
	"github.com/mfornace/lilwil/event"
)

// Emission is one scripted event.
type Emission struct {
	Kind   event.Kind
	Scopes []string
	Logs   event.Logs
}

// Script describes one test in the fake catalog.
type Script struct {
	Info      engine.TestInfo
	NumPacks  int // preregistered argument packs
	Emissions []Emission
	Result    engine.UnitResult
	// Block, when non-nil, is closed by the test to release a running unit.
	// Used to exercise concurrency and cancellation behavior.
	Block <-chan struct{}
	// Err is returned from RunUnit as an operational failure.
	Err error
}

// Call records one RunUnit invocation.
type Call struct {
	Req engine.UnitRequest
	// NilFanout holds, per kind, whether the engine was handed a nil
	// callback (the no-op optimization).
	NilFanout [event.NumKinds]bool
}

// Engine is a scriptable fake implementing engine.Engine. It is safe for
// concurrent RunUnit calls.
type Engine struct {
	compile engine.CompileInfo
	scripts []Script

	mu    sync.Mutex
	calls []Call
}

var _ engine.Engine = (*Engine)(nil)

// New builds a fake engine from the given scripts.
func New(compile engine.CompileInfo, scripts ...Script) *Engine {
	return &Engine{compile: compile, scripts: scripts}
}

// WithNames is a shorthand for a catalog of named tests with default
// outcomes: one Success event and a counts vector recording it.
func WithNames(names ...string) *Engine {
	scripts := make([]Script, len(names))
	for i, name := range names {
		scripts[i] = Script{
			Info:      engine.TestInfo{Name: name},
			Emissions: []Emission{{Kind: event.Success, Scopes: []string{name}}},
			Result:    engine.UnitResult{Counts: event.Counts{event.Success: 1}},
		}
	}
	return New(engine.CompileInfo{}, scripts...)
}

func (e *Engine) TestNames() []string {
	names := make([]string, len(e.scripts))
	for i, s := range e.scripts {
		names[i] = s.Info.Name
	}
	return names
}

func (e *Engine) NumParameters(index int) int {
	return e.scripts[index].NumPacks
}

func (e *Engine) TestInfo(index int) engine.TestInfo {
	return e.scripts[index].Info
}

func (e *Engine) CompileInfo() engine.CompileInfo {
	return e.compile
}

// RunUnit replays the script for the requested test: emissions go through
// the fan-out in order, then the scripted result is returned.
func (e *Engine) RunUnit(ctx context.Context, req engine.UnitRequest) (engine.UnitResult, error) {
	script := e.scripts[req.Index]

	call := Call{Req: req}
	for k := range req.Fanout {
		call.NilFanout[k] = req.Fanout[k] == nil
	}
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()

	if script.Block != nil {
		select {
		case <-script.Block:
		case <-ctx.Done():
			return engine.UnitResult{}, ctx.Err()
		}
	}

	if script.Err != nil {
		return engine.UnitResult{}, script.Err
	}

	for _, em := range script.Emissions {
		req.Fanout.Emit(em.Kind, em.Scopes, em.Logs)
	}

	res := script.Result
	if res.Elapsed == 0 {
		res.Elapsed = time.Millisecond
	}
	return res, nil
}

// Calls returns a snapshot of all recorded RunUnit invocations.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}
