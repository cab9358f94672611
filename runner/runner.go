// Package runner schedules execution units onto the engine and drives the
// report sinks through their lifecycle: Enter once, a per-test handle per
// unit in submission order, Finalize with the folded run summary, Close on
// every exit path. With zero workers units run synchronously on the calling
// goroutine and events stream to sinks as they are emitted; with a worker
// pool events are buffered per unit and replayed on the draining goroutine,
// so sinks are never invoked concurrently.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/mfornace/lilwil/engine"
	"github.com/mfornace/lilwil/event"
	"github.com/mfornace/lilwil/reporting"
	"github.com/mfornace/lilwil/selector"
)

// Config holds configuration for creating a new dispatcher.
type Config struct {
	Engine engine.Engine
	Log    log.Logger

	// Workers is the worker pool size. Zero runs every unit on the calling
	// goroutine in submission order.
	Workers int

	// HoldLock serializes units on the engine's global execution lock.
	HoldLock      bool
	CaptureStdout bool
	CaptureStderr bool
}

// Dispatcher runs execution units against the engine and forwards their
// events and outcomes to the registered report sinks.
type Dispatcher struct {
	cfg  Config
	lock sync.Mutex // serializes units when HoldLock is set
}

// NewDispatcher creates a dispatcher from the given configuration.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Engine == nil {
		return nil, errors.New("dispatcher requires an engine")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("invalid worker count %d", cfg.Workers)
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	return &Dispatcher{cfg: cfg}, nil
}

// Run executes the units in submission order and returns the folded run
// summary. Context cancellation stops the run at the next unit boundary:
// units already drained are reflected in the summary, sinks still receive
// exactly one Finalize and one Close, and the context error is returned.
// An operational engine failure aborts the run; sinks are closed but not
// finalized.
func (d *Dispatcher) Run(ctx context.Context, units []selector.Unit, regs []reporting.Registration) (reporting.Summary, error) {
	runID := uuid.New().String()
	d.cfg.Log.Info("Starting test run",
		"run_id", runID, "units", len(units), "workers", d.cfg.Workers, "sinks", len(regs))

	masks := make([]event.Mask, len(regs))
	for i, reg := range regs {
		masks[i] = reg.Mask
	}

	for i, reg := range regs {
		if err := reg.Sink.Enter(); err != nil {
			d.closeSinks(regs[:i])
			return reporting.Summary{}, fmt.Errorf("entering report sink: %w", err)
		}
	}

	var state runState
	var runErr error
	if d.cfg.Workers == 0 {
		runErr = d.runSerial(ctx, units, regs, masks, &state)
	} else {
		runErr = d.runPool(ctx, units, regs, masks, &state)
	}

	if runErr == nil {
		for _, reg := range regs {
			reg.Sink.Finalize(state.sum, state.stdout.String(), state.stderr.String())
		}
	}
	d.closeSinks(regs)

	if runErr != nil {
		return state.sum, runErr
	}
	if err := ctx.Err(); err != nil {
		d.cfg.Log.Warn("Test run interrupted", "run_id", runID, "completed", state.sum.Units)
		return state.sum, err
	}
	d.cfg.Log.Info("Test run complete",
		"run_id", runID,
		"units", state.sum.Units,
		"failures", state.sum.Counts[event.Failure],
		"exceptions", state.sum.Counts[event.Exception],
		"duration", state.sum.Elapsed)
	return state.sum, nil
}

// runState accumulates the summary and the captured streams across units.
type runState struct {
	sum    reporting.Summary
	stdout strings.Builder
	stderr strings.Builder
}

func (s *runState) fold(res engine.UnitResult) {
	s.sum = s.sum.Fold(res)
	s.stdout.WriteString(res.Stdout)
	s.stderr.WriteString(res.Stderr)
}

// runSerial executes units one at a time on the calling goroutine, wiring
// the per-test handles straight into the engine fan-out so events reach
// sinks as they are emitted.
func (d *Dispatcher) runSerial(ctx context.Context, units []selector.Unit, regs []reporting.Registration, masks []event.Mask, state *runState) error {
	for _, unit := range units {
		if ctx.Err() != nil {
			return nil
		}
		handles := openHandles(regs, unit, d.cfg.Engine.TestInfo(unit.Index))
		res, err := d.runUnit(ctx, unit, reporting.Fanout(handles, masks))
		if err != nil {
			if interrupted(err) && ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("running test %d with args %s: %w", unit.Index, unit.Pack, err)
		}
		for _, h := range handles {
			h.Finalize(res)
		}
		state.fold(res)
	}
	return nil
}

// pendingUnit is one submitted unit awaiting its drain. The worker fills
// buf, res and err, then closes done; the drain goroutine reads them after.
type pendingUnit struct {
	unit selector.Unit
	buf  []emission
	res  engine.UnitResult
	err  error
	done chan struct{}
}

type emission struct {
	kind   event.Kind
	scopes []string
	logs   event.Logs
}

// runPool executes units on a bounded worker pool. Units are submitted in
// order on a separate goroutine while the caller drains completed units in
// the same order, replaying each unit's buffered events through fresh
// per-test handles.
func (d *Dispatcher) runPool(ctx context.Context, units []selector.Unit, regs []reporting.Registration, masks []event.Mask, state *runState) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New().WithMaxGoroutines(d.cfg.Workers)
	pendings := make(chan *pendingUnit, len(units))

	go func() {
		defer close(pendings)
		for _, unit := range units {
			if runCtx.Err() != nil {
				return
			}
			pd := &pendingUnit{unit: unit, done: make(chan struct{})}
			pendings <- pd
			p.Go(func() {
				defer close(pd.done)
				pd.res, pd.err = d.runUnit(runCtx, pd.unit, bufferFanout(pd, masks))
			})
		}
	}()

	var runErr error
	for pd := range pendings {
		<-pd.done
		if runErr != nil {
			continue
		}
		if pd.err != nil {
			if interrupted(pd.err) {
				continue
			}
			runErr = fmt.Errorf("running test %d with args %s: %w", pd.unit.Index, pd.unit.Pack, pd.err)
			cancel()
			continue
		}
		handles := openHandles(regs, pd.unit, d.cfg.Engine.TestInfo(pd.unit.Index))
		fanout := reporting.Fanout(handles, masks)
		for _, em := range pd.buf {
			fanout.Emit(em.kind, em.scopes, em.logs)
		}
		for _, h := range handles {
			h.Finalize(pd.res)
		}
		state.fold(pd.res)
	}
	p.Wait()
	return runErr
}

// bufferFanout builds the engine fan-out for one pooled unit: accepted
// kinds append to the unit's buffer, kinds no sink subscribes stay nil so
// the engine skips them entirely.
func bufferFanout(pd *pendingUnit, masks []event.Mask) engine.Fanout {
	var fanout engine.Fanout
	record := func(kind event.Kind, scopes []string, logs event.Logs) {
		pd.buf = append(pd.buf, emission{kind: kind, scopes: scopes, logs: logs})
	}
	for k := 0; k < event.NumKinds; k++ {
		for _, m := range masks {
			if m.Accepts(event.Kind(k)) {
				fanout[k] = record
				break
			}
		}
	}
	return fanout
}

func (d *Dispatcher) runUnit(ctx context.Context, unit selector.Unit, fanout engine.Fanout) (engine.UnitResult, error) {
	if d.cfg.HoldLock {
		d.lock.Lock()
		defer d.lock.Unlock()
	}
	return d.cfg.Engine.RunUnit(ctx, engine.UnitRequest{
		Index:         unit.Index,
		Pack:          unit.Pack,
		Fanout:        fanout,
		HoldLock:      d.cfg.HoldLock,
		CaptureStdout: d.cfg.CaptureStdout,
		CaptureStderr: d.cfg.CaptureStderr,
	})
}

func openHandles(regs []reporting.Registration, unit selector.Unit, info engine.TestInfo) []reporting.TestHandle {
	handles := make([]reporting.TestHandle, len(regs))
	for i, reg := range regs {
		handles[i] = reg.Sink.Test(unit.Index, unit.Pack, info)
	}
	return handles
}

func (d *Dispatcher) closeSinks(regs []reporting.Registration) {
	for _, reg := range regs {
		if err := reg.Sink.Close(); err != nil {
			d.cfg.Log.Error("Failed to close report sink", "error", err)
		}
	}
}

func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
