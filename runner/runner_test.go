package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfornace/lilwil/engine"
	"github.com/mfornace/lilwil/engine/enginetest"
	"github.com/mfornace/lilwil/event"
	"github.com/mfornace/lilwil/reporting"
	"github.com/mfornace/lilwil/selector"
)

// sinkRecorder is an in-memory sink recording its whole lifecycle.
type sinkRecorder struct {
	enterErr error

	entered   int
	closed    int
	finalized int
	sum       reporting.Summary
	stdout    string
	stderr    string
	tests     []*handleRecorder

	// afterUnit, when set, runs after each per-test finalize.
	afterUnit func(done int)
}

var _ reporting.Sink = (*sinkRecorder)(nil)

type handleRecorder struct {
	sink   *sinkRecorder
	index  int
	name   string
	events []event.Kind
	res    engine.UnitResult
	done   bool
}

func (s *sinkRecorder) Enter() error {
	s.entered++
	return s.enterErr
}

func (s *sinkRecorder) Test(index int, pack engine.Pack, info engine.TestInfo) reporting.TestHandle {
	h := &handleRecorder{sink: s, index: index, name: info.Name}
	s.tests = append(s.tests, h)
	return h
}

func (s *sinkRecorder) Finalize(sum reporting.Summary, stdout, stderr string) {
	s.finalized++
	s.sum = sum
	s.stdout = stdout
	s.stderr = stderr
}

func (s *sinkRecorder) Close() error {
	s.closed++
	return nil
}

func (h *handleRecorder) Event(kind event.Kind, scopes []string, logs event.Logs) {
	h.events = append(h.events, kind)
}

func (h *handleRecorder) Finalize(res engine.UnitResult) {
	h.res = res
	h.done = true
	if h.sink.afterUnit != nil {
		h.sink.afterUnit(len(h.sink.tests))
	}
}

func (s *sinkRecorder) testNames() []string {
	names := make([]string, len(s.tests))
	for i, h := range s.tests {
		names[i] = h.name
	}
	return names
}

func allUnits(eng engine.Engine) []selector.Unit {
	names := eng.TestNames()
	units := make([]selector.Unit, len(names))
	for i := range names {
		units[i] = selector.Unit{Index: i, Pack: engine.Arguments()}
	}
	return units
}

func fullMask() event.Mask {
	return event.NewMask(true, true, true, true, true)
}

func TestNewDispatcherValidation(t *testing.T) {
	_, err := NewDispatcher(Config{})
	require.Error(t, err)

	_, err = NewDispatcher(Config{Engine: enginetest.WithNames("a"), Workers: -1})
	require.Error(t, err)

	d, err := NewDispatcher(Config{Engine: enginetest.WithNames("a")})
	require.NoError(t, err)
	require.NotNil(t, d)
}

func TestRunSerialInOrder(t *testing.T) {
	eng := enginetest.WithNames("a/one", "a/two", "b/three")
	d, err := NewDispatcher(Config{Engine: eng})
	require.NoError(t, err)

	sink := &sinkRecorder{}
	sum, err := d.Run(context.Background(), allUnits(eng), []reporting.Registration{
		{Sink: sink, Mask: fullMask()},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Units)
	assert.Equal(t, 3, sum.Counts[event.Success])
	assert.Equal(t, 1, sink.entered)
	assert.Equal(t, 1, sink.finalized)
	assert.Equal(t, 1, sink.closed)
	assert.Equal(t, sum, sink.sum)

	assert.Equal(t, []string{"a/one", "a/two", "b/three"}, sink.testNames())
	for _, h := range sink.tests {
		assert.True(t, h.done)
		assert.Equal(t, []event.Kind{event.Success}, h.events)
		assert.Equal(t, 1, h.res.Counts[event.Success])
	}
}

func mixedScripts() []enginetest.Script {
	mk := func(name string, kinds ...event.Kind) enginetest.Script {
		s := enginetest.Script{Info: engine.TestInfo{Name: name}}
		for _, k := range kinds {
			s.Emissions = append(s.Emissions, enginetest.Emission{Kind: k, Scopes: []string{name}})
			s.Result.Counts[k]++
		}
		s.Result.Elapsed = time.Millisecond
		return s
	}
	return []enginetest.Script{
		mk("ok", event.Success, event.Success),
		mk("bad", event.Failure, event.Success),
		mk("threw", event.Traceback, event.Exception),
		mk("skip", event.Skipped),
		mk("timed", event.Timing, event.Success),
		mk("quiet"),
		mk("noisy", event.Success, event.Failure, event.Success, event.Failure),
	}
}

func TestSummaryIdenticalAcrossWorkerCounts(t *testing.T) {
	run := func(workers int) (reporting.Summary, *sinkRecorder) {
		eng := enginetest.New(engine.CompileInfo{}, mixedScripts()...)
		d, err := NewDispatcher(Config{Engine: eng, Workers: workers})
		require.NoError(t, err)
		sink := &sinkRecorder{}
		sum, err := d.Run(context.Background(), allUnits(eng), []reporting.Registration{
			{Sink: sink, Mask: fullMask()},
		})
		require.NoError(t, err)
		return sum, sink
	}

	serialSum, serialSink := run(0)
	pooledSum, pooledSink := run(4)

	assert.Equal(t, serialSum, pooledSum)
	assert.Equal(t, serialSink.testNames(), pooledSink.testNames(),
		"pooled units drain in submission order")
	for i := range serialSink.tests {
		assert.Equal(t, serialSink.tests[i].events, pooledSink.tests[i].events)
		assert.Equal(t, serialSink.tests[i].res, pooledSink.tests[i].res)
	}
}

func TestMaskFiltersDeliveryAndFanout(t *testing.T) {
	for _, workers := range []int{0, 2} {
		eng := enginetest.New(engine.CompileInfo{}, mixedScripts()...)
		d, err := NewDispatcher(Config{Engine: eng, Workers: workers})
		require.NoError(t, err)

		all := &sinkRecorder{}
		failing := &sinkRecorder{}
		sum, err := d.Run(context.Background(), allUnits(eng), []reporting.Registration{
			{Sink: all, Mask: fullMask()},
			{Sink: failing, Mask: event.FailuresOnly()},
		})
		require.NoError(t, err)

		// Counts come from results, not delivery; both sinks see the same
		// summary regardless of mask.
		assert.Equal(t, sum, all.sum)
		assert.Equal(t, sum, failing.sum)

		for i, h := range failing.tests {
			for _, k := range h.events {
				assert.Contains(t, []event.Kind{event.Failure, event.Exception, event.Traceback}, k)
			}
			full := all.tests[i].events
			assert.Subset(t, full, h.events)
		}

		// The "threw" test delivers its traceback despite the failure mask.
		assert.Equal(t, []event.Kind{event.Traceback, event.Exception}, failing.tests[2].events)
	}
}

func TestUnsubscribedKindsHandedNilCallback(t *testing.T) {
	eng := enginetest.New(engine.CompileInfo{}, mixedScripts()...)
	d, err := NewDispatcher(Config{Engine: eng})
	require.NoError(t, err)

	sink := &sinkRecorder{}
	_, err = d.Run(context.Background(), allUnits(eng), []reporting.Registration{
		{Sink: sink, Mask: event.FailuresOnly()},
	})
	require.NoError(t, err)

	for _, call := range eng.Calls() {
		assert.False(t, call.NilFanout[event.Failure])
		assert.False(t, call.NilFanout[event.Exception])
		assert.False(t, call.NilFanout[event.Traceback])
		assert.True(t, call.NilFanout[event.Success])
		assert.True(t, call.NilFanout[event.Timing])
		assert.True(t, call.NilFanout[event.Skipped])
	}
}

func TestNoSinksMeansNoDelivery(t *testing.T) {
	eng := enginetest.WithNames("a", "b")
	d, err := NewDispatcher(Config{Engine: eng})
	require.NoError(t, err)

	sum, err := d.Run(context.Background(), allUnits(eng), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Units)

	for _, call := range eng.Calls() {
		for k := 0; k < event.NumKinds; k++ {
			assert.True(t, call.NilFanout[k])
		}
	}
}

func TestRequestCarriesExecutionFlags(t *testing.T) {
	eng := enginetest.WithNames("a")
	d, err := NewDispatcher(Config{
		Engine:        eng,
		HoldLock:      true,
		CaptureStdout: true,
		CaptureStderr: true,
	})
	require.NoError(t, err)

	_, err = d.Run(context.Background(), allUnits(eng), nil)
	require.NoError(t, err)

	calls := eng.Calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Req.HoldLock)
	assert.True(t, calls[0].Req.CaptureStdout)
	assert.True(t, calls[0].Req.CaptureStderr)
	assert.Equal(t, 0, calls[0].Req.Index)
}

func TestInterruptedSerialRunCountsDrainedUnits(t *testing.T) {
	eng := enginetest.WithNames("a", "b", "c", "d", "e")
	d, err := NewDispatcher(Config{Engine: eng})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &sinkRecorder{}
	sink.afterUnit = func(done int) {
		if done == 2 {
			cancel()
		}
	}

	sum, err := d.Run(ctx, allUnits(eng), []reporting.Registration{
		{Sink: sink, Mask: fullMask()},
	})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 2, sum.Units)
	assert.Equal(t, 1, sink.finalized, "sinks still finalized on interruption")
	assert.Equal(t, 1, sink.closed)
	assert.Equal(t, 2, sink.sum.Units)
}

func TestInterruptedPooledRunCountsDrainedUnits(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	scripts := []enginetest.Script{
		{Info: engine.TestInfo{Name: "a"}, Result: engine.UnitResult{Counts: event.Counts{event.Success: 1}}},
		{Info: engine.TestInfo{Name: "b"}, Result: engine.UnitResult{Counts: event.Counts{event.Success: 1}}},
		{Info: engine.TestInfo{Name: "c"}, Block: block},
	}
	eng := enginetest.New(engine.CompileInfo{}, scripts...)
	d, err := NewDispatcher(Config{Engine: eng, Workers: 2})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &sinkRecorder{}
	sink.afterUnit = func(done int) {
		if done == 2 {
			cancel()
		}
	}

	sum, err := d.Run(ctx, allUnits(eng), []reporting.Registration{
		{Sink: sink, Mask: fullMask()},
	})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 2, sum.Units)
	assert.Equal(t, []string{"a", "b"}, sink.testNames())
	assert.Equal(t, 1, sink.finalized)
	assert.Equal(t, 1, sink.closed)
}

func TestOperationalFailureAbortsRun(t *testing.T) {
	boom := errors.New("engine crashed")
	for _, workers := range []int{0, 2} {
		scripts := []enginetest.Script{
			{Info: engine.TestInfo{Name: "a"}, Result: engine.UnitResult{Counts: event.Counts{event.Success: 1}}},
			{Info: engine.TestInfo{Name: "b"}, Err: boom},
			{Info: engine.TestInfo{Name: "c"}, Result: engine.UnitResult{Counts: event.Counts{event.Success: 1}}},
		}
		eng := enginetest.New(engine.CompileInfo{}, scripts...)
		d, err := NewDispatcher(Config{Engine: eng, Workers: workers})
		require.NoError(t, err)

		sink := &sinkRecorder{}
		_, err = d.Run(context.Background(), allUnits(eng), []reporting.Registration{
			{Sink: sink, Mask: fullMask()},
		})
		require.ErrorIs(t, err, boom)

		assert.Equal(t, 0, sink.finalized, "run finalize skipped on operational failure")
		assert.Equal(t, 1, sink.closed, "sinks closed on every exit path")
	}
}

func TestEnterFailureClosesPriorSinks(t *testing.T) {
	eng := enginetest.WithNames("a")
	d, err := NewDispatcher(Config{Engine: eng})
	require.NoError(t, err)

	first := &sinkRecorder{}
	second := &sinkRecorder{enterErr: errors.New("no permission")}
	third := &sinkRecorder{}

	sum, err := d.Run(context.Background(), allUnits(eng), []reporting.Registration{
		{Sink: first, Mask: fullMask()},
		{Sink: second, Mask: fullMask()},
		{Sink: third, Mask: fullMask()},
	})
	require.ErrorContains(t, err, "no permission")

	assert.Equal(t, 0, sum.Units)
	assert.Equal(t, 1, first.closed)
	assert.Equal(t, 0, second.closed, "a sink that failed to enter is not closed")
	assert.Equal(t, 0, third.entered)
	assert.Empty(t, eng.Calls())
}

func TestCapturedStreamsConcatenatedInOrder(t *testing.T) {
	scripts := []enginetest.Script{
		{Info: engine.TestInfo{Name: "a"}, Result: engine.UnitResult{Stdout: "one\n", Stderr: "err1\n"}},
		{Info: engine.TestInfo{Name: "b"}, Result: engine.UnitResult{Stdout: "two\n"}},
		{Info: engine.TestInfo{Name: "c"}, Result: engine.UnitResult{Stderr: "err2\n"}},
	}
	for _, workers := range []int{0, 3} {
		eng := enginetest.New(engine.CompileInfo{}, scripts...)
		d, err := NewDispatcher(Config{Engine: eng, Workers: workers, CaptureStdout: true, CaptureStderr: true})
		require.NoError(t, err)

		sink := &sinkRecorder{}
		_, err = d.Run(context.Background(), allUnits(eng), []reporting.Registration{
			{Sink: sink, Mask: fullMask()},
		})
		require.NoError(t, err)

		assert.Equal(t, "one\ntwo\n", sink.stdout)
		assert.Equal(t, "err1\nerr2\n", sink.stderr)
	}
}

func TestEmptyRunIsZeroSummary(t *testing.T) {
	eng := enginetest.WithNames()
	d, err := NewDispatcher(Config{Engine: eng})
	require.NoError(t, err)

	sink := &sinkRecorder{}
	sum, err := d.Run(context.Background(), nil, []reporting.Registration{
		{Sink: sink, Mask: fullMask()},
	})
	require.NoError(t, err)

	assert.Equal(t, reporting.Summary{}, sum)
	assert.Equal(t, 1, sink.finalized)
	assert.Equal(t, 1, sink.closed)
}
