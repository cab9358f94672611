// Package lilwil wires the orchestration layer into a runnable service:
// selection, parameter expansion, report sinks, the dispatcher and the
// final exit-code mapping.
package lilwil

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mfornace/lilwil/engine"
	"github.com/mfornace/lilwil/event"
	"github.com/mfornace/lilwil/metrics"
	"github.com/mfornace/lilwil/reporting"
	"github.com/mfornace/lilwil/runner"
	"github.com/mfornace/lilwil/selector"
)

// Service runs one test session against an engine.
type Service struct {
	config *Config
	engine engine.Engine
}

// New creates a service for the given engine.
func New(config *Config, eng engine.Engine) (*Service, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if eng == nil {
		return nil, errors.New("engine is required")
	}
	return &Service{config: config, engine: eng}, nil
}

// Run executes the configured session. The returned error is nil when every
// unit passed; otherwise it is a TestFailureError, a RuntimeError, or an
// InterruptedError, which the command maps onto exit codes.
func (s *Service) Run(ctx context.Context) error {
	cfg := s.config
	names := s.engine.TestNames()

	indices, err := selector.Indices(names, cfg.Selection)
	if err != nil {
		return NewRuntimeError(err)
	}
	units := selector.Expand(s.engine, indices, cfg.Params)
	cfg.Log.Debug("Resolved selection", "tests", len(indices), "units", len(units))

	if cfg.List {
		return s.list(indices)
	}

	out, err := reporting.OpenOutput(cfg.Out)
	if err != nil {
		return NewRuntimeError(err)
	}
	defer out.Close()

	regs, closers, err := s.sinks(out)
	if err != nil {
		closeAll(closers)
		return NewRuntimeError(err)
	}
	defer closeAll(closers)

	dispatcher, err := runner.NewDispatcher(runner.Config{
		Engine:        s.engine,
		Log:           cfg.Log,
		Workers:       cfg.Workers,
		HoldLock:      cfg.HoldLock,
		CaptureStdout: cfg.CaptureStdout,
		CaptureStderr: cfg.CaptureStderr,
	})
	if err != nil {
		return NewRuntimeError(err)
	}

	sum, runErr := dispatcher.Run(ctx, units, regs)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			metrics.RecordInterrupted(cfg.Suite, sum.Elapsed)
			return &InterruptedError{Units: sum.Units}
		}
		metrics.RecordError("run")
		return NewRuntimeError(runErr)
	}

	metrics.RecordRun(cfg.Suite, sum)
	if !cfg.Brief {
		NewSummaryFormatter(out, !cfg.NoColor).Format(sum)
	}

	if sum.Counts[event.Failure] > 0 || sum.Counts[event.Exception] > 0 {
		return NewTestFailureError(fmt.Sprintf("%d failures, %d exceptions in %d tests",
			sum.Counts[event.Failure], sum.Counts[event.Exception], sum.Units))
	}
	return nil
}

// list prints the display names of the selected tests.
func (s *Service) list(indices []int) error {
	out, err := reporting.OpenOutput(s.config.Out)
	if err != nil {
		return NewRuntimeError(err)
	}
	defer out.Close()

	for _, i := range indices {
		info := s.engine.TestInfo(i)
		if _, err := fmt.Fprintf(out, "%d: %s\n", i, info.Name); err != nil {
			return NewRuntimeError(err)
		}
	}
	return nil
}

// sinks builds the configured report registrations. Console gets the
// display mask, structured reports get the masks their formats expect.
func (s *Service) sinks(console io.Writer) ([]reporting.Registration, []io.Closer, error) {
	cfg := s.config
	info := s.engine.CompileInfo()

	regs := []reporting.Registration{{
		Sink: reporting.NewConsoleSink(console, info, reporting.ConsoleConfig{
			Color:  !cfg.NoColor,
			Brief:  cfg.Brief,
			Timing: cfg.Timing,
		}),
		Mask: cfg.ConsoleMask,
	}}
	var closers []io.Closer

	if cfg.XMLPath != "" {
		regs = append(regs, reporting.Registration{
			Sink: reporting.NewXMLSink(cfg.XMLPath, info, cfg.XMLSuite),
			Mask: event.FailuresOnly(),
		})
	}

	if cfg.TeamCityPath != "" {
		w, err := reporting.OpenOutput(cfg.TeamCityPath)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, w)
		regs = append(regs, reporting.Registration{
			Sink: reporting.NewTeamCitySink(w, info, cfg.Suite, cfg.TeamCityLazy),
			Mask: event.FailuresOnly(),
		})
	}

	if cfg.JSONPath != "" {
		w, err := reporting.OpenOutput(cfg.JSONPath)
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, w)
		regs = append(regs, reporting.Registration{
			Sink: reporting.NewJSONSink(w, info, cfg.JSONIndent),
			Mask: event.NewMask(true, true, true, true, true),
		})
	}

	return regs, closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
