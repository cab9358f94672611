package lilwil

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/mfornace/lilwil/event"
	"github.com/mfornace/lilwil/flags"
	"github.com/mfornace/lilwil/selector"
)

// Config holds the application configuration
type Config struct {
	Selection selector.Spec   // which tests to run
	Params    selector.Params // parameter packs per selected test

	Workers       int  // worker pool size; 0 runs tests in order
	HoldLock      bool // hold the engine's execution lock per test
	CaptureStdout bool
	CaptureStderr bool
	List          bool // print selected test names instead of running

	ConsoleMask event.Mask // event kinds shown on the console
	Brief       bool
	NoColor     bool
	Timing      bool
	Out         string // console destination: stdout, stderr or a path

	XMLPath      string // JUnit-style XML report path, empty disables
	XMLSuite     string
	TeamCityPath string // CI stream destination, empty disables
	TeamCityLazy bool
	JSONPath     string // JSON report destination, empty disables
	JSONIndent   int

	Suite string // suite name used for reports and metrics
	Log   log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	params, err := selector.LoadParamsFile(ctx.String(flags.Params.Name))
	if err != nil {
		return nil, err
	}

	return &Config{
		Selection: selector.Spec{
			Names:   ctx.StringSlice(flags.Tests.Name),
			Regex:   ctx.String(flags.Regex.Name),
			Indices: ctx.IntSlice(flags.Index.Name),
			Exclude: ctx.Bool(flags.Exclude.Name),
			Strict:  ctx.Bool(flags.Strict.Name),
			Lenient: ctx.Bool(flags.Lenient.Name),
		},
		Params:        params,
		Workers:       ctx.Int(flags.Jobs.Name),
		HoldLock:      ctx.Bool(flags.HoldLock.Name),
		CaptureStdout: ctx.Bool(flags.CaptureStdout.Name),
		CaptureStderr: ctx.Bool(flags.CaptureStderr.Name),
		List:          ctx.Bool(flags.List.Name),
		ConsoleMask: event.NewMask(
			ctx.Bool(flags.ShowFailure.Name),
			ctx.Bool(flags.ShowSuccess.Name),
			ctx.Bool(flags.ShowException.Name),
			ctx.Bool(flags.ShowTiming.Name),
			ctx.Bool(flags.ShowSkipped.Name),
		),
		Brief:        ctx.Bool(flags.Brief.Name),
		NoColor:      ctx.Bool(flags.NoColor.Name),
		Timing:       ctx.Bool(flags.ShowTiming.Name),
		Out:          ctx.String(flags.Out.Name),
		XMLPath:      ctx.String(flags.XMLPath.Name),
		XMLSuite:     ctx.String(flags.XMLSuite.Name),
		TeamCityPath: ctx.String(flags.TeamCityPath.Name),
		TeamCityLazy: ctx.Bool(flags.TeamCityLazy.Name),
		JSONPath:     ctx.String(flags.JSONPath.Name),
		JSONIndent:   ctx.Int(flags.JSONIndent.Name),
		Suite:        ctx.String(flags.XMLSuite.Name),
		Log:          log,
	}, nil
}
