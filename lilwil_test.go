package lilwil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mfornace/lilwil/engine"
	"github.com/mfornace/lilwil/engine/enginetest"
	"github.com/mfornace/lilwil/event"
	"github.com/mfornace/lilwil/flags"
	"github.com/mfornace/lilwil/selector"
)

func baseConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Params:      selector.DefaultParams(),
		ConsoleMask: event.NewMask(true, true, true, true, true),
		Out:         filepath.Join(t.TempDir(), "console.txt"),
		XMLSuite:    "default-suite",
		Suite:       "default-suite",
		NoColor:     true,
		Log:         log.Root(),
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, enginetest.WithNames("a"))
	require.Error(t, err)

	_, err = New(baseConfig(t), nil)
	require.Error(t, err)
}

func TestRunAllPassing(t *testing.T) {
	cfg := baseConfig(t)
	svc, err := New(cfg, enginetest.WithNames("a/one", "a/two"))
	require.NoError(t, err)

	require.NoError(t, svc.Run(context.Background()))

	out, err := os.ReadFile(cfg.Out)
	require.NoError(t, err)
	assert.Contains(t, string(out), `Test 0 "a/one"`)
	assert.Contains(t, string(out), `Test 1 "a/two"`)
	assert.Contains(t, string(out), "Total results for 2 tests")
	assert.Contains(t, string(out), "Test Results")
	assert.Contains(t, string(out), "pass")
}

func TestRunMapsFailuresToTestFailureError(t *testing.T) {
	scripts := []enginetest.Script{
		{
			Info:      engine.TestInfo{Name: "bad"},
			Emissions: []enginetest.Emission{{Kind: event.Failure, Scopes: []string{"bad"}}},
			Result:    engine.UnitResult{Counts: event.Counts{event.Failure: 1}},
		},
	}
	svc, err := New(baseConfig(t), enginetest.New(engine.CompileInfo{}, scripts...))
	require.NoError(t, err)

	runErr := svc.Run(context.Background())
	require.Error(t, runErr)
	assert.True(t, IsTestFailureError(runErr))
	assert.False(t, IsRuntimeError(runErr))
}

func TestRunMapsBadSelectionToRuntimeError(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Selection = selector.Spec{Names: []string{"no/such/test"}}
	svc, err := New(cfg, enginetest.WithNames("a"))
	require.NoError(t, err)

	runErr := svc.Run(context.Background())
	require.Error(t, runErr)
	assert.True(t, IsRuntimeError(runErr))

	var selErr *selector.SelectionError
	assert.ErrorAs(t, runErr, &selErr)
}

func TestRunMapsCancellationToInterruptedError(t *testing.T) {
	cfg := baseConfig(t)
	svc, err := New(cfg, enginetest.WithNames("a", "b"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runErr := svc.Run(ctx)
	require.Error(t, runErr)
	assert.True(t, IsInterruptedError(runErr))
}

func TestRunListMode(t *testing.T) {
	cfg := baseConfig(t)
	cfg.List = true
	cfg.Selection = selector.Spec{Regex: "^a/"}
	svc, err := New(cfg, enginetest.WithNames("a/one", "a/two", "b/three"))
	require.NoError(t, err)

	require.NoError(t, svc.Run(context.Background()))

	out, err := os.ReadFile(cfg.Out)
	require.NoError(t, err)
	assert.Equal(t, "0: a/one\n1: a/two\n", string(out))
}

func TestRunWritesConfiguredReports(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t)
	cfg.XMLPath = filepath.Join(dir, "report.xml")
	cfg.JSONPath = filepath.Join(dir, "report.json")
	cfg.JSONIndent = 2

	svc, err := New(cfg, enginetest.WithNames("a", "b"))
	require.NoError(t, err)
	require.NoError(t, svc.Run(context.Background()))

	xmlData, err := os.ReadFile(cfg.XMLPath)
	require.NoError(t, err)
	assert.Contains(t, string(xmlData), `<testsuite name="default-suite"`)

	jsonData, err := os.ReadFile(cfg.JSONPath)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(jsonData, &doc))
	assert.Len(t, doc["tests"], 2)
}

func TestNewConfigFromFlags(t *testing.T) {
	var cfg *Config
	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Action = func(ctx *cli.Context) error {
		var err error
		cfg, err = NewConfig(ctx, log.Root())
		return err
	}

	err := app.Run([]string{"lilwil",
		"--tests", "a/one", "--tests", "b",
		"--regex", "^a/",
		"--index", "3",
		"--exclude",
		"--jobs", "4",
		"--success",
		"--brief",
		"--no-color",
		"--xml", "report.xml",
		"--json-indent", "2",
	})
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, []string{"a/one", "b"}, cfg.Selection.Names)
	assert.Equal(t, "^a/", cfg.Selection.Regex)
	assert.Equal(t, []int{3}, cfg.Selection.Indices)
	assert.True(t, cfg.Selection.Exclude)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.Brief)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "report.xml", cfg.XMLPath)
	assert.Equal(t, 2, cfg.JSONIndent)

	// Defaults: failures, exceptions and skips shown; success shown only
	// because the flag was set; capture on.
	assert.True(t, cfg.ConsoleMask.Accepts(event.Failure))
	assert.True(t, cfg.ConsoleMask.Accepts(event.Success))
	assert.False(t, cfg.ConsoleMask.Accepts(event.Timing))
	assert.True(t, cfg.CaptureStdout)
	assert.True(t, cfg.CaptureStderr)
	assert.Equal(t, "stdout", cfg.Out)
	assert.Equal(t, selector.DefaultParams(), cfg.Params)
}

func TestNewConfigRejectsNegativeJobs(t *testing.T) {
	app := cli.NewApp()
	app.Flags = flags.Flags
	app.Action = func(ctx *cli.Context) error {
		_, err := NewConfig(ctx, log.Root())
		return err
	}
	err := app.Run([]string{"lilwil", "--jobs", "-1"})
	require.ErrorContains(t, err, "must not be negative")
}
