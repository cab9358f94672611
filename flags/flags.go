package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "LILWIL"

func prefixEnvVars(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	Tests = &cli.StringSliceFlag{
		Name:    "tests",
		Aliases: []string{"t"},
		EnvVars: prefixEnvVars("TESTS"),
		Usage:   "Names of tests to run; an exact name or, outside strict mode, a unique substring",
	}
	Regex = &cli.StringFlag{
		Name:    "regex",
		Aliases: []string{"r"},
		EnvVars: prefixEnvVars("REGEX"),
		Usage:   "Run tests whose name starts with a match of this pattern",
	}
	Index = &cli.IntSliceFlag{
		Name:    "index",
		EnvVars: prefixEnvVars("INDEX"),
		Usage:   "Catalog positions of tests to run",
	}
	Exclude = &cli.BoolFlag{
		Name:    "exclude",
		Aliases: []string{"x"},
		EnvVars: prefixEnvVars("EXCLUDE"),
		Usage:   "Invert the selection: run everything except the selected tests",
	}
	Strict = &cli.BoolFlag{
		Name:    "strict",
		EnvVars: prefixEnvVars("STRICT"),
		Usage:   "Require test names to match catalog entries exactly",
	}
	Lenient = &cli.BoolFlag{
		Name:    "lenient",
		EnvVars: prefixEnvVars("LENIENT"),
		Usage:   "Skip unresolvable test names instead of failing",
	}
	Jobs = &cli.IntFlag{
		Name:    "jobs",
		Aliases: []string{"j"},
		Value:   0,
		EnvVars: prefixEnvVars("JOBS"),
		Usage:   "Worker pool size; 0 runs tests synchronously in order",
	}
	Params = &cli.StringFlag{
		Name:    "params",
		Aliases: []string{"p"},
		EnvVars: prefixEnvVars("PARAMS"),
		Usage:   "Parameter packs: a YAML/JSON file path or an inline document",
	}
	HoldLock = &cli.BoolFlag{
		Name:    "hold-lock",
		EnvVars: prefixEnvVars("HOLD_LOCK"),
		Usage:   "Hold the engine's global execution lock for each test",
	}
	CaptureStdout = &cli.BoolFlag{
		Name:    "capture-stdout",
		Value:   true,
		EnvVars: prefixEnvVars("CAPTURE_STDOUT"),
		Usage:   "Capture each test's stdout instead of letting it through",
	}
	CaptureStderr = &cli.BoolFlag{
		Name:    "capture-stderr",
		Value:   true,
		EnvVars: prefixEnvVars("CAPTURE_STDERR"),
		Usage:   "Capture each test's stderr instead of letting it through",
	}
	List = &cli.BoolFlag{
		Name:    "list",
		Aliases: []string{"l"},
		EnvVars: prefixEnvVars("LIST"),
		Usage:   "Print the selected test names without running them",
	}

	ShowFailure = &cli.BoolFlag{
		Name:    "failure",
		Value:   true,
		EnvVars: prefixEnvVars("FAILURE"),
		Usage:   "Show failure events on the console",
	}
	ShowSuccess = &cli.BoolFlag{
		Name:    "success",
		EnvVars: prefixEnvVars("SUCCESS"),
		Usage:   "Show success events on the console",
	}
	ShowException = &cli.BoolFlag{
		Name:    "exception",
		Value:   true,
		EnvVars: prefixEnvVars("EXCEPTION"),
		Usage:   "Show exception events on the console",
	}
	ShowTiming = &cli.BoolFlag{
		Name:    "timing",
		EnvVars: prefixEnvVars("TIMING"),
		Usage:   "Show timing events and durations on the console",
	}
	ShowSkipped = &cli.BoolFlag{
		Name:    "skip",
		Value:   true,
		EnvVars: prefixEnvVars("SKIP"),
		Usage:   "Show skipped events on the console",
	}
	Brief = &cli.BoolFlag{
		Name:    "brief",
		EnvVars: prefixEnvVars("BRIEF"),
		Usage:   "Abbreviate console output",
	}
	NoColor = &cli.BoolFlag{
		Name:    "no-color",
		EnvVars: prefixEnvVars("NO_COLOR"),
		Usage:   "Disable colored console output",
	}
	Out = &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Value:   "stdout",
		EnvVars: prefixEnvVars("OUT"),
		Usage:   "Console report destination: 'stdout', 'stderr' or a file path",
	}

	XMLPath = &cli.StringFlag{
		Name:    "xml",
		EnvVars: prefixEnvVars("XML"),
		Usage:   "Write a JUnit-style XML report to this file",
	}
	XMLSuite = &cli.StringFlag{
		Name:    "xml-suite",
		Value:   "default-suite",
		EnvVars: prefixEnvVars("XML_SUITE"),
		Usage:   "Suite name recorded in the XML report",
	}
	TeamCityPath = &cli.StringFlag{
		Name:    "teamcity",
		EnvVars: prefixEnvVars("TEAMCITY"),
		Usage:   "Write a TeamCity service-message stream: 'stdout', 'stderr' or a file path",
	}
	TeamCityLazy = &cli.BoolFlag{
		Name:    "teamcity-lazy",
		EnvVars: prefixEnvVars("TEAMCITY_LAZY"),
		Usage:   "Buffer each test's TeamCity messages until the test finishes",
	}
	JSONPath = &cli.StringFlag{
		Name:    "json",
		EnvVars: prefixEnvVars("JSON"),
		Usage:   "Write a JSON report: 'stdout', 'stderr' or a file path",
	}
	JSONIndent = &cli.IntFlag{
		Name:    "json-indent",
		Value:   -1,
		EnvVars: prefixEnvVars("JSON_INDENT"),
		Usage:   "Indentation of the JSON report; negative writes compact output",
	}
)

var Flags = []cli.Flag{
	Tests,
	Regex,
	Index,
	Exclude,
	Strict,
	Lenient,
	Jobs,
	Params,
	HoldLock,
	CaptureStdout,
	CaptureStderr,
	List,
	ShowFailure,
	ShowSuccess,
	ShowException,
	ShowTiming,
	ShowSkipped,
	Brief,
	NoColor,
	Out,
	XMLPath,
	XMLSuite,
	TeamCityPath,
	TeamCityLazy,
	JSONPath,
	JSONIndent,
}

// CheckRequired validates flag combinations that cli cannot express.
func CheckRequired(ctx *cli.Context) error {
	if ctx.Int(Jobs.Name) < 0 {
		return fmt.Errorf("flag %s must not be negative", Jobs.Name)
	}
	if ctx.Bool(Strict.Name) && ctx.Bool(Lenient.Name) {
		return fmt.Errorf("flags %s and %s are mutually exclusive", Strict.Name, Lenient.Name)
	}
	return nil
}
