package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/mfornace/lilwil"
	enginecli "github.com/mfornace/lilwil/engine/cli"
	"github.com/mfornace/lilwil/exitcodes"
	"github.com/mfornace/lilwil/flags"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

var logLevelFlag = &cli.StringFlag{
	Name:    "log-level",
	Value:   "info",
	EnvVars: []string{flags.EnvVarPrefix + "_LOG_LEVEL"},
	Usage:   "Log level: trace, debug, info, warn, error, crit",
}

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s-%s", Version, GitCommit, GitDate)
	app.Name = "lilwil"
	app.Usage = "Test orchestrator for lilwil test binaries"
	app.ArgsUsage = "<test-binary> [binary args...]"
	app.Flags = append([]cli.Flag{logLevelFlag}, flags.Flags...)
	app.Action = run
	app.ExitErrHandler = func(c *cli.Context, err error) {
		if err == nil {
			return
		}
		var exitErr cli.ExitCoder
		switch {
		case errors.As(err, &exitErr):
			cli.HandleExitCoder(exitErr)
		case lilwil.IsInterruptedError(err):
			cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.Interrupted))
		case lilwil.IsTestFailureError(err):
			cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.TestFailure))
		default:
			cli.HandleExitCoder(cli.Exit(err.Error(), exitcodes.RuntimeErr))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = app.RunContext(ctx, os.Args)
}

func run(ctx *cli.Context) error {
	logger := setupLogger(ctx)

	if ctx.NArg() < 1 {
		return lilwil.NewRuntimeError(errors.New("a test binary argument is required"))
	}

	cfg, err := lilwil.NewConfig(ctx, logger)
	if err != nil {
		return lilwil.NewRuntimeError(err)
	}

	eng, err := enginecli.New(ctx.Context, enginecli.Config{
		Binary: ctx.Args().First(),
		Args:   ctx.Args().Tail(),
		Log:    logger.New("component", "engine"),
	})
	if err != nil {
		return lilwil.NewRuntimeError(err)
	}

	svc, err := lilwil.New(cfg, eng)
	if err != nil {
		return lilwil.NewRuntimeError(err)
	}
	return svc.Run(ctx.Context)
}

func setupLogger(ctx *cli.Context) log.Logger {
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, parseLevel(ctx.String(logLevelFlag.Name)), !ctx.Bool(flags.NoColor.Name))
	logger := log.NewLogger(handler)
	log.SetDefault(logger)
	return logger
}

func parseLevel(name string) slog.Level {
	switch name {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	case "crit":
		return log.LevelCrit
	default:
		return log.LevelInfo
	}
}
