// Package cli adapts an external test binary into an engine. The binary
// speaks a line-oriented JSON protocol over two subcommands: describe, which
// prints the catalog and build identity once, and run, which executes one
// unit and streams its events followed by a terminal result object.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/mfornace/lilwil/engine"
)

// Config holds configuration for creating a subprocess engine.
type Config struct {
	// Binary is the test executable. It is resolved against PATH.
	Binary string
	// Args are prepended to every invocation, before the subcommand.
	Args []string
	// Dir is the working directory for invocations; empty inherits ours.
	Dir string
	Log log.Logger
}

type catalogEntry struct {
	info       engine.TestInfo
	parameters int
}

// Engine runs tests by invoking an external binary once per unit. The
// catalog is read once at construction and stable for the engine's
// lifetime.
type Engine struct {
	cfg     Config
	binary  string
	compile engine.CompileInfo
	catalog []catalogEntry

	lock sync.Mutex // engine-global execution lock for HoldLock units
}

var _ engine.Engine = (*Engine)(nil)

// New resolves the binary and loads its catalog via the describe command.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Binary == "" {
		return nil, fmt.Errorf("subprocess engine requires a binary")
	}
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}

	binary, err := exec.LookPath(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("resolving test binary %q: %w", cfg.Binary, err)
	}

	e := &Engine{cfg: cfg, binary: binary}
	if err := e.describe(ctx); err != nil {
		return nil, err
	}
	cfg.Log.Debug("Loaded test catalog", "binary", binary, "tests", len(e.catalog))
	return e, nil
}

func (e *Engine) describe(ctx context.Context) error {
	cmd := e.command(ctx, "describe")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("describe command failed: %w%s", err, stderrSuffix(&stderr))
	}

	compile, catalog, err := parseDescribe(stdout.Bytes())
	if err != nil {
		return err
	}
	e.compile = compile
	e.catalog = catalog
	return nil
}

func (e *Engine) TestNames() []string {
	names := make([]string, len(e.catalog))
	for i, entry := range e.catalog {
		names[i] = entry.info.Name
	}
	return names
}

func (e *Engine) NumParameters(index int) int {
	return e.catalog[index].parameters
}

func (e *Engine) TestInfo(index int) engine.TestInfo {
	return e.catalog[index].info
}

func (e *Engine) CompileInfo() engine.CompileInfo {
	return e.compile
}

// RunUnit invokes the run command for one unit, forwarding streamed events
// through the fan-out as the subprocess emits them.
func (e *Engine) RunUnit(ctx context.Context, req engine.UnitRequest) (engine.UnitResult, error) {
	if req.Index < 0 || req.Index >= len(e.catalog) {
		return engine.UnitResult{}, fmt.Errorf("test index %d out of range", req.Index)
	}
	pack, err := encodePack(req.Pack)
	if err != nil {
		return engine.UnitResult{}, err
	}

	args := []string{"run", "--index", strconv.Itoa(req.Index), "--pack", pack}
	if req.CaptureStdout {
		args = append(args, "--capture-stdout")
	}
	if req.CaptureStderr {
		args = append(args, "--capture-stderr")
	}

	if req.HoldLock {
		e.lock.Lock()
		defer e.lock.Unlock()
	}

	cmd := e.command(ctx, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return engine.UnitResult{}, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return engine.UnitResult{}, fmt.Errorf("starting test binary: %w", err)
	}

	res, drainErr := drainRun(stdout, req.Fanout)
	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return engine.UnitResult{}, ctxErr
	}
	if waitErr != nil {
		return engine.UnitResult{}, fmt.Errorf("test binary failed: %w%s", waitErr, stderrSuffix(&stderr))
	}
	if drainErr != nil {
		return engine.UnitResult{}, drainErr
	}
	return res, nil
}

func (e *Engine) command(ctx context.Context, args ...string) *exec.Cmd {
	full := append(append([]string{}, e.cfg.Args...), args...)
	cmd := exec.CommandContext(ctx, e.binary, full...)
	cmd.Dir = e.cfg.Dir
	return cmd
}

func stderrSuffix(buf *bytes.Buffer) string {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return ""
	}
	return "\nstderr:\n" + s
}
