package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mfornace/lilwil/engine"
	"github.com/mfornace/lilwil/event"
)

// ConsoleConfig controls console rendering.
type ConsoleConfig struct {
	Color  bool
	Brief  bool   // abbreviate output: no footers between tests
	Timing bool   // show per-test and total durations
	Indent string // log body indentation; defaults to four spaces
}

// ConsoleSink renders a human-readable stream of test activity. It shows
// the five maskable kinds; traceback events are buffered per test and
// surface inside the next exception message.
type ConsoleSink struct {
	w    io.Writer
	cfg  ConsoleConfig
	info engine.CompileInfo

	kinds        [event.NumMasked]string // painted kind names
	footer       string
	streamFooter string
}

var _ Sink = (*ConsoleSink)(nil)

var consoleKindColors = [event.NumMasked]text.Colors{
	{text.FgRed},
	{text.FgGreen},
	{text.FgRed},
	{text.FgYellow},
	{text.FgHiBlack},
}

// NewConsoleSink builds a console sink writing to w.
func NewConsoleSink(w io.Writer, info engine.CompileInfo, cfg ConsoleConfig) *ConsoleSink {
	if cfg.Indent == "" {
		cfg.Indent = event.DefaultIndent
	}
	s := &ConsoleSink{w: w, cfg: cfg, info: info}
	for k := range s.kinds {
		s.kinds[k] = s.paint(consoleKindColors[k], event.Kind(k).String())
	}
	if !cfg.Brief {
		s.footer = strings.Repeat("_", 80) + "\n"
		s.streamFooter = strings.Repeat("_", 22) + "\n"
	}
	return s
}

func (s *ConsoleSink) paint(colors text.Colors, str string) string {
	if !s.cfg.Color {
		return str
	}
	return colors.Sprint(str)
}

// Enter writes the suite header: build identity, test time, and process ID.
func (s *ConsoleSink) Enter() error {
	if s.info.Compiler != "" {
		fmt.Fprintf(s.w, "Compiler: %s\n", s.info.Compiler)
	}
	if s.info.Date != "" && s.info.Time != "" {
		fmt.Fprintf(s.w, "Compile time: %s, %s\n", s.info.Date, s.info.Time)
	}
	fmt.Fprintf(s.w, "Testing time: %s\n", time.Now().Format("Jan 02 2006, 15:04:05"))
	fmt.Fprintf(s.w, "Process ID: %d\n", os.Getpid())
	return nil
}

func (s *ConsoleSink) Test(index int, pack engine.Pack, info engine.TestInfo) TestHandle {
	h := &consoleTest{sink: s}

	name := fmt.Sprintf("%q", info.Name)
	var desc string
	if info.File != "" {
		desc = fmt.Sprintf("%s (%s:%d, args: %s)", name, info.File, info.Line, pack)
		if info.Comment != "" {
			desc += fmt.Sprintf(" %q", info.Comment)
		}
	} else {
		desc = fmt.Sprintf("%s (args: %s)", name, pack)
	}

	title := s.paint(text.Colors{text.FgBlue, text.Bold}, fmt.Sprintf("Test %d ", index))
	fmt.Fprintf(s.w, "%s%s%s\n", s.footer, title, desc)
	return h
}

// Finalize writes the run totals for the five displayed kinds, then the
// total duration when timing is on.
func (s *ConsoleSink) Finalize(sum Summary, stdout, stderr string) {
	plural := "s"
	if sum.Units == 1 {
		plural = ""
	}
	fmt.Fprintf(s.w, "%sTotal results for %d test%s:\n", s.footer, sum.Units, plural)

	width := 0
	for _, k := range s.kinds {
		if len(k) > width {
			width = len(k)
		}
	}
	for k, name := range s.kinds {
		fmt.Fprintf(s.w, "%s%-*s %d\n", s.cfg.Indent, width+1, name+":", sum.Counts[k])
	}

	if s.cfg.Timing {
		if s.footer != "" {
			fmt.Fprint(s.w, "\n")
		}
		fmt.Fprintf(s.w, "%s: %.7e\n", s.paint(text.Colors{text.FgYellow}, "Total duration"), sum.Elapsed.Seconds())
	}
}

func (s *ConsoleSink) Close() error {
	fmt.Fprint(s.w, s.footer)
	return nil
}

// consoleTest renders one unit's events as they arrive.
type consoleTest struct {
	sink      *ConsoleSink
	traceback event.Logs
}

func (h *consoleTest) Event(kind event.Kind, scopes []string, logs event.Logs) {
	s := h.sink
	switch kind {
	case event.Traceback:
		h.traceback = append(h.traceback, logs...)
	case event.Exception:
		h.traceback = append(h.traceback, logs...)
		fmt.Fprintf(s.w, "\n%s", event.Message(s.kinds[kind], scopes, h.traceback, s.cfg.Indent))
		h.traceback = nil
	default:
		name := kind.String()
		if int(kind) < event.NumMasked {
			name = s.kinds[kind]
		}
		fmt.Fprintf(s.w, "\n%s", event.Message(name, scopes, logs, s.cfg.Indent))
	}
}

func (h *consoleTest) Finalize(res engine.UnitResult) {
	s := h.sink

	streams := []struct{ label, body string }{
		{s.paint(text.Colors{text.FgMagenta}, "Contents of stdout"), res.Stdout},
		{s.paint(text.Colors{text.FgMagenta}, "Contents of stderr"), res.Stderr},
	}
	for _, stream := range streams {
		if stream.body != "" {
			fmt.Fprintf(s.w, "%s:\n%s%s%s\n", stream.label, s.streamFooter, stream.body, s.streamFooter)
		}
	}

	gap := ""
	if s.footer != "" {
		gap = "\n"
	}
	if res.Value != nil {
		fmt.Fprintf(s.w, "%sReturn value: %v\n", gap, res.Value)
	}

	if res.Counts.Any() {
		var parts []string
		for k, name := range s.kinds {
			if res.Counts[k] != 0 {
				parts = append(parts, fmt.Sprintf("%s: %d", name, res.Counts[k]))
			}
		}
		fmt.Fprintf(s.w, "%sResults: {%s}\n", gap, strings.Join(parts, ", "))
	}

	if s.cfg.Timing {
		fmt.Fprintf(s.w, "%s: %.7e\n", s.paint(text.Colors{text.FgYellow}, "Test duration"), res.Elapsed.Seconds())
	}
}
