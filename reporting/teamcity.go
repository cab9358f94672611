package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mfornace/lilwil/engine"
	"github.com/mfornace/lilwil/event"
)

// TeamCitySink streams TeamCity-style service messages for a run. It is
// conventionally registered with the failures-only mask; success and timing
// events have no service-message representation and are dropped.
//
// In lazy mode every per-test message is buffered and written in one block
// at the test's finalize, so testStarted is announced only once the test's
// outcome is fully known. That ordering inversion keeps interleaved output
// from concurrent runs coherent for stream consumers.
type TeamCitySink struct {
	w     io.Writer
	info  engine.CompileInfo
	suite string
	lazy  bool
}

var _ Sink = (*TeamCitySink)(nil)

// NewTeamCitySink builds a TeamCity sink writing service messages to w.
func NewTeamCitySink(w io.Writer, info engine.CompileInfo, suite string, lazy bool) *TeamCitySink {
	if suite == "" {
		suite = "default-suite"
	}
	return &TeamCitySink{w: w, info: info, suite: suite, lazy: lazy}
}

func (s *TeamCitySink) Enter() error {
	s.write("compile-info",
		"name", s.info.Compiler, "date", s.info.Date, "time", s.info.Time)
	s.write("testSuiteStarted", "name", s.suite)
	return nil
}

func (s *TeamCitySink) Test(index int, pack engine.Pack, info engine.TestInfo) TestHandle {
	h := &teamcityTest{sink: s, name: info.Name}
	if !s.lazy {
		s.write("testStarted", "name", h.name)
	}
	return h
}

func (s *TeamCitySink) Finalize(sum Summary, stdout, stderr string) {}

func (s *TeamCitySink) Close() error {
	s.write("testSuiteFinished", "name", s.suite)
	return nil
}

// write emits one service message with the given attribute pairs.
func (s *TeamCitySink) write(name string, attrs ...string) {
	fmt.Fprint(s.w, formatMessage(name, attrs...))
}

func formatMessage(name string, attrs ...string) string {
	var b strings.Builder
	b.WriteString("##teamcity[")
	b.WriteString(name)
	for i := 0; i+1 < len(attrs); i += 2 {
		b.WriteString(" ")
		b.WriteString(attrs[i])
		b.WriteString("='")
		b.WriteString(escapeMessage(attrs[i+1]))
		b.WriteString("'")
	}
	b.WriteString("]\n")
	return b.String()
}

// escapeMessage applies TeamCity service-message escaping.
func escapeMessage(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '|':
			b.WriteString("||")
		case '\'':
			b.WriteString("|'")
		case '\n':
			b.WriteString("|n")
		case '\r':
			b.WriteString("|r")
		case '[':
			b.WriteString("|[")
		case ']':
			b.WriteString("|]")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// teamcityTest emits (or, when lazy, buffers) one test's messages.
type teamcityTest struct {
	sink      *TeamCitySink
	name      string
	buffered  []string
	traceback event.Logs
}

func (h *teamcityTest) emit(name string, attrs ...string) {
	if h.sink.lazy {
		h.buffered = append(h.buffered, formatMessage(name, attrs...))
		return
	}
	h.sink.write(name, attrs...)
}

func (h *teamcityTest) Event(kind event.Kind, scopes []string, logs event.Logs) {
	switch kind {
	case event.Traceback:
		h.traceback = append(h.traceback, logs...)
	case event.Failure:
		h.emit("testFailed", "name", h.name, "message", event.KindMessage(kind, scopes, logs))
	case event.Exception:
		h.traceback = append(h.traceback, logs...)
		h.emit("testFailed", "name", h.name, "message", event.KindMessage(kind, scopes, h.traceback))
		h.traceback = nil
	case event.Skipped:
		h.emit("testIgnored", "name", h.name, "message", event.KindMessage(kind, scopes, logs))
	}
}

func (h *teamcityTest) Finalize(res engine.UnitResult) {
	if h.sink.lazy {
		h.buffered = append([]string{formatMessage("testStarted", "name", h.name)}, h.buffered...)
	}

	h.emit("counts",
		"errors", strconv.Itoa(res.Counts[event.Failure]),
		"exceptions", strconv.Itoa(res.Counts[event.Exception]))
	if res.Stdout != "" {
		h.emit("testStdOut", "name", h.name, "out", res.Stdout)
	}
	if res.Stderr != "" {
		h.emit("testStdErr", "name", h.name, "out", res.Stderr)
	}
	h.emit("testFinished", "name", h.name,
		"duration", strconv.FormatInt(res.Elapsed.Milliseconds(), 10))

	if h.sink.lazy {
		for _, msg := range h.buffered {
			fmt.Fprint(h.sink.w, msg)
		}
		h.buffered = nil
	}
}
