package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mfornace/lilwil/engine"
	"github.com/mfornace/lilwil/event"
)

// JSONSink accumulates the whole run into a single document and writes it
// when the sink is closed. Nothing is written incrementally, so partial
// output never appears if the process dies mid-run.
type JSONSink struct {
	w      io.Writer
	indent int
	doc    jsonDocument
}

var _ Sink = (*JSONSink)(nil)

type jsonDocument struct {
	CompileInfo jsonCompileInfo `json:"compile-info"`
	Events      []string        `json:"events"`
	Tests       []*jsonTest     `json:"tests"`
	Summary     jsonSummary     `json:"summary"`
}

type jsonCompileInfo struct {
	Compiler string `json:"compiler"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

type jsonTest struct {
	Name   string      `json:"name"`
	Index  int         `json:"index"`
	Args   any         `json:"args"`
	Events []jsonEvent `json:"events"`
	Value  any         `json:"value"`
	Time   float64     `json:"time"`
	Counts []int       `json:"counts"`
	Out    string      `json:"out,omitempty"`
	Err    string      `json:"err,omitempty"`
}

type jsonEvent struct {
	Event  string     `json:"event"`
	Scopes []string   `json:"scopes"`
	Logs   event.Logs `json:"logs"`
}

type jsonSummary struct {
	Tests  int     `json:"n_tests"`
	Time   float64 `json:"time"`
	Counts []int   `json:"counts"`
	Out    string  `json:"out,omitempty"`
	Err    string  `json:"err,omitempty"`
}

// NewJSONSink builds a JSON sink writing one document to w at close.
// indent < 0 writes compact output.
func NewJSONSink(w io.Writer, info engine.CompileInfo, indent int) *JSONSink {
	names := make([]string, event.NumKinds)
	for k := event.Kind(0); k < event.NumKinds; k++ {
		names[k] = k.String()
	}
	return &JSONSink{
		w:      w,
		indent: indent,
		doc: jsonDocument{
			CompileInfo: jsonCompileInfo{Compiler: info.Compiler, Date: info.Date, Time: info.Time},
			Events:      names,
			Tests:       []*jsonTest{},
		},
	}
}

func (s *JSONSink) Enter() error { return nil }

func (s *JSONSink) Test(index int, pack engine.Pack, info engine.TestInfo) TestHandle {
	rec := &jsonTest{
		Name:   info.Name,
		Index:  index,
		Args:   packValue(pack),
		Events: []jsonEvent{},
	}
	return &jsonTestHandle{sink: s, rec: rec}
}

func (s *JSONSink) Finalize(sum Summary, stdout, stderr string) {
	s.doc.Summary = jsonSummary{
		Tests:  sum.Units,
		Time:   sum.Elapsed.Seconds(),
		Counts: sum.Counts[:],
		Out:    stdout,
		Err:    stderr,
	}
}

func (s *JSONSink) Close() error {
	enc := json.NewEncoder(s.w)
	if s.indent >= 0 {
		enc.SetIndent("", strings.Repeat(" ", s.indent))
	}
	if err := enc.Encode(s.doc); err != nil {
		return fmt.Errorf("write json report: %w", err)
	}
	return nil
}

// packValue renders a parameter pack as a JSON-friendly value.
func packValue(pack engine.Pack) any {
	if pack.Kind == engine.PackArgs {
		if len(pack.Args) == 0 {
			return nil
		}
		return pack.Args
	}
	return pack.String()
}

type jsonTestHandle struct {
	sink *JSONSink
	rec  *jsonTest
}

func (h *jsonTestHandle) Event(kind event.Kind, scopes []string, logs event.Logs) {
	h.rec.Events = append(h.rec.Events, jsonEvent{
		Event:  kind.String(),
		Scopes: scopes,
		Logs:   logs,
	})
}

func (h *jsonTestHandle) Finalize(res engine.UnitResult) {
	h.rec.Value = res.Value
	h.rec.Time = res.Elapsed.Seconds()
	h.rec.Counts = res.Counts[:]
	h.rec.Out = res.Stdout
	h.rec.Err = res.Stderr
	h.sink.doc.Tests = append(h.sink.doc.Tests, h.rec)
}
