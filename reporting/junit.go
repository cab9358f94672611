package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mfornace/lilwil/engine"
	"github.com/mfornace/lilwil/event"
)

// JUnit-style XML document shapes. Field order matches the emitted element
// order: properties, test cases, captured streams.
type xmlDocument struct {
	XMLName xml.Name    `xml:"testsuites"`
	Suites  []*xmlSuite `xml:"testsuite"`
}

type xmlSuite struct {
	Name      string        `xml:"name,attr"`
	Package   string        `xml:"package,attr"`
	Hostname  string        `xml:"hostname,attr"`
	Timestamp string        `xml:"timestamp,attr"`
	ID        string        `xml:"id,attr"`
	Tests     int           `xml:"tests,attr"`
	Failures  int           `xml:"failures,attr"`
	Errors    int           `xml:"errors,attr"`
	Time      string        `xml:"time,attr"`
	Props     xmlProperties `xml:"properties"`
	Cases     []*xmlCase    `xml:"testcase"`
	SystemOut string        `xml:"system-out"`
	SystemErr string        `xml:"system-err"`
}

type xmlProperties struct {
	Properties []xmlProperty `xml:"property"`
}

type xmlProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlCase struct {
	Name      string    `xml:"name,attr"`
	ClassName string    `xml:"classname,attr"`
	Time      string    `xml:"time,attr"`
	Failure   *xmlFault `xml:"failure,omitempty"`
	Error     *xmlFault `xml:"error,omitempty"`
}

type xmlFault struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
}

// XMLSink writes a JUnit-style testsuite to a file. An existing report at
// the same path is merged: other suites are preserved, a suite with the
// same name is replaced, and suite ids are renumbered on write.
type XMLSink struct {
	path  string
	info  engine.CompileInfo
	suite string

	doc     *xmlDocument
	current *xmlSuite
	cases   []*junitTest
}

var _ Sink = (*XMLSink)(nil)

// NewXMLSink builds an XML sink writing to path under the given suite name.
func NewXMLSink(path string, info engine.CompileInfo, suite string) *XMLSink {
	return &XMLSink{path: path, info: info, suite: suite}
}

// Enter loads any existing report and registers this run's suite in it.
func (s *XMLSink) Enter() error {
	s.doc = &xmlDocument{}
	if data, err := os.ReadFile(s.path); err == nil {
		// A malformed or non-XML file is overwritten rather than merged.
		var existing xmlDocument
		if xml.Unmarshal(data, &existing) == nil {
			s.doc = &existing
		}
	}

	kept := s.doc.Suites[:0]
	for _, suite := range s.doc.Suites {
		if suite.Name != s.suite {
			kept = append(kept, suite)
		}
	}
	s.doc.Suites = kept

	host, _ := os.Hostname()
	s.current = &xmlSuite{
		Name:      s.suite,
		Hostname:  host,
		Timestamp: time.Now().Format("2006-01-02T15:04:05"),
		Props: xmlProperties{Properties: []xmlProperty{
			{Name: "compiler", Value: s.info.Compiler},
			{Name: "compile-date", Value: s.info.Date},
			{Name: "compile-time", Value: s.info.Time},
		}},
	}
	s.doc.Suites = append(s.doc.Suites, s.current)
	return nil
}

func (s *XMLSink) Test(index int, pack engine.Pack, info engine.TestInfo) TestHandle {
	h := &junitTest{
		c: &xmlCase{Name: info.Name, ClassName: info.Name},
	}
	s.cases = append(s.cases, h)
	return h
}

// Finalize records the run-level counters and attaches the accumulated
// test cases and captured streams to the suite.
func (s *XMLSink) Finalize(sum Summary, stdout, stderr string) {
	s.current.Failures = sum.Counts[event.Failure]
	s.current.Errors = sum.Counts[event.Exception]
	s.current.Time = fmt.Sprintf("%f", sum.Elapsed.Seconds())
	for _, h := range s.cases {
		s.current.Cases = append(s.current.Cases, h.c)
	}
	s.current.SystemOut = stdout
	s.current.SystemErr = stderr
}

// Close renumbers suite ids and writes the document.
func (s *XMLSink) Close() error {
	s.current.Tests = len(s.cases)
	for i, suite := range s.doc.Suites {
		suite.ID = strconv.Itoa(i)
	}

	data, err := xml.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding XML report: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing XML report: %w", err)
	}
	return nil
}

// junitTest accumulates one test case. The first failure event opens a
// <failure> element and the first exception a <error> element; every
// delivered event's readable message is appended to that element's message.
type junitTest struct {
	c         *xmlCase
	fault     *xmlFault
	message   string
	traceback event.Logs
}

func (h *junitTest) Event(kind event.Kind, scopes []string, logs event.Logs) {
	switch kind {
	case event.Traceback:
		h.traceback = append(h.traceback, logs...)
		return
	case event.Exception:
		h.traceback = append(h.traceback, logs...)
		h.message += event.KindMessage(kind, scopes, h.traceback)
		h.traceback = nil
	default:
		h.message += event.KindMessage(kind, scopes, logs)
	}

	if h.fault == nil {
		switch kind {
		case event.Failure:
			h.fault = &xmlFault{Type: "2"}
			h.c.Failure = h.fault
		case event.Exception:
			h.fault = &xmlFault{Type: "1"}
			h.c.Error = h.fault
		}
	}
	if h.fault != nil {
		h.fault.Message = h.message
	}
}

func (h *junitTest) Finalize(res engine.UnitResult) {
	h.c.Time = fmt.Sprintf("%f", res.Elapsed.Seconds())
}
