package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mfornace/lilwil/engine"
	"github.com/mfornace/lilwil/event"
)

// Wire shapes of the adapter protocol. The describe command prints one JSON
// document; the run command prints one JSON object per line: any number of
// event lines followed by exactly one result line.

type describeDoc struct {
	Compiler string         `json:"compiler"`
	Date     string         `json:"date"`
	Time     string         `json:"time"`
	Tests    []describeTest `json:"tests"`
}

type describeTest struct {
	Name       string `json:"name"`
	File       string `json:"file,omitempty"`
	Line       int    `json:"line,omitempty"`
	Comment    string `json:"comment,omitempty"`
	Parameters int    `json:"parameters"`
}

type runLine struct {
	Event  *int       `json:"event,omitempty"`
	Scopes []string   `json:"scopes,omitempty"`
	Logs   event.Logs `json:"logs,omitempty"`
	Result *runResult `json:"result,omitempty"`
}

type runResult struct {
	Value  any     `json:"value"`
	Time   float64 `json:"time"`
	Counts []int   `json:"counts"`
	Out    string  `json:"out"`
	Err    string  `json:"err"`
}

// parseDescribe decodes a describe document into the compile info and the
// catalog entries.
func parseDescribe(data []byte) (engine.CompileInfo, []catalogEntry, error) {
	var doc describeDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return engine.CompileInfo{}, nil, fmt.Errorf("decoding describe output: %w", err)
	}
	info := engine.CompileInfo{Compiler: doc.Compiler, Date: doc.Date, Time: doc.Time}

	entries := make([]catalogEntry, len(doc.Tests))
	for i, t := range doc.Tests {
		if t.Name == "" {
			return engine.CompileInfo{}, nil, fmt.Errorf("describe entry %d has no name", i)
		}
		entries[i] = catalogEntry{
			info: engine.TestInfo{
				Name:    t.Name,
				File:    t.File,
				Line:    t.Line,
				Comment: t.Comment,
			},
			parameters: t.Parameters,
		}
	}
	return info, entries, nil
}

// drainRun consumes one run invocation's output stream: event lines are
// forwarded through the fan-out as they arrive, the terminal result line
// ends the unit. Lines after the result are a protocol violation.
func drainRun(r io.Reader, fanout engine.Fanout) (engine.UnitResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var result *runResult
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg runLine
		if err := json.Unmarshal(line, &msg); err != nil {
			return engine.UnitResult{}, fmt.Errorf("decoding run output line: %w", err)
		}
		switch {
		case result != nil:
			return engine.UnitResult{}, fmt.Errorf("output after result line: %q", line)
		case msg.Result != nil:
			result = msg.Result
		case msg.Event != nil:
			fanout.Emit(event.Kind(*msg.Event), msg.Scopes, msg.Logs)
		default:
			return engine.UnitResult{}, fmt.Errorf("run output line is neither event nor result: %q", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return engine.UnitResult{}, fmt.Errorf("reading run output: %w", err)
	}
	if result == nil {
		return engine.UnitResult{}, fmt.Errorf("run output ended without a result line")
	}

	res := engine.UnitResult{
		Value:   result.Value,
		Elapsed: time.Duration(result.Time * float64(time.Second)),
		Stdout:  result.Out,
		Stderr:  result.Err,
	}
	for k, n := range result.Counts {
		if k >= event.NumKinds {
			break
		}
		res.Counts[k] = n
	}
	return res, nil
}

// encodePack renders a pack for the run command: explicit arguments as a
// JSON array, preset references as a JSON number.
func encodePack(pack engine.Pack) (string, error) {
	switch pack.Kind {
	case engine.PackPreset:
		return strconv.Itoa(pack.Preset), nil
	case engine.PackArgs:
		args := pack.Args
		if args == nil {
			args = []any{}
		}
		data, err := json.Marshal(args)
		if err != nil {
			return "", fmt.Errorf("encoding pack arguments: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("pack %s cannot be sent to an engine", pack)
	}
}
