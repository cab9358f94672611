package event

import (
	"fmt"
	"strings"
)

// DefaultIndent is the indentation used for rendered log bodies.
const DefaultIndent = "    "

// Message renders one event as a human-readable block: a header line naming
// the kind and scope path, then one line per log entry. Reserved keys are
// folded into structured lines: __file/__line become a source location on
// the header, __comment becomes a comment line, and a __lhs/__op/__rhs
// triple becomes a "required: lhs op rhs" line.
func Message(kind string, scopes []string, logs Logs, indent string) string {
	rest := make(Logs, len(logs))
	copy(rest, logs)

	var b strings.Builder
	rest = writeHeader(&b, kind, scopes, rest)
	writeBody(&b, rest, indent)
	return b.String()
}

// KindMessage renders an event header using the kind's display name.
func KindMessage(kind Kind, scopes []string, logs Logs) string {
	return Message(kind.String(), scopes, logs, DefaultIndent)
}

func writeHeader(b *strings.Builder, kind string, scopes []string, logs Logs) Logs {
	if _, ok := logs.Value("__file"); !ok {
		fmt.Fprintf(b, "%s: %q\n", kind, JoinScopes(scopes))
		return logs
	}
	path, _ := popAll(&logs, "__file")
	line, hasLine := popAll(&logs, "__line")
	if hasLine {
		fmt.Fprintf(b, "%s: %q (%v:%v)\n", kind, JoinScopes(scopes), path, line)
	} else {
		fmt.Fprintf(b, "%s: %q (%v)\n", kind, JoinScopes(scopes), path)
	}
	return logs
}

func writeBody(b *strings.Builder, logs Logs, indent string) {
	for {
		comment, ok := popFirst(&logs, "__comment")
		if !ok {
			break
		}
		fmt.Fprintf(b, "%scomment: %v\n", indent, comment)
	}

	for hasKeys(logs, "__lhs", "__op", "__rhs") {
		lhs, _ := popFirst(&logs, "__lhs")
		op, _ := popFirst(&logs, "__op")
		rhs, _ := popFirst(&logs, "__rhs")
		fmt.Fprintf(b, "%srequired: %v %v %v\n", indent, lhs, op, rhs)
	}

	for _, e := range logs {
		key := e.Key
		if key == "" {
			key = "info"
		}
		fmt.Fprintf(b, "%s%s: %v\n", indent, key, e.Value)
	}
}

// popFirst removes the first entry with the given key and returns its value.
func popFirst(logs *Logs, key string) (any, bool) {
	for i, e := range *logs {
		if e.Key == key {
			*logs = append((*logs)[:i:i], (*logs)[i+1:]...)
			return e.Value, true
		}
	}
	return nil, false
}

// popAll removes every entry with the given key and returns the last value.
func popAll(logs *Logs, key string) (any, bool) {
	var val any
	found := false
	out := (*logs)[:0:0]
	for _, e := range *logs {
		if e.Key == key {
			val = e.Value
			found = true
			continue
		}
		out = append(out, e)
	}
	*logs = out
	return val, found
}

func hasKeys(logs Logs, keys ...string) bool {
	for _, k := range keys {
		if _, ok := logs.Value(k); !ok {
			return false
		}
	}
	return true
}
