// Package selector resolves a requested test selection against the engine's
// catalog into a sorted set of test indices, and expands each selected test
// into the execution units the dispatcher will run.
package selector

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Spec is one selection request. The zero value selects every test.
type Spec struct {
	// Names are explicit test names: an exact catalog entry or, outside
	// strict mode, a substring resolved to the first matching entry.
	Names []string
	// Regex includes any test whose name starts with a match of the
	// pattern (anchored-prefix semantics).
	Regex string
	// Indices are explicit catalog positions, validated against the
	// catalog length.
	Indices []int
	// Exclude inverts the resolved set against the full catalog range.
	Exclude bool
	// Strict requires Names to match catalog entries exactly.
	Strict bool
	// Lenient silently skips unresolvable Names instead of failing.
	Lenient bool
}

// SelectionError reports an unresolvable selection: an unknown test name or
// an out-of-range explicit index. Selection errors are fatal and abort the
// run before any unit executes.
type SelectionError struct {
	Name  string // unresolved test name, if any
	Index int    // offending index when Name is empty
	Size  int    // catalog size
}

func (e *SelectionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("selection: test %q is not in the test suite", e.Name)
	}
	return fmt.Sprintf("selection: index %d is out of range for %d tests", e.Index, e.Size)
}

// Indices resolves the spec against the full ordered test-name list into a
// sorted list of unique indices.
func Indices(names []string, spec Spec) ([]int, error) {
	selected := make(map[int]struct{})

	for _, want := range spec.Names {
		idx, ok := resolveName(names, want, spec.Strict)
		if !ok {
			if spec.Lenient {
				continue
			}
			return nil, &SelectionError{Name: want, Size: len(names)}
		}
		selected[idx] = struct{}{}
	}

	if spec.Regex != "" {
		pattern, err := regexp.Compile(`\A(?:` + spec.Regex + `)`)
		if err != nil {
			return nil, fmt.Errorf("selection: invalid regex %q: %w", spec.Regex, err)
		}
		for i, name := range names {
			if pattern.MatchString(name) {
				selected[i] = struct{}{}
			}
		}
	}

	for _, i := range spec.Indices {
		if i < 0 || i >= len(names) {
			return nil, &SelectionError{Index: i, Size: len(names)}
		}
		selected[i] = struct{}{}
	}

	// With no names, regex, or indices given, the default is every test.
	if len(spec.Names) == 0 && spec.Regex == "" && len(spec.Indices) == 0 {
		for i := range names {
			selected[i] = struct{}{}
		}
	}

	if spec.Exclude {
		inverted := make(map[int]struct{}, len(names))
		for i := range names {
			if _, ok := selected[i]; !ok {
				inverted[i] = struct{}{}
			}
		}
		selected = inverted
	}

	out := make([]int, 0, len(selected))
	for i := range selected {
		out = append(out, i)
	}
	sort.Ints(out)
	return out, nil
}

// resolveName finds the catalog index for one requested name: an exact
// entry, or the first substring match when not in strict mode.
func resolveName(names []string, want string, strict bool) (int, bool) {
	for i, name := range names {
		if name == want {
			return i, true
		}
	}
	if strict {
		return 0, false
	}
	for i, name := range names {
		if strings.Contains(name, want) {
			return i, true
		}
	}
	return 0, false
}
