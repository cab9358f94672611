package engine

import (
	"fmt"
	"strings"
)

// PackKind discriminates the three forms a parameter pack can take.
type PackKind int

const (
	// PackArgs is an explicit ordered sequence of argument values.
	PackArgs PackKind = iota
	// PackPreset references one of the engine's preregistered argument
	// packs for a test by index.
	PackPreset
	// PackAll is the sentinel meaning every preregistered pack. The
	// selector resolves it away; engines never see it.
	PackAll
)

// Pack is one parameter pack: explicit arguments, a preset reference, or
// the all-presets sentinel. Packs are immutable values.
type Pack struct {
	Kind   PackKind
	Preset int
	Args   []any
}

// Arguments builds an explicit pack. Arguments(nil) is the empty pack.
func Arguments(args ...any) Pack {
	return Pack{Kind: PackArgs, Args: args}
}

// Preset builds a preset-reference pack.
func Preset(i int) Pack {
	return Pack{Kind: PackPreset, Preset: i}
}

// AllPresets returns the all-presets sentinel.
func AllPresets() Pack {
	return Pack{Kind: PackAll}
}

// Empty reports whether the pack is an explicit pack with no arguments.
func (p Pack) Empty() bool {
	return p.Kind == PackArgs && len(p.Args) == 0
}

// String renders the pack for display: "preset #2" for references,
// "[a b c]" for explicit arguments, matching the console reporter format.
func (p Pack) String() string {
	switch p.Kind {
	case PackPreset:
		return fmt.Sprintf("preset #%d", p.Preset)
	case PackAll:
		return "all presets"
	default:
		if len(p.Args) == 0 {
			return "[]"
		}
		parts := make([]string, len(p.Args))
		for i, a := range p.Args {
			parts[i] = fmt.Sprint(a)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
}
