package selector

import (
	"github.com/mfornace/lilwil/engine"
)

// Unit is one (test index, resolved parameter pack) pair scheduled to run
// once. Units are immutable once produced.
type Unit struct {
	Index int
	Pack  engine.Pack
}

// Params is a parameter-pack specification: per-test pack lists, with a
// default list for tests not named. A nil Default skips tests absent from
// ByName; DefaultParams gives every test the all-presets sentinel.
type Params struct {
	ByName  map[string][]engine.Pack
	Default []engine.Pack
}

// DefaultParams runs every selected test against all of its preregistered
// argument packs.
func DefaultParams() Params {
	return Params{Default: []engine.Pack{engine.AllPresets()}}
}

// Expand turns each selected index into zero or more execution units:
//   - the all-presets sentinel is resolved into the test's preregistered
//     packs in ascending order, appended after the remaining packs;
//   - an empty pack list yields one unit with an empty argument pack;
//   - preset references at or beyond the test's pack count are silently
//     dropped (stale preset indices are tolerated across rebuilds; note
//     that negative references count as in-range and are kept).
//
// Pack order is preserved within a test and catalog order across tests.
func Expand(eng engine.Engine, indices []int, params Params) []Unit {
	names := eng.TestNames()
	var units []Unit

	for _, i := range indices {
		packs, ok := params.ByName[names[i]]
		if !ok {
			if params.Default == nil {
				continue
			}
			packs = params.Default
		}

		n := eng.NumParameters(i)
		resolved := resolvePacks(packs, n)

		if len(resolved) == 0 {
			resolved = []engine.Pack{engine.Arguments()}
		}

		for _, p := range resolved {
			if p.Kind == engine.PackPreset && p.Preset >= n {
				continue
			}
			units = append(units, Unit{Index: i, Pack: p})
		}
	}
	return units
}

// resolvePacks replaces every all-presets sentinel with the n preregistered
// preset references, appended in ascending order after the remaining packs.
func resolvePacks(packs []engine.Pack, n int) []engine.Pack {
	out := make([]engine.Pack, 0, len(packs))
	expand := 0
	for _, p := range packs {
		if p.Kind == engine.PackAll {
			expand++
			continue
		}
		out = append(out, p)
	}
	for ; expand > 0; expand-- {
		for i := 0; i < n; i++ {
			out = append(out, engine.Preset(i))
		}
	}
	return out
}
