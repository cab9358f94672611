package selector

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mfornace/lilwil/engine"
)

// LoadParams reads a parameter-pack specification from a YAML or JSON
// document. Two shapes are accepted:
//
//	test/name:        # mapping: per-test pack lists
//	  - 2             #   preset reference
//	  - ~             #   all preregistered packs
//	  - [1, 2.5, x]   #   explicit arguments
//
//	[[1, 2], [3, 4]]  # sequence: pack list applied to every selected test
//
// Tests absent from a mapping fall back to all preregistered packs.
func LoadParams(data []byte) (Params, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Params{}, fmt.Errorf("parsing parameters: %w", err)
	}

	params := DefaultParams()
	switch v := doc.(type) {
	case nil:
		return params, nil
	case map[string]any:
		params.ByName = make(map[string][]engine.Pack, len(v))
		for name, raw := range v {
			packs, err := parsePackList(raw)
			if err != nil {
				return Params{}, fmt.Errorf("parameters for test %q: %w", name, err)
			}
			params.ByName[name] = packs
		}
		return params, nil
	case []any:
		packs, err := parsePackList(v)
		if err != nil {
			return Params{}, fmt.Errorf("parameters: %w", err)
		}
		params.Default = packs
		return params, nil
	default:
		return Params{}, fmt.Errorf("parameters must be a mapping or a sequence, got %T", doc)
	}
}

// LoadParamsFile loads a parameter specification from a file path, or from
// the string itself when it is not a path to an existing file.
func LoadParamsFile(pathOrDoc string) (Params, error) {
	if pathOrDoc == "" {
		return DefaultParams(), nil
	}
	if _, err := os.Stat(pathOrDoc); err == nil {
		data, err := os.ReadFile(pathOrDoc)
		if err != nil {
			return Params{}, fmt.Errorf("reading parameters file: %w", err)
		}
		return LoadParams(data)
	}
	return LoadParams([]byte(pathOrDoc))
}

func parsePackList(raw any) ([]engine.Pack, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("pack list must be a sequence, got %T", raw)
	}
	packs := make([]engine.Pack, 0, len(list))
	for _, item := range list {
		pack, err := parsePack(item)
		if err != nil {
			return nil, err
		}
		packs = append(packs, pack)
	}
	return packs, nil
}

func parsePack(raw any) (engine.Pack, error) {
	switch v := raw.(type) {
	case nil:
		return engine.AllPresets(), nil
	case int:
		return engine.Preset(v), nil
	case []any:
		return engine.Arguments(v...), nil
	default:
		return engine.Pack{}, fmt.Errorf("pack must be a preset index, null, or an argument sequence, got %T", raw)
	}
}
