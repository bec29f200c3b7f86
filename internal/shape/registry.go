package shape

import (
	"fmt"
	"sort"
)

// #region registry
// Constructor builds a model from shared options.
type Constructor func(cfg Config) (*Model, error)

var registry = map[string]Constructor{
	"SG":       NewSingleGauss,
	"noCorr":   NewSingleGaussUncorrelated,
	"DG":       NewDoubleGaussFit,
	"toyDG":    NewDoubleGaussToy,
	"SupG":     NewSuperGaussFit,
	"toySupG":  NewSuperGaussToy,
	"TG":       NewTripleGaussFit,
	"toyTG":    NewTripleGaussToy,
	"SupDG":    NewSuperDoubleGaussFit,
	"toySupDG": NewSuperDoubleGaussToy,
}

// New builds the model registered under name.
func New(name string, cfg Config) (*Model, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownModel)
	}
	return ctor(cfg)
}

// Names returns all registered model names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// #endregion registry
