package model

import (
	"sort"
	"sync"

	"github.com/YuminosukeSato/grt-lin-reg-tool/pkg/errors"
)

// Factory returns an untrained regressifier with default hyperparameters.
type Factory func() Regressifier

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// RegisterRegressifier makes a regressifier constructible by name. Packages
// call it from init so that saved pipelines can be rebuilt.
func RegisterRegressifier(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if f == nil {
		panic("model: RegisterRegressifier factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("model: RegisterRegressifier called twice for " + name)
	}
	registry[name] = f
}

// NewRegressifier builds a registered regressifier.
func NewRegressifier(name string) (Regressifier, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NewValueError("NewRegressifier", "unknown regressifier type "+name)
	}
	return f(), nil
}

// FromWeights builds the regressifier named by w.ModelType and imports w.
func FromWeights(w *ModelWeights) (Regressifier, error) {
	if w == nil {
		return nil, errors.NewValueError("FromWeights", "weights are nil")
	}
	r, err := NewRegressifier(w.ModelType)
	if err != nil {
		return nil, err
	}
	if err := r.ImportWeights(w); err != nil {
		return nil, err
	}
	return r, nil
}

// Registered lists the registered names in sorted order.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
