// Package flavor is the boundary between network implementations and their
// hosts. A flavor is a named network family exposing the same six
// operations: load a topology, configure it, serialize and deserialize its
// weights, train it and predict with it.
package flavor

import (
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/openfluke/brain/nn"
)

// Trainable is the contract every flavor implements. Load must be called
// before any other operation.
type Trainable interface {
	Load(topology io.Reader) error
	Configure(settings io.Reader) error
	Serialize(w io.Writer) error
	Deserialize(r io.Reader) error
	Train(d nn.Data) (*nn.TrainingResult, error)
	Predict(signal []float64) ([]float64, error)
}

// Factory creates an empty Trainable
type Factory func() Trainable

// ErrNotLoaded is returned by the operations of a flavor used before Load
var ErrNotLoaded = errors.New("no network loaded")

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a flavor available under name. Registering the same name
// twice is an error.
func Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return errors.New("flavor needs a name and a factory")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[name]; ok {
		return errors.Errorf("flavor %q already registered", name)
	}
	registry[name] = factory
	return nil
}

// New creates an instance of the flavor registered under name
func New(name string) (Trainable, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.Errorf("unknown flavor %q", name)
	}
	return factory(), nil
}

// Names returns the registered flavor names, sorted
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
