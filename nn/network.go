package nn

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Topology describes the shape of a network: the input length and, in order
// from input to output, every layer.
type Topology struct {
	Inputs int
	Layers []LayerTopology
}

// LayerTopology describes one layer. Inputs may be left at 0, it then defaults
// to the width of the previous layer (or Topology.Inputs for the first layer).
// Activation overrides Settings.Activation for the whole layer and
// Activations, when set, names the function of every neuron. Preset sets the
// initial parameters of every neuron instead of drawing them at random.
type LayerTopology struct {
	Neurons     int
	Inputs      int
	Activation  string
	Activations []string
	Preset      []NeuronPreset
}

// NeuronPreset holds the parameters of one neuron
type NeuronPreset struct {
	Bias    float64
	Weights []float64
}

// Network is a feed-forward multilayer perceptron. It is not safe for
// concurrent use.
type Network struct {
	id       uuid.UUID
	settings *Settings
	layers   []*Layer
	inputs   int

	rng      *rand.Rand
	log      logrus.FieldLogger
	observer LayerObserver
}

type options struct {
	rng      *rand.Rand
	log      logrus.FieldLogger
	observer LayerObserver
	id       uuid.UUID
}

// Option configures NewNetwork
type Option func(*options)

// WithSeed seeds the generator used for weight initialization, dropout and
// sample selection.
func WithSeed(seed int64) Option {
	return func(o *options) { o.rng = rand.New(rand.NewSource(seed)) }
}

// WithRand makes the network draw from rng
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithLogger sets the logger of the network
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithObserver attaches a layer observer
func WithObserver(obs LayerObserver) Option {
	return func(o *options) { o.observer = obs }
}

// WithID sets the model ID instead of generating a new one
func WithID(id uuid.UUID) Option {
	return func(o *options) { o.id = id }
}

// NewNetwork builds a network. Topology and settings are fully validated
// before anything is allocated; on failure no network is returned and the
// error has ErrConstruction as cause.
func NewNetwork(topology Topology, settings Settings, opts ...Option) (*Network, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if o.log == nil {
		o.log = logger
	}
	if o.id == uuid.Nil {
		o.id = uuid.New()
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	widths, err := topology.resolve()
	if err != nil {
		return nil, err
	}

	s := settings
	n := &Network{
		id:       o.id,
		settings: &s,
		layers:   make([]*Layer, len(topology.Layers)),
		inputs:   widths[0],
		rng:      o.rng,
		log:      o.log,
		observer: o.observer,
	}

	for i, lt := range topology.Layers {
		activations := lt.activations(s.Activation)
		layer, err := newLayer(i, lt.Neurons, widths[i], activations, n.settings, n.rng)
		if err != nil {
			return nil, err
		}
		layer.hidden = i > 0 && i < len(topology.Layers)-1

		for j, p := range lt.Preset {
			neuron := layer.neurons[j]
			neuron.bias.value = p.Bias
			for k, w := range p.Weights {
				neuron.weights[k].value = w
			}
		}
		n.layers[i] = layer
	}

	n.log.WithFields(logrus.Fields{
		"model":   n.id.String(),
		"inputs":  n.inputs,
		"outputs": n.OutputLength(),
		"layers":  len(n.layers),
	}).Debug("network created")

	return n, nil
}

// resolve checks the topology and returns the input width of every layer
func (t Topology) resolve() ([]int, error) {
	if len(t.Layers) == 0 {
		return nil, errors.Wrap(ErrConstruction, "topology has no layers")
	}
	if t.Inputs < 0 {
		return nil, errors.Wrapf(ErrConstruction, "negative input length %d", t.Inputs)
	}

	widths := make([]int, len(t.Layers))
	previous := t.Inputs
	for i, lt := range t.Layers {
		if lt.Neurons <= 0 {
			return nil, errors.Wrapf(ErrConstruction, "layer %d has %d neurons", i, lt.Neurons)
		}

		inputs := lt.Inputs
		switch {
		case inputs == 0:
			inputs = previous
		case previous != 0 && inputs != previous:
			return nil, errors.Wrapf(ErrConstruction, "layer %d expects %d inputs but receives %d", i, inputs, previous)
		}
		if inputs <= 0 {
			return nil, errors.Wrapf(ErrConstruction, "layer %d has no inputs", i)
		}

		if len(lt.Activations) != 0 && len(lt.Activations) != lt.Neurons {
			return nil, errors.Wrapf(ErrConstruction, "layer %d names %d activations for %d neurons", i, len(lt.Activations), lt.Neurons)
		}
		if len(lt.Preset) != 0 && len(lt.Preset) != lt.Neurons {
			return nil, errors.Wrapf(ErrConstruction, "layer %d presets %d neurons out of %d", i, len(lt.Preset), lt.Neurons)
		}
		for j, p := range lt.Preset {
			if len(p.Weights) != inputs {
				return nil, errors.Wrapf(ErrConstruction, "layer %d neuron %d presets %d weights for %d inputs", i, j, len(p.Weights), inputs)
			}
		}

		widths[i] = inputs
		previous = lt.Neurons
	}
	return widths, nil
}

func (lt LayerTopology) activations(fallback ActivationType) []ActivationType {
	layer := fallback
	if lt.Activation != "" {
		layer = ParseActivation(lt.Activation)
	}

	activations := make([]ActivationType, lt.Neurons)
	for j := range activations {
		activations[j] = layer
		if j < len(lt.Activations) && lt.Activations[j] != "" {
			activations[j] = ParseActivation(lt.Activations[j])
		}
	}
	return activations
}

// Feedforward runs input through the network in training mode: dropout is
// applied to hidden layers when enabled. It returns a copy of the output signal.
func (n *Network) Feedforward(input []float64) ([]float64, error) {
	return n.forward(input, true)
}

// Predict runs input through the network without dropout
func (n *Network) Predict(input []float64) ([]float64, error) {
	return n.forward(input, false)
}

func (n *Network) forward(input []float64, training bool) ([]float64, error) {
	if len(input) != n.inputs {
		return nil, errDimension("input signal", len(input), n.inputs)
	}

	for _, l := range n.layers {
		l.prepare(training, n.rng)
	}
	n.layers[0].setInput(input, n.layers[1:])

	if n.observer != nil {
		for _, l := range n.layers {
			notifyObserver(n.observer, EventForward, l, l.output)
		}
	}
	return n.Output(), nil
}

// Output returns a copy of the output signal of the last pass
func (n *Network) Output() []float64 {
	return n.layers[len(n.layers)-1].Output()
}

// ID returns the model ID
func (n *Network) ID() uuid.UUID { return n.id }

// InputLength returns the expected input signal length
func (n *Network) InputLength() int { return n.inputs }

// OutputLength returns the output signal length
func (n *Network) OutputLength() int { return n.layers[len(n.layers)-1].Len() }

// Layers returns the layers from input to output
func (n *Network) Layers() []*Layer { return n.layers }

// Layer returns the i-th layer
func (n *Network) Layer(i int) *Layer { return n.layers[i] }

// Settings returns a copy of the network settings
func (n *Network) Settings() Settings { return *n.settings }

// Topology returns the shape of the network with the activation of every
// neuron, without presets.
func (n *Network) Topology() Topology {
	t := Topology{Inputs: n.inputs, Layers: make([]LayerTopology, len(n.layers))}
	for i, l := range n.layers {
		lt := LayerTopology{Neurons: l.Len(), Inputs: l.Inputs()}

		uniform := true
		for _, neuron := range l.neurons {
			uniform = uniform && neuron.activation == l.neurons[0].activation
		}
		if uniform {
			lt.Activation = l.neurons[0].activation.String()
		} else {
			lt.Activations = make([]string, l.Len())
			for j, neuron := range l.neurons {
				lt.Activations[j] = neuron.activation.String()
			}
		}
		t.Layers[i] = lt
	}
	return t
}

// Rand returns the generator the network draws from
func (n *Network) Rand() *rand.Rand { return n.rng }

// Logger returns the logger of the network
func (n *Network) Logger() logrus.FieldLogger { return n.log }
