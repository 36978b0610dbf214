package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// Neuron is a single unit of a Layer. It reads its inputs from a signal it
// does not own and writes its output into the owning layer's output buffer at
// position index.
type Neuron struct {
	index      int
	activation ActivationType
	settings   *Settings

	weights []Weight
	bias    Weight

	input   []float64 // borrowed from the previous layer or the caller
	pending []float64 // owned buffer filled by Propagate
	sum     float64
	factor  float64 // dropout factor for the current pass, 1 when inactive

	// mini-batch accumulators
	gradients    []float64
	biasGradient float64
}

func newNeuron(index, inputs int, activation ActivationType, settings *Settings, rng *rand.Rand) *Neuron {
	n := &Neuron{
		index:      index,
		activation: activation,
		settings:   settings,
		weights:    make([]Weight, inputs),
		bias:       NewWeight(float64(inputs), rng),
		factor:     1.0,
		gradients:  make([]float64, inputs),
	}
	for i := range n.weights {
		n.weights[i] = NewWeight(float64(inputs), rng)
	}
	return n
}

// Propagate writes one component of the neuron's input vector. It is the
// incremental alternative to feeding a whole signal through the layer.
func (n *Neuron) Propagate(value float64, index int) error {
	if index < 0 || index >= len(n.weights) {
		return errors.Wrapf(ErrDimensionMismatch, "input index %d out of range [0, %d)", index, len(n.weights))
	}
	if n.pending == nil {
		n.pending = make([]float64, len(n.weights))
	}
	n.pending[index] = value
	n.input = n.pending
	return nil
}

// Activate computes the output of the neuron from its current input and
// writes it into out at the neuron's index.
func (n *Neuron) Activate(out []float64) {
	if n.factor == 0.0 {
		out[n.index] = 0.0
		return
	}

	sum := n.bias.value
	for i, in := range n.input {
		sum += in * n.weights[i].value
	}
	n.sum = sum
	out[n.index] = n.activation.Activate(sum) * n.factor
}

// drawDropout picks the dropout factor for the next pass
func (n *Neuron) drawDropout(rate float64, rng *rand.Rand) {
	if rng.Float64() < rate {
		n.factor = 0.0
		return
	}
	n.factor = 1.0 / (1.0 - rate)
}

// deltaSink receives the weighted deltas a neuron sends to the previous layer
type deltaSink interface {
	add(i int, v float64)
}

type plainSink []float64

func (s plainSink) add(i int, v float64) { s[i] += v }

type atomicSink []atomic.Float64

func (s atomicSink) add(i int, v float64) { s[i].Add(v) }

// backward turns the error reaching the neuron output into the neuron delta,
// projects it through the pre-update weights into sink and then trains the
// weights, either immediately or into the mini-batch accumulators.
func (n *Neuron) backward(loss float64, sink deltaSink, accumulate bool) float64 {
	delta := n.activation.Derivative(n.sum) * loss * n.factor

	if sink != nil {
		for i := range n.weights {
			sink.add(i, delta*n.weights[i].value)
		}
	}

	if accumulate {
		n.accumulate(delta)
	} else {
		n.learn(delta)
	}
	return delta
}

func (n *Neuron) learn(delta float64) {
	for i, in := range n.input {
		n.settings.learn(&n.weights[i], delta*in)
	}
	n.settings.learn(&n.bias, delta)
}

func (n *Neuron) accumulate(delta float64) {
	for i, in := range n.input {
		n.gradients[i] += delta * in
	}
	n.biasGradient += delta
}

// update applies the averaged mini-batch gradients and clears the accumulators
func (n *Neuron) update(batchSize int) {
	if batchSize <= 0 {
		return
	}
	scale := 1.0 / float64(batchSize)
	for i := range n.weights {
		n.settings.learn(&n.weights[i], n.gradients[i]*scale)
		n.gradients[i] = 0.0
	}
	n.settings.learn(&n.bias, n.biasGradient*scale)
	n.biasGradient = 0.0
}

// Inputs returns the number of inputs of the neuron
func (n *Neuron) Inputs() int { return len(n.weights) }

// Activation returns the activation function of the neuron
func (n *Neuron) Activation() ActivationType { return n.activation }

// Weight returns the i-th input weight
func (n *Neuron) Weight(i int) *Weight { return &n.weights[i] }

// Bias returns the bias weight
func (n *Neuron) Bias() *Weight { return &n.bias }

// Weights returns a copy of the input weight values
func (n *Neuron) Weights() []float64 {
	values := make([]float64, len(n.weights))
	for i := range n.weights {
		values[i] = n.weights[i].value
	}
	return values
}

// Sum returns the pre-activation value of the last pass
func (n *Neuron) Sum() float64 { return n.sum }
