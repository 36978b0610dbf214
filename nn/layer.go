package nn

import (
	"math/rand"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/openfluke/brain/parallel"
)

// Layer owns a row of neurons together with the buffers they write through:
// the output signal and the weighted deltas sent back by the next layer.
type Layer struct {
	index    int
	hidden   bool
	settings *Settings

	neurons []*Neuron
	output  []float64
	deltas  []float64 // neuron deltas of the last backward pass

	// weightedDeltas[j] collects, for output j of this layer, the sum over the
	// next layer of delta * weight connecting to j
	weightedDeltas []float64
	shared         []atomic.Float64
}

func newLayer(index, neurons, inputs int, activations []ActivationType, settings *Settings, rng *rand.Rand) (*Layer, error) {
	if neurons <= 0 {
		return nil, errors.Wrapf(ErrConstruction, "layer %d has no neurons", index)
	}
	if inputs <= 0 {
		return nil, errors.Wrapf(ErrConstruction, "layer %d has no inputs", index)
	}

	l := &Layer{
		index:          index,
		settings:       settings,
		neurons:        make([]*Neuron, neurons),
		output:         make([]float64, neurons),
		deltas:         make([]float64, neurons),
		weightedDeltas: make([]float64, neurons),
	}
	for j := range l.neurons {
		l.neurons[j] = newNeuron(j, inputs, activations[j], settings, rng)
	}
	return l, nil
}

// prepare picks the dropout factors of the coming pass. Draws happen here,
// sequentially, so that the random stream does not depend on Workers.
func (l *Layer) prepare(training bool, rng *rand.Rand) {
	dropout := training && l.hidden && l.settings.DropoutEnabled &&
		l.settings.DropoutRate >= 0 && l.settings.DropoutRate < 1

	for _, n := range l.neurons {
		if dropout {
			n.drawDropout(l.settings.DropoutRate, rng)
		} else {
			n.factor = 1.0
		}
	}
}

// setInput hands signal to every neuron, activates the layer and feeds the
// fresh output to the next layer of the chain.
func (l *Layer) setInput(signal []float64, next []*Layer) {
	for _, n := range l.neurons {
		n.input = signal
	}

	parallel.ForEachChunk(len(l.neurons), l.settings.workers(), func(from, to int) {
		for j := from; j < to; j++ {
			l.neurons[j].Activate(l.output)
		}
	})

	if len(next) > 0 {
		next[0].setInput(l.output, next[1:])
	}
}

// resetDeltas zeroes the weighted-delta accumulator. It must run once per
// backward pass before the next layer writes into it.
func (l *Layer) resetDeltas() {
	for j := range l.weightedDeltas {
		l.weightedDeltas[j] = 0.0
	}
	for j := range l.shared {
		l.shared[j].Store(0.0)
	}
}

// backward trains every neuron of the layer against losses. When prev is not
// nil the weighted deltas are accumulated into it.
func (l *Layer) backward(losses []float64, prev *Layer, accumulate bool) {
	workers := l.settings.workers()

	if workers <= 1 || len(l.neurons) == 1 {
		var sink deltaSink
		if prev != nil {
			sink = plainSink(prev.weightedDeltas)
		}
		for j, n := range l.neurons {
			l.deltas[j] = n.backward(losses[j], sink, accumulate)
		}
		return
	}

	var sink deltaSink
	if prev != nil {
		sink = prev.atomicSink()
	}
	parallel.ForEachChunk(len(l.neurons), workers, func(from, to int) {
		for j := from; j < to; j++ {
			l.deltas[j] = l.neurons[j].backward(losses[j], sink, accumulate)
		}
	})
	if prev != nil {
		prev.collect()
	}
}

func (l *Layer) atomicSink() deltaSink {
	if l.shared == nil {
		l.shared = make([]atomic.Float64, len(l.weightedDeltas))
	}
	return atomicSink(l.shared)
}

// collect folds the concurrently accumulated deltas into weightedDeltas
func (l *Layer) collect() {
	for j := range l.shared {
		l.weightedDeltas[j] += l.shared[j].Swap(0.0)
	}
}

func (l *Layer) update(batchSize int) {
	parallel.ForEachChunk(len(l.neurons), l.settings.workers(), func(from, to int) {
		for j := from; j < to; j++ {
			l.neurons[j].update(batchSize)
		}
	})
}

// Index returns the position of the layer in its network
func (l *Layer) Index() int { return l.index }

// Hidden reports whether the layer is neither the first nor the last one
func (l *Layer) Hidden() bool { return l.hidden }

// Len returns the number of neurons
func (l *Layer) Len() int { return len(l.neurons) }

// Inputs returns the number of inputs of each neuron
func (l *Layer) Inputs() int { return l.neurons[0].Inputs() }

// Neuron returns the j-th neuron
func (l *Layer) Neuron(j int) *Neuron { return l.neurons[j] }

// Output returns a copy of the last output signal
func (l *Layer) Output() []float64 {
	return append([]float64(nil), l.output...)
}

// WeightedDeltas returns a copy of the deltas the next layer sent back
func (l *Layer) WeightedDeltas() []float64 {
	return append([]float64(nil), l.weightedDeltas...)
}

// Deltas returns a copy of the neuron deltas of the last backward pass
func (l *Layer) Deltas() []float64 {
	return append([]float64(nil), l.deltas...)
}
