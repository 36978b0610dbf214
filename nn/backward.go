package nn

import (
	"gonum.org/v1/gonum/floats"
)

// Backpropagate trains the network against the desired output of the last
// Feedforward call and returns the sample error: the cost of every output
// averaged over the output length.
//
// The output layer is trained first, then every hidden layer from right to
// left, each reading the weighted deltas the layer after it has just written.
// Layer 0 is left untouched unless Settings.TrainInputLayer is set.
func (n *Network) Backpropagate(desired []float64) (float64, error) {
	return n.backward(desired, false)
}

// Accumulate computes the gradients for desired like Backpropagate but only
// adds them to the mini-batch accumulators. Update applies them.
func (n *Network) Accumulate(desired []float64) (float64, error) {
	return n.backward(desired, true)
}

// Update applies the accumulated gradients averaged over batchSize samples
func (n *Network) Update(batchSize int) {
	for i := n.firstTrained(); i < len(n.layers); i++ {
		n.layers[i].update(batchSize)
	}
}

func (n *Network) firstTrained() int {
	if n.settings.TrainInputLayer || len(n.layers) == 1 {
		return 0
	}
	return 1
}

func (n *Network) backward(desired []float64, accumulate bool) (float64, error) {
	last := len(n.layers) - 1
	out := n.layers[last]
	if len(desired) != out.Len() {
		return 0, errDimension("desired signal", len(desired), out.Len())
	}

	losses := make([]float64, out.Len())
	costs := make([]float64, out.Len())
	for j, o := range out.output {
		losses[j] = n.settings.Cost.Derivative(o, desired[j])
		costs[j] = n.settings.Cost.Cost(o, desired[j])
	}

	first := n.firstTrained()
	for i := last; i >= first; i-- {
		layer := n.layers[i]

		var prev *Layer
		if i > first {
			prev = n.layers[i-1]
			prev.resetDeltas()
		}

		if i == last {
			layer.backward(losses, prev, accumulate)
		} else {
			layer.backward(layer.weightedDeltas, prev, accumulate)
		}

		if n.observer != nil {
			notifyObserver(n.observer, EventBackward, layer, layer.deltas)
		}
	}

	return floats.Sum(costs) / float64(len(costs)), nil
}
