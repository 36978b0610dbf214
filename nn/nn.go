// Package nn provides a multilayer perceptron with online and mini-batch training.
//
// A network is an ordered chain of fully connected layers:
//   - layer 0 reads the network input signal
//   - every following layer reads the output signal of the previous one
//   - the output of the last layer is the network output
//
// Each neuron owns one weight per input plus a bias. Weights carry their own
// optimizer state so that both learning rules share the same storage:
//   - BackPropagation: correction = -rate * gradient (+ momentum * previous correction)
//   - Resilient: sign based step adaptation bounded by [DeltaMin, DeltaMax]
//
// The activation functions are selected by name:
//   - Identity: v
//   - Sigmoid: 1 / (1 + exp(-v))
//   - TanH: tanh(v)
//   - ArcTan: atan(v)
//   - SoftPlus: log(1 + exp(v))
//   - Sinusoid: sin(v)
//
// Example usage:
//
//	settings := nn.DefaultSettings()
//	settings.LearningRate = 0.5
//
//	network, err := nn.NewNetwork(nn.Topology{
//		Inputs: 2,
//		Layers: []nn.LayerTopology{{Neurons: 3}, {Neurons: 2}},
//	}, settings, nn.WithSeed(42))
//
//	// One online training step
//	network.Feedforward(input)
//	loss, _ := network.Backpropagate(target)
//
//	// Inference
//	output, _ := network.Predict(input)
package nn
