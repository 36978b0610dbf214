package nn

import (
	"testing"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func isCause(err, target error) bool {
	return err != nil && errors.Cause(err) == target
}

// sliceData is a minimal Data backed by slices
type sliceData struct {
	inputs     [][]float64
	outputs    [][]float64
	evaluating []int
}

func (d *sliceData) Len() int                 { return len(d.inputs) }
func (d *sliceData) InputLength() int         { return len(d.inputs[0]) }
func (d *sliceData) OutputLength() int        { return len(d.outputs[0]) }
func (d *sliceData) Input(i int) []float64    { return d.inputs[i] }
func (d *sliceData) Output(i int) []float64   { return d.outputs[i] }
func (d *sliceData) EvaluatingIndices() []int { return d.evaluating }

// referenceTopology is the classic 2-2-2 worked example of backpropagation
func referenceTopology() Topology {
	return Topology{
		Inputs: 2,
		Layers: []LayerTopology{
			{Neurons: 2, Preset: []NeuronPreset{
				{Bias: 0.35, Weights: []float64{0.15, 0.20}},
				{Bias: 0.35, Weights: []float64{0.25, 0.30}},
			}},
			{Neurons: 2, Preset: []NeuronPreset{
				{Bias: 0.60, Weights: []float64{0.40, 0.45}},
				{Bias: 0.60, Weights: []float64{0.50, 0.55}},
			}},
		},
	}
}

func deepTopology() Topology {
	return Topology{
		Inputs: 5,
		Layers: []LayerTopology{
			{Neurons: 3, Inputs: 5},
			{Neurons: 6, Inputs: 3},
			{Neurons: 2, Inputs: 6},
		},
	}
}

func mustNetwork(t *testing.T, topology Topology, settings Settings, opts ...Option) *Network {
	t.Helper()
	n, err := NewNetwork(topology, settings, opts...)
	if err != nil {
		t.Fatalf("NewNetwork failed: %v", err)
	}
	return n
}

func TestNetworkShape(t *testing.T) {
	n := mustNetwork(t, deepTopology(), DefaultSettings(), WithSeed(1))

	if n.InputLength() != 5 || n.OutputLength() != 2 {
		t.Errorf("expected 5 inputs and 2 outputs, got %d and %d", n.InputLength(), n.OutputLength())
	}
	if len(n.Layers()) != 3 {
		t.Fatalf("expected 3 layers, got %d", len(n.Layers()))
	}
	for i, l := range n.Layers() {
		if l.Index() != i {
			t.Errorf("layer %d reports index %d", i, l.Index())
		}
		if l.Hidden() != (i == 1) {
			t.Errorf("layer %d hidden = %v", i, l.Hidden())
		}
		for j := 0; j < l.Len(); j++ {
			if got := len(l.Neuron(j).Weights()); got != l.Inputs() {
				t.Errorf("layer %d neuron %d has %d weights, expected %d", i, j, got, l.Inputs())
			}
			for _, w := range l.Neuron(j).Weights() {
				if w < -float64(l.Inputs()) || w > float64(l.Inputs()) {
					t.Errorf("layer %d neuron %d weight %g exceeds the fan-in", i, j, w)
				}
			}
		}
	}

	output, err := n.Feedforward([]float64{0.1, 0.2, 0.3, 0.4, 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(output) != 2 {
		t.Errorf("expected output of length 2, got %d", len(output))
	}
}

func TestNetworkConstructionErrors(t *testing.T) {
	topologies := map[string]Topology{
		"no layers":       {Inputs: 2},
		"no inputs":       {Layers: []LayerTopology{{Neurons: 2}}},
		"empty layer":     {Inputs: 2, Layers: []LayerTopology{{Neurons: 2}, {Neurons: 0}}},
		"inputs mismatch": {Inputs: 2, Layers: []LayerTopology{{Neurons: 3}, {Neurons: 1, Inputs: 2}}},
		"first mismatch":  {Inputs: 2, Layers: []LayerTopology{{Neurons: 3, Inputs: 4}}},
		"preset count": {Inputs: 2, Layers: []LayerTopology{
			{Neurons: 2, Preset: []NeuronPreset{{Weights: []float64{1, 2}}}},
		}},
		"preset weights": {Inputs: 2, Layers: []LayerTopology{
			{Neurons: 1, Preset: []NeuronPreset{{Weights: []float64{1, 2, 3}}}},
		}},
		"activations count": {Inputs: 2, Layers: []LayerTopology{
			{Neurons: 2, Activations: []string{"TanH"}},
		}},
	}
	for name, topology := range topologies {
		n, err := NewNetwork(topology, DefaultSettings(), WithSeed(1))
		if !isCause(err, ErrConstruction) {
			t.Errorf("%s: expected a construction error, got %v", name, err)
		}
		if n != nil {
			t.Errorf("%s: a network was returned", name)
		}
	}

	settings := DefaultSettings()
	settings.LearningRate = -1
	if _, err := NewNetwork(deepTopology(), settings); !isCause(err, ErrConstruction) {
		t.Errorf("invalid settings: expected a construction error, got %v", err)
	}
}

func TestDimensionMismatch(t *testing.T) {
	n := mustNetwork(t, deepTopology(), DefaultSettings(), WithSeed(1))
	before := n.Serialize()

	if _, err := n.Feedforward([]float64{1, 2}); !isCause(err, ErrDimensionMismatch) {
		t.Errorf("expected a dimension mismatch, got %v", err)
	}
	if _, err := n.Predict(make([]float64, 6)); !isCause(err, ErrDimensionMismatch) {
		t.Errorf("expected a dimension mismatch, got %v", err)
	}

	n.Feedforward(make([]float64, 5))
	if _, err := n.Backpropagate([]float64{1}); !isCause(err, ErrDimensionMismatch) {
		t.Errorf("expected a dimension mismatch, got %v", err)
	}

	if d, _ := WeightsDistance(before, n.Serialize()); d != 0 {
		t.Errorf("a rejected call modified the weights by %g", d)
	}

	bad := &sliceData{inputs: [][]float64{{1, 2}}, outputs: [][]float64{{1, 2}}}
	if _, err := n.Train(bad); !isCause(err, ErrDimensionMismatch) {
		t.Errorf("expected a dimension mismatch before training, got %v", err)
	}
	if _, err := n.Train(&sliceData{}); !isCause(err, ErrNoData) {
		t.Errorf("expected no data, got %v", err)
	}
}

func TestSeedDeterminism(t *testing.T) {
	a := mustNetwork(t, deepTopology(), DefaultSettings(), WithSeed(42))
	b := mustNetwork(t, deepTopology(), DefaultSettings(), WithSeed(42))
	c := mustNetwork(t, deepTopology(), DefaultSettings(), WithSeed(43))

	if d, _ := WeightsDistance(a.Serialize(), b.Serialize()); d != 0 {
		t.Errorf("same seed gave different weights (distance %g)", d)
	}
	if d, _ := WeightsDistance(a.Serialize(), c.Serialize()); d == 0 {
		t.Error("different seeds gave the same weights")
	}
}

func TestFeedforwardDeterministic(t *testing.T) {
	n := mustNetwork(t, deepTopology(), DefaultSettings(), WithSeed(3))
	input := []float64{0.5, -0.2, 0.1, 0.9, -0.7}

	first, _ := n.Feedforward(input)
	second, _ := n.Feedforward(input)
	predicted, _ := n.Predict(input)

	if !floats.Equal(first, second) || !floats.Equal(first, predicted) {
		t.Errorf("outputs differ without dropout: %v %v %v", first, second, predicted)
	}
	if !floats.Equal(first, n.Output()) {
		t.Errorf("Output() = %v, expected %v", n.Output(), first)
	}
}

func TestReferenceForward(t *testing.T) {
	n := mustNetwork(t, referenceTopology(), DefaultSettings(), WithSeed(1))
	output, err := n.Feedforward([]float64{0.05, 0.10})
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(output, []float64{0.75136507, 0.772928465}, 1e-8) {
		t.Errorf("unexpected output %v", output)
	}
}

// TestDropout checks that only hidden neurons are silenced or scaled
func TestDropout(t *testing.T) {
	settings := DefaultSettings()
	settings.DropoutEnabled = true
	settings.DropoutRate = 0.5

	topology := Topology{Inputs: 4, Layers: []LayerTopology{{Neurons: 8}, {Neurons: 16}, {Neurons: 3}}}
	n := mustNetwork(t, topology, settings, WithSeed(5))
	input := []float64{0.3, -0.1, 0.8, 0.2}

	n.Predict(input)
	first := n.Layer(0).Output()
	hidden := n.Layer(1).Output()

	silenced, scaled := 0, 0
	for pass := 0; pass < 20; pass++ {
		n.Feedforward(input)

		if !floats.Equal(first, n.Layer(0).Output()) {
			t.Fatal("dropout was applied to the first layer")
		}
		for j, v := range n.Layer(1).Output() {
			switch {
			case v == 0:
				silenced++
			case scalar.EqualWithinAbs(v, hidden[j]*2, 1e-12):
				scaled++
			default:
				t.Fatalf("hidden neuron %d output %g is neither 0 nor %g", j, v, hidden[j]*2)
			}
		}
	}
	if silenced == 0 || scaled == 0 {
		t.Errorf("expected both silenced and scaled neurons, got %d and %d", silenced, scaled)
	}

	// inference never drops
	again, _ := n.Predict(input)
	if !floats.Equal(hidden, n.Layer(1).Output()) {
		t.Error("Predict applied dropout")
	}
	if len(again) != 3 {
		t.Errorf("expected 3 outputs, got %d", len(again))
	}
}

func TestPerNeuronActivations(t *testing.T) {
	topology := Topology{Inputs: 1, Layers: []LayerTopology{
		{Neurons: 2, Activations: []string{"Identity", "TanH"}, Preset: []NeuronPreset{
			{Bias: 0, Weights: []float64{1}},
			{Bias: 0, Weights: []float64{1}},
		}},
	}}
	n := mustNetwork(t, topology, DefaultSettings())

	output, _ := n.Predict([]float64{2})
	if output[0] != 2 {
		t.Errorf("identity neuron gave %g", output[0])
	}
	if !scalar.EqualWithinAbs(output[1], 0.9640275800758169, 1e-12) {
		t.Errorf("tanh neuron gave %g", output[1])
	}

	lt := n.Topology().Layers[0]
	if len(lt.Activations) != 2 || lt.Activations[0] != "Identity" || lt.Activations[1] != "TanH" {
		t.Errorf("topology lost the activations: %+v", lt)
	}
}

func TestNeuronPropagate(t *testing.T) {
	n := mustNetwork(t, referenceTopology(), DefaultSettings())
	neuron := n.Layer(0).Neuron(0)

	if err := neuron.Propagate(1, 2); !isCause(err, ErrDimensionMismatch) {
		t.Errorf("expected a dimension mismatch, got %v", err)
	}

	neuron.Propagate(0.05, 0)
	neuron.Propagate(0.10, 1)
	out := make([]float64, 2)
	neuron.Activate(out)

	// 0.15*0.05 + 0.2*0.1 + 0.35
	if !scalar.EqualWithinAbs(neuron.Sum(), 0.3775, 1e-12) {
		t.Errorf("unexpected sum %g", neuron.Sum())
	}
	if !scalar.EqualWithinAbs(out[0], 0.593269992, 1e-9) {
		t.Errorf("unexpected output %g", out[0])
	}
}

func TestObserver(t *testing.T) {
	obs := NewChannelObserver(16)
	n := mustNetwork(t, deepTopology(), DefaultSettings(), WithSeed(1), WithObserver(obs))

	n.Feedforward(make([]float64, 5))
	for i := 0; i < 3; i++ {
		event := <-obs.Events
		if event.Type != EventForward || event.Layer != i {
			t.Errorf("unexpected event %+v", event)
		}
	}

	n.Backpropagate([]float64{0, 1})
	// output layer then hidden layer, the first layer is not trained
	for _, want := range []int{2, 1} {
		event := <-obs.Events
		if event.Type != EventBackward || event.Layer != want {
			t.Errorf("expected backward event of layer %d, got %+v", want, event)
		}
	}
	select {
	case event := <-obs.Events:
		t.Errorf("unexpected event %+v", event)
	default:
	}
}

func TestBlueprint(t *testing.T) {
	n := mustNetwork(t, deepTopology(), DefaultSettings(), WithSeed(1))
	bp := ExtractNetworkBlueprint(n)

	if bp.TotalParams != 3*(5+1)+6*(3+1)+2*(6+1) {
		t.Errorf("unexpected parameter count %d", bp.TotalParams)
	}
	roles := []string{"input", "hidden", "output"}
	for i, l := range bp.Layers {
		if l.Role != roles[i] {
			t.Errorf("layer %d role %s, expected %s", i, l.Role, roles[i])
		}
		if l.Trainable != (i > 0) {
			t.Errorf("layer %d trainable = %v", i, l.Trainable)
		}
	}
	if bp.ID != n.ID().String() {
		t.Errorf("blueprint ID %s, expected %s", bp.ID, n.ID())
	}
}
