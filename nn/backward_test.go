package nn

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
)

var (
	referenceInput  = []float64{0.05, 0.10}
	referenceTarget = []float64{0.01, 0.99}
)

func referenceSettings(trainInput bool) Settings {
	s := DefaultSettings()
	s.LearningRate = 0.5
	s.TrainInputLayer = trainInput
	return s
}

// TestReferenceStep checks one online step against the worked example
func TestReferenceStep(t *testing.T) {
	n := mustNetwork(t, referenceTopology(), referenceSettings(true))

	n.Feedforward(referenceInput)
	e, err := n.Backpropagate(referenceTarget)
	if err != nil {
		t.Fatal(err)
	}

	// total error 0.298371109 averaged over the two outputs
	if math.Abs(e-0.298371109/2) > 1e-8 {
		t.Errorf("sample error %g, expected %g", e, 0.298371109/2)
	}

	expected := [][][]float64{
		{{0.149780716, 0.19956143}, {0.24975114, 0.29950229}},
		{{0.35891648, 0.408666186}, {0.511301270, 0.561370121}},
	}
	for i, layer := range expected {
		for j, weights := range layer {
			if got := n.Layer(i).Neuron(j).Weights(); !floats.EqualApprox(got, weights, 1e-8) {
				t.Errorf("layer %d neuron %d weights %v, expected %v", i, j, got, weights)
			}
		}
	}
}

func TestInputLayerFrozenByDefault(t *testing.T) {
	n := mustNetwork(t, referenceTopology(), referenceSettings(false))
	before := n.Layer(0).Neuron(0).Weights()

	n.Feedforward(referenceInput)
	n.Backpropagate(referenceTarget)

	if !floats.Equal(before, n.Layer(0).Neuron(0).Weights()) {
		t.Error("the first layer was trained")
	}
	if got := n.Layer(1).Neuron(0).Weights(); !floats.EqualApprox(got, []float64{0.35891648, 0.408666186}, 1e-8) {
		t.Errorf("output layer weights %v", got)
	}
}

// referenceNetwork is an independent 2-2-2 sigmoid network trained with plain
// gradient descent on a squared error.
type referenceNetwork struct {
	w [2][2][2]float64 // layer, neuron, input
	b [2][2]float64
}

func newReferenceNetwork() *referenceNetwork {
	return &referenceNetwork{
		w: [2][2][2]float64{
			{{0.15, 0.20}, {0.25, 0.30}},
			{{0.40, 0.45}, {0.50, 0.55}},
		},
		b: [2][2]float64{{0.35, 0.35}, {0.60, 0.60}},
	}
}

func (r *referenceNetwork) step(x, d []float64, rate float64, trainFirst bool) {
	sig := func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

	var h, o [2]float64
	for j := 0; j < 2; j++ {
		h[j] = sig(r.w[0][j][0]*x[0] + r.w[0][j][1]*x[1] + r.b[0][j])
	}
	for j := 0; j < 2; j++ {
		o[j] = sig(r.w[1][j][0]*h[0] + r.w[1][j][1]*h[1] + r.b[1][j])
	}

	var deltaOut, deltaHidden [2]float64
	for j := 0; j < 2; j++ {
		deltaOut[j] = (o[j] - d[j]) * o[j] * (1 - o[j])
	}
	for k := 0; k < 2; k++ {
		e := deltaOut[0]*r.w[1][0][k] + deltaOut[1]*r.w[1][1][k]
		deltaHidden[k] = e * h[k] * (1 - h[k])
	}

	for j := 0; j < 2; j++ {
		for k := 0; k < 2; k++ {
			r.w[1][j][k] -= rate * deltaOut[j] * h[k]
		}
		r.b[1][j] -= rate * deltaOut[j]
	}
	if trainFirst {
		for k := 0; k < 2; k++ {
			for i := 0; i < 2; i++ {
				r.w[0][k][i] -= rate * deltaHidden[k] * x[i]
			}
			r.b[0][k] -= rate * deltaHidden[k]
		}
	}
}

func (r *referenceNetwork) weights() WeightsData {
	data := WeightsData{Type: "float64", Layers: make([]LayerWeights, 2)}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			data.Layers[i].Neurons = append(data.Layers[i].Neurons, NeuronWeights{
				Bias:    r.b[i][j],
				Weights: []float64{r.w[i][j][0], r.w[i][j][1]},
			})
		}
	}
	return data
}

// TestTrainMatchesReference trains on the single reference sample and
// compares every parameter with the independently computed network
func TestTrainMatchesReference(t *testing.T) {
	for _, trainFirst := range []bool{false, true} {
		settings := referenceSettings(trainFirst)
		settings.MaxIterations = 50
		settings.TargetError = 0

		n := mustNetwork(t, referenceTopology(), settings, WithSeed(1))
		result, err := n.Train(&sliceData{
			inputs:  [][]float64{referenceInput},
			outputs: [][]float64{referenceTarget},
		})
		if err != nil {
			t.Fatal(err)
		}
		if result.Iterations != 50 || result.Converged {
			t.Errorf("expected 50 iterations without convergence, got %d (%v)", result.Iterations, result.Converged)
		}
		if len(result.ErrorHistory) != 50 || result.ErrorHistory[49] != result.FinalError {
			t.Errorf("error history does not match the iterations")
		}
		if result.ErrorHistory[49] >= result.ErrorHistory[0] {
			t.Errorf("error did not decrease: %g -> %g", result.ErrorHistory[0], result.ErrorHistory[49])
		}

		ref := newReferenceNetwork()
		for it := 0; it < 50; it++ {
			ref.step(referenceInput, referenceTarget, 0.5, trainFirst)
		}

		d, err := WeightsDistance(n.Serialize(), ref.weights())
		if err != nil {
			t.Fatal(err)
		}
		if d > 1e-4 {
			t.Errorf("train input layer %v: distance to the reference network %g", trainFirst, d)
		}
	}
}

func flatten(data WeightsData) []float64 {
	var x []float64
	for _, l := range data.Layers {
		for _, n := range l.Neurons {
			x = append(x, n.Bias)
			x = append(x, n.Weights...)
		}
	}
	return x
}

func unflatten(x []float64, shape WeightsData) WeightsData {
	data := WeightsData{Type: shape.Type, Layers: make([]LayerWeights, len(shape.Layers))}
	k := 0
	for i, l := range shape.Layers {
		for _, n := range l.Neurons {
			nw := NeuronWeights{Bias: x[k], Weights: append([]float64(nil), x[k+1:k+1+len(n.Weights)]...)}
			k += 1 + len(n.Weights)
			data.Layers[i].Neurons = append(data.Layers[i].Neurons, nw)
		}
	}
	return data
}

// TestGradientCheck compares the backpropagated gradient of every parameter
// with a finite difference of the summed output cost.
func TestGradientCheck(t *testing.T) {
	settings := DefaultSettings()
	settings.LearningRate = 1
	settings.TrainInputLayer = true

	topology := Topology{Inputs: 3, Layers: []LayerTopology{
		{Neurons: 4, Activation: "TanH"},
		{Neurons: 3, Activation: "SoftPlus"},
		{Neurons: 2},
	}}
	input := []float64{0.3, -0.6, 0.9}
	desired := []float64{0.2, 0.7}

	for _, cost := range []CostType{CostQuadratic, CostCrossEntropy} {
		settings.Cost = cost
		n := mustNetwork(t, topology, settings, WithSeed(11))
		probe := mustNetwork(t, topology, settings, WithSeed(11))

		shape := n.Serialize()
		x := flatten(shape)

		numeric := fd.Gradient(nil, func(params []float64) float64 {
			if err := probe.Deserialize(unflatten(params, shape)); err != nil {
				t.Fatal(err)
			}
			output, _ := probe.Predict(input)
			total := 0.0
			for j, o := range output {
				total += cost.Cost(o, desired[j])
			}
			return total
		}, x, &fd.Settings{Formula: fd.Central})

		n.Feedforward(input)
		n.Backpropagate(desired)
		after := flatten(n.Serialize())

		analytic := make([]float64, len(x))
		floats.SubTo(analytic, x, after)

		if !floats.EqualApprox(analytic, numeric, 1e-5) {
			t.Errorf("%s: gradients differ\nanalytic %v\nnumeric  %v", cost, analytic, numeric)
		}
	}
}

// TestAccumulateMatchesOnline checks that a batch of one sample is an online step
func TestAccumulateMatchesOnline(t *testing.T) {
	settings := DefaultSettings()
	settings.TrainInputLayer = true

	online := mustNetwork(t, deepTopology(), settings, WithSeed(9))
	batch := mustNetwork(t, deepTopology(), settings, WithSeed(9))
	input := []float64{0.1, 0.2, -0.3, 0.4, -0.5}
	desired := []float64{0.25, 0.75}

	online.Feedforward(input)
	e1, _ := online.Backpropagate(desired)

	batch.Feedforward(input)
	e2, _ := batch.Accumulate(desired)
	if d, _ := WeightsDistance(online.Serialize(), batch.Serialize()); d == 0 {
		t.Error("Accumulate should not modify the weights before Update")
	}
	batch.Update(1)

	if e1 != e2 {
		t.Errorf("sample errors differ: %g and %g", e1, e2)
	}
	if d, _ := WeightsDistance(online.Serialize(), batch.Serialize()); d > 1e-12 {
		t.Errorf("batch of one differs from the online step by %g", d)
	}
}

func TestParallelMatchesSerial(t *testing.T) {
	topology := Topology{Inputs: 5, Layers: []LayerTopology{{Neurons: 12}, {Neurons: 9}, {Neurons: 7}, {Neurons: 3}}}
	data := &sliceData{
		inputs:  [][]float64{{0.1, 0.5, -0.2, 0.3, 0.9}, {-0.4, 0.2, 0.8, -0.1, 0.0}, {0.7, -0.6, 0.1, 0.2, -0.3}},
		outputs: [][]float64{{0.1, 0.9, 0.5}, {0.8, 0.2, 0.4}, {0.3, 0.3, 0.7}},
	}

	for _, learning := range []LearningType{LearningBackPropagation, LearningResilient} {
		settings := DefaultSettings()
		settings.Learning = learning
		settings.MaxIterations = 40
		settings.TargetError = 0
		settings.TrainInputLayer = true

		serial := mustNetwork(t, topology, settings, WithSeed(21))
		settings.Workers = 4
		concurrent := mustNetwork(t, topology, settings, WithSeed(21))

		if _, err := serial.Train(data); err != nil {
			t.Fatal(err)
		}
		if _, err := concurrent.Train(data); err != nil {
			t.Fatal(err)
		}

		if d, _ := WeightsDistance(serial.Serialize(), concurrent.Serialize()); d > 1e-9 {
			t.Errorf("%s: parallel training differs from serial training by %g", learning, d)
		}
	}
}

func identityData() *sliceData {
	return &sliceData{
		inputs:  [][]float64{{0.1, 0.9}, {0.9, 0.1}, {0.1, 0.1}, {0.9, 0.9}},
		outputs: [][]float64{{0.1, 0.9}, {0.9, 0.1}, {0.1, 0.1}, {0.9, 0.9}},
	}
}

func TestTrainIdentityConverges(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxIterations = 3000
	settings.TargetError = 0.01
	settings.TrainInputLayer = true

	for seed := int64(1); seed <= 3; seed++ {
		n := mustNetwork(t, Topology{Inputs: 2, Layers: []LayerTopology{{Neurons: 2}, {Neurons: 2}}}, settings, WithSeed(seed))
		result, err := n.Train(identityData())
		if err != nil {
			t.Fatal(err)
		}
		if !result.Converged || result.FinalError > 0.01 || result.Iterations > 3000 {
			t.Errorf("seed %d: converged=%v after %d iterations, error %g", seed, result.Converged, result.Iterations, result.FinalError)
		}
		if result.BestError > result.FinalError {
			t.Errorf("best error %g above final error %g", result.BestError, result.FinalError)
		}
	}
}

func TestTrainingReducesMeanError(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxIterations = 2000
	settings.TargetError = 0
	settings.LearningRate = 0.5

	n := mustNetwork(t, Topology{Inputs: 2, Layers: []LayerTopology{{Neurons: 4}, {Neurons: 4}, {Neurons: 2}}}, settings, WithSeed(4))
	data := identityData()

	before, err := n.MeanError(data)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := n.Train(data); err != nil {
		t.Fatal(err)
	}
	after, _ := n.MeanError(data)

	if after >= before {
		t.Errorf("mean error did not decrease: %g -> %g", before, after)
	}
}

func TestTrainMinibatch(t *testing.T) {
	settings := DefaultSettings()
	settings.MaxIterations = 30
	settings.TargetError = 0
	settings.MinibatchSize = 4

	n := mustNetwork(t, Topology{Inputs: 2, Layers: []LayerTopology{{Neurons: 3}, {Neurons: 2}}}, settings, WithSeed(2))
	result, err := n.TrainMinibatch(identityData())
	if err != nil {
		t.Fatal(err)
	}
	if result.Iterations != 30 || len(result.ErrorHistory) != 30 {
		t.Errorf("expected 30 iterations, got %d", result.Iterations)
	}
}

func TestResilientTrainingKeepsDeltaBounds(t *testing.T) {
	settings := DefaultSettings()
	settings.Learning = LearningResilient
	settings.MaxIterations = 500
	settings.TargetError = 0
	settings.DeltaMin = 0.001
	settings.DeltaMax = 0.1
	settings.TrainInputLayer = true

	n := mustNetwork(t, deepTopology(), settings, WithSeed(8))
	data := &sliceData{
		inputs:  [][]float64{{0.1, 0.2, 0.3, 0.4, 0.5}, {0.5, 0.4, 0.3, 0.2, 0.1}},
		outputs: [][]float64{{0.2, 0.8}, {0.8, 0.2}},
	}
	if _, err := n.Train(data); err != nil {
		t.Fatal(err)
	}

	for _, l := range n.Layers() {
		for j := 0; j < l.Len(); j++ {
			neuron := l.Neuron(j)
			deltas := []float64{neuron.Bias().Delta()}
			for k := 0; k < neuron.Inputs(); k++ {
				deltas = append(deltas, neuron.Weight(k).Delta())
			}
			for _, d := range deltas {
				if d < settings.DeltaMin || d > settings.DeltaMax {
					t.Errorf("layer %d neuron %d: delta %g outside bounds", l.Index(), j, d)
				}
			}
		}
	}
}

func TestEvaluate(t *testing.T) {
	n := mustNetwork(t, deepTopology(), DefaultSettings(), WithSeed(5))
	data := &sliceData{
		inputs:     [][]float64{{0.1, 0.2, 0.3, 0.4, 0.5}, {0.5, 0.4, 0.3, 0.2, 0.1}, {0, 0, 0, 0, 0}},
		outputs:    [][]float64{{0.2, 0.8}, {0.8, 0.2}, {0.5, 0.5}},
		evaluating: []int{0, 2},
	}

	eval, err := n.Evaluate(data)
	if err != nil {
		t.Fatal(err)
	}
	mean, _ := n.MeanError(data)
	if eval.MeanError != mean {
		t.Errorf("Evaluate mean error %g, MeanError %g", eval.MeanError, mean)
	}
	if eval.TotalSamples != 4 {
		t.Errorf("expected 2 samples of 2 outputs, got %d results", eval.TotalSamples)
	}

	count := 0
	for _, b := range eval.Buckets {
		count += b.Count
	}
	if count != eval.TotalSamples {
		t.Errorf("buckets hold %d results out of %d", count, eval.TotalSamples)
	}
	if worst := eval.WorstPredictions(1); len(worst) != 1 {
		t.Errorf("expected one worst prediction, got %d", len(worst))
	}
}
