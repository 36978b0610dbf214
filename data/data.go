// Package data holds training sets in memory: pairs of input and output
// signals plus a random held-out subset used for evaluation.
package data

import (
	"encoding/json"
	"io"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/openfluke/brain/nn"
)

// DefaultEvaluatingRatio is the share of signals held out for evaluation
const DefaultEvaluatingRatio = 0.5

// Set is an in-memory training set. It implements nn.Data.
type Set struct {
	inputs  [][]float64
	outputs [][]float64

	inputLength  int
	outputLength int

	evaluating []int
	training   []int

	normalization *Normalization
}

var _ nn.Data = (*Set)(nil)

type options struct {
	ratio float64
	rng   *rand.Rand
}

// Option configures New
type Option func(*options)

// WithEvaluatingRatio sets the share of signals held out for evaluation,
// clamped to [0, 1].
func WithEvaluatingRatio(ratio float64) Option {
	return func(o *options) { o.ratio = math.Min(math.Max(ratio, 0), 1) }
}

// WithSeed seeds the generator choosing the evaluating subset
func WithSeed(seed int64) Option {
	return func(o *options) { o.rng = rand.New(rand.NewSource(seed)) }
}

// WithRand makes the subset selection draw from rng
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// New copies the given signals into a Set. Every input must have the same
// length, and so must every output.
func New(inputs, outputs [][]float64, opts ...Option) (*Set, error) {
	o := options{ratio: DefaultEvaluatingRatio}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	if len(inputs) == 0 {
		return nil, nn.ErrNoData
	}
	if len(inputs) != len(outputs) {
		return nil, errors.Wrapf(nn.ErrDimensionMismatch, "%d inputs for %d outputs", len(inputs), len(outputs))
	}

	s := &Set{
		inputs:       make([][]float64, len(inputs)),
		outputs:      make([][]float64, len(outputs)),
		inputLength:  len(inputs[0]),
		outputLength: len(outputs[0]),
	}
	if s.inputLength == 0 || s.outputLength == 0 {
		return nil, errors.Wrap(nn.ErrDimensionMismatch, "empty signal")
	}

	for i := range inputs {
		if len(inputs[i]) != s.inputLength {
			return nil, errors.Wrapf(nn.ErrDimensionMismatch, "input %d has length %d, expected %d", i, len(inputs[i]), s.inputLength)
		}
		if len(outputs[i]) != s.outputLength {
			return nil, errors.Wrapf(nn.ErrDimensionMismatch, "output %d has length %d, expected %d", i, len(outputs[i]), s.outputLength)
		}
		s.inputs[i] = append([]float64(nil), inputs[i]...)
		s.outputs[i] = append([]float64(nil), outputs[i]...)
	}

	s.split(o.ratio, o.rng)
	return s, nil
}

// split picks the evaluating subset without duplicates; the remaining
// signals form the training subset.
func (s *Set) split(ratio float64, rng *rand.Rand) {
	count := int(float64(len(s.inputs)) * ratio)

	perm := rng.Perm(len(s.inputs))
	s.evaluating = append([]int(nil), perm[:count]...)

	held := make(map[int]bool, count)
	for _, i := range s.evaluating {
		held[i] = true
	}
	s.training = make([]int, 0, len(s.inputs)-count)
	for i := range s.inputs {
		if !held[i] {
			s.training = append(s.training, i)
		}
	}
}

func (s *Set) Len() int          { return len(s.inputs) }
func (s *Set) InputLength() int  { return s.inputLength }
func (s *Set) OutputLength() int { return s.outputLength }

// Input returns the i-th input signal. The slice must not be modified.
func (s *Set) Input(i int) []float64 { return s.inputs[i] }

// Output returns the i-th output signal. The slice must not be modified.
func (s *Set) Output(i int) []float64 { return s.outputs[i] }

// EvaluatingIndices returns the held-out subset
func (s *Set) EvaluatingIndices() []int { return s.evaluating }

// TrainingIndices returns every index outside of the evaluating subset, or
// every index when the whole set is held out.
func (s *Set) TrainingIndices() []int {
	if len(s.training) == 0 {
		all := make([]int, len(s.inputs))
		for i := range all {
			all[i] = i
		}
		return all
	}
	return s.training
}

// =============================================================================
// Normalization
// =============================================================================

// Normalization holds the per-component statistics used to center and scale
// input signals.
type Normalization struct {
	Means  []float64 `json:"means"`
	Sigmas []float64 `json:"sigmas"`
}

// Normalize centers every input component and scales it to unit standard
// deviation. Statistics come from the training subset and are applied to all
// signals. Components with no spread are only centered.
func (s *Set) Normalize() *Normalization {
	norm := &Normalization{
		Means:  make([]float64, s.inputLength),
		Sigmas: make([]float64, s.inputLength),
	}

	indices := s.TrainingIndices()
	column := make([]float64, len(indices))
	for j := 0; j < s.inputLength; j++ {
		for k, i := range indices {
			column[k] = s.inputs[i][j]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		norm.Means[j], norm.Sigmas[j] = mean, std
	}

	for _, in := range s.inputs {
		norm.apply(in, in)
	}
	s.normalization = norm
	return norm
}

// Normalization returns the statistics of the last Normalize call, or nil
func (s *Set) Normalization() *Normalization { return s.normalization }

// NormalizeSignal returns a normalized copy of signal
func (n *Normalization) NormalizeSignal(signal []float64) ([]float64, error) {
	if len(signal) != len(n.Means) {
		return nil, errors.Wrapf(nn.ErrDimensionMismatch, "signal has length %d, expected %d", len(signal), len(n.Means))
	}
	out := make([]float64, len(signal))
	n.apply(out, signal)
	return out, nil
}

func (n *Normalization) apply(dst, src []float64) {
	for j, v := range src {
		dst[j] = (v - n.Means[j]) / n.Sigmas[j]
	}
}

// =============================================================================
// JSON
// =============================================================================

// Definition is the JSON form of a training set
type Definition struct {
	InputLength  int      `json:"input_length"`
	OutputLength int      `json:"output_length"`
	Signals      []Signal `json:"signals"`
}

// Signal is one input/output pair
type Signal struct {
	Input  []float64 `json:"input"`
	Output []float64 `json:"output"`
}

// ReadJSON decodes a Definition from r and builds a Set from it
func ReadJSON(r io.Reader, opts ...Option) (*Set, error) {
	var def Definition
	if err := json.NewDecoder(r).Decode(&def); err != nil {
		return nil, errors.Wrap(err, "failed to decode data")
	}

	inputs := make([][]float64, len(def.Signals))
	outputs := make([][]float64, len(def.Signals))
	for i, sig := range def.Signals {
		if def.InputLength != 0 && len(sig.Input) != def.InputLength {
			return nil, errors.Wrapf(nn.ErrDimensionMismatch, "signal %d input has length %d, declared %d", i, len(sig.Input), def.InputLength)
		}
		if def.OutputLength != 0 && len(sig.Output) != def.OutputLength {
			return nil, errors.Wrapf(nn.ErrDimensionMismatch, "signal %d output has length %d, declared %d", i, len(sig.Output), def.OutputLength)
		}
		inputs[i], outputs[i] = sig.Input, sig.Output
	}
	return New(inputs, outputs, opts...)
}

// Load reads a JSON training set from filename
func Load(filename string, opts ...Option) (*Set, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open data")
	}
	defer f.Close()

	return ReadJSON(f, opts...)
}

// Definition returns the JSON form of the set
func (s *Set) Definition() Definition {
	def := Definition{
		InputLength:  s.inputLength,
		OutputLength: s.outputLength,
		Signals:      make([]Signal, len(s.inputs)),
	}
	for i := range s.inputs {
		def.Signals[i] = Signal{Input: s.inputs[i], Output: s.outputs[i]}
	}
	return def
}
