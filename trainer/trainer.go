// Package trainer drives mini-batch training of a network one step at a
// time, so that callers can report progress, checkpoint and resume.
package trainer

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/openfluke/brain/nn"
)

// trainingSet is implemented by data sets that keep a training subset apart
// from the evaluating one.
type trainingSet interface {
	TrainingIndices() []int
}

// Trainer trains a network on a data set with random mini-batches. Every
// Step accumulates MinibatchSize samples, applies their averaged gradients
// and recomputes the error over the evaluating subset.
type Trainer struct {
	network *nn.Network
	data    nn.Data
	pool    []int

	maxIterations int
	targetError   float64
	batchSize     int

	iterations int
	err        float64

	rng *rand.Rand
	log logrus.FieldLogger
}

type options struct {
	rng           *rand.Rand
	log           logrus.FieldLogger
	maxIterations int
	targetError   *float64
	batchSize     int
}

// Option configures New
type Option func(*options)

// WithSeed seeds the generator drawing mini-batches
func WithSeed(seed int64) Option {
	return func(o *options) { o.rng = rand.New(rand.NewSource(seed)) }
}

// WithRand makes the trainer draw mini-batches from rng
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

// WithLogger sets the trainer logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) { o.log = l }
}

// WithMaxIterations overrides Settings.MaxIterations
func WithMaxIterations(n int) Option {
	return func(o *options) { o.maxIterations = n }
}

// WithTargetError overrides Settings.TargetError
func WithTargetError(e float64) Option {
	return func(o *options) { o.targetError = &e }
}

// WithMinibatchSize overrides Settings.MinibatchSize
func WithMinibatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// New creates a trainer for network on d. Budgets default to the network settings.
func New(network *nn.Network, d nn.Data, opts ...Option) (*Trainer, error) {
	if network == nil {
		return nil, errors.New("trainer needs a network")
	}
	if err := network.CheckData(d); err != nil {
		return nil, err
	}

	settings := network.Settings()
	o := options{
		rng:           network.Rand(),
		log:           network.Logger(),
		maxIterations: settings.MaxIterations,
		batchSize:     settings.MinibatchSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxIterations <= 0 {
		return nil, errors.Wrapf(nn.ErrConstruction, "max iterations must be positive, got %d", o.maxIterations)
	}
	if o.batchSize <= 0 {
		return nil, errors.Wrapf(nn.ErrConstruction, "minibatch size must be positive, got %d", o.batchSize)
	}

	t := &Trainer{
		network:       network,
		data:          d,
		maxIterations: o.maxIterations,
		targetError:   settings.TargetError,
		batchSize:     o.batchSize,
		rng:           o.rng,
		log:           o.log,
	}
	if o.targetError != nil {
		t.targetError = *o.targetError
	}
	t.err = t.targetError + 1.0

	if ts, ok := d.(trainingSet); ok {
		t.pool = ts.TrainingIndices()
	}
	if len(t.pool) == 0 {
		t.pool = make([]int, d.Len())
		for i := range t.pool {
			t.pool[i] = i
		}
	}

	return t, nil
}

// IsRunning reports whether another Step is needed: the iteration budget is
// not exhausted and the error is still above the target.
func (t *Trainer) IsRunning() bool {
	return t.iterations < t.maxIterations && t.err > t.targetError
}

// Step runs one mini-batch iteration
func (t *Trainer) Step() error {
	batch := make([]int, t.batchSize)
	for k := range batch {
		batch[k] = t.pool[t.rng.Intn(len(t.pool))]
	}

	if _, err := t.network.TrainBatch(t.data, batch); err != nil {
		return errors.Wrapf(err, "iteration %d", t.iterations)
	}

	e, err := t.network.MeanError(t.data)
	if err != nil {
		return errors.Wrapf(err, "iteration %d", t.iterations)
	}
	t.err = e
	t.iterations++

	t.log.WithFields(logrus.Fields{
		"iteration": t.iterations,
		"error":     t.err,
	}).Debug("trainer step")

	return nil
}

// Run steps until IsRunning reports false. The context is checked between
// steps only.
func (t *Trainer) Run(ctx context.Context) error {
	for t.IsRunning() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.Step(); err != nil {
			return err
		}
	}

	t.log.WithFields(logrus.Fields{
		"iterations": t.iterations,
		"error":      t.err,
		"converged":  t.Converged(),
	}).Info("training finished")

	return nil
}

// Progress returns the share of the iteration budget already spent
func (t *Trainer) Progress() float64 {
	return float64(t.iterations) / float64(t.maxIterations)
}

// Error returns the current error level over the evaluating subset
func (t *Trainer) Error() float64 { return t.err }

// Converged reports whether the error reached the target
func (t *Trainer) Converged() bool { return t.err <= t.targetError }

// Iterations returns the number of steps run so far
func (t *Trainer) Iterations() int { return t.iterations }

// Network returns the trained network
func (t *Trainer) Network() *nn.Network { return t.network }

// Save writes the current weights to path
func (t *Trainer) Save(path string) error {
	return t.network.SaveWeights(path)
}

// Restore loads the weights saved at path and resumes the progression at the
// given progress and error level.
func (t *Trainer) Restore(path string, progress, errorLevel float64) error {
	if err := t.network.LoadWeights(path); err != nil {
		return err
	}
	t.iterations = int(float64(t.maxIterations) * progress)
	t.err = errorLevel
	return nil
}
