package nn

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Data is the training set consumed by Train. Every signal returned by Input
// has length InputLength, every signal returned by Output has length
// OutputLength. EvaluatingIndices is the held-out subset used by Evaluate.
type Data interface {
	Len() int
	InputLength() int
	OutputLength() int
	Input(i int) []float64
	Output(i int) []float64
	EvaluatingIndices() []int
}

// TrainingResult reports how a training run ended. Converged is false when the
// iteration budget ran out before the error reached Settings.TargetError.
type TrainingResult struct {
	Converged     bool
	Iterations    int
	FinalError    float64
	BestError     float64
	TotalTime     time.Duration
	AvgThroughput float64   // samples per second
	ErrorHistory  []float64 // error per iteration
}

// logEvery is the iteration interval of training progress logs
const logEvery = 100

// CheckData verifies that d is not empty and fits the network signal lengths
func (n *Network) CheckData(d Data) error {
	if d == nil || d.Len() == 0 {
		return ErrNoData
	}
	if d.InputLength() != n.InputLength() {
		return errDimension("data input", d.InputLength(), n.InputLength())
	}
	if d.OutputLength() != n.OutputLength() {
		return errDimension("data output", d.OutputLength(), n.OutputLength())
	}
	return nil
}

// Train runs online training: every iteration draws one sample uniformly
// from d, feeds it forward and backpropagates it. Training stops at the first
// iteration whose error is at most Settings.TargetError, or after
// Settings.MaxIterations iterations.
func (n *Network) Train(d Data) (*TrainingResult, error) {
	if err := n.CheckData(d); err != nil {
		return nil, err
	}

	return n.train(func() (float64, int, error) {
		i := n.rng.Intn(d.Len())
		if _, err := n.Feedforward(d.Input(i)); err != nil {
			return 0, 0, errors.Wrapf(err, "sample %d", i)
		}
		e, err := n.Backpropagate(d.Output(i))
		if err != nil {
			return 0, 0, errors.Wrapf(err, "sample %d", i)
		}
		return e, 1, nil
	})
}

// TrainMinibatch trains like Train, except that every iteration accumulates
// the gradients of Settings.MinibatchSize random samples and applies their
// average once. The iteration error is the mean sample error of the batch.
func (n *Network) TrainMinibatch(d Data) (*TrainingResult, error) {
	if err := n.CheckData(d); err != nil {
		return nil, err
	}

	return n.train(func() (float64, int, error) {
		e, err := n.TrainBatch(d, n.randomBatch(d.Len(), n.settings.MinibatchSize))
		return e, n.settings.MinibatchSize, err
	})
}

// TrainBatch accumulates the gradients of the given samples, applies their
// average and returns the mean sample error.
func (n *Network) TrainBatch(d Data, indices []int) (float64, error) {
	if len(indices) == 0 {
		return 0, ErrNoData
	}

	total := 0.0
	for _, i := range indices {
		if _, err := n.Feedforward(d.Input(i)); err != nil {
			return 0, errors.Wrapf(err, "sample %d", i)
		}
		e, err := n.Accumulate(d.Output(i))
		if err != nil {
			return 0, errors.Wrapf(err, "sample %d", i)
		}
		total += e
	}
	n.Update(len(indices))

	return total / float64(len(indices)), nil
}

func (n *Network) randomBatch(length, size int) []int {
	batch := make([]int, size)
	for k := range batch {
		batch[k] = n.rng.Intn(length)
	}
	return batch
}

func (n *Network) train(step func() (float64, int, error)) (*TrainingResult, error) {
	result := &TrainingResult{
		BestError:    math.MaxFloat64,
		ErrorHistory: make([]float64, 0, n.settings.MaxIterations),
	}

	start := time.Now()
	samples := 0

	for it := 0; it < n.settings.MaxIterations; it++ {
		e, count, err := step()
		if err != nil {
			return nil, err
		}
		samples += count

		result.Iterations++
		result.FinalError = e
		result.ErrorHistory = append(result.ErrorHistory, e)
		if e < result.BestError {
			result.BestError = e
		}

		if it%logEvery == 0 {
			n.log.WithFields(logrus.Fields{
				"iteration": it,
				"error":     e,
			}).Debug("training")
		}

		if e <= n.settings.TargetError {
			result.Converged = true
			break
		}
	}

	result.TotalTime = time.Since(start)
	if seconds := result.TotalTime.Seconds(); seconds > 0 {
		result.AvgThroughput = float64(samples) / seconds
	}

	n.log.WithFields(logrus.Fields{
		"model":      n.id.String(),
		"iterations": result.Iterations,
		"error":      result.FinalError,
		"converged":  result.Converged,
	}).Debug("training finished")

	return result, nil
}
