package nn

import (
	"encoding/json"
	"math"
	"os"
	"sort"

	"github.com/pkg/errors"
)

/*
Deviation buckets group every output component of an evaluated sample by
how far the prediction lies from the expected value, in percent:

  0-10%    close to the target
  10-50%   in four buckets of 10%
  50-100%  significantly off
  100%+    failure
*/

// DeviationBucket represents a specific deviation percentage range
type DeviationBucket struct {
	RangeMin float64 `json:"range_min"`
	RangeMax float64 `json:"range_max"`
	Count    int     `json:"count"`
	Samples  []int   `json:"samples"`
}

// MarshalJSON replaces the infinite upper bound of the last bucket
func (db DeviationBucket) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		RangeMin float64 `json:"range_min"`
		RangeMax float64 `json:"range_max"`
		Count    int     `json:"count"`
		Samples  []int   `json:"samples"`
	}{
		RangeMin: sanitizeFloat(db.RangeMin),
		RangeMax: sanitizeFloat(db.RangeMax),
		Count:    db.Count,
		Samples:  db.Samples,
	})
}

// PredictionResult is the outcome of one output component of one sample
type PredictionResult struct {
	SampleIndex    int     `json:"sample_index"`
	Output         int     `json:"output"`
	ExpectedOutput float64 `json:"expected"`
	ActualOutput   float64 `json:"actual"`
	Deviation      float64 `json:"deviation"`
	Bucket         string  `json:"bucket"`
}

// Evaluation is the result of Evaluate
type Evaluation struct {
	MeanError        float64                     `json:"mean_error"`
	Buckets          map[string]*DeviationBucket `json:"buckets"`
	Score            float64                     `json:"score"` // average quality score (0-100)
	TotalSamples     int                         `json:"total_samples"`
	Failures         int                         `json:"failures"`
	AverageDeviation float64                     `json:"avg_deviation"`
	Results          []PredictionResult          `json:"results"`
}

var bucketOrder = []string{"0-10%", "10-20%", "20-30%", "30-40%", "40-50%", "50-100%", "100%+"}

func newEvaluation() *Evaluation {
	return &Evaluation{
		Buckets: map[string]*DeviationBucket{
			"0-10%":   {0, 10, 0, []int{}},
			"10-20%":  {10, 20, 0, []int{}},
			"20-30%":  {20, 30, 0, []int{}},
			"30-40%":  {30, 40, 0, []int{}},
			"40-50%":  {40, 50, 0, []int{}},
			"50-100%": {50, 100, 0, []int{}},
			"100%+":   {100, math.Inf(1), 0, []int{}},
		},
		Results: []PredictionResult{},
	}
}

// EvaluatePrediction places an expected/actual pair into a deviation bucket
func EvaluatePrediction(sample, output int, expected, actual float64) PredictionResult {
	var deviation float64
	if math.Abs(expected) < 1e-10 {
		deviation = math.Abs(actual-expected) * 100
	} else {
		deviation = math.Abs((actual - expected) / expected * 100)
	}
	if math.IsNaN(deviation) || math.IsInf(deviation, 0) {
		deviation = 100
	}

	bucket := bucketOrder[len(bucketOrder)-1]
	for _, limit := range []struct {
		max  float64
		name string
	}{{10, "0-10%"}, {20, "10-20%"}, {30, "20-30%"}, {40, "30-40%"}, {50, "40-50%"}, {100, "50-100%"}} {
		if deviation <= limit.max {
			bucket = limit.name
			break
		}
	}

	return PredictionResult{
		SampleIndex:    sample,
		Output:         output,
		ExpectedOutput: expected,
		ActualOutput:   actual,
		Deviation:      deviation,
		Bucket:         bucket,
	}
}

func (e *Evaluation) add(result PredictionResult) {
	bucket := e.Buckets[result.Bucket]
	bucket.Count++
	bucket.Samples = append(bucket.Samples, result.SampleIndex)

	e.TotalSamples++
	if result.Bucket == "100%+" {
		e.Failures++
	}
	e.Results = append(e.Results, result)
	e.Score += math.Max(0, 100-result.Deviation)
}

func (e *Evaluation) finish() {
	if e.TotalSamples == 0 {
		e.Score = 0
		return
	}
	e.Score = math.Max(0, e.Score/float64(e.TotalSamples))

	total := 0.0
	for _, r := range e.Results {
		total += r.Deviation
	}
	e.AverageDeviation = total / float64(e.TotalSamples)
}

// Evaluate runs the evaluating subset of d through the network without
// dropout and without training. MeanError is the sample error of
// Backpropagate averaged over the subset. When the subset is empty every
// sample is evaluated.
func (n *Network) Evaluate(d Data) (*Evaluation, error) {
	if err := n.CheckData(d); err != nil {
		return nil, err
	}

	indices := evaluatingIndices(d)

	eval := newEvaluation()
	total := 0.0
	for _, i := range indices {
		output, err := n.Predict(d.Input(i))
		if err != nil {
			return nil, errors.Wrapf(err, "sample %d", i)
		}
		desired := d.Output(i)

		for j, o := range output {
			eval.add(EvaluatePrediction(i, j, desired[j], o))
		}
		total += n.sampleError(output, desired)
	}

	eval.MeanError = total / float64(len(indices))
	eval.finish()
	return eval, nil
}

// MeanError returns the sample error averaged over the evaluating subset of d
// (every sample when the subset is empty). Dropout is not applied.
func (n *Network) MeanError(d Data) (float64, error) {
	if err := n.CheckData(d); err != nil {
		return 0, err
	}

	indices := evaluatingIndices(d)
	total := 0.0
	for _, i := range indices {
		output, err := n.Predict(d.Input(i))
		if err != nil {
			return 0, errors.Wrapf(err, "sample %d", i)
		}
		total += n.sampleError(output, d.Output(i))
	}
	return total / float64(len(indices)), nil
}

func (n *Network) sampleError(output, desired []float64) float64 {
	cost := 0.0
	for j, o := range output {
		cost += n.settings.Cost.Cost(o, desired[j])
	}
	return cost / float64(len(output))
}

func evaluatingIndices(d Data) []int {
	indices := d.EvaluatingIndices()
	if len(indices) == 0 {
		indices = make([]int, d.Len())
		for i := range indices {
			indices[i] = i
		}
	}
	return indices
}

// WorstPredictions returns the count predictions with the highest deviation
func (e *Evaluation) WorstPredictions(count int) []PredictionResult {
	sorted := append([]PredictionResult(nil), e.Results...)
	sort.Slice(sorted, func(a, b int) bool {
		return sorted[a].Deviation > sorted[b].Deviation
	})
	if count < len(sorted) {
		sorted = sorted[:count]
	}
	return sorted
}

// Save writes the evaluation as JSON to path
func (e *Evaluation) Save(path string) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal evaluation")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0644), "failed to write %s", path)
}

func sanitizeFloat(v float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	case math.IsNaN(v):
		return 0
	}
	return v
}
