package nn

import "math/rand"

// initialDelta is the RProp step size a fresh weight starts with
const initialDelta = 0.01

// Weight is a scalar parameter together with its optimizer state.
// The gradient field holds the last gradient seen by the Resilient rule,
// delta its current step size and correction the last change applied to value.
type Weight struct {
	value      float64
	gradient   float64
	delta      float64
	correction float64
}

// NewWeight returns a weight drawn uniformly from [-limit, limit]
func NewWeight(limit float64, rng *rand.Rand) Weight {
	return Weight{
		value: (rng.Float64()*2.0 - 1.0) * limit,
		delta: initialDelta,
	}
}

// ApplyCorrection adds the stored correction to the value
func (w *Weight) ApplyCorrection() {
	w.value += w.correction
}

func (w *Weight) Value() float64      { return w.value }
func (w *Weight) Gradient() float64   { return w.gradient }
func (w *Weight) Delta() float64      { return w.delta }
func (w *Weight) Correction() float64 { return w.correction }

func (w *Weight) SetValue(v float64)      { w.value = v }
func (w *Weight) SetGradient(g float64)   { w.gradient = g }
func (w *Weight) SetDelta(d float64)      { w.delta = d }
func (w *Weight) SetCorrection(c float64) { w.correction = c }
