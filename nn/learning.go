package nn

import "math"

// LearningType defines the rule used to turn a gradient into a weight correction
type LearningType int

const (
	LearningBackPropagation LearningType = 0 // gradient descent, optional momentum
	LearningResilient       LearningType = 1 // RProp sign based step adaptation
)

func (l LearningType) String() string {
	switch l {
	case LearningResilient:
		return "Resilient"
	default:
		return "BackPropagation"
	}
}

// learn applies the configured learning rule to w for the given gradient.
// For an input weight the gradient is neuron delta * input, for a bias it is
// the neuron delta itself.
func (s *Settings) learn(w *Weight, gradient float64) {
	switch s.Learning {
	case LearningResilient:
		s.resilient(w, gradient)
	default:
		s.backpropagation(w, gradient)
	}
}

func (s *Settings) backpropagation(w *Weight, gradient float64) {
	w.correction = -s.LearningRate*gradient + s.Momentum*w.correction
	w.ApplyCorrection()
}

// resilient implements one RProp step for a single weight.
func (s *Settings) resilient(w *Weight, gradient float64) {
	product := w.gradient * gradient

	switch {
	case product > 0.0:
		w.delta = math.Min(w.delta*s.EtaPositive, s.DeltaMax)
		w.correction = -sign(gradient) * w.delta
		w.gradient = gradient
	case product < 0.0:
		// step back: undo the previous move and restart sign tracking
		w.delta = math.Max(w.delta*s.EtaNegative, s.DeltaMin)
		w.correction = -w.correction
		w.gradient = 0.0
	default:
		// fresh start, current step size without growth
		w.delta = clamp(w.delta, s.DeltaMin, s.DeltaMax)
		w.correction = -sign(gradient) * w.delta
		w.gradient = gradient
	}

	w.ApplyCorrection()
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1.0
	case v < 0:
		return -1.0
	default:
		return 0.0
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
