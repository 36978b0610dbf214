package nn

import "math"

// CostType defines the cost function measured on the output layer
type CostType int

const (
	CostQuadratic    CostType = 0 // 0.5 * (o - d)^2
	CostCrossEntropy CostType = 1 // -(d*ln(o) + (1-d)*ln(1-o))
)

// outputs are kept this far from 0 and 1 before taking logarithms
const crossEntropyEpsilon = 1e-12

// Cost returns the cost of a single output against its desired value.
func (c CostType) Cost(output, desired float64) float64 {
	switch c {
	case CostCrossEntropy:
		o := clampUnit(output)
		return -(desired*math.Log(o) + (1.0-desired)*math.Log(1.0-o))
	default:
		diff := output - desired
		return 0.5 * diff * diff
	}
}

// Derivative returns the derivative of Cost with respect to the output.
func (c CostType) Derivative(output, desired float64) float64 {
	switch c {
	case CostCrossEntropy:
		o := clampUnit(output)
		return (o - desired) / (o * (1.0 - o))
	default:
		return output - desired
	}
}

func (c CostType) String() string {
	switch c {
	case CostCrossEntropy:
		return "CrossEntropy"
	default:
		return "Quadratic"
	}
}

func clampUnit(v float64) float64 {
	return math.Min(math.Max(v, crossEntropyEpsilon), 1.0-crossEntropyEpsilon)
}
