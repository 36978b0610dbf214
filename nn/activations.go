package nn

import (
	"math"
)

// ActivationType defines the activation function used by a neuron
type ActivationType int

const (
	ActivationIdentity ActivationType = 0 // v
	ActivationSigmoid  ActivationType = 1 // 1 / (1 + exp(-v))
	ActivationTanH     ActivationType = 2 // tanh(v)
	ActivationArcTan   ActivationType = 3 // atan(v)
	ActivationSoftPlus ActivationType = 4 // log(1 + exp(v))
	ActivationSinusoid ActivationType = 5 // sin(v)
)

// Activate applies the activation function to the pre-activation value v.
// Unknown types behave as Sigmoid.
func (a ActivationType) Activate(v float64) float64 {
	switch a {
	case ActivationIdentity:
		return v
	case ActivationTanH:
		return math.Tanh(v)
	case ActivationArcTan:
		return math.Atan(v)
	case ActivationSoftPlus:
		return math.Log1p(math.Exp(v))
	case ActivationSinusoid:
		return math.Sin(v)
	default:
		return sigmoid(v)
	}
}

// Derivative computes the derivative of the activation function
// Note: This computes the derivative with respect to the PRE-activation value
func (a ActivationType) Derivative(v float64) float64 {
	switch a {
	case ActivationIdentity:
		return 1.0
	case ActivationTanH:
		// d/dv tanh(v) = 1 - tanh^2(v)
		t := math.Tanh(v)
		return 1.0 - t*t
	case ActivationArcTan:
		return 1.0 / (1.0 + v*v)
	case ActivationSoftPlus:
		// d/dv log(1 + e^v) = sigmoid(v)
		return sigmoid(v)
	case ActivationSinusoid:
		return math.Cos(v)
	default:
		s := sigmoid(v)
		return s * (1.0 - s)
	}
}

func (a ActivationType) String() string {
	switch a {
	case ActivationIdentity:
		return "Identity"
	case ActivationSigmoid:
		return "Sigmoid"
	case ActivationTanH:
		return "TanH"
	case ActivationArcTan:
		return "ArcTan"
	case ActivationSoftPlus:
		return "SoftPlus"
	case ActivationSinusoid:
		return "Sinusoid"
	default:
		return "Sigmoid"
	}
}

func sigmoid(v float64) float64 {
	return 1.0 / (1.0 + math.Exp(-v))
}
