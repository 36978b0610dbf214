package nn

import (
	"sort"
	"strings"
)

// activationRegistry maps every accepted activation name to its type.
// Lookups are case insensitive and ignore '-' and '_'.
var activationRegistry = map[string]ActivationType{
	"identity": ActivationIdentity,
	"linear":   ActivationIdentity,
	"sigmoid":  ActivationSigmoid,
	"tanh":     ActivationTanH,
	"arctan":   ActivationArcTan,
	"softplus": ActivationSoftPlus,
	"sinusoid": ActivationSinusoid,
	"sinus":    ActivationSinusoid,
}

var costRegistry = map[string]CostType{
	"quadratic":    CostQuadratic,
	"mse":          CostQuadratic,
	"crossentropy": CostCrossEntropy,
}

var learningRegistry = map[string]LearningType{
	"backpropagation": LearningBackPropagation,
	"backprop":        LearningBackPropagation,
	"resilient":       LearningResilient,
	"rprop":           LearningResilient,
}

func registryKey(name string) string {
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(name))
}

// LookupActivation returns the activation type registered under name
func LookupActivation(name string) (ActivationType, bool) {
	a, ok := activationRegistry[registryKey(name)]
	return a, ok
}

// LookupCost returns the cost type registered under name
func LookupCost(name string) (CostType, bool) {
	c, ok := costRegistry[registryKey(name)]
	return c, ok
}

// LookupLearning returns the learning type registered under name
func LookupLearning(name string) (LearningType, bool) {
	l, ok := learningRegistry[registryKey(name)]
	return l, ok
}

// ParseActivation resolves name, falling back to Sigmoid with a warning when
// the name is not recognized. An empty name silently yields Sigmoid.
func ParseActivation(name string) ActivationType {
	if a, ok := LookupActivation(name); ok {
		return a
	}
	if name != "" {
		logger.WithField("activation", name).Warn("unknown activation function, using Sigmoid")
	}
	return ActivationSigmoid
}

// ParseCost resolves name, falling back to Quadratic with a warning.
func ParseCost(name string) CostType {
	if c, ok := LookupCost(name); ok {
		return c
	}
	if name != "" {
		logger.WithField("cost", name).Warn("unknown cost function, using Quadratic")
	}
	return CostQuadratic
}

// ParseLearning resolves name, falling back to BackPropagation with a warning.
func ParseLearning(name string) LearningType {
	if l, ok := LookupLearning(name); ok {
		return l
	}
	if name != "" {
		logger.WithField("learning", name).Warn("unknown learning function, using BackPropagation")
	}
	return LearningBackPropagation
}

// ListActivations returns the canonical names of all activation functions
func ListActivations() []string {
	seen := map[string]bool{}
	for _, a := range activationRegistry {
		seen[a.String()] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
