package nn

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// Settings holds the hyperparameters and resolved functions shared by every
// neuron of one network. A network keeps its own copy, so changing a Settings
// value after NewNetwork has no effect on the network.
type Settings struct {
	Activation ActivationType
	Cost       CostType
	Learning   LearningType

	// BackPropagation parameters
	LearningRate float64
	Momentum     float64

	// Dropout only applies to hidden layers during training
	DropoutEnabled bool
	DropoutRate    float64

	// Resilient parameters
	DeltaMin    float64
	DeltaMax    float64
	EtaPositive float64
	EtaNegative float64

	// Training loop
	MaxIterations int
	TargetError   float64
	MinibatchSize int

	// Workers > 1 activates and trains the neurons of a layer concurrently
	Workers int

	// TrainInputLayer also updates the weights of layer 0
	TrainInputLayer bool
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		Activation:     ActivationSigmoid,
		Cost:           CostQuadratic,
		Learning:       LearningBackPropagation,
		LearningRate:   1.12,
		Momentum:       0.0,
		DropoutEnabled: false,
		DropoutRate:    0.5,
		DeltaMin:       0.000001,
		DeltaMax:       50.0,
		EtaPositive:    1.2,
		EtaNegative:    0.95,
		MaxIterations:  1000,
		TargetError:    0.001,
		MinibatchSize:  32,
		Workers:        1,
	}
}

// Validate checks every numeric bound. The returned error has ErrConstruction as cause.
func (s Settings) Validate() error {
	switch {
	case s.LearningRate <= 0:
		return errors.Wrapf(ErrConstruction, "learning rate must be positive, got %g", s.LearningRate)
	case s.Momentum < 0 || s.Momentum >= 1:
		return errors.Wrapf(ErrConstruction, "momentum must be in [0, 1), got %g", s.Momentum)
	case s.DropoutRate < 0 || s.DropoutRate >= 1:
		return errors.Wrapf(ErrConstruction, "dropout rate must be in [0, 1), got %g", s.DropoutRate)
	case s.DeltaMin <= 0 || s.DeltaMax < s.DeltaMin:
		return errors.Wrapf(ErrConstruction, "resilient delta bounds [%g, %g] are invalid", s.DeltaMin, s.DeltaMax)
	case s.EtaNegative <= 0 || s.EtaNegative >= 1:
		return errors.Wrapf(ErrConstruction, "resilient eta negative must be in (0, 1), got %g", s.EtaNegative)
	case s.EtaPositive <= 1:
		return errors.Wrapf(ErrConstruction, "resilient eta positive must be above 1, got %g", s.EtaPositive)
	case s.MaxIterations <= 0:
		return errors.Wrapf(ErrConstruction, "max iterations must be positive, got %d", s.MaxIterations)
	case s.TargetError < 0:
		return errors.Wrapf(ErrConstruction, "target error must not be negative, got %g", s.TargetError)
	case s.MinibatchSize <= 0:
		return errors.Wrapf(ErrConstruction, "minibatch size must be positive, got %d", s.MinibatchSize)
	}
	return nil
}

func (s Settings) workers() int {
	if s.Workers < 1 {
		return 1
	}
	return s.Workers
}

// SettingsDefinition is the JSON form of Settings. Functions are referenced by
// name and zero values keep the defaults.
type SettingsDefinition struct {
	Activation      string               `json:"activation,omitempty"`
	CostFunction    string               `json:"cost_function,omitempty"`
	Learning        string               `json:"learning,omitempty"`
	LearningRate    float64              `json:"learning_rate,omitempty"`
	Momentum        float64              `json:"momentum,omitempty"`
	Dropout         *DropoutDefinition   `json:"dropout,omitempty"`
	Resilient       *ResilientDefinition `json:"resilient,omitempty"`
	Iterations      int                  `json:"iterations,omitempty"`
	Error           float64              `json:"error,omitempty"`
	MinibatchSize   int                  `json:"minibatch_size,omitempty"`
	Workers         int                  `json:"workers,omitempty"`
	TrainInputLayer bool                 `json:"train_input_layer,omitempty"`
}

// DropoutDefinition is the JSON form of the dropout settings
type DropoutDefinition struct {
	Enabled bool    `json:"enabled"`
	Rate    float64 `json:"rate"`
}

// ResilientDefinition is the JSON form of the RProp settings
type ResilientDefinition struct {
	DeltaMin    float64 `json:"delta_min,omitempty"`
	DeltaMax    float64 `json:"delta_max,omitempty"`
	EtaPositive float64 `json:"eta_positive,omitempty"`
	EtaNegative float64 `json:"eta_negative,omitempty"`
}

// Settings resolves the definition on top of DefaultSettings.
// Unknown function names fall back to their defaults with a warning.
func (d SettingsDefinition) Settings() Settings {
	s := DefaultSettings()

	if d.Activation != "" {
		s.Activation = ParseActivation(d.Activation)
	}
	if d.CostFunction != "" {
		s.Cost = ParseCost(d.CostFunction)
	}
	if d.Learning != "" {
		s.Learning = ParseLearning(d.Learning)
	}
	if d.LearningRate != 0 {
		s.LearningRate = d.LearningRate
	}
	s.Momentum = d.Momentum
	if d.Dropout != nil {
		s.DropoutEnabled = d.Dropout.Enabled
		s.DropoutRate = d.Dropout.Rate
	}
	if r := d.Resilient; r != nil {
		if r.DeltaMin != 0 {
			s.DeltaMin = r.DeltaMin
		}
		if r.DeltaMax != 0 {
			s.DeltaMax = r.DeltaMax
		}
		if r.EtaPositive != 0 {
			s.EtaPositive = r.EtaPositive
		}
		if r.EtaNegative != 0 {
			s.EtaNegative = r.EtaNegative
		}
	}
	if d.Iterations != 0 {
		s.MaxIterations = d.Iterations
	}
	if d.Error != 0 {
		s.TargetError = d.Error
	}
	if d.MinibatchSize != 0 {
		s.MinibatchSize = d.MinibatchSize
	}
	if d.Workers != 0 {
		s.Workers = d.Workers
	}
	s.TrainInputLayer = d.TrainInputLayer

	return s
}

// Definition returns the JSON form of s
func (s Settings) Definition() SettingsDefinition {
	return SettingsDefinition{
		Activation:   s.Activation.String(),
		CostFunction: s.Cost.String(),
		Learning:     s.Learning.String(),
		LearningRate: s.LearningRate,
		Momentum:     s.Momentum,
		Dropout: &DropoutDefinition{
			Enabled: s.DropoutEnabled,
			Rate:    s.DropoutRate,
		},
		Resilient: &ResilientDefinition{
			DeltaMin:    s.DeltaMin,
			DeltaMax:    s.DeltaMax,
			EtaPositive: s.EtaPositive,
			EtaNegative: s.EtaNegative,
		},
		Iterations:      s.MaxIterations,
		Error:           s.TargetError,
		MinibatchSize:   s.MinibatchSize,
		Workers:         s.Workers,
		TrainInputLayer: s.TrainInputLayer,
	}
}

// ReadSettings decodes a SettingsDefinition from r and validates the result
func ReadSettings(r io.Reader) (Settings, error) {
	var def SettingsDefinition
	if err := json.NewDecoder(r).Decode(&def); err != nil {
		return Settings{}, errors.Wrap(err, "failed to decode settings")
	}

	s := def.Settings()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
