package nn

import (
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	bundleType    = "brain/bundle"
	bundleVersion = 1
	weightsFormat = "jsonModelB64"
)

// ModelBundle represents a collection of saved models
type ModelBundle struct {
	Type    string       `json:"type"`
	Version int          `json:"version"`
	Models  []SavedModel `json:"models"`
}

// SavedModel represents a single saved model with config and weights
type SavedModel struct {
	ID      string         `json:"id"`
	Config  NetworkConfig  `json:"cfg"`
	Weights EncodedWeights `json:"weights"`
}

// NetworkConfig is the JSON description of a network: its topology, its
// settings and optionally a seed for the random initialization.
type NetworkConfig struct {
	ID       string              `json:"id,omitempty"`
	Inputs   int                 `json:"inputs"`
	Settings *SettingsDefinition `json:"settings,omitempty"`
	Layers   []LayerDefinition   `json:"layers"`
	Seed     int64               `json:"seed,omitempty"`
}

// LayerDefinition defines a single layer's configuration
type LayerDefinition struct {
	Neurons     int             `json:"neurons"`
	Inputs      int             `json:"inputs,omitempty"`
	Activation  string          `json:"activation,omitempty"`
	Activations []string        `json:"activations,omitempty"`
	Preset      []NeuronWeights `json:"preset,omitempty"`
}

// EncodedWeights stores weights in base64-encoded JSON format
type EncodedWeights struct {
	Format string `json:"fmt"`
	Data   string `json:"data"`
}

// WeightsData holds every parameter of a network, layer by layer from input
// to output and neuron by neuron.
type WeightsData struct {
	Type   string         `json:"type"`
	Layers []LayerWeights `json:"layers"`
}

// LayerWeights stores the parameters of a single layer
type LayerWeights struct {
	Neurons []NeuronWeights `json:"neurons"`
}

// NeuronWeights stores the bias and the input weights of a single neuron
type NeuronWeights struct {
	Bias    float64   `json:"bias"`
	Weights []float64 `json:"weights"`
}

// Topology converts the config into the shape accepted by NewNetwork
func (c NetworkConfig) Topology() Topology {
	t := Topology{Inputs: c.Inputs, Layers: make([]LayerTopology, len(c.Layers))}
	for i, def := range c.Layers {
		lt := LayerTopology{
			Neurons:     def.Neurons,
			Inputs:      def.Inputs,
			Activation:  def.Activation,
			Activations: def.Activations,
		}
		for _, p := range def.Preset {
			lt.Preset = append(lt.Preset, NeuronPreset{Bias: p.Bias, Weights: p.Weights})
		}
		t.Layers[i] = lt
	}
	return t
}

// Config returns the JSON description of the network, without presets
func (n *Network) Config() NetworkConfig {
	def := n.settings.Definition()
	t := n.Topology()

	config := NetworkConfig{
		ID:       n.id.String(),
		Inputs:   t.Inputs,
		Settings: &def,
		Layers:   make([]LayerDefinition, len(t.Layers)),
	}
	for i, lt := range t.Layers {
		config.Layers[i] = LayerDefinition{
			Neurons:     lt.Neurons,
			Inputs:      lt.Inputs,
			Activation:  lt.Activation,
			Activations: lt.Activations,
		}
	}
	return config
}

// =============================================================================
// Weights
// =============================================================================

// Serialize returns the bias and every input weight of every neuron
func (n *Network) Serialize() WeightsData {
	data := WeightsData{
		Type:   "float64",
		Layers: make([]LayerWeights, len(n.layers)),
	}
	for i, l := range n.layers {
		lw := LayerWeights{Neurons: make([]NeuronWeights, len(l.neurons))}
		for j, neuron := range l.neurons {
			lw.Neurons[j] = NeuronWeights{
				Bias:    neuron.bias.value,
				Weights: neuron.Weights(),
			}
		}
		data.Layers[i] = lw
	}
	return data
}

// Deserialize applies serialized weights positionally. The whole set is
// checked against the topology first: on mismatch the error has
// ErrPersistenceMismatch as cause and no weight is modified.
func (n *Network) Deserialize(data WeightsData) error {
	if len(data.Layers) != len(n.layers) {
		return errors.Wrapf(ErrPersistenceMismatch, "got %d layers, network has %d", len(data.Layers), len(n.layers))
	}
	for i, lw := range data.Layers {
		l := n.layers[i]
		if len(lw.Neurons) != len(l.neurons) {
			return errors.Wrapf(ErrPersistenceMismatch, "layer %d: got %d neurons, expected %d", i, len(lw.Neurons), len(l.neurons))
		}
		for j, nw := range lw.Neurons {
			if len(nw.Weights) != l.neurons[j].Inputs() {
				return errors.Wrapf(ErrPersistenceMismatch, "layer %d neuron %d: got %d weights, expected %d",
					i, j, len(nw.Weights), l.neurons[j].Inputs())
			}
		}
	}

	for i, lw := range data.Layers {
		for j, nw := range lw.Neurons {
			neuron := n.layers[i].neurons[j]
			neuron.bias.value = nw.Bias
			for k, w := range nw.Weights {
				neuron.weights[k].value = w
			}
		}
	}
	return nil
}

// SaveWeights writes the serialized weights as JSON to filename
func (n *Network) SaveWeights(filename string) error {
	data, err := json.MarshalIndent(n.Serialize(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal weights")
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write file")
	}
	return nil
}

// LoadWeights reads weights written by SaveWeights into the network
func (n *Network) LoadWeights(filename string) error {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, "failed to read file")
	}

	var data WeightsData
	if err := json.Unmarshal(raw, &data); err != nil {
		return errors.Wrap(err, "failed to unmarshal weights")
	}
	return n.Deserialize(data)
}

// WeightsDistance returns the largest absolute difference between two sets of
// weights of the same shape.
func WeightsDistance(a, b WeightsData) (float64, error) {
	if len(a.Layers) != len(b.Layers) {
		return 0, errors.Wrapf(ErrPersistenceMismatch, "%d layers against %d", len(a.Layers), len(b.Layers))
	}

	distance := 0.0
	for i := range a.Layers {
		if len(a.Layers[i].Neurons) != len(b.Layers[i].Neurons) {
			return 0, errors.Wrapf(ErrPersistenceMismatch, "layer %d: %d neurons against %d",
				i, len(a.Layers[i].Neurons), len(b.Layers[i].Neurons))
		}
		for j, na := range a.Layers[i].Neurons {
			nb := b.Layers[i].Neurons[j]
			if len(na.Weights) != len(nb.Weights) {
				return 0, errors.Wrapf(ErrPersistenceMismatch, "layer %d neuron %d: %d weights against %d",
					i, j, len(na.Weights), len(nb.Weights))
			}
			distance = max(distance, MaxAbsDiff(na.Weights, nb.Weights), MaxAbsDiff([]float64{na.Bias}, []float64{nb.Bias}))
		}
	}
	return distance, nil
}

// =============================================================================
// Model bundles
// =============================================================================

// SerializeModel converts the network to a SavedModel structure
func (n *Network) SerializeModel() (SavedModel, error) {
	weightsJSON, err := json.Marshal(n.Serialize())
	if err != nil {
		return SavedModel{}, errors.Wrap(err, "failed to marshal weights")
	}

	return SavedModel{
		ID:     n.id.String(),
		Config: n.Config(),
		Weights: EncodedWeights{
			Format: weightsFormat,
			Data:   base64.StdEncoding.EncodeToString(weightsJSON),
		},
	}, nil
}

// DeserializeModel creates a Network from a SavedModel
func DeserializeModel(saved SavedModel, opts ...Option) (*Network, error) {
	if saved.Weights.Format != weightsFormat {
		return nil, errors.Errorf("unsupported weights format %q", saved.Weights.Format)
	}
	id, err := uuid.Parse(saved.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid model id %q", saved.ID)
	}

	raw, err := base64.StdEncoding.DecodeString(saved.Weights.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode weights")
	}
	var weights WeightsData
	if err := json.Unmarshal(raw, &weights); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal weights")
	}

	network, err := BuildNetwork(saved.Config, append([]Option{WithID(id)}, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := network.Deserialize(weights); err != nil {
		return nil, err
	}
	return network, nil
}

// NewBundle serializes the given networks into one bundle
func NewBundle(networks ...*Network) (*ModelBundle, error) {
	bundle := &ModelBundle{
		Type:    bundleType,
		Version: bundleVersion,
		Models:  []SavedModel{},
	}
	for _, network := range networks {
		saved, err := network.SerializeModel()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to serialize model %s", network.id)
		}
		bundle.Models = append(bundle.Models, saved)
	}
	return bundle, nil
}

// SaveModel saves a single model to a file
func (n *Network) SaveModel(filename string) error {
	bundle, err := NewBundle(n)
	if err != nil {
		return err
	}
	return bundle.SaveToFile(filename)
}

// SaveModelToString saves a single model to a JSON string
func (n *Network) SaveModelToString() (string, error) {
	bundle, err := NewBundle(n)
	if err != nil {
		return "", err
	}
	return bundle.SaveToString()
}

// LoadModel loads the model with the given ID from a bundle file. An empty ID
// selects the first model of the bundle.
func LoadModel(filename string, modelID string, opts ...Option) (*Network, error) {
	bundle, err := LoadBundle(filename)
	if err != nil {
		return nil, err
	}
	return bundle.Model(modelID, opts...)
}

// LoadModelFromString loads a single model from a JSON string
func LoadModelFromString(jsonString string, modelID string, opts ...Option) (*Network, error) {
	bundle, err := LoadBundleFromString(jsonString)
	if err != nil {
		return nil, err
	}
	return bundle.Model(modelID, opts...)
}

// Model builds the model with the given ID, or the first one if modelID is empty
func (b *ModelBundle) Model(modelID string, opts ...Option) (*Network, error) {
	for _, saved := range b.Models {
		if modelID == "" || saved.ID == modelID {
			return DeserializeModel(saved, opts...)
		}
	}
	return nil, errors.Errorf("model %q not found in bundle", modelID)
}

// LoadBundle loads a model bundle from a file
func LoadBundle(filename string) (*ModelBundle, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	return LoadBundleFromString(string(data))
}

// LoadBundleFromString loads a model bundle from a JSON string
func LoadBundleFromString(jsonString string) (*ModelBundle, error) {
	var bundle ModelBundle
	if err := json.Unmarshal([]byte(jsonString), &bundle); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal bundle")
	}
	if bundle.Type != bundleType {
		return nil, errors.Errorf("invalid bundle type: %s", bundle.Type)
	}
	if bundle.Version != bundleVersion {
		return nil, errors.Errorf("unsupported bundle version: %d", bundle.Version)
	}
	return &bundle, nil
}

// SaveToString converts the bundle to a JSON string
func (b *ModelBundle) SaveToString() (string, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal bundle")
	}
	return string(data), nil
}

// SaveToFile saves the bundle to a file
func (b *ModelBundle) SaveToFile(filename string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal bundle")
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write file")
	}
	return nil
}

// =============================================================================
// Building from JSON
// =============================================================================

// BuildNetwork creates a network from its JSON description. A missing
// settings object selects DefaultSettings, a non-zero seed seeds the
// generator unless an Option overrides it.
func BuildNetwork(config NetworkConfig, opts ...Option) (*Network, error) {
	settings := DefaultSettings()
	if config.Settings != nil {
		settings = config.Settings.Settings()
	}
	if config.Seed != 0 {
		opts = append([]Option{WithSeed(config.Seed)}, opts...)
	}
	if config.ID != "" {
		if id, err := uuid.Parse(config.ID); err == nil {
			opts = append([]Option{WithID(id)}, opts...)
		}
	}
	return NewNetwork(config.Topology(), settings, opts...)
}

// BuildNetworkFromJSON creates a network from a JSON configuration string
func BuildNetworkFromJSON(jsonConfig string, opts ...Option) (*Network, error) {
	var config NetworkConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return BuildNetwork(config, opts...)
}

// BuildNetworkFromFile creates a network from a JSON configuration file
func BuildNetworkFromFile(filename string, opts ...Option) (*Network, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	return BuildNetworkFromJSON(string(data), opts...)
}
