package flavor

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/openfluke/brain/nn"
)

// MLPName is the name the multilayer perceptron flavor registers under
const MLPName = "mlp"

func init() {
	if err := Register(MLPName, func() Trainable { return NewMLP() }); err != nil {
		panic(err.Error())
	}
}

// MLP is the multilayer perceptron flavor backed by package nn
type MLP struct {
	config  nn.NetworkConfig
	network *nn.Network
	opts    []nn.Option
}

// NewMLP returns an unloaded MLP flavor. The options are passed to every
// network it builds.
func NewMLP(opts ...nn.Option) *MLP {
	return &MLP{opts: opts}
}

// Load reads a JSON network description and builds the network
func (m *MLP) Load(topology io.Reader) error {
	var config nn.NetworkConfig
	if err := json.NewDecoder(topology).Decode(&config); err != nil {
		return errors.Wrap(err, "failed to decode topology")
	}

	network, err := nn.BuildNetwork(config, m.opts...)
	if err != nil {
		return err
	}
	m.config, m.network = config, network
	return nil
}

// Configure reads JSON settings and rebuilds the network with them. The
// current weights are kept.
func (m *MLP) Configure(settings io.Reader) error {
	if m.network == nil {
		return ErrNotLoaded
	}

	s, err := nn.ReadSettings(settings)
	if err != nil {
		return err
	}
	weights := m.network.Serialize()

	def := s.Definition()
	config := m.config
	config.Settings = &def

	network, err := nn.BuildNetwork(config, append([]nn.Option{nn.WithID(m.network.ID()), nn.WithRand(m.network.Rand())}, m.opts...)...)
	if err != nil {
		return err
	}
	if err := network.Deserialize(weights); err != nil {
		return err
	}
	m.config, m.network = config, network
	return nil
}

// Serialize writes the network weights as JSON
func (m *MLP) Serialize(w io.Writer) error {
	if m.network == nil {
		return ErrNotLoaded
	}
	return errors.Wrap(json.NewEncoder(w).Encode(m.network.Serialize()), "failed to encode weights")
}

// Deserialize reads JSON weights into the network
func (m *MLP) Deserialize(r io.Reader) error {
	if m.network == nil {
		return ErrNotLoaded
	}

	var weights nn.WeightsData
	if err := json.NewDecoder(r).Decode(&weights); err != nil {
		return errors.Wrap(err, "failed to decode weights")
	}
	return m.network.Deserialize(weights)
}

// Train runs online training on d
func (m *MLP) Train(d nn.Data) (*nn.TrainingResult, error) {
	if m.network == nil {
		return nil, ErrNotLoaded
	}
	return m.network.Train(d)
}

// Predict runs signal through the network without dropout
func (m *MLP) Predict(signal []float64) ([]float64, error) {
	if m.network == nil {
		return nil, ErrNotLoaded
	}
	return m.network.Predict(signal)
}

// Network returns the loaded network, or nil
func (m *MLP) Network() *nn.Network { return m.network }
