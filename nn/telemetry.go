package nn

// NetworkBlueprint contains the structural information of a set of networks
type NetworkBlueprint struct {
	Models []ModelTelemetry `json:"models"`
}

// ModelTelemetry represents a single network's structure
type ModelTelemetry struct {
	ID          string           `json:"id"`
	Inputs      int              `json:"inputs"`
	Outputs     int              `json:"outputs"`
	TotalLayers int              `json:"total_layers"`
	TotalParams int              `json:"total_parameters"`
	Learning    string           `json:"learning"`
	Cost        string           `json:"cost"`
	Layers      []LayerTelemetry `json:"layers"`
}

// LayerTelemetry contains metadata about a specific layer
type LayerTelemetry struct {
	Index       int     `json:"index"`
	Role        string  `json:"role"` // input, hidden or output
	Neurons     int     `json:"neurons"`
	Inputs      int     `json:"inputs"`
	Activation  string  `json:"activation,omitempty"`
	Parameters  int     `json:"parameters"`
	Trainable   bool    `json:"trainable"`
	DropoutRate float64 `json:"dropout_rate,omitempty"`
}

// ExtractNetworkBlueprint extracts telemetry data from a network
func ExtractNetworkBlueprint(n *Network) ModelTelemetry {
	telemetry := ModelTelemetry{
		ID:          n.id.String(),
		Inputs:      n.InputLength(),
		Outputs:     n.OutputLength(),
		TotalLayers: len(n.layers),
		Learning:    n.settings.Learning.String(),
		Cost:        n.settings.Cost.String(),
		Layers:      make([]LayerTelemetry, 0, len(n.layers)),
	}

	topology := n.Topology()
	first := n.firstTrained()

	for i, l := range n.layers {
		tel := LayerTelemetry{
			Index:      i,
			Neurons:    l.Len(),
			Inputs:     l.Inputs(),
			Activation: topology.Layers[i].Activation,
			Parameters: l.Len() * (l.Inputs() + 1), // weights + biases
			Trainable:  i >= first,
		}
		switch {
		case i == len(n.layers)-1:
			tel.Role = "output"
		case i == 0:
			tel.Role = "input"
		default:
			tel.Role = "hidden"
			if n.settings.DropoutEnabled {
				tel.DropoutRate = n.settings.DropoutRate
			}
		}

		telemetry.Layers = append(telemetry.Layers, tel)
		telemetry.TotalParams += tel.Parameters
	}

	return telemetry
}

// ExtractBlueprint collects the telemetry of several networks
func ExtractBlueprint(networks ...*Network) NetworkBlueprint {
	bp := NetworkBlueprint{Models: make([]ModelTelemetry, 0, len(networks))}
	for _, n := range networks {
		bp.Models = append(bp.Models, ExtractNetworkBlueprint(n))
	}
	return bp
}
