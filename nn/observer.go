package nn

import (
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// EventType tells forward events from backward ones
type EventType string

const (
	EventForward  EventType = "forward"
	EventBackward EventType = "backward"
)

// LayerStats summarizes a layer signal
type LayerStats struct {
	Mean          float64 `json:"mean"`
	Max           float64 `json:"max"`
	Min           float64 `json:"min"`
	ActiveNeurons int     `json:"active_neurons"`
	TotalNeurons  int     `json:"total_neurons"`
}

// LayerEvent is sent to a LayerObserver after every layer pass. Values holds
// the layer output for forward events and the neuron deltas for backward ones.
type LayerEvent struct {
	Type   EventType  `json:"type"`
	Layer  int        `json:"layer"`
	Hidden bool       `json:"hidden"`
	Stats  LayerStats `json:"stats"`
	Values []float64  `json:"values,omitempty"`
}

// LayerObserver receives layer events. Implementations must not block.
type LayerObserver interface {
	OnForward(event LayerEvent)
	OnBackward(event LayerEvent)
}

// computeLayerStats calculates summary statistics for a signal
func computeLayerStats(values []float64) LayerStats {
	if len(values) == 0 {
		return LayerStats{}
	}

	active := 0
	for _, v := range values {
		if v != 0 {
			active++
		}
	}

	return LayerStats{
		Mean:          stat.Mean(values, nil),
		Max:           floats.Max(values),
		Min:           floats.Min(values),
		ActiveNeurons: active,
		TotalNeurons:  len(values),
	}
}

func notifyObserver(obs LayerObserver, t EventType, l *Layer, values []float64) {
	event := LayerEvent{
		Type:   t,
		Layer:  l.index,
		Hidden: l.hidden,
		Stats:  computeLayerStats(values),
		Values: append([]float64(nil), values...),
	}

	if t == EventForward {
		obs.OnForward(event)
	} else {
		obs.OnBackward(event)
	}
}

// =============================================================================
// Observer Implementations
// =============================================================================

// LogObserver writes layer events to a logger at debug level
type LogObserver struct {
	Log     logrus.FieldLogger
	Verbose bool // also log the raw values
}

func (o *LogObserver) OnForward(event LayerEvent)  { o.log(event) }
func (o *LogObserver) OnBackward(event LayerEvent) { o.log(event) }

func (o *LogObserver) log(event LayerEvent) {
	l := o.Log
	if l == nil {
		l = logger
	}
	entry := l.WithFields(logrus.Fields{
		"event":  event.Type,
		"layer":  event.Layer,
		"mean":   event.Stats.Mean,
		"max":    event.Stats.Max,
		"min":    event.Stats.Min,
		"active": event.Stats.ActiveNeurons,
		"total":  event.Stats.TotalNeurons,
	})
	if o.Verbose {
		entry = entry.WithField("values", event.Values)
	}
	entry.Debug("layer pass")
}

// ChannelObserver sends events to a Go channel
type ChannelObserver struct {
	Events chan LayerEvent
}

func NewChannelObserver(bufferSize int) *ChannelObserver {
	return &ChannelObserver{
		Events: make(chan LayerEvent, bufferSize),
	}
}

func (o *ChannelObserver) OnForward(event LayerEvent)  { o.send(event) }
func (o *ChannelObserver) OnBackward(event LayerEvent) { o.send(event) }

func (o *ChannelObserver) send(event LayerEvent) {
	select {
	case o.Events <- event:
	default:
		// Channel full, drop event to avoid blocking
	}
}
