// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/initializer"
	"github.com/gomlx/scalargrad/pkg/ml/layers/activations"
	"k8s.io/klog/v2"
)

// MLP (multi-layer perceptron) is a sequence of layers, each one fed with the outputs of the previous.
type MLP struct {
	layers []*Layer
	init   initializer.Initializer
}

// NewMLP creates an empty MLP.
// The initializer is used for the parameters of the layers created with AddLayer; if nil,
// initializer.Zero is used.
func NewMLP(init initializer.Initializer) *MLP {
	if init == nil {
		init = initializer.Zero
	}
	return &MLP{init: init}
}

// AddLayer appends a new randomly initialized layer with numOutputs neurons.
//
// numInputs is only used for the first layer: later layers always take as many inputs as the previous
// layer has outputs, and a different numInputs is ignored (but logged).
func (m *MLP) AddLayer(numInputs, numOutputs int, activation activations.Type) *MLP {
	if len(m.layers) > 0 {
		previous := m.layers[len(m.layers)-1].NumOutputs()
		if numInputs != previous {
			klog.V(1).Infof("nn.MLP.AddLayer(): layer #%d takes %d inputs (previous layer outputs), ignoring numInputs=%d",
				len(m.layers), previous, numInputs)
		}
		numInputs = previous
	}
	m.layers = append(m.layers, NewRandomLayer(numInputs, numOutputs, activation, m.init))
	return m
}

// Append an already created layer.
func (m *MLP) Append(layer *Layer) *MLP {
	m.layers = append(m.layers, layer)
	return m
}

// Layers returns the layers of the MLP.
func (m *MLP) Layers() []*Layer {
	return m.layers
}

// Forward feeds the inputs through all layers and returns the outputs of the last one.
// With no layers, the inputs are returned.
func (m *MLP) Forward(inputs []*Node) []*Node {
	for _, l := range m.layers {
		inputs = l.Forward(inputs)
	}
	return inputs
}

// Parameters returns the parameters of every layer, in layer order.
func (m *MLP) Parameters() []*Node {
	var params []*Node
	for _, l := range m.layers {
		params = append(params, l.Parameters()...)
	}
	return params
}
