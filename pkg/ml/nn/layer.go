// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/initializer"
	"github.com/gomlx/scalargrad/pkg/ml/layers/activations"
)

// Layer is a list of neurons sharing the same inputs, with an activation applied to each neuron's output.
type Layer struct {
	neurons    []*Neuron
	activation activations.Type
}

// NewLayer creates a layer from the given neurons, which must all take the same number of inputs.
func NewLayer(neurons []*Neuron, activation activations.Type) *Layer {
	for ii, n := range neurons {
		if n.NumInputs() != neurons[0].NumInputs() {
			exceptions.Panicf("nn.NewLayer(): neuron #%d takes %d inputs, but neuron #0 takes %d",
				ii, n.NumInputs(), neurons[0].NumInputs())
		}
	}
	return &Layer{neurons: neurons, activation: activation}
}

// NewRandomLayer creates a layer of numOutputs neurons, each with numInputs weights, initialized
// neuron by neuron with init.
func NewRandomLayer(numInputs, numOutputs int, activation activations.Type, init initializer.Initializer) *Layer {
	neurons := make([]*Neuron, numOutputs)
	for ii := range neurons {
		neurons[ii] = NewRandomNeuron(numInputs, numOutputs, init)
	}
	return &Layer{neurons: neurons, activation: activation}
}

// NumInputs of the layer, 0 if there are no neurons.
func (l *Layer) NumInputs() int {
	if len(l.neurons) == 0 {
		return 0
	}
	return l.neurons[0].NumInputs()
}

// NumOutputs of the layer, one per neuron.
func (l *Layer) NumOutputs() int {
	return len(l.neurons)
}

// Activation used by the layer.
func (l *Layer) Activation() activations.Type {
	return l.activation
}

// Neurons returns the layer's neurons.
func (l *Layer) Neurons() []*Neuron {
	return l.neurons
}

// Forward returns one output per neuron: `activation(neuron.Forward(inputs))`.
func (l *Layer) Forward(inputs []*Node) []*Node {
	outputs := make([]*Node, len(l.neurons))
	for ii, n := range l.neurons {
		outputs[ii] = activations.Apply(l.activation, n.Forward(inputs))
	}
	return outputs
}

// Parameters returns the parameters of every neuron, in neuron order.
func (l *Layer) Parameters() []*Node {
	var params []*Node
	for _, n := range l.neurons {
		params = append(params, n.Parameters()...)
	}
	return params
}
