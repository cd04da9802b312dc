// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package nn

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/initializer"
)

// Neuron holds one weight per input and a bias, all of them leaf nodes.
type Neuron struct {
	weights []*Node
	bias    *Node
}

// NewNeuron creates a neuron with the given initial weights and bias.
func NewNeuron(weights []float64, bias float64) *Neuron {
	n := &Neuron{
		weights: make([]*Node, len(weights)),
		bias:    Leaf(bias),
	}
	for ii, w := range weights {
		n.weights[ii] = Leaf(w)
	}
	return n
}

// NewRandomNeuron creates a neuron with numInputs weights and a bias, drawn in that order from init.
//
// numOutputs is the width of the layer the neuron belongs to, it's only passed along to init
// as its fanOut.
func NewRandomNeuron(numInputs, numOutputs int, init initializer.Initializer) *Neuron {
	n := &Neuron{weights: make([]*Node, numInputs)}
	for ii := range n.weights {
		n.weights[ii] = Leaf(init(numInputs, numOutputs))
	}
	n.bias = Leaf(init(numInputs, numOutputs))
	return n
}

// NumInputs returns the number of inputs (and weights) of the neuron.
func (n *Neuron) NumInputs() int {
	return len(n.weights)
}

// Forward returns `bias + Σ weights[i] * inputs[i]`, built as a left fold starting from the bias.
//
// It panics if the number of inputs doesn't match the number of weights.
func (n *Neuron) Forward(inputs []*Node) *Node {
	if len(inputs) != len(n.weights) {
		exceptions.Panicf("nn.Neuron.Forward(): neuron has %d weights, but got %d inputs", len(n.weights), len(inputs))
	}
	sum := n.bias
	for ii, w := range n.weights {
		sum = Add(sum, Mul(w, inputs[ii]))
	}
	return sum
}

// Parameters returns the weights followed by the bias.
//
// The returned slice is new, but the nodes are the neuron's own: changing their values changes the neuron.
func (n *Neuron) Parameters() []*Node {
	params := make([]*Node, 0, len(n.weights)+1)
	params = append(params, n.weights...)
	return append(params, n.bias)
}
