// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package nn implements a small feed-forward neural network on top of scalar graphs: Neuron, Layer and MLP.
//
// Parameters are leaf nodes (see graph.Leaf) owned by the neurons. Each call to Forward builds a new
// expression graph referencing the same parameters, so after a Backward on the loss the parameters hold the
// gradients, to be used by an optimizer (see package optimizers) and zeroed before the next step.
//
// Example:
//
//	mlp := nn.NewMLP(initializer.Uniform(rng, -1, 1))
//	mlp.AddLayer(3, 4, activations.TypeSigmoid)
//	mlp.AddLayer(4, 4, activations.TypeTanh)
//	mlp.AddLayer(4, 1, activations.TypeSigmoid)
//	outputs := mlp.Forward(inputs)
package nn
