// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graphtest holds test utilities for packages that depend on the graph package.
package graphtest

import (
	"fmt"
	"testing"

	"github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

// TestGraphFn builds a scalar function of the given inputs (leaves), returning the root node.
type TestGraphFn func(inputs []*graph.Node) *graph.Node

// NumericalStep is the step used for the central finite-difference approximation of gradients.
const NumericalStep = 1e-6

// BuildInputs creates one leaf per value.
func BuildInputs(values []float64) []*graph.Node {
	inputs := make([]*graph.Node, len(values))
	for ii, v := range values {
		inputs[ii] = graph.Leaf(v)
	}
	return inputs
}

// Gradients returns the current gradients of the given nodes.
func Gradients(nodes []*graph.Node) []float64 {
	grads := make([]float64, len(nodes))
	for ii, node := range nodes {
		grads[ii] = node.Gradient()
	}
	return grads
}

// RunTestGraphFn tests a graph building function graphFn: it builds the graph on leaves with the given
// inputValues, checks the root value against wantValue, back-propagates and checks the gradients of the
// inputs against wantGradients.
//
// It checks both Backward and BackwardSorted, on fresh graphs, and that they agree.
//
// delta is the margin of value on the difference of output and want values that are acceptable.
// Values of delta <= 0 means only exact equality is accepted.
func RunTestGraphFn(t *testing.T, testName string, graphFn TestGraphFn, inputValues []float64,
	wantValue float64, wantGradients []float64, delta float64) {
	t.Run(testName, func(t *testing.T) {
		require.Lenf(t, wantGradients, len(inputValues), "%s: one wanted gradient per input required", testName)
		backwardFns := []struct {
			name string
			fn   func(root *graph.Node)
		}{
			{"Backward", graph.Backward},
			{"BackwardSorted", graph.BackwardSorted},
		}
		for _, backward := range backwardFns {
			inputs := BuildInputs(inputValues)
			var root *graph.Node
			require.NotPanicsf(t, func() { root = graphFn(inputs) }, "%s: failed to build graph", testName)
			require.NotPanicsf(t, func() { backward.fn(root) }, "%s: %s failed", testName, backward.name)

			fmt.Printf("\n%s (%s):\n", testName, backward.name)
			for ii, input := range inputs {
				fmt.Printf("\tInput %d: value=%g, gradient=%g\n", ii, input.Value(), input.Gradient())
			}
			fmt.Printf("\t======\n\tOutput: %s = %g\n", root, root.Value())

			got := Gradients(inputs)
			if delta <= 0 {
				require.Equalf(t, wantValue, root.Value(), "%s: value", testName)
				require.Equalf(t, wantGradients, got, "%s: %s gradients", testName, backward.name)
			} else {
				require.InDeltaf(t, wantValue, root.Value(), delta, "%s: value", testName)
				require.InDeltaSlicef(t, wantGradients, got, delta, "%s: %s gradients", testName, backward.name)
			}
		}
	})
}

// NumericalGradients approximates the gradient of graphFn at inputValues with central finite differences.
func NumericalGradients(graphFn TestGraphFn, inputValues []float64) []float64 {
	f := func(x []float64) float64 {
		return graphFn(BuildInputs(x)).Value()
	}
	return fd.Gradient(nil, f, inputValues, &fd.Settings{
		Formula: fd.Central,
		Step:    NumericalStep,
	})
}

// CheckGradientsNumerically compares the gradients computed by Backward with a finite-differences
// approximation, within delta.
func CheckGradientsNumerically(t *testing.T, testName string, graphFn TestGraphFn, inputValues []float64, delta float64) {
	t.Run(testName, func(t *testing.T) {
		inputs := BuildInputs(inputValues)
		root := graphFn(inputs)
		root.Backward()
		got := Gradients(inputs)
		want := NumericalGradients(graphFn, inputValues)
		fmt.Printf("\n%s: %s\n\tBackward:  %v\n\tNumerical: %v\n", testName, root, got, want)
		require.InDeltaSlicef(t, want, got, delta, "%s: gradients differ from numerical approximation", testName)
	})
}
