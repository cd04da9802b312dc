// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizers

import (
	"math"
	"testing"

	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withGradient returns a parameter with the given value and gradient.
func withGradient(value, gradient float64) *Node {
	p := Leaf(value)
	MulScalar(p, gradient).Backward()
	return p
}

func TestSGD(t *testing.T) {
	sgd := StochasticGradientDescent()
	assert.Equal(t, SGDDefaultLearningRate, sgd.LearningRate())
	opt := sgd.WithLearningRate(0.5).Done()

	params := []*Node{withGradient(1, 2), withGradient(-3, -4)}
	require.NoError(t, opt.Update(params))
	assert.Equal(t, 0.0, params[0].Value())
	assert.Equal(t, -1.0, params[1].Value())
	for _, p := range params {
		assert.Equal(t, 0.0, p.Gradient())
	}

	// Zero gradients are a no-op.
	require.NoError(t, opt.Update(params))
	assert.Equal(t, 0.0, params[0].Value())

	require.Error(t, opt.Update([]*Node{params[0], nil}))
}

func TestSGDClipping(t *testing.T) {
	opt := StochasticGradientDescent().WithLearningRate(1).WithClipStepByValue(0.5).WithClipNaN(true).Done()
	params := []*Node{withGradient(1, 10), withGradient(1, -10), withGradient(1, math.NaN()), withGradient(1, math.Inf(1))}
	require.NoError(t, opt.Update(params))
	assert.Equal(t, 0.5, params[0].Value())
	assert.Equal(t, 1.5, params[1].Value())
	assert.Equal(t, 1.0, params[2].Value())
	assert.Equal(t, 1.0, params[3].Value())
	assert.Equal(t, 0.0, params[2].Gradient())

	// Without ClipNaN the NaN goes through.
	p := withGradient(1, math.NaN())
	require.NoError(t, StochasticGradientDescent().Done().Update([]*Node{p}))
	assert.True(t, math.IsNaN(p.Value()))
}

func TestAdam(t *testing.T) {
	opt := Adam().LearningRate(0.1).Done()
	p := withGradient(1, 2)
	require.NoError(t, opt.Update([]*Node{p}))
	// The first Adam step is always ~learning rate in the direction of the gradient.
	assert.InDelta(t, 0.9, p.Value(), 1e-6)
	assert.Equal(t, 0.0, p.Gradient())

	// Minimizes x^2 from 1.0.
	opt.Clear()
	x := Leaf(1)
	for range 200 {
		Square(x).Backward()
		require.NoError(t, opt.Update([]*Node{x}))
	}
	assert.InDelta(t, 0.0, x.Value(), 0.05)
}

func TestByName(t *testing.T) {
	opt, err := ByName("sgd")
	require.NoError(t, err)
	assert.IsType(t, &SGDConfig{}, opt)
	_, err = ByName("adam")
	require.NoError(t, err)
	_, err = ByName("lion")
	require.ErrorContains(t, err, "unknown optimizer")
}
