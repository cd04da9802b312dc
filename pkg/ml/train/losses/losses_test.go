// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package losses

import (
	"testing"

	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodes(values ...float64) []*Node {
	out := make([]*Node, len(values))
	for ii, v := range values {
		out[ii] = Leaf(v)
	}
	return out
}

func TestSquaredError(t *testing.T) {
	predictions := nodes(0.5, 3)
	loss := SquaredError(nodes(1, 1), predictions)
	assert.Equal(t, 0.25+4, loss.Value())
	loss.Backward()
	// d/dp (l-p)^2 = -2(l-p)
	assert.Equal(t, -1.0, predictions[0].Gradient())
	assert.Equal(t, 4.0, predictions[1].Gradient())

	// Single output is the loss of the 3-4-4-1 training example.
	assert.Equal(t, "((1+(0.25*-1))^2)", SquaredError(nodes(1), nodes(0.25)).String())

	require.Panics(t, func() { SquaredError(nodes(1), nodes(1, 2)) })
	require.Panics(t, func() { SquaredError(nil, nil) })
}

func TestMeanSquaredError(t *testing.T) {
	predictions := nodes(0.5, 3)
	loss := MeanSquaredError(nodes(1, 1), predictions)
	assert.Equal(t, (0.25+4)/2, loss.Value())
	loss.Backward()
	assert.Equal(t, -0.5, predictions[0].Gradient())
	assert.Equal(t, 2.0, predictions[1].Gradient())
	assert.Equal(t, 0.25, MeanSquaredError(nodes(1), nodes(0.5)).Value())
}
