// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph_test

import (
	"math"
	"testing"

	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/core/graph/graphtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const Epsilon = 1e-9

func TestGradientSameNode(t *testing.T) {
	a := Leaf(1.0)
	c := Add(a, a)
	c.Backward()
	require.Equal(t, 2.0, a.Gradient())
	require.Equal(t, 1.0, c.Gradient())

	a = Leaf(3.0)
	c = Mul(a, a)
	c.Backward()
	require.Equal(t, 6.0, a.Gradient())
}

func TestGradientProductRule(t *testing.T) {
	a, b, c, d := Leaf(1.0), Leaf(0.5), Leaf(3.0), Leaf(4.0)
	e := Mul(d, b)
	f := Mul(a, c)
	g := Sub(e, f)
	g.Backward()
	assert.Equal(t, -3.0, a.Gradient())
	assert.Equal(t, 4.0, b.Gradient())
	assert.Equal(t, -1.0, c.Gradient())
	assert.Equal(t, 0.5, d.Gradient())
}

func TestGradientPowerRule(t *testing.T) {
	a, b := Leaf(2.0), Leaf(3.0)
	g := Sub(Pow(a, 2), Pow(b, 3))
	g.Backward()
	assert.Equal(t, 4.0, a.Gradient())
	assert.Equal(t, -27.0, b.Gradient())
}

func TestGradientTanh(t *testing.T) {
	// A single neuron, whose pre-activation is near 0.8814, where tanh' == 0.5.
	x1, x2 := Leaf(2.0), Leaf(0.0)
	w1, w2 := Leaf(-3.0), Leaf(1.0)
	b := Leaf(6.881373587)
	y := Add(Add(Mul(x1, w1), Mul(x2, w2)), b)
	o := Tanh(y)
	o.Backward()
	want := 1 - math.Pow(math.Tanh(y.Value()), 2)
	require.InDelta(t, want, y.Gradient(), Epsilon)
	require.InDelta(t, 0.5, y.Gradient(), 1e-6)
	require.InDelta(t, want*x1.Value(), w1.Gradient(), Epsilon)
	require.InDelta(t, want*w2.Value(), x2.Gradient(), Epsilon)
}

func TestZeroGradientsIdempotent(t *testing.T) {
	a, b := Leaf(0.7), Leaf(-1.3)
	h := Tanh(Mul(a, b))
	root := Add(Mul(h, h), Sigmoid(Sub(a, h)))

	root.Backward()
	first := graphtest.Gradients([]*Node{a, b, h})

	ZeroGradients(root)
	for _, node := range ReverseTopologicalOrder(root) {
		require.Zerof(t, node.Gradient(), "node %#v not zeroed", node)
	}
	root.Backward()
	require.Equal(t, first, graphtest.Gradients([]*Node{a, b, h}))

	// Without reset gradients accumulate.
	root.Backward()
	second := graphtest.Gradients([]*Node{a, b, h})
	for ii := range first {
		require.InDelta(t, 2*first[ii], second[ii], Epsilon)
	}
}

func TestZeroGradientOnParameters(t *testing.T) {
	// Resetting only the leaves is enough for the leaves' gradients to be reproducible: intermediate nodes
	// are recreated at every forward pass in a training loop.
	w := Leaf(0.3)
	loss := func() *Node { return Square(AddScalar(MulScalar(w, 2), -1)) }
	l1 := loss()
	l1.Backward()
	g1 := w.Gradient()
	w.ZeroGradient()
	l2 := loss()
	l2.Backward()
	require.Equal(t, g1, w.Gradient())
	require.InDelta(t, 2*(2*0.3-1)*2, g1, Epsilon)
}

func TestGradientOperators(t *testing.T) {
	graphtest.RunTestGraphFn(t, "Add", func(x []*Node) *Node { return Add(x[0], x[1]) },
		[]float64{2, 5}, 7, []float64{1, 1}, 0)
	graphtest.RunTestGraphFn(t, "Sub", func(x []*Node) *Node { return Sub(x[0], x[1]) },
		[]float64{2, 5}, -3, []float64{1, -1}, 0)
	graphtest.RunTestGraphFn(t, "Mul", func(x []*Node) *Node { return Mul(x[0], x[1]) },
		[]float64{2, 5}, 10, []float64{5, 2}, 0)
	graphtest.RunTestGraphFn(t, "Neg", func(x []*Node) *Node { return Neg(x[0]) },
		[]float64{2}, -2, []float64{-1}, 0)
	graphtest.RunTestGraphFn(t, "Div", func(x []*Node) *Node { return Div(x[0], x[1]) },
		[]float64{3, 2}, 1.5, []float64{0.5, -0.75}, Epsilon)
	graphtest.RunTestGraphFn(t, "Pow", func(x []*Node) *Node { return Pow(x[0], 3) },
		[]float64{2}, 8, []float64{12}, Epsilon)
	graphtest.RunTestGraphFn(t, "Exp", func(x []*Node) *Node { return Exp(x[0]) },
		[]float64{1}, math.E, []float64{math.E}, Epsilon)
	graphtest.RunTestGraphFn(t, "Tanh", func(x []*Node) *Node { return Tanh(x[0]) },
		[]float64{0}, 0, []float64{1}, Epsilon)
	graphtest.RunTestGraphFn(t, "Sigmoid", func(x []*Node) *Node { return Sigmoid(x[0]) },
		[]float64{0}, 0.5, []float64{0.25}, Epsilon)
	graphtest.RunTestGraphFn(t, "Sum", func(x []*Node) *Node { return Sum(x...) },
		[]float64{1, 2, 3}, 6, []float64{1, 1, 1}, 0)
	graphtest.RunTestGraphFn(t, "Square", func(x []*Node) *Node { return Square(x[0]) },
		[]float64{-3}, 9, []float64{-6}, Epsilon)
}

func TestGradientsNumerically(t *testing.T) {
	const delta = 1e-5
	graphtest.CheckGradientsNumerically(t, "Polynomial", func(x []*Node) *Node {
		// x0^3 * x1 - x1^2 / x0
		return Sub(Mul(Pow(x[0], 3), x[1]), Div(Square(x[1]), x[0]))
	}, []float64{1.5, -0.7}, delta)
	graphtest.CheckGradientsNumerically(t, "Activations", func(x []*Node) *Node {
		return Mul(Tanh(Add(x[0], x[1])), Sigmoid(Mul(x[0], x[2])))
	}, []float64{0.3, -0.2, 1.7}, delta)
	graphtest.CheckGradientsNumerically(t, "Exp", func(x []*Node) *Node {
		return Div(Exp(x[0]), AddScalar(Exp(x[1]), 1))
	}, []float64{0.5, -1.0}, delta)
	graphtest.CheckGradientsNumerically(t, "FractionalPow", func(x []*Node) *Node {
		return Pow(AddScalar(Square(x[0]), 1), 0.5)
	}, []float64{2.0}, delta)
}

// diamondChain builds x_{i+1} = x_i*x_i + x_i, where every node is used twice by the next one.
func diamondChain(x *Node, depth int) *Node {
	for range depth {
		x = Add(Mul(x, x), x)
	}
	return x
}

func TestBackwardSortedMatchesBackward(t *testing.T) {
	const depth = 8
	a1 := Leaf(0.1)
	root1 := diamondChain(a1, depth)
	root1.Backward()

	a2 := Leaf(0.1)
	root2 := diamondChain(a2, depth)
	BackwardSorted(root2)

	require.Equal(t, root1.Value(), root2.Value())
	require.InDelta(t, a1.Gradient(), a2.Gradient(), Epsilon*math.Abs(a1.Gradient()))
	require.Equal(t, 1.0, root2.Gradient())

	// Both accumulate the same way across calls.
	BackwardSorted(root2)
	require.InDelta(t, 2*a1.Gradient(), a2.Gradient(), 2*Epsilon*math.Abs(a1.Gradient()))
}

func TestReverseTopologicalOrder(t *testing.T) {
	a, b := Leaf(1), Leaf(2)
	c := Mul(a, b)
	d := Add(c, a)
	e := Tanh(Add(d, c))

	order := ReverseTopologicalOrder(e)
	require.Equal(t, e, order[0])
	seen := make(map[*Node]int, len(order))
	for ii, node := range order {
		_, duplicate := seen[node]
		require.Falsef(t, duplicate, "node %#v listed twice", node)
		seen[node] = ii
	}
	// Every node comes before its inputs.
	for _, node := range order {
		for _, input := range node.Inputs() {
			require.Less(t, seen[node], seen[input])
		}
	}
	// e, Add(d,c), d, c, a, b: no constants in this graph.
	require.Len(t, order, 6)
}

func TestBackwardDoesNotDifferentiateExponent(t *testing.T) {
	x := Leaf(3)
	p := Pow(x, 2)
	p.Backward()
	exponent := p.Inputs()[1]
	require.Equal(t, 2.0, exponent.Value())
	require.Zero(t, exponent.Gradient())
	require.Equal(t, 6.0, x.Gradient())
}

func TestBackwardNaN(t *testing.T) {
	// Division by zero is not trapped: it propagates as Inf/NaN.
	x, y := Leaf(1), Leaf(0)
	z := Div(x, y)
	require.True(t, math.IsInf(z.Value(), 1))
	require.NotPanics(t, func() { z.Backward() })
	require.True(t, math.IsInf(x.Gradient(), 1))
	require.True(t, math.IsNaN(y.Gradient()) || math.IsInf(y.Gradient(), 0))

	// Fractional power of a negative number.
	w := Pow(Leaf(-2), 0.5)
	require.True(t, math.IsNaN(w.Value()))
}

func TestBackwardNil(t *testing.T) {
	require.Panics(t, func() { Backward(nil) })
	require.Panics(t, func() { BackwardSorted(nil) })
}
