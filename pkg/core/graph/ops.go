// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/gomlx/exceptions"
)

// Add returns a node with x + y.
func Add(x, y *Node) *Node {
	return newNode(NodeTypeAdd, x, y)
}

// Sub returns a node with x - y.
//
// It is derived as Add(x, Neg(y)), so it generates 3 nodes in the graph.
func Sub(x, y *Node) *Node {
	return Add(x, Neg(y))
}

// Mul returns a node with x * y.
func Mul(x, y *Node) *Node {
	return newNode(NodeTypeMul, x, y)
}

// Neg returns a node with -x, implemented as a multiplication by the constant -1.
func Neg(x *Node) *Node {
	return Mul(x, Const(-1))
}

// Pow returns a node with x^exponent.
//
// The exponent is stored as a constant leaf input of the node, and it is not differentiated.
// Negative bases with fractional exponents yield NaN; x == 0 with negative exponents yield Inf.
func Pow(x *Node, exponent float64) *Node {
	return newNode(NodeTypePow, x, Const(exponent))
}

// Div returns a node with x / y, derived as x * y^-1.
//
// Division by zero is not trapped: it yields Inf (or NaN for 0/0).
func Div(x, y *Node) *Node {
	return Mul(x, Pow(y, -1))
}

// Tanh returns a node with the hyperbolic tangent of x.
func Tanh(x *Node) *Node {
	return newNode(NodeTypeTanh, x)
}

// Exp returns a node with e^x.
func Exp(x *Node) *Node {
	return newNode(NodeTypeExp, x)
}

// Sigmoid returns a node with 1/(1+exp(-x)), composed from Exp, Add and Div.
func Sigmoid(x *Node) *Node {
	return Div(Const(1), Add(Const(1), Exp(Neg(x))))
}

// Square returns x^2.
func Square(x *Node) *Node {
	return Pow(x, 2)
}

// AddScalar returns x + c, for a constant c.
func AddScalar(x *Node, c float64) *Node {
	return Add(x, Const(c))
}

// MulScalar returns x * c, for a constant c.
func MulScalar(x *Node, c float64) *Node {
	return Mul(x, Const(c))
}

// Sum returns the sum of all the given nodes, added from left to right.
// It panics if no node is given.
func Sum(nodes ...*Node) *Node {
	if len(nodes) == 0 {
		exceptions.Panicf("Sum requires at least one node to sum, none given")
	}
	sum := nodes[0]
	for _, n := range nodes[1:] {
		sum = Add(sum, n)
	}
	return sum
}
