// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph is the core package of scalargrad: a reverse-mode automatic differentiation engine over
// scalar values.
//
// The main elements in the package are:
//
//   - Node represents one scalar in a dynamic computation graph. It is either a leaf (an input or a trainable
//     parameter, created with Leaf or Const) or the result of an operation ("op" for short, e.g.: Add, Sub,
//     Mul, Pow, Tanh, Exp, Sigmoid).
//     The value of an op is computed eagerly, at the moment the op is called, from the current values of its
//     inputs.
//
//   - Backward walks the graph from a root node back to its leaves, accumulating in each node the gradient of
//     the root with respect to that node. See also BackwardSorted for a single-pass variant.
//
// Nodes form a DAG: the same node can be used as input to any number of other nodes. They are shared by
// pointer and there is no explicit graph object to manage or free: the garbage collector takes care of
// nodes that are no longer referenced.
//
// Example:
//
//	a, b := graph.Leaf(2.0), graph.Leaf(3.0)
//	loss := graph.Sub(graph.Pow(a, 2), graph.Pow(b, 3))
//	loss.Backward()
//	fmt.Println(a.Gradient(), b.Gradient()) // 4 -27
//
// Arithmetic domain errors (division by zero, fractional powers of negative numbers) are not trapped: they
// yield NaN or Inf values that propagate through the graph. See package nanlogger to find where they first
// appear.
//
// The package is not safe for concurrent use of the same graph: each goroutine should build and
// differentiate its own graph.
package graph
