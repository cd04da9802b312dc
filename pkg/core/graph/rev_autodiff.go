// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"k8s.io/klog/v2"
)

// This file implements reverse-mode automatic differentiation over the scalar graph.
//
// Conventions used in this file:
//
// * root node: the node being differentiated, typically the loss. After Backward, the gradient of every node
//      reachable from the root holds (in addition to whatever it held before) the partial derivative of the
//      root with respect to that node.
// * local gradient: the partial derivative of a node with respect to one of its inputs, evaluated at the
//      current values of the inputs.
// * incoming gradient: the derivative of the root with respect to the node, along the one path being
//      propagated.

// Backward back-propagates the gradient of n with respect to every node it depends on.
// See the function Backward for details.
func (n *Node) Backward() {
	Backward(n)
}

// Backward computes, for every node reachable from root, the partial derivative of root with respect to
// that node, and adds it to the node's gradient. The root's own gradient is incremented by 1.
//
// Gradients are accumulated, not assigned: calling Backward twice doubles them. Use ZeroGradients (or
// Node.ZeroGradient on each parameter) before calling Backward again if isolated gradients are needed.
//
// It uses a recursive push: each node pushes its incoming gradient times the local gradient to each of its
// inputs, recursively, once per edge. A node used by k other nodes is visited k times (and so is its whole
// sub-graph). Results are exact by linearity of the chain rule, but the cost is not bounded by the size of
// the graph: in a graph with many reconverging paths (e.g. a chain of nodes each using the previous one
// twice) it grows exponentially. See BackwardSorted for a single-pass alternative with identical results.
func Backward(root *Node) {
	if root == nil {
		exceptions.Panicf("Backward called on a nil node")
	}
	var numVisits int
	root.propagate(1.0, &numVisits)
	if klog.V(2).Enabled() {
		klog.Infof("Backward(node #%d): %d node visits", root.id, numVisits)
	}
}

// propagate accumulates incoming into the node and pushes it, scaled by the local gradients, to the inputs.
func (n *Node) propagate(incoming float64, numVisits *int) {
	*numVisits++
	n.gradient += incoming
	if n.nodeType == NodeTypeLeaf {
		return
	}
	local := n.localGradients()
	for ii, input := range n.differentiableInputs() {
		input.propagate(incoming*local[ii], numVisits)
	}
}

// differentiableInputs returns the inputs that receive gradients: the exponent of NodeTypePow is a constant
// and is not differentiated.
func (n *Node) differentiableInputs() []*Node {
	if n.nodeType == NodeTypePow {
		return n.inputs[:1]
	}
	return n.inputs
}

// localGradients returns the partial derivatives of the node with respect to each of its differentiable
// inputs, evaluated at the inputs' current values.
func (n *Node) localGradients() [2]float64 {
	switch n.nodeType {
	case NodeTypeAdd:
		return [2]float64{1, 1}
	case NodeTypeSub:
		return [2]float64{1, -1}
	case NodeTypeMul:
		return [2]float64{n.inputs[1].value, n.inputs[0].value}
	case NodeTypePow:
		x, k := n.inputs[0].value, n.inputs[1].value
		return [2]float64{k * math.Pow(x, k-1)}
	case NodeTypeTanh:
		t := math.Tanh(n.inputs[0].value)
		return [2]float64{1 - t*t}
	case NodeTypeExp:
		return [2]float64{math.Exp(n.inputs[0].value)}
	default:
		exceptions.Panicf("graph has node of type %s, for which no gradient is defined", n.nodeType)
	}
	return [2]float64{}
}

// ReverseTopologicalOrder returns all nodes reachable from root (root included), each exactly once, ordered
// such that every node comes before all of its inputs. The first element is always root.
func ReverseTopologicalOrder(root *Node) []*Node {
	visited := make(map[*Node]bool)
	var order []*Node

	// Iterative post-order traversal, to avoid deep recursion in long chains.
	type frame struct {
		node    *Node
		nextIdx int
	}
	stack := []frame{{node: root}}
	visited[root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.nextIdx < len(top.node.inputs) {
			input := top.node.inputs[top.nextIdx]
			top.nextIdx++
			if !visited[input] {
				visited[input] = true
				stack = append(stack, frame{node: input})
			}
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}
	slices.Reverse(order)
	return order
}

// BackwardSorted produces the same gradients as Backward, but visits each node reachable from root exactly
// once, in reverse topological order, after all its consumers have contributed to its gradient.
//
// Like Backward, gradients are accumulated into whatever value they held before.
func BackwardSorted(root *Node) {
	if root == nil {
		exceptions.Panicf("BackwardSorted called on a nil node")
	}
	order := ReverseTopologicalOrder(root)

	// pending holds only this call's contributions: gradients left by previous calls are not propagated.
	pending := make(map[*Node]float64, len(order))
	pending[root] = 1.0
	for _, node := range order {
		incoming := pending[node]
		node.gradient += incoming
		if node.nodeType == NodeTypeLeaf {
			continue
		}
		local := node.localGradients()
		for ii, input := range node.differentiableInputs() {
			pending[input] += incoming * local[ii]
		}
	}
	if klog.V(2).Enabled() {
		klog.Infof("BackwardSorted(node #%d): %d nodes", root.id, len(order))
	}
}

// ZeroGradients resets the gradient of every node reachable from root, root included.
func ZeroGradients(root *Node) {
	for _, node := range ReverseTopologicalOrder(root) {
		node.gradient = 0
	}
}
