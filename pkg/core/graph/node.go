// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gomlx/exceptions"
)

// NodeId is a unique identifier of a Node, assigned in creation order.
//
// Nodes created later always have a larger id, so it can be used to order nodes topologically.
type NodeId int64

// InvalidNodeId is never assigned to a node.
const InvalidNodeId = NodeId(-1)

var nextNodeId atomic.Int64

// Node represents one scalar value in the computation graph: either a leaf (see Leaf) or the result of an
// operation, which can in turn be used as input to further operations.
//
// Internally, it keeps track of the operation type and the inputs used for the computation: this is later used
// for auto-differentiation (see Backward).
//
// A Node is always handled by pointer, and it can be shared by as many other nodes as needed.
// Node.String allows for a pretty-printing of the expression that generated the node.
type Node struct {
	id       NodeId
	nodeType NodeType

	// inputs are the edges of the computation graph. For NodeTypePow the second input holds the constant
	// exponent.
	inputs []*Node

	value    float64
	gradient float64
}

// newNode creates a node of the given type, computing its value eagerly from the current values of the inputs.
func newNode(nodeType NodeType, inputs ...*Node) *Node {
	if len(inputs) != nodeType.numInputs() {
		exceptions.Panicf("node type %s takes %d inputs, %d given", nodeType, nodeType.numInputs(), len(inputs))
	}
	for ii, input := range inputs {
		if input == nil {
			exceptions.Panicf("input #%d to %s is nil", ii, nodeType)
		}
	}
	n := &Node{
		id:       NodeId(nextNodeId.Add(1) - 1),
		nodeType: nodeType,
		inputs:   inputs,
	}
	n.value = n.forward()
	return n
}

// forward computes the value of the node from its inputs' current values.
func (n *Node) forward() float64 {
	switch n.nodeType {
	case NodeTypeLeaf:
		return n.value
	case NodeTypeAdd:
		return n.inputs[0].value + n.inputs[1].value
	case NodeTypeSub:
		return n.inputs[0].value - n.inputs[1].value
	case NodeTypeMul:
		return n.inputs[0].value * n.inputs[1].value
	case NodeTypePow:
		return math.Pow(n.inputs[0].value, n.inputs[1].value)
	case NodeTypeTanh:
		return math.Tanh(n.inputs[0].value)
	case NodeTypeExp:
		return math.Exp(n.inputs[0].value)
	default:
		exceptions.Panicf("forward not defined for node type %s", n.nodeType)
	}
	return 0
}

// Leaf creates a node with no inputs, holding the value x.
// Leaves are used for inputs and for trainable parameters, whose value can be later changed with SetValue.
func Leaf(x float64) *Node {
	n := newNode(NodeTypeLeaf)
	n.value = x
	return n
}

// Const is an alias to Leaf, used when the value is not meant to change.
func Const(x float64) *Node {
	return Leaf(x)
}

// Id is the unique id of this node.
func (n *Node) Id() NodeId {
	if n == nil {
		return InvalidNodeId
	}
	return n.id
}

// Type of the operation that generated the node. NodeTypeLeaf for leaves.
func (n *Node) Type() NodeType {
	return n.nodeType
}

// IsLeaf returns whether the node is a leaf, that is, not the result of an operation.
func (n *Node) IsLeaf() bool {
	return n.nodeType == NodeTypeLeaf
}

// NumInputs returns the number of inputs of the node: 0 for leaves, 1 for unary and 2 for binary operations.
func (n *Node) NumInputs() int {
	return len(n.inputs)
}

// Inputs returns a copy of the inputs of the node.
func (n *Node) Inputs() []*Node {
	return slices.Clone(n.inputs)
}

// Value returns the forward value of the node.
func (n *Node) Value() float64 {
	return n.value
}

// Gradient returns the gradient accumulated in the node by Backward.
func (n *Node) Gradient() float64 {
	return n.gradient
}

// SetValue overwrites the value of the node.
//
// It is meant to update parameters (leaves) during training: it does not recompute the value of nodes already
// created from this one.
func (n *Node) SetValue(x float64) {
	n.value = x
}

// ZeroGradient resets the accumulated gradient of this node (only) to 0.
// See ZeroGradients to reset the whole graph.
func (n *Node) ZeroGradient() {
	n.gradient = 0
}

// String renders the expression that generated the node, fully parenthesized.
func (n *Node) String() string {
	if n == nil {
		return "Node(nil)"
	}
	var sb strings.Builder
	n.writeExpression(&sb)
	return sb.String()
}

func (n *Node) writeExpression(sb *strings.Builder) {
	switch n.nodeType.numInputs() {
	case 0:
		sb.WriteString(strconv.FormatFloat(n.value, 'g', -1, 64))
	case 1:
		sb.WriteString(n.nodeType.symbol())
		sb.WriteByte('(')
		n.inputs[0].writeExpression(sb)
		sb.WriteByte(')')
	default:
		sb.WriteByte('(')
		n.inputs[0].writeExpression(sb)
		sb.WriteString(n.nodeType.symbol())
		n.inputs[1].writeExpression(sb)
		sb.WriteByte(')')
	}
}

// GoString implements fmt.GoStringer, with the node id, type, value and gradient.
func (n *Node) GoString() string {
	if n == nil {
		return "Node(nil)"
	}
	return fmt.Sprintf("Node{id=%d, type=%s, value=%g, gradient=%g}", n.id, n.nodeType, n.value, n.gradient)
}
