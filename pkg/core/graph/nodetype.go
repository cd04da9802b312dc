// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

// NodeType is the closed set of operations a Node can be the result of.
//
// The zero value NodeTypeLeaf marks nodes that are not the result of any operation: inputs, parameters
// and constants.
type NodeType int

const (
	NodeTypeLeaf NodeType = iota
	NodeTypeAdd
	NodeTypeSub
	NodeTypeMul
	NodeTypePow
	NodeTypeTanh
	NodeTypeExp
)

//go:generate go tool enumer -type NodeType -trimprefix=NodeType -transform=snake -values -text -output=gen_nodetype_enumer.go nodetype.go

// numInputs returns the number of inputs a node of the given type takes.
func (t NodeType) numInputs() int {
	switch t {
	case NodeTypeLeaf:
		return 0
	case NodeTypeTanh, NodeTypeExp:
		return 1
	default:
		return 2
	}
}

// symbol used when rendering expressions, see Node.String.
func (t NodeType) symbol() string {
	switch t {
	case NodeTypeAdd:
		return "+"
	case NodeTypeSub:
		return "-"
	case NodeTypeMul:
		return "*"
	case NodeTypePow:
		return "^"
	case NodeTypeTanh:
		return "tanh"
	case NodeTypeExp:
		return "exp"
	default:
		return ""
	}
}
