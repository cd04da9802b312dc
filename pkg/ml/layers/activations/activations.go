// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package activations holds the nonlinearities a layer can apply to the output of its neurons.
//
// Activations are selected by Type, which converts to and from snake-case names ("sigmoid",
// "tanh", ...), so they can be set from flags or configuration.
package activations

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/scalargrad/pkg/core/graph"
)

// Type of activation. It implements encoding.TextMarshaler and encoding.TextUnmarshaler, so it works
// with flag.TextVar.
type Type int

const (
	// TypeNone leaves the value unchanged, for a linear output.
	TypeNone Type = iota
	TypeSigmoid
	TypeTanh
	TypeSwish
)

//go:generate go tool enumer -type Type -trimprefix=Type -transform=snake -values -text -output=gen_type_enumer.go activations.go

// Apply builds the activation on x. It panics for an unknown activation.
func Apply(activation Type, x *Node) *Node {
	switch activation {
	case TypeNone:
		return x
	case TypeSigmoid:
		return Sigmoid(x)
	case TypeTanh:
		return Tanh(x)
	case TypeSwish:
		return Swish(x)
	}
	exceptions.Panicf("activations.Apply: unknown activation %d, valid values are %v", int(activation), TypeValues())
	return nil
}

// FromName parses an activation name, case-insensitive. The empty name is TypeNone.
// It panics for an unknown name.
func FromName(name string) Type {
	if name == "" {
		return TypeNone
	}
	activation, err := TypeString(name)
	if err != nil {
		exceptions.Panicf("activations.FromName: unknown activation %q, valid values are %v", name, TypeValues())
	}
	return activation
}

// Swish (also known as SiLU) is x·sigmoid(x).
func Swish(x *Node) *Node {
	return Mul(x, Sigmoid(x))
}
