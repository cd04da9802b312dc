// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package losses have several standard losses that implement train.LossFn interface. They can also
// be called directly to build the loss expression of a custom training step.
package losses

import (
	"github.com/gomlx/exceptions"
	. "github.com/gomlx/scalargrad/pkg/core/graph"
)

// LossFn is the interface used by train.Trainer to build a loss node from the labels and the
// predictions of a model for one example.
//
// It takes as inputs the labels and predictions:
//   - labels comes from the dataset, as leaf nodes.
//   - predictions comes from the model.
//
// It must return a single node, the one train.Trainer calls Backward on.
type LossFn func(labels, predictions []*Node) (loss *Node)

func checkLengths(name string, labels, predictions []*Node) {
	if len(labels) != len(predictions) {
		exceptions.Panicf("%s: got %d labels and %d predictions, they must match", name, len(labels), len(predictions))
	}
	if len(labels) == 0 {
		exceptions.Panicf("%s: no labels or predictions given", name)
	}
}

// SquaredError returns the sum over the outputs of (label - prediction)^2.
//
// labels and predictions must have the same length.
func SquaredError(labels, predictions []*Node) (loss *Node) {
	checkLengths("SquaredError", labels, predictions)
	terms := make([]*Node, len(labels))
	for ii, label := range labels {
		terms[ii] = Square(Sub(label, predictions[ii]))
	}
	return Sum(terms...)
}

// MeanSquaredError returns the mean over the outputs of (label - prediction)^2.
//
// labels and predictions must have the same length.
func MeanSquaredError(labels, predictions []*Node) (loss *Node) {
	checkLengths("MeanSquaredError", labels, predictions)
	loss = SquaredError(labels, predictions)
	if len(labels) == 1 {
		return loss
	}
	return MulScalar(loss, 1/float64(len(labels)))
}
