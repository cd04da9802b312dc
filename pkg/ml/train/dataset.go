// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"io"

	"github.com/pkg/errors"
)

// Dataset provides the examples for a Trainer, one at a time: the values of the inputs and the values
// of the labels.
//
// See package datasets for an in-memory implementation.
type Dataset interface {
	// Name identifies the dataset in error messages, reports and plots.
	Name() string

	// Reset restarts the dataset from its first example. It is called after io.EOF, e.g. at the end of
	// each epoch, or before evaluating the dataset again.
	Reset()

	// Yield returns the next example. The Trainer converts inputs and labels to leaf nodes and doesn't
	// keep the slices, so the dataset can reuse them.
	//
	// At the end of the data it returns io.EOF (possibly wrapped). Loop.RunSteps needs as many examples as
	// steps, so it is usually given an infinite dataset, while Loop.RunEpochs and Trainer.Eval need a
	// finite one. Any other error interrupts training or evaluation.
	Yield() (inputs, labels []float64, err error)
}

// isEOF reports whether err marks the end of a Dataset.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
