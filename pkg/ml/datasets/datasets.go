// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package datasets is a collection of utility datasets (train.Dataset) that can be combined:
// `InMemory` and `Take`.
package datasets

import (
	"fmt"
	"io"

	"github.com/gomlx/scalargrad/pkg/ml/train"
)

// takeDataset implements a `train.Dataset` that only yields `take` examples.
type takeDataset struct {
	ds          train.Dataset
	count, take int
}

// Take returns a wrapper to `ds`, a `train.Dataset` that only yields `n` examples, and then returns io.EOF.
func Take(ds train.Dataset, n int) train.Dataset {
	return &takeDataset{
		ds:   ds,
		take: n,
	}
}

// Name implements train.Dataset. It returns the name of the underlying dataset, with the number of examples taken.
func (ds *takeDataset) Name() string {
	return fmt.Sprintf("%s [Take %d]", ds.ds.Name(), ds.take)
}

// Reset implements train.Dataset.
func (ds *takeDataset) Reset() {
	ds.ds.Reset()
	ds.count = 0
}

// Yield implements train.Dataset.
func (ds *takeDataset) Yield() (inputs, labels []float64, err error) {
	if ds.count >= ds.take {
		return nil, nil, io.EOF
	}
	ds.count++
	return ds.ds.Yield()
}
