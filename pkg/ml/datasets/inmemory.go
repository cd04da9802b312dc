// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"io"
	"math/rand/v2"
	"slices"

	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/pkg/errors"
)

// InMemory is a Dataset of examples held in memory: each example is a slice of inputs and a slice of labels.
//
// By default, it yields the examples in order and returns io.EOF at the end. It can be configured to loop
// indefinitely (see Infinite), and to shuffle the order of the examples at every epoch (see Shuffle).
type InMemory struct {
	name           string
	inputs, labels [][]float64

	infinite bool
	rng      *rand.Rand // Set if shuffling.
	order    []int
	next     int
}

var _ train.Dataset = (*InMemory)(nil)

// NewInMemory creates an InMemory dataset with the given examples: inputs[i] and labels[i] are the inputs and
// labels of the i-th example.
//
// The data is copied, so the caller can change the given slices afterward.
// It returns an error if the number of inputs and labels differ, if there are no examples, or if the
// examples don't all have the same number of inputs and labels.
func NewInMemory(name string, inputs, labels [][]float64) (*InMemory, error) {
	if len(inputs) != len(labels) {
		return nil, errors.Errorf("datasets.NewInMemory(%q): got %d inputs and %d labels, they must match",
			name, len(inputs), len(labels))
	}
	if len(inputs) == 0 {
		return nil, errors.Errorf("datasets.NewInMemory(%q): no examples given", name)
	}
	mds := &InMemory{
		name:   name,
		inputs: make([][]float64, len(inputs)),
		labels: make([][]float64, len(labels)),
		order:  make([]int, len(inputs)),
	}
	for ii := range inputs {
		if len(inputs[ii]) != len(inputs[0]) || len(labels[ii]) != len(labels[0]) {
			return nil, errors.Errorf("datasets.NewInMemory(%q): example #%d has %d inputs and %d labels, "+
				"but example #0 has %d inputs and %d labels", name, ii,
				len(inputs[ii]), len(labels[ii]), len(inputs[0]), len(labels[0]))
		}
		mds.inputs[ii] = slices.Clone(inputs[ii])
		mds.labels[ii] = slices.Clone(labels[ii])
		mds.order[ii] = ii
	}
	return mds, nil
}

// Name implements train.Dataset.
func (mds *InMemory) Name() string {
	return mds.name
}

// NumExamples in the dataset.
func (mds *InMemory) NumExamples() int {
	return len(mds.inputs)
}

// Infinite configures the dataset to loop over the examples indefinitely, never returning io.EOF.
//
// It returns the modified InMemory, so calls can be cascaded if one wants.
func (mds *InMemory) Infinite(infinite bool) *InMemory {
	mds.infinite = infinite
	return mds
}

// Shuffle configures the dataset to yield the examples in a random order, reshuffled at every epoch, using
// the given random number generator. A nil rng disables shuffling.
//
// It returns the modified InMemory, so calls can be cascaded if one wants.
func (mds *InMemory) Shuffle(rng *rand.Rand) *InMemory {
	mds.rng = rng
	mds.Reset()
	return mds
}

// Reset implements train.Dataset. It restarts the epoch, reshuffling if configured.
func (mds *InMemory) Reset() {
	mds.next = 0
	for ii := range mds.order {
		mds.order[ii] = ii
	}
	if mds.rng != nil {
		mds.rng.Shuffle(len(mds.order), func(i, j int) {
			mds.order[i], mds.order[j] = mds.order[j], mds.order[i]
		})
	}
}

// Yield implements train.Dataset. It returns the next example, or io.EOF at the end of the epoch, if not Infinite.
//
// The returned slices are owned by the dataset, and must not be changed.
func (mds *InMemory) Yield() (inputs, labels []float64, err error) {
	if mds.next >= len(mds.order) {
		if !mds.infinite {
			return nil, nil, io.EOF
		}
		mds.Reset()
	}
	idx := mds.order[mds.next]
	mds.next++
	return mds.inputs[idx], mds.labels[idx], nil
}
