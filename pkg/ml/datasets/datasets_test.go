// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"io"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDataset(t *testing.T) *InMemory {
	mds, err := NewInMemory("xor", [][]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}, [][]float64{{0}, {1}, {1}, {0}})
	require.NoError(t, err)
	return mds
}

// readAll reads all examples until io.EOF, and returns the index of each example, encoded from its inputs.
func readAll(t *testing.T, mds *InMemory) (indices []float64) {
	for {
		inputs, labels, err := mds.Yield()
		if err == io.EOF {
			return
		}
		require.NoError(t, err)
		require.Len(t, inputs, 2)
		require.Len(t, labels, 1)
		indices = append(indices, inputs[0]*2+inputs[1])
	}
}

func TestInMemory(t *testing.T) {
	mds := newTestDataset(t)
	assert.Equal(t, "xor", mds.Name())
	assert.Equal(t, 4, mds.NumExamples())
	assert.Equal(t, []float64{0, 1, 2, 3}, readAll(t, mds))
	// After io.EOF, it keeps returning io.EOF until reset.
	_, _, err := mds.Yield()
	require.ErrorIs(t, err, io.EOF)
	mds.Reset()
	assert.Equal(t, []float64{0, 1, 2, 3}, readAll(t, mds))
}

func TestInMemoryInfinite(t *testing.T) {
	mds := newTestDataset(t).Infinite(true)
	for ii := range 10 {
		inputs, _, err := mds.Yield()
		require.NoError(t, err)
		assert.Equal(t, float64(ii%4), inputs[0]*2+inputs[1])
	}
}

func TestInMemoryShuffle(t *testing.T) {
	mds := newTestDataset(t).Shuffle(rand.New(rand.NewPCG(42, 42)))
	seen := readAll(t, mds)
	assert.ElementsMatch(t, []float64{0, 1, 2, 3}, seen)

	// Disabling shuffle returns to the original order.
	mds.Shuffle(nil)
	assert.Equal(t, []float64{0, 1, 2, 3}, readAll(t, mds))
}

func TestNewInMemoryErrors(t *testing.T) {
	_, err := NewInMemory("x", [][]float64{{1}}, nil)
	require.Error(t, err)
	_, err = NewInMemory("x", nil, nil)
	require.Error(t, err)
	_, err = NewInMemory("x", [][]float64{{1}, {1, 2}}, [][]float64{{1}, {2}})
	require.ErrorContains(t, err, "example #1")
}

func TestNewInMemoryCopiesData(t *testing.T) {
	inputs := [][]float64{{1, 2}}
	mds, err := NewInMemory("copy", inputs, [][]float64{{3}})
	require.NoError(t, err)
	inputs[0][0] = 100
	got, _, err := mds.Yield()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got)
}

func TestTake(t *testing.T) {
	ds := Take(newTestDataset(t).Infinite(true), 6)
	assert.Equal(t, "xor [Take 6]", ds.Name())
	count := 0
	for {
		_, _, err := ds.Yield()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 6, count)
	ds.Reset()
	_, _, err := ds.Yield()
	require.NoError(t, err)
}
