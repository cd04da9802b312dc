// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train_test

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/gomlx/scalargrad/pkg/ml/datasets"
	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/gomlx/scalargrad/pkg/ml/train/losses"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoop(t *testing.T, inputs, labels [][]float64) (*train.Loop, *datasets.InMemory) {
	ds, err := datasets.NewInMemory("test", inputs, labels)
	require.NoError(t, err)
	return train.NewLoop(train.NewTrainer(newLinearModel(), losses.SquaredError, nil)), ds
}

func TestLoopHooks(t *testing.T) {
	loop, ds := newLoop(t, [][]float64{{1}}, [][]float64{{1}})
	var calls []string
	for _, priority := range []train.Priority{10, -1, 0} {
		name := fmt.Sprintf("p%d", priority)
		loop.OnStart(name, priority, func(l *train.Loop, d train.Dataset) error {
			assert.Equal(t, "test", d.Name())
			calls = append(calls, "start:"+name)
			return nil
		})
		loop.OnStep(name, priority, func(l *train.Loop, metrics []float64) error {
			calls = append(calls, fmt.Sprintf("step%d:%s", l.LoopStep, name))
			return nil
		})
		loop.OnEnd(name, priority, func(l *train.Loop, metrics []float64) error {
			calls = append(calls, "end:"+name)
			return nil
		})
	}
	metrics, err := loop.RunSteps(ds.Infinite(true), 2)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, []string{
		"start:p-1", "start:p0", "start:p10",
		"step0:p-1", "step0:p0", "step0:p10",
		"step1:p-1", "step1:p0", "step1:p10",
		"end:p-1", "end:p0", "end:p10",
	}, calls)
	assert.Equal(t, 2, loop.LoopStep)
	assert.Len(t, loop.TrainStepDurations, 2)
	assert.Greater(t, loop.MedianTrainStepDuration(), time.Duration(0))

	// Picks up where it left.
	_, err = loop.RunSteps(ds, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, loop.StartStep)
	assert.Equal(t, 5, loop.EndStep)
	assert.Equal(t, int64(5), loop.Trainer.GlobalStep())

	// No steps is a no-op.
	metrics, err = loop.RunSteps(ds, 0)
	require.NoError(t, err)
	assert.Nil(t, metrics)
}

func TestLoopHookError(t *testing.T) {
	loop, ds := newLoop(t, [][]float64{{1}}, [][]float64{{1}})
	loop.OnStep("failing", 0, func(_ *train.Loop, _ []float64) error {
		return errors.New("bad step")
	})
	_, err := loop.RunSteps(ds.Infinite(true), 3)
	require.ErrorContains(t, err, "bad step")
	require.ErrorContains(t, err, `"failing"`)
	assert.Equal(t, int64(1), loop.Trainer.GlobalStep())
}

func TestLoopNaN(t *testing.T) {
	loop, ds := newLoop(t, [][]float64{{math.NaN()}}, [][]float64{{1}})
	_, err := loop.RunSteps(ds.Infinite(true), 3)
	require.ErrorContains(t, err, "NaN")

	loop, ds = newLoop(t, [][]float64{{1}}, [][]float64{{math.Inf(-1)}})
	_, err = loop.RunSteps(ds.Infinite(true), 3)
	require.ErrorContains(t, err, "infinity")
}

func TestLoopDatasetEnd(t *testing.T) {
	loop, ds := newLoop(t, [][]float64{{1}, {2}}, [][]float64{{1}, {2}})
	_, err := loop.RunSteps(ds, 3)
	require.ErrorContains(t, err, "reached Dataset end after 2 steps")
}

func TestRunEpochs(t *testing.T) {
	loop, ds := newLoop(t, [][]float64{{1}, {2}, {3}}, [][]float64{{1}, {2}, {3}})
	var endSteps []int
	loop.OnStep("endSteps", 0, func(l *train.Loop, _ []float64) error {
		endSteps = append(endSteps, l.EndStep)
		return nil
	})
	_, err := loop.RunEpochs(ds, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, loop.LoopStep)
	assert.Equal(t, 2, loop.Epoch)
	// EndStep is unknown during the first epoch, and then extrapolated.
	assert.Equal(t, []int{-1, -1, -1, 6, 6, 6}, endSteps)
}

func TestCallbacks(t *testing.T) {
	loop, ds := newLoop(t, [][]float64{{1}}, [][]float64{{1}})
	var nTimesSteps, everyNSteps []int
	train.NTimesDuringLoop(loop, 3, "nTimes", 0, func(l *train.Loop, _ []float64) error {
		nTimesSteps = append(nTimesSteps, l.LoopStep)
		return nil
	})
	train.EveryNSteps(loop, 4, "everyN", 0, func(l *train.Loop, _ []float64) error {
		everyNSteps = append(everyNSteps, l.LoopStep)
		return nil
	})
	var periodicCalls int
	train.PeriodicCallback(loop, time.Hour, true, "periodic", 0, func(_ *train.Loop, _ []float64) error {
		periodicCalls++
		return nil
	})
	_, err := loop.RunSteps(ds.Infinite(true), 10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 6, 9}, nTimesSteps)
	assert.Equal(t, []int{3, 7}, everyNSteps)
	// Only the call at the end, the period is never reached.
	assert.Equal(t, 1, periodicCalls)
}
