// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train_test

import (
	"math"
	"testing"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/core/graph/nanlogger"
	"github.com/gomlx/scalargrad/pkg/ml/datasets"
	"github.com/gomlx/scalargrad/pkg/ml/initializer"
	"github.com/gomlx/scalargrad/pkg/ml/layers/activations"
	"github.com/gomlx/scalargrad/pkg/ml/nn"
	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/gomlx/scalargrad/pkg/ml/train/losses"
	"github.com/gomlx/scalargrad/pkg/ml/train/metrics"
	"github.com/gomlx/scalargrad/pkg/ml/train/optimizers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearModel is y = w*x + b, with w and b starting at 0.
type linearModel struct {
	w, b *Node
}

func newLinearModel() *linearModel {
	return &linearModel{w: Leaf(0), b: Leaf(0)}
}

func (m *linearModel) Forward(inputs []*Node) []*Node {
	return []*Node{Add(Mul(m.w, inputs[0]), m.b)}
}

func (m *linearModel) Parameters() []*Node {
	return []*Node{m.w, m.b}
}

func TestTrainStep(t *testing.T) {
	model := newLinearModel()
	mae := metrics.NewMeanAbsoluteError("Mean Absolute Error", "mae")
	trainer := train.NewTrainer(model, losses.SquaredError,
		optimizers.StochasticGradientDescent().WithLearningRate(0.1).Done(), mae)
	assert.Equal(t, model, trainer.Model())
	assert.Len(t, trainer.TrainMetrics(), 1)

	stepMetrics, err := trainer.TrainStep([]float64{2}, []float64{1})
	require.NoError(t, err)
	require.Len(t, stepMetrics, 2)
	assert.Equal(t, 1.0, stepMetrics[0]) // Loss before the update: (1-0)^2.
	assert.Equal(t, 1.0, stepMetrics[1]) // |1-0|
	assert.Equal(t, int64(1), trainer.GlobalStep())

	// d(loss)/dw = -2*(1-0)*x = -4, d(loss)/db = -2.
	assert.InDelta(t, 0.4, model.w.Value(), 1e-12)
	assert.InDelta(t, 0.2, model.b.Value(), 1e-12)
	assert.Equal(t, 0.0, model.w.Gradient())
	assert.Equal(t, 0.0, model.b.Gradient())
	require.NotNil(t, trainer.LastLoss())
	assert.Equal(t, 1.0, trainer.LastLoss().Value())

	// EvalStep doesn't change the model.
	evalMetrics, err := trainer.EvalStep([]float64{2}, []float64{1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, evalMetrics[0], 1e-12)
	assert.InDelta(t, 0.4, model.w.Value(), 1e-12)
	assert.Equal(t, int64(1), trainer.GlobalStep())
}

func TestTrainStepErrors(t *testing.T) {
	trainer := train.NewTrainer(newLinearModel(), nil, nil)
	// Mismatched labels make the loss function panic, which is returned as an error.
	_, err := trainer.TrainStep([]float64{2}, []float64{1, 2})
	require.ErrorContains(t, err, "SquaredError")
	assert.Equal(t, int64(0), trainer.GlobalStep())

	require.Panics(t, func() { train.NewTrainer(nil, nil, nil) })
}

func TestTrainStepNanLogger(t *testing.T) {
	var traces []*nanlogger.Trace
	logger := nanlogger.New().WithHandler(func(info *nanlogger.Trace) { traces = append(traces, info) })
	model := newLinearModel()
	trainer := train.NewTrainer(model, losses.SquaredError, nil).WithNanLogger(logger)
	_, err := trainer.TrainStep([]float64{math.Inf(1)}, []float64{1})
	require.Error(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, []string{"outputs", "#0"}, traces[0].Scope)
	assert.True(t, math.IsNaN(traces[0].Value))
	// The model is not updated.
	assert.Equal(t, 0.0, model.w.Value())
}

func TestEval(t *testing.T) {
	ds, err := datasets.NewInMemory("line", [][]float64{{0}, {1}}, [][]float64{{1}, {3}})
	require.NoError(t, err)
	trainer := train.NewTrainer(newLinearModel(), losses.SquaredError, nil).
		WithEvalMetrics(metrics.NewMeanAbsoluteError("Mean Absolute Error", "mae"))
	evalMetrics, err := trainer.Eval(ds)
	require.NoError(t, err)
	assert.Equal(t, []float64{(1.0 + 9.0) / 2, 2}, evalMetrics)

	// Dataset was reset, so it can be evaluated again.
	evalMetrics, err = trainer.Eval(ds)
	require.NoError(t, err)
	assert.Equal(t, 5.0, evalMetrics[0])
}

// TestTrainMLP trains the 3->4->4->1 network on a single example, with the Trainer and the Loop.
func TestTrainMLP(t *testing.T) {
	for _, seed := range []uint64{7, 11, 13} {
		mlp := nn.NewMLP(initializer.Uniform(initializer.NewRNG(seed), -1, 1))
		mlp.AddLayer(3, 4, activations.TypeSigmoid)
		mlp.AddLayer(4, 4, activations.TypeTanh)
		mlp.AddLayer(4, 1, activations.TypeSigmoid)
		sgd := optimizers.StochasticGradientDescent().WithLearningRate(0.2).Done()
		trainer := train.NewTrainer(mlp, losses.SquaredError, sgd)
		ds, err := datasets.NewInMemory("one", [][]float64{{1, 2, 2}}, [][]float64{{1}})
		require.NoError(t, err)
		loop := train.NewLoop(trainer)
		_, err = loop.RunSteps(ds.Infinite(true), 30)
		require.NoError(t, err)
		assert.Equal(t, int64(30), trainer.GlobalStep())

		evalMetrics, err := trainer.Eval(ds.Infinite(false))
		require.NoError(t, err)
		assert.Less(t, evalMetrics[0], 0.1, "seed=%d", seed)
	}
}

func TestModelPanicsAreErrors(t *testing.T) {
	mlp := nn.NewMLP(initializer.One).AddLayer(2, 1, activations.TypeNone)
	trainer := train.NewTrainer(mlp, losses.SquaredError, nil)
	_, err := trainer.TrainStep([]float64{1, 2, 3}, []float64{1})
	require.Error(t, err)
	var exception error
	require.NotPanics(t, func() {
		exception = exceptions.TryCatch[error](func() { mlp.Forward([]*Node{Leaf(1)}) })
	})
	require.Error(t, exception)
}
