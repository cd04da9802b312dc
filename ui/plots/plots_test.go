// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package plots_test

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/ml/datasets"
	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/gomlx/scalargrad/pkg/ml/train/losses"
	"github.com/gomlx/scalargrad/pkg/ml/train/metrics"
	"github.com/gomlx/scalargrad/ui/plots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linearModel is y = w*x + b.
type linearModel struct {
	w, b *Node
}

func (m *linearModel) Forward(inputs []*Node) []*Node {
	return []*Node{Add(Mul(m.w, inputs[0]), m.b)}
}

func (m *linearModel) Parameters() []*Node {
	return []*Node{m.w, m.b}
}

func newTestLoop(t *testing.T) (*train.Loop, train.Dataset) {
	trainer := train.NewTrainer(&linearModel{w: Leaf(0), b: Leaf(0)}, losses.SquaredError, nil,
		metrics.NewBatchLoss(), metrics.NewMovingAverageLoss("Moving Average Loss", "~loss", 0.1)).
		WithEvalMetrics(metrics.NewMeanAbsoluteError("Mean Absolute Error", "mae"))
	ds, err := datasets.NewInMemory("test", [][]float64{{1}, {2}}, [][]float64{{1}, {3}})
	require.NoError(t, err)
	return train.NewLoop(trainer), ds
}

type recordingPlotter struct {
	plots.Points
	samples, incomplete int
}

func (r *recordingPlotter) DynamicSampleDone(incomplete bool) {
	r.samples++
	if incomplete {
		r.incomplete++
	}
}

func TestAddTrainAndEvalMetrics(t *testing.T) {
	loop, ds := newTestLoop(t)
	plotter := &recordingPlotter{Points: make(plots.Points)}
	require.NoError(t, plots.AddTrainAndEvalMetrics(plotter, loop, []float64{0.5, 0.5, 0.4}, []train.Dataset{ds}))
	assert.Equal(t, 1, plotter.samples)
	assert.Equal(t, 0, plotter.incomplete)

	got := make(map[string]float64)
	for _, p := range plotter.Extract() {
		assert.Equal(t, 0.0, p.Step)
		got[p.MetricName] = p.Value
	}
	// Losses on the test dataset are 1 and 9, absolute errors are 1 and 3.
	assert.Equal(t, map[string]float64{
		"Train: Loss":                 0.5,
		"Train: Moving Average Loss":  0.4,
		"Loss on test":                5,
		"Mean Absolute Error on test": 2,
	}, got)
	assert.Equal(t,
		[]string{"Mean Absolute Error on test", "Loss on test", "Train: Loss", "Train: Moving Average Loss"},
		plotter.MetricsNames())

	// Invalid values are not plotted, and the sample is marked as incomplete.
	loop.LoopStep = 1
	require.NoError(t, plots.AddTrainAndEvalMetrics(plotter, loop, []float64{math.NaN(), 0.5, 0.4}, nil))
	assert.Equal(t, 1, plotter.incomplete)
	assert.Len(t, plotter.Points[1], 1)

	require.Error(t, plots.AddTrainAndEvalMetrics(plotter, loop, nil, nil))
}

func TestPointsWriter(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "sub", plots.TrainingPlotFileName)
	want := []plots.Point{
		{MetricName: "Train: Loss", Short: "T/loss", MetricType: "loss", Step: 0, Value: 1.5},
		{MetricName: "Train: Loss", Short: "T/loss", MetricType: "loss", Step: 10, Value: 0.5},
	}
	writer, errReport := plots.CreatePointsWriter(filePath)
	for _, p := range want {
		writer <- p
	}
	close(writer)
	require.NoError(t, <-errReport)

	got, err := plots.LoadPoints(filePath)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = plots.LoadPoints(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestPoints(t *testing.T) {
	points := plots.NewPoints([]plots.Point{
		{MetricName: "b", MetricType: "loss", Step: 2, Value: 4},
		{MetricName: "a", MetricType: "loss", Step: 1, Value: 1},
		{MetricName: "b", MetricType: "loss", Step: 1, Value: 3},
		{MetricName: "a", MetricType: "loss", Step: 2, Value: 2},
	})
	assert.Equal(t, []string{"a", "b"}, points.MetricsNames())

	var steps []float64
	points.Map(func(p *plots.Point) { steps = append(steps, p.Step) })
	assert.Equal(t, []float64{1, 1, 2, 2}, steps)

	table := points.TableForMetrics("b")
	assert.Contains(t, table, "Step")
	assert.NotContains(t, table, " a ")
	assert.True(t, strings.Contains(points.String(), " a ") && strings.Contains(points.String(), " b "))

	points.Filter(func(p plots.Point) bool { return p.MetricName == "a" })
	assert.Len(t, points.Extract(), 2)
	points.Filter(func(p plots.Point) bool { return p.Step > 1 })
	assert.Equal(t, []plots.Point{{MetricName: "a", MetricType: "loss", Step: 2, Value: 2}}, points.Extract())
}
