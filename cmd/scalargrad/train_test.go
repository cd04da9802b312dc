// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/scalargrad/pkg/ml/initializer"
	"github.com/gomlx/scalargrad/ui/commandline"
	"github.com/gomlx/scalargrad/ui/plots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultRunConfig() *runConfig {
	return &runConfig{
		numSteps:      30,
		learningRate:  0.2,
		optimizer:     "sgd",
		numPlotPoints: 10,
	}
}

func TestRun(t *testing.T) {
	for _, seed := range []uint64{1, 42, 2024} {
		cfg := defaultRunConfig()
		cfg.seed = seed
		loss, err := run(cfg, defaultParams())
		require.NoError(t, err)
		assert.Less(t, loss, 0.1, "seed=%d", seed)
	}
}

func TestRunWithPlots(t *testing.T) {
	dir := t.TempDir()
	cfg := defaultRunConfig()
	cfg.seed = 7
	cfg.printGraph = true
	cfg.plotPath = filepath.Join(dir, "loss.html")
	cfg.pointsPath = filepath.Join(dir, plots.TrainingPlotFileName)
	_, err := run(cfg, defaultParams())
	require.NoError(t, err)

	contents, err := os.ReadFile(cfg.plotPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "<svg")
	points, err := plots.LoadPoints(cfg.pointsPath)
	require.NoError(t, err)
	assert.NotEmpty(t, points)
}

func TestRunSettings(t *testing.T) {
	params := defaultParams()
	_, err := commandline.ParseSettings(params, "layer_sizes=3,2;activations=swish,sigmoid;initializer=xavier;target=0.5")
	require.NoError(t, err)
	cfg := defaultRunConfig()
	cfg.seed = 3
	cfg.optimizer = "adam"
	cfg.learningRate = 0.05
	_, err = run(cfg, params)
	require.NoError(t, err)

	// Mismatched layers and activations.
	_, err = commandline.ParseSettings(params, "activations=tanh")
	require.NoError(t, err)
	_, err = run(cfg, params)
	require.Error(t, err)

	// Invalid activation names are reported as errors.
	_, err = commandline.ParseSettings(params, "activations=tanh,relu")
	require.NoError(t, err)
	_, err = run(cfg, params)
	require.Error(t, err)

	cfg.optimizer = "unknown"
	_, err = run(cfg, defaultParams())
	require.Error(t, err)
}

func TestNewModel(t *testing.T) {
	model, err := newModel(defaultParams(), 3, initializer.One)
	require.NoError(t, err)
	layers := model.Layers()
	require.Len(t, layers, 3)
	assert.Equal(t, 3, layers[0].NumInputs())
	assert.Equal(t, 1, layers[2].NumOutputs())
	assert.Len(t, model.Parameters(), 16+20+5)
}
