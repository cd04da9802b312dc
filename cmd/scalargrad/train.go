// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/scalargrad/pkg/core/graph/nanlogger"
	"github.com/gomlx/scalargrad/pkg/ml/datasets"
	"github.com/gomlx/scalargrad/pkg/ml/initializer"
	"github.com/gomlx/scalargrad/pkg/ml/layers/activations"
	"github.com/gomlx/scalargrad/pkg/ml/nn"
	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/gomlx/scalargrad/pkg/ml/train/losses"
	"github.com/gomlx/scalargrad/pkg/ml/train/metrics"
	"github.com/gomlx/scalargrad/pkg/ml/train/optimizers"
	"github.com/gomlx/scalargrad/ui/commandline"
	"github.com/gomlx/scalargrad/ui/plots/margaid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Hyperparameters that can be changed with "-set".
const (
	ParamLayerSizes  = "layer_sizes"
	ParamActivations = "activations"
	ParamInitializer = "initializer"
	ParamLoss        = "loss"
	ParamInputs      = "inputs"
	ParamTarget      = "target"
	ParamClipStep    = "clip_step"
)

func defaultParams() commandline.Params {
	return commandline.Params{
		ParamLayerSizes:  []int{4, 4, 1},
		ParamActivations: []string{"sigmoid", "tanh", "sigmoid"},
		ParamInitializer: "uniform",
		ParamLoss:        "squared_error",
		ParamInputs:      []float64{1, 2, 2},
		ParamTarget:      1.0,
		ParamClipStep:    0.0,
	}
}

// runConfig holds the values of the flags that control training.
type runConfig struct {
	numSteps      int
	learningRate  float64
	optimizer     string
	seed          uint64
	printGraph    bool
	plotPath      string
	pointsPath    string
	numPlotPoints int
	progress      bool
	nanLogger     bool
}

func newInitializer(name string, rng *rand.Rand) (initializer.Initializer, error) {
	switch name {
	case "uniform":
		return initializer.Uniform(rng, -1, 1), nil
	case "normal":
		return initializer.Normal(rng, 1), nil
	case "xavier":
		return initializer.XavierUniform(rng), nil
	case "he":
		return initializer.He(rng), nil
	case "zero":
		return initializer.Zero, nil
	}
	return nil, errors.Errorf("unknown initializer %q, valid values are \"uniform\", \"normal\", \"xavier\", \"he\" and \"zero\"", name)
}

func newLossFn(name string) (losses.LossFn, error) {
	switch name {
	case "squared_error":
		return losses.SquaredError, nil
	case "mean_squared_error":
		return losses.MeanSquaredError, nil
	}
	return nil, errors.Errorf("unknown loss %q, valid values are \"squared_error\" and \"mean_squared_error\"", name)
}

func newOptimizer(name string, learningRate, clipStep float64) (optimizers.Interface, error) {
	switch name {
	case "sgd":
		return optimizers.StochasticGradientDescent().
			WithLearningRate(learningRate).
			WithClipStepByValue(clipStep).
			Done(), nil
	case "adam":
		return optimizers.Adam().
			LearningRate(learningRate).
			ClipStepByValue(clipStep).
			Done(), nil
	}
	// Other known optimizers are used with their defaults.
	return optimizers.ByName(name)
}

// newModel creates the MLP described by params, taking numInputs inputs.
func newModel(params commandline.Params, numInputs int, init initializer.Initializer) (model *nn.MLP, err error) {
	layerSizes := commandline.GetParamOr(params, ParamLayerSizes, []int{})
	activationNames := commandline.GetParamOr(params, ParamActivations, []string{})
	if len(layerSizes) == 0 {
		return nil, errors.Errorf("%q must have at least one layer", ParamLayerSizes)
	}
	if len(activationNames) != len(layerSizes) {
		return nil, errors.Errorf("%q has %d values, but %q has %d: they must match",
			ParamActivations, len(activationNames), ParamLayerSizes, len(layerSizes))
	}
	err = exceptions.TryCatch[error](func() {
		model = nn.NewMLP(init)
		for ii, size := range layerSizes {
			model.AddLayer(numInputs, size, activations.FromName(activationNames[ii]))
			numInputs = size
		}
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create model")
	}
	return model, nil
}

// run trains the model configured by params and returns the final loss.
func run(cfg *runConfig, params commandline.Params) (finalLoss float64, err error) {
	rng := initializer.NewRNG(cfg.seed)
	init, err := newInitializer(commandline.GetParamOr(params, ParamInitializer, ""), rng)
	if err != nil {
		return 0, err
	}
	lossFn, err := newLossFn(commandline.GetParamOr(params, ParamLoss, ""))
	if err != nil {
		return 0, err
	}
	optimizer, err := newOptimizer(cfg.optimizer, cfg.learningRate, commandline.GetParamOr(params, ParamClipStep, 0.0))
	if err != nil {
		return 0, err
	}
	inputs := commandline.GetParamOr(params, ParamInputs, []float64{})
	model, err := newModel(params, len(inputs), init)
	if err != nil {
		return 0, err
	}
	layers := model.Layers()
	labels := make([]float64, layers[len(layers)-1].NumOutputs())
	for ii := range labels {
		labels[ii] = commandline.GetParamOr(params, ParamTarget, 0.0)
	}
	ds, err := datasets.NewInMemory("train", [][]float64{inputs}, [][]float64{labels})
	if err != nil {
		return 0, err
	}
	ds.Infinite(true)
	evalDS, err := datasets.NewInMemory("example", [][]float64{inputs}, [][]float64{labels})
	if err != nil {
		return 0, err
	}
	klog.V(1).Infof("Model with %d parameters, optimizer %q", len(model.Parameters()), cfg.optimizer)

	trainer := train.NewTrainer(model, lossFn, optimizer,
		metrics.NewMovingAverageLoss("Moving Average Loss", "~loss", 0.1)).
		WithEvalMetrics(metrics.NewMeanAbsoluteError("Mean Absolute Error", "mae"))
	if cfg.nanLogger {
		trainer.WithNanLogger(nanlogger.New())
	}
	loop := train.NewLoop(trainer)
	if cfg.progress {
		commandline.AttachProgressBar(loop)
	}
	train.EveryNSteps(loop, 10, "log loss", 0, func(loop *train.Loop, metrics []float64) error {
		klog.V(1).Infof("LoopStep %d: loss=%g", loop.LoopStep, metrics[0])
		return nil
	})
	var plotter *margaid.Plots
	if cfg.plotPath != "" || cfg.pointsPath != "" {
		plotter = margaid.New(1024, 400, evalDS)
		if cfg.pointsPath != "" {
			if _, err = plotter.WithFile(cfg.pointsPath); err != nil {
				return 0, err
			}
		}
		plotter.DynamicUpdates().Attach(loop, cfg.numPlotPoints)
	}

	if _, err = loop.RunSteps(ds, cfg.numSteps); err != nil {
		return 0, err
	}
	if cfg.plotPath != "" {
		if err = plotter.WriteHTML(cfg.plotPath); err != nil {
			return 0, err
		}
	}
	evalMetrics, err := trainer.Eval(evalDS)
	if err != nil {
		return 0, err
	}
	finalLoss = evalMetrics[0]
	if cfg.printGraph {
		fmt.Printf("Loss expression with the trained parameters:\n%s\n\n", trainer.LastLoss())
	}
	fmt.Printf("Loss after %s steps: %.6g\n", humanize.Comma(trainer.GlobalStep()), finalLoss)
	return finalLoss, nil
}
