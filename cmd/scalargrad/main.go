// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// scalargrad trains a small multi-layer perceptron on a single example, by default a 3→4→4→1 network
// with sigmoid/tanh/sigmoid activations, inputs [1, 2, 2] and target 1, and reports the final loss.
//
// The model shape and the training example can be changed with "-set", e.g.:
//
//	scalargrad -steps=100 -set="layer_sizes=8,1;activations=swish,sigmoid;initializer=xavier"
package main

import (
	"flag"
	"fmt"

	"github.com/gomlx/scalargrad/ui/commandline"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagNumSteps      = flag.Int("steps", 30, "Number of gradient descent steps to perform.")
	flagLearningRate  = flag.Float64("learning_rate", 0.2, "Learning rate.")
	flagOptimizer     = flag.String("optimizer", "sgd", "Optimizer to use: \"sgd\" or \"adam\".")
	flagSeed          = flag.Uint64("seed", 0, "Seed for the random initialization of the parameters. 0 uses a random seed.")
	flagPrintGraph    = flag.Bool("print_graph", false, "Print the expression of the loss of the last training step.")
	flagPlot          = flag.String("plot", "", "If set, saves an HTML page with the SVG plots of the loss to the given path.")
	flagPlotPoints    = flag.String("plot_points", "", "If set, saves the plot points (JSON, one per line) to the given path.")
	flagNumPlotPoints = flag.Int("num_plot_points", 30, "Number of times to collect plot points during training.")
	flagProgress      = flag.Bool("progress", false, "Display a progress bar while training.")
	flagNanLogger     = flag.Bool("nan_logger", false, "Stop with a report of the node that first became NaN or infinite.")
)

func main() {
	klog.InitFlags(nil)
	params := defaultParams()
	settings := commandline.CreateSettingsFlag(params, "")
	flag.Parse()
	paramsSet := must.M1(commandline.ParseSettings(params, *settings))
	if len(paramsSet) > 0 {
		fmt.Printf("Modified settings:\n%s\n\n", commandline.SprintModifiedSettings(params, paramsSet))
	}

	cfg := &runConfig{
		numSteps:      *flagNumSteps,
		learningRate:  *flagLearningRate,
		optimizer:     *flagOptimizer,
		seed:          *flagSeed,
		printGraph:    *flagPrintGraph,
		plotPath:      *flagPlot,
		pointsPath:    *flagPlotPoints,
		numPlotPoints: *flagNumPlotPoints,
		progress:      *flagProgress,
		nanLogger:     *flagNanLogger,
	}
	if _, err := run(cfg, params); err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
}
