// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package train holds tools to help run a training loop over scalar graphs: the Trainer builds the loss of
// each example, back-propagates it and applies the optimizer; the Loop drives it over a Dataset and calls the
// attached hooks (progress bars, plots, etc.).
package train

import (
	"fmt"
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/core/graph/nanlogger"
	"github.com/gomlx/scalargrad/pkg/ml/train/losses"
	"github.com/gomlx/scalargrad/pkg/ml/train/metrics"
	"github.com/gomlx/scalargrad/pkg/ml/train/optimizers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Model is the interface the Trainer needs from a model: *nn.MLP implements it.
type Model interface {
	// Forward builds the outputs of the model for the given inputs.
	Forward(inputs []*graph.Node) []*graph.Node

	// Parameters returns the trainable leaf nodes of the model, always in the same order.
	Parameters() []*graph.Node
}

// Trainer is a helper object to orchestrate a training step and evaluation.
//
// Given the model, a loss function and an optimizer, each TrainStep:
//  1. Converts the inputs and labels to leaf nodes, and builds the model outputs and the loss.
//  2. Calls Backward on the loss, accumulating the gradient of every parameter.
//  3. Updates the parameters with the optimizer, which also zeroes their gradients.
//
// It also updates the train metrics. The first metric returned is always the loss of the step.
type Trainer struct {
	model     Model
	lossFn    losses.LossFn
	optimizer optimizers.Interface

	trainMetrics, evalMetrics []metrics.Interface

	nanLogger  *nanlogger.NanLogger
	globalStep int64
	lastLoss   *graph.Node
}

// NewTrainer constructs a trainer for the given model, loss function and optimizer.
//
// Optional trainMetrics are updated at every TrainStep and returned after the loss.
// For EvalStep see WithEvalMetrics.
func NewTrainer(model Model, lossFn losses.LossFn, optimizer optimizers.Interface,
	trainMetrics ...metrics.Interface) *Trainer {
	if model == nil {
		exceptions.Panicf("train.NewTrainer(): model cannot be nil")
	}
	if lossFn == nil {
		lossFn = losses.SquaredError
	}
	if optimizer == nil {
		optimizer = optimizers.StochasticGradientDescent().Done()
	}
	return &Trainer{
		model:        model,
		lossFn:       lossFn,
		optimizer:    optimizer,
		trainMetrics: trainMetrics,
	}
}

// WithEvalMetrics sets the metrics updated and returned (after the loss) by EvalStep.
func (r *Trainer) WithEvalMetrics(evalMetrics ...metrics.Interface) *Trainer {
	r.evalMetrics = evalMetrics
	return r
}

// WithNanLogger traces the loss and the model outputs of every step with the given nanlogger.NanLogger,
// and checks them after the backward pass: its handler is called with the earliest node holding a NaN
// or infinity, in value or gradient.
//
// A nil logger disables it.
func (r *Trainer) WithNanLogger(l *nanlogger.NanLogger) *Trainer {
	r.nanLogger = l
	return r
}

// Model returns the model being trained.
func (r *Trainer) Model() Model {
	return r.model
}

// Optimizer returns the optimizer used by TrainStep.
func (r *Trainer) Optimizer() optimizers.Interface {
	return r.optimizer
}

// TrainMetrics returns the train metrics, not including the loss, which is always reported first.
func (r *Trainer) TrainMetrics() []metrics.Interface {
	return r.trainMetrics
}

// EvalMetrics returns the eval metrics, not including the loss, which is always reported first.
func (r *Trainer) EvalMetrics() []metrics.Interface {
	return r.evalMetrics
}

// GlobalStep is the number of training steps executed so far.
func (r *Trainer) GlobalStep() int64 {
	return r.globalStep
}

// LastLoss returns the loss node of the last TrainStep or EvalStep, or nil if none was run.
// It can be used to inspect (e.g.: print) the expression built for the last example.
func (r *Trainer) LastLoss() *graph.Node {
	return r.lastLoss
}

// ResetTrainMetrics resets the state of the train metrics. Called by the Loop at the start of each run.
func (r *Trainer) ResetTrainMetrics() {
	for _, m := range r.trainMetrics {
		m.Reset()
	}
}

// ResetEvalMetrics resets the state of the eval metrics.
func (r *Trainer) ResetEvalMetrics() {
	for _, m := range r.evalMetrics {
		m.Reset()
	}
}

// leaves converts values to leaf nodes.
func leaves(values []float64) []*graph.Node {
	nodes := make([]*graph.Node, len(values))
	for ii, v := range values {
		nodes[ii] = graph.Leaf(v)
	}
	return nodes
}

// buildLoss builds the model outputs and loss for one example.
// It panics (with an error) if the model or the loss function panic.
func (r *Trainer) buildLoss(inputs, labels []float64) (predictions []float64, loss *graph.Node) {
	outputs := r.model.Forward(leaves(inputs))
	loss = r.lossFn(leaves(labels), outputs)
	if loss == nil {
		panic(errors.New("loss function returned a nil node"))
	}
	predictions = make([]float64, len(outputs))
	for ii, output := range outputs {
		predictions[ii] = output.Value()
	}
	r.nanLogger.TraceWithScope(loss, "loss")
	for ii, output := range outputs {
		r.nanLogger.TraceWithScope(output, "outputs", fmt.Sprintf("#%d", ii))
	}
	return
}

// TrainStep runs one step of training on the given example, and returns the metrics: the loss first, followed
// by the train metrics.
//
// Errors in the model or loss function (usually panics with exceptions.Panicf) are converted and returned.
func (r *Trainer) TrainStep(inputs, labels []float64) (stepMetrics []float64, err error) {
	var (
		predictions []float64
		loss        *graph.Node
	)
	r.nanLogger.Reset()
	err = exceptions.TryCatch[error](func() {
		predictions, loss = r.buildLoss(inputs, labels)
		loss.Backward()
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "TrainStep(GlobalStep=%d): failed building or differentiating the loss",
			r.globalStep)
	}
	r.lastLoss = loss
	if r.nanLogger.Check() {
		return nil, errors.Errorf("TrainStep(GlobalStep=%d): NaN or infinity found in the loss or outputs", r.globalStep)
	}
	if err = r.optimizer.Update(r.model.Parameters()); err != nil {
		return nil, errors.WithMessagef(err, "TrainStep(GlobalStep=%d): optimizer update failed", r.globalStep)
	}
	r.globalStep++
	lossValue := loss.Value()
	if klog.V(2).Enabled() {
		klog.Infof("TrainStep(GlobalStep=%d): loss=%g", r.globalStep, lossValue)
	}
	return updateMetrics(r.trainMetrics, labels, predictions, lossValue), nil
}

// EvalStep evaluates the loss for the given example, without changing the model, and returns the loss followed
// by the eval metrics.
func (r *Trainer) EvalStep(inputs, labels []float64) (stepMetrics []float64, err error) {
	var (
		predictions []float64
		loss        *graph.Node
	)
	err = exceptions.TryCatch[error](func() {
		predictions, loss = r.buildLoss(inputs, labels)
	})
	if err != nil {
		return nil, errors.WithMessage(err, "EvalStep: failed building the loss")
	}
	r.lastLoss = loss
	return updateMetrics(r.evalMetrics, labels, predictions, loss.Value()), nil
}

// Eval returns the mean loss over one pass of the dataset, followed by the final values of the eval metrics
// (which are reset at the start). The dataset is reset before and after the pass, so it must not be infinite.
func (r *Trainer) Eval(ds Dataset) (evalMetrics []float64, err error) {
	r.ResetEvalMetrics()
	var (
		sumLoss float64
		count   int
	)
	ds.Reset()
	defer ds.Reset()
	for {
		inputs, labels, err := ds.Yield()
		if err != nil {
			if isEOF(err) {
				break
			}
			return nil, errors.WithMessagef(err, "Trainer.Eval(%q): failed reading from Dataset", ds.Name())
		}
		stepMetrics, err := r.EvalStep(inputs, labels)
		if err != nil {
			return nil, errors.WithMessagef(err, "Trainer.Eval(%q): failed at example #%d", ds.Name(), count)
		}
		sumLoss += stepMetrics[0]
		count++
		evalMetrics = stepMetrics
	}
	if count == 0 {
		return nil, errors.Errorf("Trainer.Eval(%q): dataset is empty", ds.Name())
	}
	evalMetrics[0] = sumLoss / float64(count)
	return evalMetrics, nil
}

func updateMetrics(metricsList []metrics.Interface, labels, predictions []float64, loss float64) []float64 {
	values := make([]float64, 0, len(metricsList)+1)
	values = append(values, loss)
	for _, m := range metricsList {
		values = append(values, m.Update(labels, predictions, loss))
	}
	return values
}

// IsFinite returns whether x is neither NaN nor infinite.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
