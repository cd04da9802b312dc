// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package optimizers implements gradient descent optimizers over the parameters of a scalar graph.
//
// An optimizer reads the gradient accumulated in each parameter (see graph.Backward), updates the parameter value,
// and zeroes its gradient, so the next step starts afresh.
package optimizers

import (
	"math"

	"github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/gomlx/scalargrad/pkg/support/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Interface implemented by optimizer implementations.
type Interface interface {
	// Update applies one optimization step to the given parameters, using their current gradients, and
	// then zeroes their gradients.
	//
	// The same parameters (in the same order) are expected at every step: stateful optimizers key their state
	// by parameter.
	Update(params []*graph.Node) error

	// Clear deletes any state kept by the optimizer, and resets its step count.
	Clear()
}

// Schedule returns the learning rate for the given step, counted from 0 by the optimizer.
type Schedule func(step int) float64

// KnownOptimizers maps the names accepted by ByName to a constructor with the default configuration.
var KnownOptimizers = map[string]func() Interface{
	"sgd":  func() Interface { return StochasticGradientDescent().Done() },
	"adam": func() Interface { return Adam().Done() },
}

// ByName creates the optimizer registered in KnownOptimizers under name, with its default configuration.
func ByName(name string) (Interface, error) {
	newFn, found := KnownOptimizers[name]
	if !found {
		return nil, errors.Errorf("unknown optimizer %q, valid values are %q", name, xslices.SortedKeys(KnownOptimizers))
	}
	return newFn(), nil
}

// clipStep limits step to [-clipStepByValue, clipStepByValue], if clipStepByValue > 0.
func clipStep(step, clipStepByValue float64) float64 {
	if clipStepByValue <= 0 {
		return step
	}
	return min(max(step, -clipStepByValue), clipStepByValue)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// SGDConfig configures a stochastic gradient descent optimizer, and is also the optimizer itself.
type SGDConfig struct {
	learningRate    float64
	schedule        Schedule
	clipStepByValue float64
	clipNaN         bool
	step            int
}

// SGDDefaultLearningRate is used by StochasticGradientDescent if no learning rate is set.
const SGDDefaultLearningRate = 0.1

// StochasticGradientDescent returns the configuration of the plain gradient descent update:
//
//	value -= learningRate * gradient
func StochasticGradientDescent() *SGDConfig {
	return &SGDConfig{
		learningRate: SGDDefaultLearningRate,
	}
}

// WithLearningRate sets a constant learning rate.
func (sgd *SGDConfig) WithLearningRate(learningRate float64) *SGDConfig {
	sgd.learningRate = learningRate
	return sgd
}

// WithSchedule makes the learning rate depend on the step. It overrides WithLearningRate.
func (sgd *SGDConfig) WithSchedule(schedule Schedule) *SGDConfig {
	sgd.schedule = schedule
	return sgd
}

// WithClipStepByValue limits the magnitude of learningRate*gradient. 0, the default, disables it.
func (sgd *SGDConfig) WithClipStepByValue(clipStepByValue float64) *SGDConfig {
	sgd.clipStepByValue = clipStepByValue
	return sgd
}

// WithClipNaN leaves a parameter unchanged when its step is NaN or infinite. It only helps with
// occasional bad gradients: persistent ones still ruin training.
func (sgd *SGDConfig) WithClipNaN(clipNaN bool) *SGDConfig {
	sgd.clipNaN = clipNaN
	return sgd
}

// Done returns sgd as an Interface.
func (sgd *SGDConfig) Done() Interface {
	return sgd
}

// LearningRate used for the next step.
func (sgd *SGDConfig) LearningRate() float64 {
	if sgd.schedule != nil {
		return sgd.schedule(sgd.step)
	}
	return sgd.learningRate
}

// Update implements optimizers.Interface.
func (sgd *SGDConfig) Update(params []*graph.Node) error {
	lr := sgd.LearningRate()
	for ii, p := range params {
		if p == nil {
			return errors.Errorf("SGD.Update(): parameter #%d is nil", ii)
		}
		step := lr * p.Gradient()
		if sgd.clipNaN && !isFinite(step) {
			klog.V(1).Infof("SGD.Update(): skipping non-finite step %g for parameter #%d", step, ii)
		} else {
			p.SetValue(p.Value() - clipStep(step, sgd.clipStepByValue))
		}
		p.ZeroGradient()
	}
	sgd.step++
	return nil
}

// Clear implements optimizers.Interface. It resets the step count used by the schedule.
func (sgd *SGDConfig) Clear() {
	sgd.step = 0
}
