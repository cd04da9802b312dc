// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package optimizers

import (
	"math"

	"github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// AdamDefaultLearningRate is used by Adam if no learning rate is set.
const AdamDefaultLearningRate = 0.001

// Adam returns the configuration of an Adam optimizer (https://arxiv.org/abs/1412.6980), which scales each
// parameter's step by running estimates of the mean and variance of its gradient.
//
// Set the options on the returned AdamConfig, then call Done to get the optimizer.
func Adam() *AdamConfig {
	return &AdamConfig{
		learningRate: AdamDefaultLearningRate,
		beta1:        0.9,
		beta2:        0.999,
		epsilon:      1e-7,
	}
}

// AdamConfig configures an Adam optimizer.
type AdamConfig struct {
	learningRate    float64
	schedule        Schedule
	beta1, beta2    float64
	epsilon         float64
	weightDecay     float64
	clipStepByValue float64
	clipNaN         bool
}

// LearningRate of the optimizer, AdamDefaultLearningRate if not set.
func (c *AdamConfig) LearningRate(value float64) *AdamConfig {
	c.learningRate = value
	return c
}

// Schedule of the learning rate. If set, LearningRate is ignored.
func (c *AdamConfig) Schedule(schedule Schedule) *AdamConfig {
	c.schedule = schedule
	return c
}

// Betas are the decay rates of the gradient mean and variance estimates, (0.9, 0.999) by default.
func (c *AdamConfig) Betas(beta1, beta2 float64) *AdamConfig {
	c.beta1, c.beta2 = beta1, beta2
	return c
}

// Epsilon added to the denominator of the step, 1e-7 by default.
func (c *AdamConfig) Epsilon(epsilon float64) *AdamConfig {
	c.epsilon = epsilon
	return c
}

// WeightDecay, if > 0, makes it AdamW: each step also subtracts learningRate*weightDecay*value from the
// parameter.
func (c *AdamConfig) WeightDecay(weightDecay float64) *AdamConfig {
	c.weightDecay = weightDecay
	return c
}

// ClipStepByValue limits the magnitude of each step. 0, the default, disables it.
func (c *AdamConfig) ClipStepByValue(clipStepByValue float64) *AdamConfig {
	c.clipStepByValue = clipStepByValue
	return c
}

// ClipNaN skips the parameters whose gradient or step is not finite, instead of setting them to NaN.
func (c *AdamConfig) ClipNaN(clipNaN bool) *AdamConfig {
	c.clipNaN = clipNaN
	return c
}

// Done returns the configured optimizer. Its moments start at zero.
func (c *AdamConfig) Done() Interface {
	return &adam{config: *c, moments: make(map[*graph.Node]*adamMoments)}
}

type adamMoments struct {
	mean, variance float64
}

type adam struct {
	config  AdamConfig
	moments map[*graph.Node]*adamMoments
	step    int
}

// Update implements optimizers.Interface.
func (o *adam) Update(params []*graph.Node) error {
	c := &o.config
	lr := c.learningRate
	if c.schedule != nil {
		lr = c.schedule(o.step)
	}
	o.step++
	debiasMean := 1 - math.Pow(c.beta1, float64(o.step))
	debiasVariance := 1 - math.Pow(c.beta2, float64(o.step))
	for ii, p := range params {
		if p == nil {
			return errors.Errorf("Adam.Update(): parameter #%d is nil", ii)
		}
		grad := p.Gradient()
		p.ZeroGradient()
		if c.clipNaN && !isFinite(grad) {
			klog.V(1).Infof("Adam.Update(): skipping non-finite gradient %g for parameter #%d", grad, ii)
			continue
		}
		m, found := o.moments[p]
		if !found {
			m = &adamMoments{}
			o.moments[p] = m
		}
		m.mean += (1 - c.beta1) * (grad - m.mean)
		m.variance += (1 - c.beta2) * (grad*grad - m.variance)
		step := lr * (m.mean / debiasMean) / (math.Sqrt(m.variance/debiasVariance) + c.epsilon)
		if c.weightDecay > 0 {
			step += lr * c.weightDecay * p.Value()
		}
		step = clipStep(step, c.clipStepByValue)
		if c.clipNaN && !isFinite(step) {
			continue
		}
		p.SetValue(p.Value() - step)
	}
	return nil
}

// Clear implements optimizers.Interface.
func (o *adam) Clear() {
	clear(o.moments)
	o.step = 0
}
