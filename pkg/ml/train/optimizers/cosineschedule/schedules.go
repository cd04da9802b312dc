// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package cosineschedule implements a cosine annealing learning rate schedule, for use with optimizers
// that take an optimizers.Schedule.
//
// See details in https://paperswithcode.com/method/cosine-annealing
package cosineschedule

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/scalargrad/pkg/ml/train/optimizers"
)

// Config is created with New, and configures a cosine schedule.
type Config struct {
	learningRate, minLearningRate float64
	periodNumSteps                int
	warmUpSteps                   int
}

// New creates a cosine schedule starting from learningRate at step 0.
// Configure it further with the methods below, and call Done to get the optimizers.Schedule.
func New(learningRate float64) *Config {
	return &Config{learningRate: learningRate}
}

// PeriodInSteps sets the number of steps of one cosine cycle: the learning rate goes from the maximum down to the
// minimum in periodSteps, and then restarts. It must be set to a positive value.
func (opt *Config) PeriodInSteps(periodSteps int) *Config {
	opt.periodNumSteps = periodSteps
	return opt
}

// MinLearningRate at the end of the cosine cycle. Defaults to 0.
func (opt *Config) MinLearningRate(minLearningRate float64) *Config {
	opt.minLearningRate = minLearningRate
	return opt
}

// WarmUpSteps sets the number of steps during which the learning rate is kept at its maximum, before the
// cosine cycles start. Defaults to 0.
func (opt *Config) WarmUpSteps(warmUpSteps int) *Config {
	opt.warmUpSteps = warmUpSteps
	return opt
}

// Done returns the schedule. It panics if the period is not positive.
func (opt *Config) Done() optimizers.Schedule {
	if opt.periodNumSteps <= 0 {
		exceptions.Panicf("cosineschedule: PeriodInSteps must be set to a positive value, got %d", opt.periodNumSteps)
	}
	lrValue, lrMinValue := opt.learningRate, opt.minLearningRate
	period, warmUp := opt.periodNumSteps, opt.warmUpSteps
	return func(step int) float64 {
		step -= warmUp
		if step < 0 {
			return lrValue
		}
		cycle := float64(step%period) / float64(period) // Fractional part of the cycle, in [0.0, 1.0).
		lr := (math.Cos(cycle*math.Pi) + 1) / 2           // From 1.0 down to 0.0.
		return lr*(lrValue-lrMinValue) + lrMinValue
	}
}
