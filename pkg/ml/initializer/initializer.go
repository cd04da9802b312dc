// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package initializer provides initial values for trainable parameters.
package initializer

import (
	"math"
	"math/rand/v2"
)

// Initializer returns the initial value of one parameter.
//
// fanIn and fanOut are the number of inputs and outputs of the layer the parameter belongs to. They are only
// used by initializers that scale their range accordingly (e.g. XavierUniform).
type Initializer func(fanIn, fanOut int) float64

var (
	// Zero initializes parameters with zero.
	Zero Initializer = func(_, _ int) float64 {
		return 0
	}

	// One initializes parameters with one.
	One Initializer = func(_, _ int) float64 {
		return 1
	}
)

// NewRNG creates a random number generator for the given seed.
// A seed of 0 means a randomly seeded generator.
func NewRNG(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// Uniform returns an initializer that generates random uniform values from [minValue, maxValue).
func Uniform(rng *rand.Rand, minValue, maxValue float64) Initializer {
	return func(_, _ int) float64 {
		return minValue + (maxValue-minValue)*rng.Float64()
	}
}

// Normal returns an initializer that generates random normal values with the given standard deviation
// and mean set to 0.
func Normal(rng *rand.Rand, stddev float64) Initializer {
	return func(_, _ int) float64 {
		return rng.NormFloat64() * stddev
	}
}

// XavierUniform returns an initializer that generates random values with a uniform distribution with a range
// defined by +/- sqrt(6 / (fanIn+fanOut)).
// See paper and reasoning in https://paperswithcode.com/method/xavier-initialization
func XavierUniform(rng *rand.Rand) Initializer {
	return func(fanIn, fanOut int) float64 {
		limit := math.Sqrt(6.0 / float64(max(fanIn+fanOut, 1)))
		return limit * (2*rng.Float64() - 1)
	}
}

// He returns an initializer that generates random normal values with mean 0 and standard deviation
// sqrt(2 / fanIn), adequate for layers with rectifier-like activations.
func He(rng *rand.Rand) Initializer {
	return func(fanIn, _ int) float64 {
		return rng.NormFloat64() * math.Sqrt(2.0/float64(max(fanIn, 1)))
	}
}
