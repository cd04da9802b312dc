// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"math/rand/v2"
	"slices"
)

// defaultMedianSampleSize is the number of values kept by a StreamingMedianMetric, odd so the
// median is one of them.
const defaultMedianSampleSize = 10_001

// StreamingMedianMetric tracks the median of the values of a BaseMetricFn since the last Reset.
//
// Up to a sample size the median is exact. Beyond it a uniform random sample of the values is kept
// (reservoir sampling) and the median of the sample is returned.
type StreamingMedianMetric struct {
	baseMetric
	sampleSize int
	seen       int
	samples    []float64
	rng        *rand.Rand
}

// NewMedianMetric creates a StreamingMedianMetric over the values of metricFn.
// prettyPrintFn may be nil.
func NewMedianMetric(name, shortName, metricType string, metricFn BaseMetricFn,
	prettyPrintFn PrettyPrintFn) *StreamingMedianMetric {
	return &StreamingMedianMetric{
		baseMetric: newBaseMetric(name, shortName, metricType, metricFn, prettyPrintFn),
		sampleSize: defaultMedianSampleSize,
	}
}

// NewMedianLoss tracks the median of the loss.
func NewMedianLoss(name, shortName string) *StreamingMedianMetric {
	return NewMedianMetric(name, shortName, LossMetricType, lossFn, nil)
}

// WithSampleSize sets how many values are kept. Values smaller than 1 are taken as 1.
func (m *StreamingMedianMetric) WithSampleSize(n int) *StreamingMedianMetric {
	m.sampleSize = max(n, 1)
	return m
}

// WithRNG sets the source of randomness of the sampling, e.g. to make it deterministic in tests.
func (m *StreamingMedianMetric) WithRNG(rng *rand.Rand) *StreamingMedianMetric {
	m.rng = rng
	return m
}

// Update implements Metric.
func (m *StreamingMedianMetric) Update(labels, predictions []float64, loss float64) float64 {
	m.observe(m.metricFn(labels, predictions, loss))
	return m.Median()
}

func (m *StreamingMedianMetric) observe(value float64) {
	m.seen++
	if len(m.samples) < m.sampleSize {
		m.samples = append(m.samples, value)
		return
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	// The value replaces a sample with probability sampleSize/seen.
	if idx := m.rng.IntN(m.seen); idx < m.sampleSize {
		m.samples[idx] = value
	}
}

// Median returns the median of the kept values, 0 if there are none.
func (m *StreamingMedianMetric) Median() float64 {
	if len(m.samples) == 0 {
		return 0
	}
	sorted := slices.Sorted(slices.Values(m.samples))
	return sorted[len(sorted)/2]
}

// Reset implements Metric.
func (m *StreamingMedianMetric) Reset() {
	m.samples = m.samples[:0]
	m.seen = 0
}
