// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package metrics tracks quantities derived from each train or eval step (labels, predictions and
// loss), such as the mean loss or the mean absolute error.
//
// Trainer updates the metrics once per example and resets them at the start of each run or
// evaluation.
package metrics

import (
	"fmt"
	"math"

	"github.com/gomlx/exceptions"
)

// Interface implemented by all metrics.
type Interface interface {
	// Name used in reports and plot legends.
	Name() string

	// ShortName, a few characters long, for progress bars and other compact displays.
	ShortName() string

	// MetricType groups metrics measuring the same kind of quantity, e.g. LossMetricType, so they can
	// share the y-axis of a plot.
	MetricType() string

	// Update the metric with one step, returning the current value of the metric.
	Update(labels, predictions []float64, loss float64) float64

	// PrettyPrint formats a value of the metric.
	PrettyPrint(value float64) string

	// Reset forgets all previous updates.
	Reset()
}

// Metric types used by this package.
const (
	LossMetricType  = "loss"
	ErrorMetricType = "error"
)

// BaseMetricFn computes the value of a metric for one step.
type BaseMetricFn func(labels, predictions []float64, loss float64) float64

// PrettyPrintFn formats a metric value.
type PrettyPrintFn func(value float64) string

// baseMetric holds the attributes shared by all metrics. By itself, it is a stateless metric whose value
// is the one of the last step.
type baseMetric struct {
	name, shortName, metricType string
	metricFn                    BaseMetricFn
	pPrintFn                    PrettyPrintFn
}

func newBaseMetric(name, shortName, metricType string, metricFn BaseMetricFn, pPrintFn PrettyPrintFn) baseMetric {
	return baseMetric{name: name, shortName: shortName, metricType: metricType, metricFn: metricFn, pPrintFn: pPrintFn}
}

func (m *baseMetric) Name() string       { return m.name }
func (m *baseMetric) ShortName() string  { return m.shortName }
func (m *baseMetric) MetricType() string { return m.metricType }
func (m *baseMetric) Reset()             {}

func (m *baseMetric) Update(labels, predictions []float64, loss float64) float64 {
	return m.metricFn(labels, predictions, loss)
}

// PrettyPrint uses pPrintFn if set, or 3 significant digits.
func (m *baseMetric) PrettyPrint(value float64) string {
	if m.pPrintFn != nil {
		return m.pPrintFn(value)
	}
	return fmt.Sprintf("%.3g", value)
}

// NewBaseMetric returns a metric whose value is metricFn of the last step only. pPrintFn may be nil.
func NewBaseMetric(name, shortName, metricType string, metricFn BaseMetricFn, pPrintFn PrettyPrintFn) Interface {
	m := newBaseMetric(name, shortName, metricType, metricFn, pPrintFn)
	return &m
}

// MeanMetric is the mean of the values of a BaseMetricFn since the last Reset.
type MeanMetric struct {
	baseMetric
	sum   float64
	count int
}

// NewMeanMetric creates a MeanMetric of metricFn. prettyPrintFn may be nil.
func NewMeanMetric(name, shortName, metricType string, metricFn BaseMetricFn, prettyPrintFn PrettyPrintFn) *MeanMetric {
	return &MeanMetric{baseMetric: newBaseMetric(name, shortName, metricType, metricFn, prettyPrintFn)}
}

// Update implements Interface.
func (m *MeanMetric) Update(labels, predictions []float64, loss float64) float64 {
	m.sum += m.metricFn(labels, predictions, loss)
	m.count++
	return m.sum / float64(m.count)
}

// Reset implements Interface.
func (m *MeanMetric) Reset() {
	m.sum = 0
	m.count = 0
}

// MovingAverageMetric is an exponential moving average of the values of a BaseMetricFn: each new value
// has weight newExampleWeight, and the previous average 1-newExampleWeight.
//
// While fewer than 1/newExampleWeight values were seen it is the plain mean, so the first values are not
// biased towards 0.
type MovingAverageMetric struct {
	baseMetric
	newExampleWeight float64
	average          float64
	count            int
}

// NewExponentialMovingAverageMetric creates a MovingAverageMetric of metricFn. The smaller newExampleWeight,
// the slower the average follows changes: 0.01 is a common value. It panics if newExampleWeight is not in
// (0, 1]. pPrintFn may be nil.
func NewExponentialMovingAverageMetric(name, shortName, metricType string, metricFn BaseMetricFn,
	pPrintFn PrettyPrintFn, newExampleWeight float64) *MovingAverageMetric {
	if !(newExampleWeight > 0 && newExampleWeight <= 1) {
		exceptions.Panicf("metrics.NewExponentialMovingAverageMetric(%q): newExampleWeight=%g is not in (0, 1]",
			name, newExampleWeight)
	}
	return &MovingAverageMetric{
		baseMetric:       newBaseMetric(name, shortName, metricType, metricFn, pPrintFn),
		newExampleWeight: newExampleWeight,
	}
}

// Update implements Interface.
func (m *MovingAverageMetric) Update(labels, predictions []float64, loss float64) float64 {
	m.count++
	weight := max(m.newExampleWeight, 1/float64(m.count))
	m.average += weight * (m.metricFn(labels, predictions, loss) - m.average)
	return m.average
}

// Reset implements Interface.
func (m *MovingAverageMetric) Reset() {
	m.average = 0
	m.count = 0
}

func lossFn(_, _ []float64, loss float64) float64 {
	return loss
}

// MeanAbsoluteErrorFn is the mean of |label - prediction| over the outputs of a step, 0 if there are no
// outputs. It panics if labels and predictions differ in length.
func MeanAbsoluteErrorFn(labels, predictions []float64, _ float64) float64 {
	if len(labels) != len(predictions) {
		exceptions.Panicf("metrics.MeanAbsoluteErrorFn: %d labels for %d predictions", len(labels), len(predictions))
	}
	if len(labels) == 0 {
		return 0
	}
	var total float64
	for ii, label := range labels {
		total += math.Abs(label - predictions[ii])
	}
	return total / float64(len(labels))
}

// NewBatchLoss is the loss of the last step, named "Batch Loss".
func NewBatchLoss() Interface {
	return NewBaseMetric("Batch Loss", "batch", LossMetricType, lossFn, nil)
}

// NewMeanLoss is the mean loss since the last Reset.
func NewMeanLoss(name, shortName string) *MeanMetric {
	return NewMeanMetric(name, shortName, LossMetricType, lossFn, nil)
}

// NewMovingAverageLoss is an exponential moving average of the loss, see NewExponentialMovingAverageMetric.
func NewMovingAverageLoss(name, shortName string, newExampleWeight float64) *MovingAverageMetric {
	return NewExponentialMovingAverageMetric(name, shortName, LossMetricType, lossFn, nil, newExampleWeight)
}

// NewMeanAbsoluteError is the mean absolute error since the last Reset.
func NewMeanAbsoluteError(name, shortName string) *MeanMetric {
	return NewMeanMetric(name, shortName, ErrorMetricType, MeanAbsoluteErrorFn, nil)
}
