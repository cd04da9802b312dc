// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package plots holds what is shared by the plotting packages: the Point collected during training,
// the Plotter interface, a JSON-lines file format to save and reload points, and Points, an in-memory
// Plotter that prints as a table.
//
// See [margaid.Plots] for SVG plots, which also work from the command-line, and [plotly.PlotConfig] for
// interactive plots in a GoNB notebook.
package plots

import (
	"bufio"
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/gomlx/scalargrad/pkg/support/fsutil"
	"github.com/gomlx/scalargrad/pkg/support/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// TrainingPlotFileName is the default file name to store plot points collected during training.
const TrainingPlotFileName = "training_plot_points.json"

// LossMetricType is the metric type of the loss points, both from training and evaluation.
const LossMetricType = "loss"

// Point is one value of one metric at one training step.
type Point struct {
	// MetricName identifies the series, e.g.: "Train: Loss" or "Loss on test".
	MetricName string `json:"metric_name"`

	// Short is a compact version of the name, used where space is scarce.
	Short string `json:"short,omitempty"`

	// MetricType groups metrics that can share a y-axis, typically "loss" or "error".
	MetricType string `json:"metric_type"`

	// Step of the training loop (x-axis).
	Step float64 `json:"step"`

	// Value of the metric (y-axis).
	Value float64 `json:"value"`
}

// Plotter receives the points collected during training. It is implemented by [margaid.Plots],
// [plotly.PlotConfig] and Points.
type Plotter interface {
	// AddPoint to be drawn.
	AddPoint(point Point)

	// DynamicSampleDone is called once all the points of a step were added. It is given
	// incomplete=true if some of the values were NaN or infinite and hence dropped.
	//
	// Plotters that draw while training redraw here.
	DynamicSampleDone(incomplete bool)
}

// sample collects the points of one step, dropping non-finite values.
type sample struct {
	plotter    Plotter
	step       float64
	incomplete bool
}

func (s *sample) add(name, short, metricType string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		s.incomplete = true
		return
	}
	s.plotter.AddPoint(Point{MetricName: name, Short: short, MetricType: metricType, Step: s.step, Value: value})
}

// AddTrainAndEvalMetrics adds the points of the current step of the loop: the trainMetrics of the last
// train step (the loss followed by one value per Trainer.TrainMetrics), and the mean loss and eval
// metrics of each of the evalDatasets, evaluated now.
//
// The "Batch Loss" train metric is skipped: with one example per step it is the loss itself.
//
// It is meant to be called from a train.Loop OnStep hook.
func AddTrainAndEvalMetrics(plotter Plotter, loop *train.Loop, trainMetrics []float64, evalDatasets []train.Dataset) error {
	trainer := loop.Trainer
	if len(trainMetrics) != 1+len(trainer.TrainMetrics()) {
		return errors.Errorf("plots.AddTrainAndEvalMetrics(step=%d): got %d train metrics values, wanted the loss plus %d metrics",
			loop.LoopStep, len(trainMetrics), len(trainer.TrainMetrics()))
	}
	s := &sample{plotter: plotter, step: float64(loop.LoopStep)}
	s.add("Train: Loss", "T/loss", LossMetricType, trainMetrics[0])
	for ii, m := range trainer.TrainMetrics() {
		if m.Name() == "Batch Loss" {
			continue
		}
		s.add("Train: "+m.Name(), "T/"+m.ShortName(), m.MetricType(), trainMetrics[1+ii])
	}

	for _, ds := range evalDatasets {
		evalMetrics, err := trainer.Eval(ds)
		if err != nil {
			return errors.WithMessagef(err, "plots: evaluating %q at step %d", ds.Name(), loop.LoopStep)
		}
		name := ds.Name()
		s.add("Loss on "+name, fmt.Sprintf("loss(%s)", name), LossMetricType, evalMetrics[0])
		for ii, m := range trainer.EvalMetrics() {
			s.add(fmt.Sprintf("%s on %s", m.Name(), name), fmt.Sprintf("%s(%s)", m.ShortName(), name),
				m.MetricType(), evalMetrics[1+ii])
		}
	}
	plotter.DynamicSampleDone(s.incomplete)
	return nil
}

// LoadPoints reads the points saved in filePath, one JSON object per line. Empty lines are skipped.
func LoadPoints(filePath string) ([]Point, error) {
	filePath, err := fsutil.ReplaceTildeInPath(filePath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open plot points file %q", filePath)
	}
	defer func() { _ = f.Close() }()

	var points []Point
	scanner := bufio.NewScanner(f)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var p Point
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, errors.Wrapf(err, "%s:%d: invalid plot point", filePath, lineNum)
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read plot points file %q", filePath)
	}
	return points, nil
}

// CreatePointsWriter starts a goroutine that appends the points sent to pointWriter to filePath, one
// JSON object per line, creating the file and its directory if needed.
//
// Close pointWriter when done: errReport then receives the first error that happened (or nil). After an
// error the remaining points are discarded.
func CreatePointsWriter(filePath string) (pointWriter chan<- Point, errReport <-chan error) {
	points := make(chan Point, 100)
	errs := make(chan error, 1)
	go func() {
		errs <- writePoints(filePath, points)
	}()
	return points, errs
}

// writePoints consumes points until the channel is closed, always draining it.
func writePoints(filePath string, points <-chan Point) (err error) {
	defer func() {
		for range points {
		}
	}()
	filePath, err = fsutil.ReplaceTildeInPath(filePath)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory for plot points file %q", filePath)
	}
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
	if err != nil {
		return errors.Wrapf(err, "failed to open plot points file %q", filePath)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for p := range points {
		if err = enc.Encode(p); err != nil {
			err = errors.Wrapf(err, "failed to write plot point to %q", filePath)
			klog.Errorf("%v", err)
			break
		}
	}
	if flushErr := w.Flush(); err == nil && flushErr != nil {
		err = errors.Wrapf(flushErr, "failed to write plot points to %q", filePath)
	}
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = errors.Wrapf(closeErr, "failed to close plot points file %q", filePath)
	}
	return err
}

// Points indexes points by their step. It implements Plotter, so it can collect the points of a training
// loop, and its String method renders them as a table.
type Points map[float64][]Point

var _ Plotter = Points(nil)

// NewPoints indexes the given points by step. See LoadPoints to read them from a file.
func NewPoints(rawPoints []Point) Points {
	points := make(Points)
	for _, p := range rawPoints {
		points.AddPoint(p)
	}
	return points
}

// AddPoint implements Plotter.
func (points Points) AddPoint(p Point) {
	points[p.Step] = append(points[p.Step], p)
}

// DynamicSampleDone implements Plotter. It is a no-op.
func (points Points) DynamicSampleDone(bool) {}

// Map calls fn on every point, in step order. Changes to Point.Step don't re-index the point: use
// Extract and NewPoints for that.
func (points Points) Map(fn func(p *Point)) {
	for _, step := range xslices.SortedKeys(points) {
		stepPoints := points[step]
		for ii := range stepPoints {
			fn(&stepPoints[ii])
		}
	}
}

// Filter removes the points for which keep returns false. Steps left without points are removed.
func (points Points) Filter(keep func(p Point) bool) {
	for step, stepPoints := range points {
		kept := slices.DeleteFunc(stepPoints, func(p Point) bool { return !keep(p) })
		if len(kept) == 0 {
			delete(points, step)
			continue
		}
		points[step] = kept
	}
}

// Extract returns all points as a list sorted by step.
func (points Points) Extract() []Point {
	var rawPoints []Point
	points.Map(func(p *Point) { rawPoints = append(rawPoints, *p) })
	return rawPoints
}

// MetricsNames returns the distinct metric names, sorted by metric type and then by name.
func (points Points) MetricsNames() []string {
	metricType := make(map[string]string)
	points.Map(func(p *Point) { metricType[p.MetricName] = p.MetricType })
	names := xslices.SortedKeys(metricType)
	slices.SortStableFunc(names, func(a, b string) int {
		return cmp.Compare(metricType[a], metricType[b])
	})
	return names
}

// TableForMetrics renders a table with one row per step, and one column per metric name given.
// With no metrics given, all of MetricsNames are used.
func (points Points) TableForMetrics(metrics ...string) string {
	if len(metrics) == 0 {
		metrics = points.MetricsNames()
	}
	column := make(map[string]int, len(metrics))
	for ii, name := range metrics {
		column[name] = ii + 1
	}
	headerStyle := lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		Headers(append([]string{"Step"}, metrics...)...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row < 0 {
				return headerStyle
			}
			return cellStyle
		})
	for _, step := range xslices.SortedKeys(points) {
		row := make([]string, len(metrics)+1)
		row[0] = fmt.Sprintf("%.0f", step)
		for _, p := range points[step] {
			if col, found := column[p.MetricName]; found {
				row[col] = fmt.Sprintf("%.4g", p.Value)
			}
		}
		table.Row(row...)
	}
	return table.String()
}

// String implements fmt.Stringer, with a table of all metrics.
func (points Points) String() string {
	return points.TableForMetrics()
}
