// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package plotly draws interactive loss curves in a GoNB notebook, using Plotly through
// `github.com/janpfeifer/gonb/gonbui/plotly`.
//
// Points can be collected while a train.Loop runs (see PlotConfig.ScheduleNTimes and
// PlotConfig.ScheduleEveryNSteps) or loaded from a file written by plots.CreatePointsWriter.
// Outside a notebook all the drawing methods are no-ops, while points are still collected
// and saved.
//
// Example:
//
//	plotly.New().
//		WithDatasets(evalDS).
//		Dynamic().
//		ScheduleNTimes(loop, 50)
package plotly

import (
	"fmt"
	"slices"

	grob "github.com/MetalBlueberry/go-plotly/generated/v2.34.0/graph_objects"
	ptypes "github.com/MetalBlueberry/go-plotly/pkg/types"
	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/gomlx/scalargrad/pkg/support/xslices"
	"github.com/gomlx/scalargrad/ui/plots"
	"github.com/janpfeifer/gonb/gonbui"
	"github.com/janpfeifer/gonb/gonbui/dom"
	gonbplotly "github.com/janpfeifer/gonb/gonbui/plotly"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// minSamplesToPlot is the number of collected samples (distinct steps) before anything is drawn.
const minSamplesToPlot = 3

// series of one metric: parallel slices of steps (x) and values (y).
type series struct {
	steps, values []float64
}

// figure groups the series of all metrics sharing one metric type, and hence one y-axis.
type figure struct {
	metricType string

	// names of the metrics in the order they were first seen: it is the order of the traces.
	names  []string
	series map[string]*series
}

func newFigure(metricType string) *figure {
	return &figure{metricType: metricType, series: make(map[string]*series)}
}

func (f *figure) add(metricName string, step, value float64) {
	s, found := f.series[metricName]
	if !found {
		s = &series{}
		f.series[metricName] = s
		f.names = append(f.names, metricName)
	}
	s.steps = append(s.steps, step)
	s.values = append(s.values, value)
}

// plotlyFig builds the Plotly figure with a copy of the current data.
func (f *figure) plotlyFig(logScaleY bool) *grob.Fig {
	yAxis := &grob.LayoutYaxis{Showgrid: ptypes.B(true)}
	if logScaleY {
		yAxis.Type = grob.LayoutYaxisTypeLog
	}
	fig := &grob.Fig{
		Layout: &grob.Layout{
			Title:  &grob.LayoutTitle{Text: ptypes.S(f.metricType)},
			Xaxis:  &grob.LayoutXaxis{Showgrid: ptypes.B(true)},
			Yaxis:  yAxis,
			Legend: &grob.LayoutLegend{},
		},
	}
	for _, name := range f.names {
		s := f.series[name]
		fig.Data = append(fig.Data, &grob.Scatter{
			Name: ptypes.S(name),
			Line: &grob.ScatterLine{Shape: grob.ScatterLineShapeLinear},
			Mode: "lines+markers",
			X:    ptypes.DataArray(slices.Clone(s.steps)),
			Y:    ptypes.DataArray(slices.Clone(s.values)),
		})
	}
	return fig
}

// PlotConfig collects plot points and draws one Plotly figure per metric type. Create it with New.
type PlotConfig struct {
	// EvalDatasets are evaluated each time points are collected during training.
	EvalDatasets []train.Dataset

	figures   map[string]*figure
	logScaleY bool

	// numSamples counts the complete samples (all metrics of one step) collected so far.
	numSamples int

	// lastStep collected, so scheduling with more than one Schedule* method doesn't duplicate points.
	lastStep int

	// gonbID of the transient HTML block used by dynamic plots. Empty if not plotting dynamically.
	gonbID string

	onEndAttached, finalPlotDone bool

	pointsWriter chan<- plots.Point
	writerErr    <-chan error
}

var _ plots.Plotter = (*PlotConfig)(nil)

// New creates an empty PlotConfig, with a logarithmic y-axis.
func New() *PlotConfig {
	return &PlotConfig{
		figures:   make(map[string]*figure),
		logScaleY: true,
		lastStep:  -1,
	}
}

// WithDatasets sets the datasets evaluated at each collection of points during training.
func (pc *PlotConfig) WithDatasets(datasets ...train.Dataset) *PlotConfig {
	pc.EvalDatasets = datasets
	return pc
}

// LinearScaleY uses a linear y-axis instead of the default logarithmic one.
func (pc *PlotConfig) LinearScaleY() *PlotConfig {
	pc.logScaleY = false
	return pc
}

// Dynamic redraws the figures in a transient block of the notebook every time a new sample is collected.
// At the end of the training loop the transient block is replaced by the final figures.
//
// It's a no-op if not running in a GoNB notebook.
func (pc *PlotConfig) Dynamic() *PlotConfig {
	if !gonbui.IsNotebook {
		return pc
	}
	pc.gonbID = gonbui.UniqueId()
	if pc.numSamples < minSamplesToPlot {
		// Reserve the block now, so it is displayed above the progress bar.
		gonbui.UpdateHTML(pc.gonbID, fmt.Sprintf("(...waiting for %d samples to plot...)", minSamplesToPlot))
		return pc
	}
	pc.DynamicPlot(false)
	return pc
}

// ScheduleNTimes collects points numPoints times during the loop, evenly spread.
func (pc *PlotConfig) ScheduleNTimes(loop *train.Loop, numPoints int) *PlotConfig {
	train.NTimesDuringLoop(loop, numPoints, "plotly points", 0, pc.collect)
	pc.attachOnEnd(loop)
	return pc
}

// ScheduleEveryNSteps collects points every n steps of the loop.
func (pc *PlotConfig) ScheduleEveryNSteps(loop *train.Loop, n int) *PlotConfig {
	train.EveryNSteps(loop, n, "plotly points", 0, pc.collect)
	pc.attachOnEnd(loop)
	return pc
}

func (pc *PlotConfig) collect(loop *train.Loop, metrics []float64) error {
	if loop.LoopStep <= pc.lastStep {
		return nil
	}
	pc.lastStep = loop.LoopStep
	return plots.AddTrainAndEvalMetrics(pc, loop, metrics, pc.EvalDatasets)
}

func (pc *PlotConfig) attachOnEnd(loop *train.Loop) {
	if pc.onEndAttached {
		return
	}
	pc.onEndAttached = true
	loop.OnEnd("plotly points", 120, func(_ *train.Loop, _ []float64) error {
		if pc.gonbID != "" && !pc.finalPlotDone {
			pc.DynamicPlot(true)
			pc.finalPlotDone = true
		}
		return pc.closeWriter()
	})
}

// WithFile loads the points saved in filePath, if any, and appends there the new points collected.
// Points are written asynchronously: write errors are reported at the end of the training loop.
func (pc *PlotConfig) WithFile(filePath string) *PlotConfig {
	if err := pc.LoadPointsFile(filePath); err != nil {
		klog.V(1).Infof("No previous plot points loaded: %v", err)
	}
	pc.pointsWriter, pc.writerErr = plots.CreatePointsWriter(filePath)
	return pc
}

func (pc *PlotConfig) closeWriter() error {
	if pc.pointsWriter == nil {
		return nil
	}
	close(pc.pointsWriter)
	pc.pointsWriter = nil
	if err := <-pc.writerErr; err != nil {
		return errors.WithMessage(err, "failed to save plot points")
	}
	return nil
}

// PointFilter is applied to points loaded with LoadPointsFile. It may modify the point (e.g.: prefix the
// metric name of a baseline run), and it drops the point by returning false.
type PointFilter func(p *plots.Point) bool

// LoadPointsFile adds the points saved in filePath (see plots.CreatePointsWriter), after passing them through
// the filters in order. Loaded points are not written back to the file configured with WithFile.
func (pc *PlotConfig) LoadPointsFile(filePath string, filters ...PointFilter) error {
	points, err := plots.LoadPoints(filePath)
	if err != nil {
		return errors.WithMessagef(err, "plotly.LoadPointsFile(%q)", filePath)
	}
	writer := pc.pointsWriter
	pc.pointsWriter = nil
	defer func() { pc.pointsWriter = writer }()

	steps := make(map[float64]bool)
	for _, point := range points {
		keep := true
		for _, filter := range filters {
			if keep = filter(&point); !keep {
				break
			}
		}
		if !keep {
			continue
		}
		pc.AddPoint(point)
		steps[point.Step] = true
	}
	pc.numSamples += len(steps)
	return nil
}

// AddPoint implements plots.Plotter. Non-finite points are dropped.
func (pc *PlotConfig) AddPoint(pt plots.Point) {
	if !train.IsFinite(pt.Value) || !train.IsFinite(pt.Step) {
		return
	}
	if pc.pointsWriter != nil {
		pc.pointsWriter <- pt
	}
	f, found := pc.figures[pt.MetricType]
	if !found {
		f = newFigure(pt.MetricType)
		pc.figures[pt.MetricType] = f
	}
	f.add(pt.MetricName, pt.Step, pt.Value)
}

// DynamicSampleDone implements plots.Plotter: it redraws the transient figures if plotting dynamically.
func (pc *PlotConfig) DynamicSampleDone(incomplete bool) {
	if !incomplete {
		pc.numSamples++
	}
	if gonbui.IsNotebook && pc.gonbID != "" {
		pc.DynamicPlot(false)
	}
}

// Plot displays the figures of every metric type, sorted by metric type.
// It is a no-op if not in a notebook.
func (pc *PlotConfig) Plot() error {
	if !gonbui.IsNotebook {
		return nil
	}
	for _, metricType := range xslices.SortedKeys(pc.figures) {
		gonbui.DisplayHTML(fmt.Sprintf("<p><b>Metric: %s</b></p>\n", metricType))
		if err := gonbplotly.DisplayFig(pc.figures[metricType].plotlyFig(pc.logScaleY)); err != nil {
			return errors.Wrapf(err, "failed to display plot of %q", metricType)
		}
	}
	return nil
}

// DynamicPlot redraws the transient block. If final, the transient block is cleared and the figures
// are displayed permanently with Plot.
func (pc *PlotConfig) DynamicPlot(final bool) {
	if !gonbui.IsNotebook || pc.gonbID == "" || pc.numSamples < minSamplesToPlot {
		return
	}
	if final {
		gonbui.UpdateHTML(pc.gonbID, "")
		if err := pc.Plot(); err != nil {
			klog.Errorf("Failed to plot: %+v", err)
		}
		return
	}
	divID := gonbui.UniqueId()
	gonbui.UpdateHTML(pc.gonbID, fmt.Sprintf("<div id=%q></div>", divID))
	for _, metricType := range xslices.SortedKeys(pc.figures) {
		dom.Append(divID, fmt.Sprintf("<p><b>Metric: %s</b></p>\n", metricType))
		if err := gonbplotly.AppendFig(divID, pc.figures[metricType].plotlyFig(pc.logScaleY)); err != nil {
			klog.Errorf("Failed to plot %q: %+v", metricType, err)
		}
	}
}
