// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package margaid draws the metrics collected during training as SVG line plots, using
// Margaid (https://github.com/erkkah/margaid/). There is one plot per metric type.
//
// In a GoNB (https://github.com/janpfeifer/gonb/) notebook the plots are displayed inline, and can be
// updated while training. From the command-line they are saved with Plots.WriteHTML.
//
// Example: collect 100 samples during training, of the train metrics and of the metrics on evalDS, saving
// the points to pointsPath:
//
//	plotter, err := margaid.New(1024, 400, evalDS).WithFile(pointsPath)
//	if err != nil { ... }
//	plotter.DynamicUpdates().Attach(loop, 100)
package margaid

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	mg "github.com/erkkah/margaid"
	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/gomlx/scalargrad/pkg/support/fsutil"
	"github.com/gomlx/scalargrad/pkg/support/xslices"
	"github.com/gomlx/scalargrad/ui/plots"
	"github.com/janpfeifer/gonb/gonbui"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// minSamplesToPlot is the number of samples (steps) needed before dynamic plots are drawn.
const minSamplesToPlot = 3

// Plots holds one Plot per metric type.
type Plots struct {
	// Width and Height of each plot, in pixels.
	Width, Height int

	// EvalDatasets are evaluated with train.Trainer.Eval each time a sample is collected.
	EvalDatasets []train.Dataset

	// PerMetricType holds the plot of each metric type.
	PerMetricType map[string]*Plot

	xProjection, yProjection mg.Projection

	// numSamples collected, including the ones loaded from file.
	numSamples int

	// displayID of the transient HTML block in the notebook, set by DynamicUpdates.
	displayID string

	pointsWriter chan<- plots.Point
	writerErr    <-chan error

	onEndAttached bool
}

var _ plots.Plotter = (*Plots)(nil)

// Plot holds the series of the metrics that share a metric type, and hence a y-axis.
type Plot struct {
	MetricType string

	// PerName maps a metric name to its series.
	PerName map[string]*mg.Series

	// allPoints of all series, used to range the axes.
	allPoints *mg.Series

	xProjection, yProjection mg.Projection
}

// New creates empty Plots of the given size in pixels, that at each sample also evaluates the
// given evalDatasets.
//
// Add points with AddPoint, or by attaching it to a train.Loop with Attach.
func New(width, height int, evalDatasets ...train.Dataset) *Plots {
	return &Plots{
		Width:         width,
		Height:        height,
		EvalDatasets:  evalDatasets,
		PerMetricType: make(map[string]*Plot),
		xProjection:   mg.Lin,
		yProjection:   mg.Lin,
	}
}

// WithFile loads the points saved in filePath, if it exists, and appends to it every new point.
//
// Points are written asynchronously: write errors are returned by Done.
// When used with DynamicUpdates, call WithFile first, so the loaded points are plotted right away.
func (ps *Plots) WithFile(filePath string) (*Plots, error) {
	filePath, err := fsutil.ReplaceTildeInPath(filePath)
	if err != nil {
		return nil, err
	}
	_, err = os.Stat(filePath)
	switch {
	case err == nil:
		points, err := plots.LoadPoints(filePath)
		if err != nil {
			return nil, err
		}
		for _, p := range points {
			ps.AddPoint(p)
		}
		ps.numSamples = max(ps.numSamples, ps.minPoints())
	case !os.IsNotExist(err):
		return nil, errors.Wrapf(err, "failed to access plot points file %q", filePath)
	}
	ps.pointsWriter, ps.writerErr = plots.CreatePointsWriter(filePath)
	return ps, nil
}

// minPoints returns the size of the shortest series, or -1 if there are none.
func (ps *Plots) minPoints() int {
	shortest := -1
	for _, p := range ps.PerMetricType {
		for _, s := range p.PerName {
			if n := s.Size(); shortest < 0 || n < shortest {
				shortest = n
			}
		}
	}
	return shortest
}

// Done stops writing points to the file configured with WithFile, and returns the first write error.
// It is safe to call more than once.
func (ps *Plots) Done() error {
	if ps.pointsWriter == nil {
		return nil
	}
	close(ps.pointsWriter)
	ps.pointsWriter = nil
	return <-ps.writerErr
}

// LogScaleX uses a logarithmic x-axis. The default is linear.
func (ps *Plots) LogScaleX() *Plots {
	ps.xProjection = mg.Log
	return ps
}

// LogScaleY uses a logarithmic y-axis. The default is linear.
func (ps *Plots) LogScaleY() *Plots {
	ps.yProjection = mg.Log
	return ps
}

// DynamicUpdates redraws the plots in a transient notebook block every time a sample is collected.
// It is a no-op outside a GoNB notebook.
func (ps *Plots) DynamicUpdates() *Plots {
	if !gonbui.IsNotebook {
		return ps
	}
	ps.displayID = gonbui.UniqueId()
	if ps.numSamples < minSamplesToPlot {
		// Reserve the block now, so it is displayed above the progress bar.
		gonbui.UpdateHTML(ps.displayID, fmt.Sprintf("(...waiting for %d samples to plot...)", minSamplesToPlot))
		return ps
	}
	ps.DynamicPlot(false)
	return ps
}

// Attach collects a sample numPoints times during the loop (see AddTrainAndEvalMetrics). When the loop
// ends it draws the final plots, if in a notebook, and calls Done.
func (ps *Plots) Attach(loop *train.Loop, numPoints int) {
	train.NTimesDuringLoop(loop, numPoints, "margaid plots", 0, ps.AddTrainAndEvalMetrics)
	if ps.onEndAttached {
		return
	}
	ps.onEndAttached = true
	loop.OnEnd("margaid plots", 120, func(_ *train.Loop, _ []float64) error {
		if ps.displayID != "" {
			ps.DynamicPlot(true)
		} else {
			ps.Plot()
		}
		return ps.Done()
	})
}

// AddTrainAndEvalMetrics adds a sample with the given train metrics and the metrics of the EvalDatasets.
// It has the signature of a train.OnStepFn.
func (ps *Plots) AddTrainAndEvalMetrics(loop *train.Loop, trainMetrics []float64) error {
	return plots.AddTrainAndEvalMetrics(ps, loop, trainMetrics, ps.EvalDatasets)
}

// AddPoint implements plots.Plotter. NaN or infinite points are ignored.
func (ps *Plots) AddPoint(point plots.Point) {
	if !train.IsFinite(point.Value) || !train.IsFinite(point.Step) {
		return
	}
	if ps.pointsWriter != nil {
		ps.pointsWriter <- point
	}
	p, found := ps.PerMetricType[point.MetricType]
	if !found {
		p = &Plot{
			MetricType:  point.MetricType,
			PerName:     make(map[string]*mg.Series),
			allPoints:   mg.NewSeries(),
			xProjection: ps.xProjection,
			yProjection: ps.yProjection,
		}
		ps.PerMetricType[point.MetricType] = p
	}
	p.AddPoint(point.MetricName, point.Step, point.Value)
}

// DynamicSampleDone implements plots.Plotter, redrawing the transient plots if DynamicUpdates is set.
func (ps *Plots) DynamicSampleDone(incomplete bool) {
	if !incomplete {
		ps.numSamples++
	}
	ps.DynamicPlot(false)
}

// AddValues adds values as one series of metricName, using their indices as steps.
func (ps *Plots) AddValues(metricName, metricType string, values []float64) {
	for ii, v := range values {
		ps.AddPoint(plots.Point{MetricName: metricName, MetricType: metricType, Step: float64(ii), Value: v})
	}
}

// AddPoint adds (step, value) to the series of metricName.
func (p *Plot) AddPoint(metricName string, step, value float64) {
	s, found := p.PerName[metricName]
	if !found {
		s = mg.NewSeries(mg.Titled(metricName))
		p.PerName[metricName] = s
	}
	v := mg.MakeValue(step, value)
	s.Add(v)
	p.allPoints.Add(v)
}

// Plot displays every plot in the notebook, sorted by metric type. It is a no-op outside a notebook.
func (ps *Plots) Plot() {
	if !gonbui.IsNotebook {
		return
	}
	gonbui.DisplayHTML(ps.PlotToHTML())
}

// PlotToHTML returns the SVG of every plot, sorted by metric type.
func (ps *Plots) PlotToHTML() string {
	var sb strings.Builder
	for ii, metricType := range xslices.SortedKeys(ps.PerMetricType) {
		if ii > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(ps.PerMetricType[metricType].PlotToHTML(ps.Width, ps.Height))
	}
	return sb.String()
}

// WriteHTML saves a standalone HTML page with every plot to filePath, creating its directory if needed.
func (ps *Plots) WriteHTML(filePath string) error {
	page := fmt.Sprintf("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Training metrics</title></head>\n"+
		"<body>\n%s\n</body>\n</html>\n", ps.PlotToHTML())
	f, err := fsutil.CreateFile(filePath)
	if err != nil {
		return err
	}
	if _, err = f.WriteString(page); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write plots to %q", filePath)
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close plots file %q", filePath)
	}
	klog.V(1).Infof("Plots written to %q", filePath)
	return nil
}

// DynamicPlot redraws the transient block set up by DynamicUpdates, once there are enough samples.
// If final, the transient block is cleared and the plots are displayed permanently.
func (ps *Plots) DynamicPlot(final bool) {
	if !gonbui.IsNotebook || ps.displayID == "" || ps.numSamples < minSamplesToPlot {
		return
	}
	if final {
		gonbui.UpdateHTML(ps.displayID, "")
		ps.Plot()
		return
	}
	gonbui.UpdateHTML(ps.displayID, ps.PlotToHTML())
}

// PlotToHTML renders the plot as an SVG of the given size. A plot without series renders as an empty string,
// and rendering errors are returned as text in place of the plot.
func (p *Plot) PlotToHTML(width, height int) string {
	if len(p.PerName) == 0 {
		return ""
	}
	names := xslices.SortedKeys(p.PerName)
	series := xslices.Map(names, func(name string) *mg.Series { return p.PerName[name] })
	diagram := mg.New(width, height,
		mg.WithAutorange(mg.XAxis, series...),
		mg.WithAutorange(mg.YAxis, series...),
		mg.WithProjection(mg.XAxis, p.xProjection),
		mg.WithProjection(mg.YAxis, p.yProjection),
		mg.WithInset(60),
		mg.WithPadding(3),
		mg.WithColorScheme(90),
		mg.WithBackgroundColor("#fafafa"),
	)
	for _, s := range series {
		diagram.Line(s, mg.UsingAxes(mg.XAxis, mg.YAxis), mg.UsingMarker("square"), mg.UsingStrokeWidth(2))
	}
	diagram.Axis(p.allPoints, mg.XAxis, diagram.ValueTicker('f', 0, 10), false, "Steps")
	diagram.Axis(p.allPoints, mg.YAxis, diagram.ValueTicker('g', 3, 10), true, p.MetricType)
	diagram.Frame()
	if p.MetricType != "" {
		diagram.Title(p.MetricType + " metrics")
	}
	if len(names) > 1 || names[0] != "" {
		diagram.Legend(mg.BottomLeft)
	}
	var buf bytes.Buffer
	if err := diagram.Render(&buf); err != nil {
		return fmt.Sprintf("%+v", errors.Wrapf(err, "failed to render the %q plot", p.MetricType))
	}
	return buf.String()
}
