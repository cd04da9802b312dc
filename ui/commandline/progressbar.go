// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/scalargrad/pkg/ml/train"
	"github.com/gomlx/scalargrad/ui/notebooks"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/exp/constraints"
)

// ExtraMetricFn returns a name and a value to display along with the progress bar.
// It is called at every redraw.
type ExtraMetricFn func() (name, value string)

// ProgressBarName is the name of the hooks registered by AttachProgressBar.
const ProgressBarName = "scalargrad.ui.commandline.progressBar"

var (
	// RefreshPeriod is the maximum time between updates of the progress bar.
	RefreshPeriod = 3 * time.Second

	// ProgressbarStyle of the bar. progressbar.ThemeUnicode is prettier, if the terminal supports it.
	ProgressbarStyle = progressbar.ThemeASCII
)

// minRedrawInterval throttles the redraws of the stats table in the terminal.
const minRedrawInterval = 200 * time.Millisecond

var (
	labelStyle       = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	valueStyle       = lipgloss.NewStyle().Padding(0, 1)
	tableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#705090"))
	tableIndentStyle = lipgloss.NewStyle().PaddingLeft(8)
)

// progressBar follows the steps of a train.Loop. There is one per AttachProgressBar call, and it is reused
// for every run of the loop.
type progressBar struct {
	bar *progressbar.ProgressBar

	// nextStep is the first step not yet accounted in the bar.
	nextStep int

	// suffix written after each redraw of the bar, see Write.
	suffix string

	extraMetricFns []ExtraMetricFn

	// stats is the terminal display of the metrics, nil in notebooks.
	stats *statsDisplay
}

// statsDisplay draws a table with the metrics above the bar, redrawing it in place. Drawing happens in a
// separate goroutine, so a slow terminal (e.g.: over ssh) doesn't slow down training.
type statsDisplay struct {
	out   *termenv.Output
	table *lgtable.Table

	// linesDrawn by the last redraw, to move the cursor back over them.
	linesDrawn int

	updates chan statsUpdate
	drawing sync.WaitGroup
}

// statsUpdate is the state of the loop to display, collected at a train step.
type statsUpdate struct {
	numSteps             int
	step, medianDuration string
	rows                 [][2]string
}

// Write implements io.Writer for the underlying progressbar.ProgressBar: it writes the bar followed by the
// current suffix in one call. Notebooks display separate writes in separate lines.
func (pBar *progressBar) Write(data []byte) (int, error) {
	buf := make([]byte, 0, len(data)+len(pBar.suffix))
	buf = append(buf, data...)
	buf = append(buf, pBar.suffix...)
	if _, err := os.Stdout.Write(buf); err != nil {
		return 0, err
	}
	return len(data), nil
}

func (pBar *progressBar) onStart(loop *train.Loop, _ train.Dataset) error {
	pBar.nextStep = loop.LoopStep
	numSteps := loop.EndStep - loop.StartStep
	if loop.EndStep < 0 {
		// Loop runs until the end of the dataset: the length is not known.
		numSteps = -1
	}
	pBar.bar = progressbar.NewOptions(numSteps,
		progressbar.OptionSetDescription("      [bold]"),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(pBar),
	)
	if pBar.stats != nil {
		pBar.suffix = "\033[J" // Erase what is left of previous draws.
		pBar.stats.start(pBar.bar)
	}
	return nil
}

// formatStep shows the current step and, if known, the end step.
func formatStep(loop *train.Loop) string {
	if loop.EndStep < 0 {
		return humanizeInt(loop.LoopStep)
	}
	return fmt.Sprintf("%s of %s", humanizeInt(loop.LoopStep), humanizeInt(loop.EndStep))
}

// metricsRows lists the name and formatted value of the loss, the train metrics and the extra metrics.
func (pBar *progressBar) metricsRows(loop *train.Loop, metrics []float64) [][2]string {
	rows := [][2]string{{"Loss", fmt.Sprintf("%.4g", metrics[0])}}
	for ii, m := range loop.Trainer.TrainMetrics() {
		rows = append(rows, [2]string{m.Name(), m.PrettyPrint(metrics[1+ii])})
	}
	for _, fn := range pBar.extraMetricFns {
		name, value := fn()
		rows = append(rows, [2]string{name, value})
	}
	return rows
}

func (pBar *progressBar) onStep(loop *train.Loop, metrics []float64) error {
	if pBar.bar.IsFinished() {
		return nil
	}
	// The current LoopStep has finished, hence the +1.
	numSteps := loop.LoopStep + 1 - pBar.nextStep
	if numSteps <= 0 {
		return nil
	}
	pBar.nextStep = loop.LoopStep + 1
	rows := pBar.metricsRows(loop, metrics)

	if pBar.stats != nil {
		pBar.stats.updates <- statsUpdate{
			numSteps:       numSteps,
			step:           formatStep(loop),
			medianDuration: FormatDuration(loop.MedianTrainStepDuration()),
			rows:           rows,
		}
		return nil
	}

	// In notebooks, the metrics are a suffix to the bar line. Jupyter doesn't support the "erase to the
	// end of line" escape sequence, so trailing spaces cover what is left of longer previous lines.
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, " [step=%d]", loop.LoopStep)
	for _, row := range rows {
		_, _ = fmt.Fprintf(&sb, " [%s=%s]", row[0], row[1])
	}
	sb.WriteString("        ")
	pBar.suffix = sb.String()
	_ = pBar.bar.Add(numSteps) // Redraws the bar, see Write.
	return nil
}

func (pBar *progressBar) onEnd(_ *train.Loop, _ []float64) error {
	if pBar.stats != nil {
		pBar.stats.stop()
	}
	fmt.Println()
	return nil
}

func newStatsDisplay() *statsDisplay {
	return &statsDisplay{
		out: termenv.NewOutput(os.Stdout),
		table: lgtable.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(tableBorderStyle).
			StyleFunc(func(_, col int) lipgloss.Style {
				if col == 0 {
					return labelStyle
				}
				return valueStyle
			}),
	}
}

// start the drawing goroutine for a new run of the loop.
func (s *statsDisplay) start(bar *progressbar.ProgressBar) {
	s.linesDrawn = 0
	s.updates = make(chan statsUpdate, 100)
	s.drawing.Add(1)
	go s.draw(s.updates, bar)
}

// stop waits for the pending updates to be drawn.
func (s *statsDisplay) stop() {
	if s.updates == nil {
		return
	}
	close(s.updates)
	s.updates = nil
	s.drawing.Wait()
	s.out.ShowCursor()
}

// draw consumes the updates until the channel is closed. Updates queued while drawing are merged, only
// the most recent values are displayed.
func (s *statsDisplay) draw(updates <-chan statsUpdate, bar *progressbar.ProgressBar) {
	defer s.drawing.Done()
	for update := range updates {
		numSteps := update.numSteps
	merge:
		for {
			select {
			case next, ok := <-updates:
				if !ok {
					break merge
				}
				numSteps += next.numSteps
				update = next
			default:
				break merge
			}
		}

		s.table.Data(lgtable.NewStringData())
		s.table.Row("Global Step", update.step)
		s.table.Row("Median train step duration", update.medianDuration)
		for _, row := range update.rows {
			s.table.Row(row[0], row[1])
		}
		rendered := tableIndentStyle.Render(s.table.String())

		s.out.HideCursor()
		if s.linesDrawn > 0 {
			s.out.CursorPrevLine(s.linesDrawn)
		}
		fmt.Println(rendered)
		_ = bar.Add(numSteps)
		fmt.Println()
		s.out.ShowCursor()
		// Table lines, plus the line of the bar.
		s.linesDrawn = strings.Count(rendered, "\n") + 2
		time.Sleep(minRedrawInterval)
	}
}

// AttachProgressBar displays a progress bar every time the loop runs, with the loss, the train metrics
// and the given extraMetrics.
//
// In a terminal the metrics are shown in a table above the bar, redrawn in place. In notebooks they are
// appended to the bar line.
func AttachProgressBar(loop *train.Loop, extraMetrics ...ExtraMetricFn) {
	pBar := &progressBar{extraMetricFns: extraMetrics}
	if !notebooks.IsNotebook() {
		pBar.stats = newStatsDisplay()
	}
	loop.OnStart(ProgressBarName, 0, pBar.onStart)
	// Update up to 1000 times during the loop, and at least every RefreshPeriod.
	train.NTimesDuringLoop(loop, 1000, ProgressBarName, 0, pBar.onStep)
	train.PeriodicCallback(loop, RefreshPeriod, false, ProgressBarName, 0, pBar.onStep)
	loop.OnEnd(ProgressBarName, 0, pBar.onEnd)
}

// humanizeInt formats integers with "," separating thousands.
func humanizeInt[I constraints.Integer](n I) string {
	return humanize.Comma(int64(n))
}
