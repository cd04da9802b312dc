// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains convenience UI training tools for the command line.
package commandline

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gomlx/scalargrad/pkg/ml/train"
)

// ReportEval reports on the command line the results of evaluating the datasets using trainer.Eval.
func ReportEval(trainer *train.Trainer, datasets ...train.Dataset) error {
	return FprintEval(os.Stdout, trainer, datasets...)
}

// FprintEval is like ReportEval, but writes the report to w.
func FprintEval(w io.Writer, trainer *train.Trainer, datasets ...train.Dataset) error {
	for _, ds := range datasets {
		metricsValues, err := trainer.Eval(ds)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "Results on %s:\n", ds.Name())
		_, _ = fmt.Fprintf(w, "\tMean Loss (loss): %.4g\n", metricsValues[0])
		for metricIdx, metric := range trainer.EvalMetrics() {
			value := metricsValues[1+metricIdx]
			_, _ = fmt.Fprintf(w, "\t%s (%s): %s\n", metric.Name(), metric.ShortName(), metric.PrettyPrint(value))
		}
	}
	return nil
}

// FormatDuration pretty prints duration without a long list of decimal points.
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		return d.Round(time.Second).String()
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.2fµs", float64(d)/float64(time.Microsecond))
	default:
		return d.String()
	}
}
