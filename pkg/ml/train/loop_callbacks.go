// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"fmt"
	"time"
)

// NTimesDuringLoop registers fn as an OnStep hook called about n times per run of the loop, spread evenly
// over its steps, and always at the last step.
//
// When the end of the run is not known (the first epoch of Loop.RunEpochs), fn is called after 128 steps,
// then 256, 512, and so on, until EndStep is known. Because of that it may be called a few more than
// n times.
func NTimesDuringLoop(loop *Loop, n int, name string, priority Priority, fn OnStepFn) {
	var calls int
	hookName := fmt.Sprintf("NTimesDuringLoop(%d): %s", n, name)
	loop.OnStart(hookName, priority, func(*Loop, Dataset) error {
		calls = 0
		return nil
	})
	loop.OnStep(hookName, priority, func(loop *Loop, metrics []float64) error {
		done := loop.LoopStep - loop.StartStep + 1
		switch {
		case loop.EndStep < 0:
			if done < 128<<calls {
				return nil
			}
		case loop.LoopStep < loop.EndStep-1:
			// Call when done/total is at least calls/n.
			if total := loop.EndStep - loop.StartStep; total > n && calls*total > done*n {
				return nil
			}
		}
		calls++
		return fn(loop, metrics)
	})
}

// EveryNSteps registers fn as an OnStep hook called every n steps. The count continues across runs of
// the loop, and the last step is not specially handled.
func EveryNSteps(loop *Loop, n int, name string, priority Priority, fn OnStepFn) {
	n = max(n, 1)
	var count int
	loop.OnStep(fmt.Sprintf("EveryNSteps(%d): %s", n, name), priority, func(loop *Loop, metrics []float64) error {
		count++
		if count%n != 0 {
			return nil
		}
		return fn(loop, metrics)
	})
}

// PeriodicCallback registers fn as an OnStep hook called once period has elapsed since the previous
// call. The clock starts at the first step, and restarts after fn returns, so time spent in fn doesn't
// count.
//
// If callOnEnd is set, fn is also called by an OnEnd hook.
func PeriodicCallback(loop *Loop, period time.Duration, callOnEnd bool, name string, priority Priority, fn OnStepFn) {
	var last time.Time
	hookName := fmt.Sprintf("PeriodicCallback(%s): %s", period, name)
	loop.OnStep(hookName, priority, func(loop *Loop, metrics []float64) error {
		if last.IsZero() {
			last = time.Now()
			return nil
		}
		if time.Since(last) < period {
			return nil
		}
		err := fn(loop, metrics)
		last = time.Now()
		return err
	})
	if callOnEnd {
		loop.OnEnd(hookName, priority, OnEndFn(fn))
	}
}
