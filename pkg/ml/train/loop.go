// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package train

import (
	"math"
	"slices"
	"time"

	"github.com/pkg/errors"
)

// Priority of a hook: hooks with lower values run first, and hooks of equal priority run in
// the order they were registered. The usual priority is 0, negative values are fine.
type Priority int

// OnStartFn is called before the first step of a run.
type OnStartFn func(loop *Loop, ds Dataset) error

// OnStepFn is called after each train step, with the metrics returned by Trainer.TrainStep:
// the loss followed by the train metrics.
type OnStepFn func(loop *Loop, metrics []float64) error

// OnEndFn is called after the last step of a run, with the metrics of the last step.
type OnEndFn func(loop *Loop, metrics []float64) error

// Loop runs Trainer.TrainStep over the examples of a Dataset, calling the registered hooks.
// Progress bars, plots and logging are attached to it as hooks.
//
// The exported fields are for reading only.
type Loop struct {
	// Trainer run by the loop.
	Trainer *Trainer

	// LoopStep is the step being run. It starts at the trainer's GlobalStep.
	LoopStep int

	// StartStep is the LoopStep at which the current run (RunSteps or RunEpochs) started.
	StartStep int

	// EndStep is one past the last step of the current run, or -1 if not known. During RunEpochs it is
	// -1 for the first epoch, and afterward extrapolated from the number of examples of the first epoch.
	EndStep int

	// Epoch being run by RunEpochs, starting from 0.
	Epoch int

	// SharedData allows hooks to publish information to each other. Keys and values are defined by
	// the hooks using it.
	SharedData map[string]any

	// TrainStepDurations of the current run.
	TrainStepDurations []time.Duration

	onStart hooks[OnStartFn]
	onStep  hooks[OnStepFn]
	onEnd   hooks[OnEndFn]
}

// NewLoop creates a Loop for the trainer.
func NewLoop(trainer *Trainer) *Loop {
	return &Loop{
		Trainer:    trainer,
		LoopStep:   int(trainer.GlobalStep()),
		SharedData: make(map[string]any),
	}
}

// OnStart registers fn to be called at the start of every run. The name is used in error messages.
func (loop *Loop) OnStart(name string, priority Priority, fn OnStartFn) {
	loop.onStart.add(name, priority, fn)
}

// OnStep registers fn to be called after each train step. The name is used in error messages.
func (loop *Loop) OnStep(name string, priority Priority, fn OnStepFn) {
	loop.onStep.add(name, priority, fn)
}

// OnEnd registers fn to be called after the last train step of every run. The name is used in
// error messages.
func (loop *Loop) OnEnd(name string, priority Priority, fn OnEndFn) {
	loop.onEnd.add(name, priority, fn)
}

// beginRun resets the per-run state and calls the OnStart hooks.
func (loop *Loop) beginRun(ds Dataset, endStep int) error {
	loop.Trainer.ResetTrainMetrics()
	loop.StartStep = loop.LoopStep
	loop.EndStep = endStep
	loop.Epoch = 0
	loop.TrainStepDurations = loop.TrainStepDurations[:0]
	for _, h := range loop.onStart.sorted() {
		if err := h.fn(loop, ds); err != nil {
			return errors.WithMessagef(err, "train.Loop.OnStart(hook %q)", h.name)
		}
	}
	return nil
}

// trainStep runs one TrainStep and the OnStep hooks. A non-finite loss stops the loop, after the hooks
// had a chance to see it.
func (loop *Loop) trainStep(inputs, labels []float64) ([]float64, error) {
	start := time.Now()
	metrics, err := loop.Trainer.TrainStep(inputs, labels)
	loop.TrainStepDurations = append(loop.TrainStepDurations, time.Since(start))
	if err != nil {
		return nil, err
	}
	for _, h := range loop.onStep.sorted() {
		if err := h.fn(loop, metrics); err != nil {
			return nil, errors.WithMessagef(err, "train.Loop.OnStep(hook %q)", h.name)
		}
	}
	switch loss := metrics[0]; {
	case math.IsNaN(loss):
		return nil, errors.New("loss is NaN, training interrupted")
	case math.IsInf(loss, 0):
		return nil, errors.Errorf("loss is infinity (%g), training interrupted", loss)
	}
	return metrics, nil
}

// endRun calls the OnEnd hooks.
func (loop *Loop) endRun(metrics []float64) error {
	for _, h := range loop.onEnd.sorted() {
		if err := h.fn(loop, metrics); err != nil {
			return errors.WithMessagef(err, "train.Loop.OnEnd(hook %q)", h.name)
		}
	}
	return nil
}

// RunSteps runs steps train steps, reading one example per step from ds. It continues from the
// current LoopStep, so it can be called repeatedly.
//
// The dataset must have at least steps examples left (see datasets.InMemory.Infinite), otherwise it
// fails. It returns the metrics of the last step.
func (loop *Loop) RunSteps(ds Dataset, steps int) (metrics []float64, err error) {
	if steps <= 0 {
		return nil, nil
	}
	if err = loop.beginRun(ds, loop.LoopStep+steps); err != nil {
		return nil, err
	}
	for ; loop.LoopStep < loop.EndStep; loop.LoopStep++ {
		inputs, labels, err := ds.Yield()
		if isEOF(err) {
			return nil, errors.Errorf("reached Dataset end after %d steps (requested %d steps): use an "+
				"infinite Dataset, or Loop.RunEpochs instead", loop.LoopStep-loop.StartStep, steps)
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "Loop.RunSteps(%d): failed reading dataset %q", steps, ds.Name())
		}
		if metrics, err = loop.trainStep(inputs, labels); err != nil {
			return nil, errors.WithMessagef(err, "Loop.RunSteps(%d) at LoopStep=%d", steps, loop.LoopStep)
		}
	}
	if err = loop.endRun(metrics); err != nil {
		return nil, errors.WithMessagef(err, "Loop.RunSteps(%d) at the end (LoopStep=%d)", steps, loop.LoopStep)
	}
	return metrics, nil
}

// RunEpochs runs one train step per example of ds, for the given number of epochs. ds.Reset is called
// after each epoch, including the last. It continues from the current LoopStep, so it can be called
// repeatedly.
//
// It returns the metrics of the last step.
func (loop *Loop) RunEpochs(ds Dataset, epochs int) (metrics []float64, err error) {
	if err = loop.beginRun(ds, -1); err != nil {
		return nil, err
	}
	for ; loop.Epoch < epochs; loop.Epoch++ {
		epochStart := loop.LoopStep
		for {
			inputs, labels, err := ds.Yield()
			if isEOF(err) {
				break
			}
			if err != nil {
				return nil, errors.WithMessagef(err, "Loop.RunEpochs(%d): failed reading dataset %q in epoch %d",
					epochs, ds.Name(), loop.Epoch)
			}
			if metrics, err = loop.trainStep(inputs, labels); err != nil {
				return nil, errors.WithMessagef(err, "Loop.RunEpochs(%d) at LoopStep=%d", epochs, loop.LoopStep)
			}
			loop.LoopStep++
		}
		ds.Reset()
		stepsPerEpoch := loop.LoopStep - epochStart
		if stepsPerEpoch == 0 {
			return nil, errors.Errorf("Loop.RunEpochs(%d): dataset %q yielded no examples in epoch %d",
				epochs, ds.Name(), loop.Epoch)
		}
		loop.EndStep = loop.LoopStep + stepsPerEpoch*(epochs-loop.Epoch-1)
	}
	if err = loop.endRun(metrics); err != nil {
		return nil, errors.WithMessagef(err, "Loop.RunEpochs(%d) at the end (LoopStep=%d)", epochs, loop.LoopStep)
	}
	return metrics, nil
}

// MedianTrainStepDuration of the current run. It returns 1 millisecond if no step was run yet,
// so it can be safely used as a divisor.
func (loop *Loop) MedianTrainStepDuration() time.Duration {
	if len(loop.TrainStepDurations) == 0 {
		return time.Millisecond
	}
	durations := slices.Clone(loop.TrainStepDurations)
	slices.Sort(durations)
	return durations[len(durations)/2]
}

// hook is a registered function with its name and priority.
type hook[F any] struct {
	name     string
	priority Priority
	fn       F
}

// hooks is a list of hooks, sorted lazily by priority.
type hooks[F any] struct {
	list     []hook[F]
	isSorted bool
}

func (h *hooks[F]) add(name string, priority Priority, fn F) {
	h.list = append(h.list, hook[F]{name: name, priority: priority, fn: fn})
	h.isSorted = false
}

// sorted returns the hooks by priority, keeping the registration order within a priority.
func (h *hooks[F]) sorted() []hook[F] {
	if !h.isSorted {
		slices.SortStableFunc(h.list, func(a, b hook[F]) int { return int(a.priority - b.priority) })
		h.isSorted = true
	}
	return h.list
}
