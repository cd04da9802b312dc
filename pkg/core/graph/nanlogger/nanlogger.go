// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package nanlogger finds where NaN or Inf values first show up in a graph.
//
// The graph package doesn't trap arithmetic domain errors (the square root of a negative number, a
// division by zero): they produce NaN or Inf, which then propagate forward to every node computed from
// them, and backward through the gradients. To locate their origin, Trace the nodes of interest while
// building the graph and call Check after the forward pass (and again after Backward). The earliest
// created traced node holding a non-finite value or gradient is reported, with the stack trace of the
// Trace call and the scope at the time.
//
// Example:
//
//	for ii, layer := range layers {
//		nanLogger.PushScope(fmt.Sprintf("layer-%d", ii))
//		x = layer.Forward(x)
//		nanLogger.Trace(x...)
//		nanLogger.PopScope()
//	}
//	loss := lossFn(x, labels)
//	nanLogger.Check()
//	loss.Backward()
//	nanLogger.Check()
package nanlogger

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/gomlx/scalargrad/pkg/core/graph"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// NanLogger keeps the nodes to watch for NaN or Inf. Create it with New.
//
// A nil *NanLogger can be used, and all its methods do nothing: code can be instrumented
// and the logger enabled only when debugging.
type NanLogger struct {
	handler HandlerFn
	watched []watchedNode
	scope   []string
}

type watchedNode struct {
	node  *graph.Node
	trace *Trace
}

// Trace is what is reported about a non-finite node.
type Trace struct {
	// StackTrace of the Trace (or TraceWithScope) call. Print it with "%+v".
	StackTrace error

	// Scope active when the node was traced.
	Scope []string

	// Node with the non-finite value or gradient.
	Node *graph.Node

	// Value found, NaN or ±Inf.
	Value float64

	// InGradient tells whether Value is the gradient of Node, instead of its forward value.
	InGradient bool
}

// HandlerFn is called by Check with the report of the offending node.
type HandlerFn func(info *Trace)

// New returns a NanLogger reporting with DefaultHandler.
func New() *NanLogger {
	return &NanLogger{handler: DefaultHandler}
}

// WithHandler replaces DefaultHandler, which exits the program, by handler. It returns l.
func (l *NanLogger) WithHandler(handler HandlerFn) *NanLogger {
	if l != nil {
		l.handler = handler
	}
	return l
}

// Trace watches the nodes, under the current scope (see PushScope).
func (l *NanLogger) Trace(nodes ...*graph.Node) {
	for _, node := range nodes {
		l.TraceWithScope(node)
	}
}

// TraceWithScope watches node. The scope, if given, replaces the current scope for this node.
func (l *NanLogger) TraceWithScope(node *graph.Node, scope ...string) {
	if l == nil || node == nil {
		return
	}
	if len(scope) == 0 {
		scope = l.scope
	}
	l.watched = append(l.watched, watchedNode{
		node: node,
		trace: &Trace{
			StackTrace: errors.New("traced at"),
			Scope:      slices.Clone(scope),
		},
	})
}

// NumTraced is the number of nodes watched.
func (l *NanLogger) NumTraced() int {
	if l == nil {
		return 0
	}
	return len(l.watched)
}

// Reset stops watching all nodes, usually before building a new graph. The scope is kept.
func (l *NanLogger) Reset() {
	if l != nil {
		l.watched = l.watched[:0]
	}
}

// PushScope appends name to the scope given to the nodes traced from now on.
func (l *NanLogger) PushScope(name string) {
	if l != nil {
		l.scope = append(l.scope, name)
	}
}

// PopScope removes the last name pushed with PushScope.
func (l *NanLogger) PopScope() {
	if l == nil {
		return
	}
	if len(l.scope) == 0 {
		klog.Warning("NanLogger.PopScope() called with an empty scope")
		return
	}
	l.scope = l.scope[:len(l.scope)-1]
}

// Check looks for NaN or Inf in the traced nodes. If found, it calls the handler once, for the earliest
// created offending node, and returns true.
//
// Forward values are checked first: gradients are only reported if all values are finite.
func (l *NanLogger) Check() bool {
	if l == nil {
		return false
	}
	for _, inGradient := range []bool{false, true} {
		if report := l.earliestNonFinite(inGradient); report != nil {
			l.handler(report)
			return true
		}
	}
	return false
}

// earliestNonFinite returns the report for the watched node with the lowest id whose value (or gradient)
// is not finite, or nil if there is none.
func (l *NanLogger) earliestNonFinite(inGradient bool) *Trace {
	var report *Trace
	for _, w := range l.watched {
		v := w.node.Value()
		if inGradient {
			v = w.node.Gradient()
		}
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			continue
		}
		if report != nil && report.Node.Id() <= w.node.Id() {
			continue
		}
		r := *w.trace
		r.Node, r.Value, r.InGradient = w.node, v, inGradient
		report = &r
	}
	return report
}

// DefaultHandler logs the report and exits.
func DefaultHandler(info *Trace) {
	klog.Exitf("NanLogger found %s", info)
}

// String implements fmt.Stringer.
func (info *Trace) String() string {
	var sb strings.Builder
	what := "value"
	if info.InGradient {
		what = "gradient"
	}
	_, _ = fmt.Fprintf(&sb, "%g in the %s of node %#v\n", info.Value, what, info.Node)
	if len(info.Scope) > 0 {
		_, _ = fmt.Fprintf(&sb, "Scope: %s\n", strings.Join(info.Scope, " / "))
	}
	_, _ = fmt.Fprintf(&sb, "%+v\n", info.StackTrace)
	return sb.String()
}
