// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package graph is a minimal container of operators: it owns the operands (host tensors) and the operators
// built on them, and runs them in insertion order on one device.
//
// Example:
//
//	g := graph.New(dev)
//	x := g.AddTensor(shapes.Make(dtypes.Float32, 7, 2, 5, 5))
//	sum, err := ops.NewReduceSum(g, x, nil, []int{1, 3}, true)
//	if err != nil { ... }
//	err = g.AddOp(sum)
//	g.DataMalloc()
//	... fill x ...
//	err = g.Run()
//	g.Finalize()
package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomlx/opkernels/device"
	"github.com/gomlx/opkernels/kernels"
	"github.com/gomlx/opkernels/ops"
	"github.com/gomlx/opkernels/types/shapes"
	"github.com/gomlx/opkernels/types/tensors"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Graph owns tensors and operators, and executes the operators on a device.
//
// It is not safe for concurrent use.
type Graph struct {
	id       uuid.UUID
	ctx      device.Context
	registry *kernels.Registry

	lastGUID  int
	tensors   []*tensors.Tensor
	nodes     []*node
	finalized bool
}

// node is an operator and the kernel selected for it, once dispatched.
type node struct {
	op     ops.Operator
	kernel *kernels.Entry
}

var _ ops.Graph = (*Graph)(nil)

// Option for New.
type Option func(g *Graph)

// WithRegistry sets the kernel registry used to dispatch operators. Default is kernels.Default().
func WithRegistry(registry *kernels.Registry) Option {
	return func(g *Graph) { g.registry = registry }
}

// New creates an empty graph that runs on the device.
func New(ctx device.Context, options ...Option) *Graph {
	g := &Graph{
		id:       uuid.New(),
		ctx:      ctx,
		registry: kernels.Default(),
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// ID is a unique identifier of the graph.
func (g *Graph) ID() uuid.UUID { return g.id }

// Device the graph runs on.
func (g *Graph) Device() device.Context { return g.ctx }

// NextGUID implements ops.Graph.
func (g *Graph) NextGUID() int {
	g.lastGUID++
	return g.lastGUID
}

// AddTensor creates a new unbound tensor owned by the graph.
func (g *Graph) AddTensor(shape shapes.Shape) *tensors.Tensor {
	t := tensors.New(g.NextGUID(), shape)
	g.tensors = append(g.tensors, t)
	return t
}

// NewOperand implements ops.Graph, with AddTensor.
func (g *Graph) NewOperand(shape shapes.Shape) ops.Operand {
	return g.AddTensor(shape)
}

// Tensors returns the tensors owned by the graph, in creation order.
func (g *Graph) Tensors() []*tensors.Tensor { return g.tensors }

// AddOp appends an operator created with this graph. Operators are run in the order they are added.
func (g *Graph) AddOp(op ops.Operator) error {
	if g.finalized {
		return errors.Errorf("graph %s: AddOp(%s) after Finalize", g.id, op)
	}
	if op == nil {
		return errors.Errorf("graph %s: AddOp(nil)", g.id)
	}
	g.nodes = append(g.nodes, &node{op: op})
	return nil
}

// Operators returns the operators of the graph, in execution order.
func (g *Graph) Operators() []ops.Operator {
	operators := make([]ops.Operator, len(g.nodes))
	for ii, n := range g.nodes {
		operators[ii] = n.op
	}
	return operators
}

// DataMalloc allocates zeroed data for every tensor of the graph that is not bound yet.
func (g *Graph) DataMalloc() {
	for _, t := range g.tensors {
		if !t.IsDataBound() {
			t.Allocate()
		}
	}
}

// prepare binds the native descriptor of the operator, if the device has a native provider, and selects
// its kernel. Both happen only once per node.
func (g *Graph) prepare(n *node) (*kernels.Entry, error) {
	if n.kernel != nil {
		return n.kernel, nil
	}
	if binder, ok := n.op.(ops.NativeBinder); ok && g.ctx.Provider() != nil {
		if err := binder.InitNative(g.ctx); err != nil {
			return nil, err
		}
	}
	entry, err := g.registry.LookupFor(n.op, g.ctx)
	if err != nil {
		return nil, err
	}
	n.kernel = &entry
	return n.kernel, nil
}

// Run executes every operator once, in insertion order. It stops at the first error.
func (g *Graph) Run() error {
	if g.finalized {
		return errors.Errorf("graph %s: Run after Finalize", g.id)
	}
	for _, n := range g.nodes {
		entry, err := g.prepare(n)
		if err != nil {
			return errors.WithMessagef(err, "graph %s", g.id)
		}
		start := time.Now()
		if err = entry.Kernel.Compute(n.op, g.ctx); err != nil {
			return errors.WithMessagef(err, "graph %s: kernel %q", g.id, entry.Name)
		}
		if klog.V(2).Enabled() {
			klog.Infof("graph %s: %s computed by %q in %s", g.id, n.op, entry.Name, time.Since(start))
		}
	}
	return nil
}

// Tune runs the Tune of the kernel of every operator, and stores the results in the cache.
// Kernels already in the cache for the same workload are not tuned again.
func (g *Graph) Tune(cache *kernels.PerfCache) error {
	if g.finalized {
		return errors.Errorf("graph %s: Tune after Finalize", g.id)
	}
	for _, n := range g.nodes {
		entry, err := g.prepare(n)
		if err != nil {
			return errors.WithMessagef(err, "graph %s", g.id)
		}
		workload := n.op.WorkloadVector()
		if _, found := cache.Get(entry.Name, workload); found {
			continue
		}
		record, err := entry.Kernel.Tune(n.op, g.ctx)
		if err != nil {
			return errors.WithMessagef(err, "graph %s: tuning kernel %q", g.id, entry.Name)
		}
		cache.Put(entry.Name, workload, record)
		klog.V(2).Infof("graph %s: %s tuned %q: %s", g.id, n.op, entry.Name, record)
	}
	return nil
}

// Finalize releases the resources of every operator (native descriptors). The graph can't be used afterwards.
// It is idempotent.
func (g *Graph) Finalize() {
	if g.finalized {
		return
	}
	g.finalized = true
	for _, n := range g.nodes {
		n.op.Finalize()
	}
	g.nodes = nil
	g.tensors = nil
}

// String lists the operators of the graph.
func (g *Graph) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Graph %s on %s: %d tensors, %d operators\n", g.id, g.ctx.Kind(), len(g.tensors), len(g.nodes))
	for _, n := range g.nodes {
		fmt.Fprintf(&sb, "\t%s\n", n.op)
	}
	return sb.String()
}
