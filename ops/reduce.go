// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/backends/shapeinference"
	"github.com/gomlx/opkernels/device"
	"github.com/gomlx/opkernels/provider"
	"github.com/gomlx/opkernels/types"
	"github.com/pkg/errors"
)

// ReduceKind is the closed set of reductions.
type ReduceKind int

const (
	ReduceMean ReduceKind = iota
	ReduceMax
	ReduceMin
	ReduceSum
	numReduceKinds
)

// ReduceKinds returns all the reduction kinds.
func ReduceKinds() []ReduceKind {
	return []ReduceKind{ReduceMean, ReduceMax, ReduceMin, ReduceSum}
}

var reduceOpTypes = [numReduceKinds]backends.OpType{
	ReduceMean: backends.OpTypeReduceMean,
	ReduceMax:  backends.OpTypeReduceMax,
	ReduceMin:  backends.OpTypeReduceMin,
	ReduceSum:  backends.OpTypeReduceSum,
}

// OpType returns the operator type of the reduction.
func (k ReduceKind) OpType() backends.OpType {
	if k < 0 || k >= numReduceKinds {
		exceptions.Panicf("invalid ReduceKind %d", int(k))
	}
	return reduceOpTypes[k]
}

// String returns the name of the OpType, e.g. "ReduceMax".
func (k ReduceKind) String() string { return k.OpType().String() }

// ReduceKindFor returns the ReduceKind of a Reduce* OpType.
func ReduceKindFor(opType backends.OpType) (ReduceKind, error) {
	for kind, kindOpType := range reduceOpTypes {
		if kindOpType == opType {
			return ReduceKind(kind), nil
		}
	}
	return 0, errors.Errorf("%s is not a reduction", opType)
}

// ReduceEntryPoints are the provider methods that implement one reduction kind.
type ReduceEntryPoints struct {
	Create        func(p provider.Provider, handle provider.Handle, output, input provider.TensorDescriptor, axes []int, keepDims bool) (provider.Descriptor, provider.Status)
	WorkspaceSize func(p provider.Provider, desc provider.Descriptor) (uint64, provider.Status)
	Compute       func(p provider.Provider, desc provider.Descriptor, workspace, output, input []byte, stream provider.Stream) provider.Status
	Destroy       func(p provider.Provider, desc provider.Descriptor) provider.Status
}

var reduceEntryPoints = [numReduceKinds]ReduceEntryPoints{
	ReduceMean: {
		Create:        provider.Provider.CreateReduceMeanDescriptor,
		WorkspaceSize: provider.Provider.GetReduceMeanWorkspaceSize,
		Compute:       provider.Provider.ReduceMean,
		Destroy:       provider.Provider.DestroyReduceMeanDescriptor,
	},
	ReduceMax: {
		Create:        provider.Provider.CreateReduceMaxDescriptor,
		WorkspaceSize: provider.Provider.GetReduceMaxWorkspaceSize,
		Compute:       provider.Provider.ReduceMax,
		Destroy:       provider.Provider.DestroyReduceMaxDescriptor,
	},
	ReduceMin: {
		Create:        provider.Provider.CreateReduceMinDescriptor,
		WorkspaceSize: provider.Provider.GetReduceMinWorkspaceSize,
		Compute:       provider.Provider.ReduceMin,
		Destroy:       provider.Provider.DestroyReduceMinDescriptor,
	},
	ReduceSum: {
		Create:        provider.Provider.CreateReduceSumDescriptor,
		WorkspaceSize: provider.Provider.GetReduceSumWorkspaceSize,
		Compute:       provider.Provider.ReduceSum,
		Destroy:       provider.Provider.DestroyReduceSumDescriptor,
	},
}

// EntryPoints returns the provider methods of the reduction kind.
func (k ReduceKind) EntryPoints() ReduceEntryPoints {
	k.OpType() // Panics on invalid kinds.
	return reduceEntryPoints[k]
}

// Reduce collapses the input along a set of axes, with one of the ReduceKind reductions.
type Reduce struct {
	nativeNode
	kind       ReduceKind
	axes       types.Set[int]
	sortedAxes []int
	keepDims   bool
}

var _ NativeBinder = (*Reduce)(nil)

// NewReduce creates a reduction of the given kind. If output is nil, a new operand is created in g.
//
// If axes is nil, all axes are reduced. Negative axes count from the end, and repeated axes are
// only reduced once. If keepDims is true the reduced axes are kept with dimension 1, otherwise they are removed,
// and if all axes are removed the output has shape [1].
func NewReduce(g Graph, kind ReduceKind, input, output Operand, axes []int, keepDims bool) (*Reduce, error) {
	if kind < 0 || kind >= numReduceKinds {
		return nil, errors.Errorf("invalid ReduceKind %d", int(kind))
	}
	opType := kind.OpType()
	if err := checkOperands(opType, input); err != nil {
		return nil, err
	}
	axesSet, err := shapeinference.ReduceAxes(input.Shape().Rank(), axes)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s(input=%s, axes=%v)", opType, input.Shape(), axes)
	}
	inferred, err := shapeinference.ReduceOp(input.Shape(), axesSet, keepDims)
	if err != nil {
		return nil, err
	}
	n, err := newNode(g, opType, inferred, output, input)
	if err != nil {
		return nil, err
	}
	return &Reduce{
		nativeNode: nativeNode{node: n},
		kind:       kind,
		axes:       axesSet,
		sortedAxes: types.SortedElements(axesSet),
		keepDims:   keepDims,
	}, nil
}

// NewReduceMean creates a ReduceMean, see NewReduce.
func NewReduceMean(g Graph, input, output Operand, axes []int, keepDims bool) (*Reduce, error) {
	return NewReduce(g, ReduceMean, input, output, axes, keepDims)
}

// NewReduceMax creates a ReduceMax, see NewReduce.
func NewReduceMax(g Graph, input, output Operand, axes []int, keepDims bool) (*Reduce, error) {
	return NewReduce(g, ReduceMax, input, output, axes, keepDims)
}

// NewReduceMin creates a ReduceMin, see NewReduce.
func NewReduceMin(g Graph, input, output Operand, axes []int, keepDims bool) (*Reduce, error) {
	return NewReduce(g, ReduceMin, input, output, axes, keepDims)
}

// NewReduceSum creates a ReduceSum, see NewReduce.
func NewReduceSum(g Graph, input, output Operand, axes []int, keepDims bool) (*Reduce, error) {
	return NewReduce(g, ReduceSum, input, output, axes, keepDims)
}

// Kind of the reduction.
func (op *Reduce) Kind() ReduceKind { return op.kind }

// Input operand.
func (op *Reduce) Input() Operand { return op.inputs[0] }

// Axes returns the normalized reduced axes, sorted. The returned slice must not be modified.
func (op *Reduce) Axes() []int { return op.sortedAxes }

// AxesSet returns the normalized reduced axes as a set. It must not be modified.
func (op *Reduce) AxesSet() types.Set[int] { return op.axes }

// KeepDims returns whether the reduced axes are kept with dimension 1.
func (op *Reduce) KeepDims() bool { return op.keepDims }

// String implements Operator.
func (op *Reduce) String() string {
	return op.signature(
		dimsString(op.Input().Shape().Dimensions),
		"axes="+dimsString(op.sortedAxes),
		fmt.Sprintf("keepDims=%d", boolToInt(op.keepDims)),
		fmt.Sprintf("input=%d", op.Input().GUID()),
		fmt.Sprintf("output=%d", op.output.GUID()))
}

// WorkloadVector implements Operator: [op, input dims..., keepDims, axes...].
func (op *Reduce) WorkloadVector() []int {
	vec := []int{int(op.opType)}
	vec = append(vec, op.Input().Shape().Dimensions...)
	vec = append(vec, boolToInt(op.keepDims))
	return append(vec, op.sortedAxes...)
}

// OpAttrVector implements Operator: [op, keepDims, axes...].
func (op *Reduce) OpAttrVector() []int {
	vec := []int{int(op.opType), boolToInt(op.keepDims)}
	return append(vec, op.sortedAxes...)
}

// InitNative implements NativeBinder.
func (op *Reduce) InitNative(ctx device.Context) error {
	entryPoints := op.kind.EntryPoints()
	return op.native.bind(ctx, op.opType.String(), op.operandShapes(),
		func(p provider.Provider, handle provider.Handle, tds []provider.TensorDescriptor) (provider.Descriptor, provider.Status) {
			return entryPoints.Create(p, handle, tds[0], tds[1], op.sortedAxes, op.keepDims)
		},
		entryPoints.Destroy)
}
