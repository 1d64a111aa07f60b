// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"

	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/backends/shapeinference"
	"github.com/gomlx/opkernels/device"
	"github.com/gomlx/opkernels/internal/loops"
	"github.com/gomlx/opkernels/provider"
	"github.com/gomlx/opkernels/types/shapes"
	"github.com/pkg/errors"
)

// gatherBase holds what is common to Gather and GatherElements.
type gatherBase struct {
	nativeNode
	axis int
}

// Input operand, from which values are gathered.
func (op *gatherBase) Input() Operand { return op.inputs[0] }

// Indices operand.
func (op *gatherBase) Indices() Operand { return op.inputs[1] }

// Axis along which values are gathered, normalized to be non-negative.
func (op *gatherBase) Axis() int { return op.axis }

// String implements Operator.
func (op *gatherBase) String() string {
	return op.signature(
		dimsString(op.Input().Shape().Dimensions),
		dimsString(op.Indices().Shape().Dimensions),
		fmt.Sprintf("axis=%d", op.axis),
		fmt.Sprintf("input=%d", op.Input().GUID()),
		fmt.Sprintf("output=%d", op.output.GUID()))
}

// WorkloadVector implements Operator: [op, input dims..., indices dims..., axis].
func (op *gatherBase) WorkloadVector() []int {
	vec := []int{int(op.opType)}
	vec = append(vec, op.Input().Shape().Dimensions...)
	vec = append(vec, op.Indices().Shape().Dimensions...)
	return append(vec, op.axis)
}

// OpAttrVector implements Operator: [op, axis].
func (op *gatherBase) OpAttrVector() []int {
	return []int{int(op.opType), op.axis}
}

// validateResidentIndices checks the indices values against the dimension of the input axis,
// if the indices data is bound. Indices bound later are not checked here, the kernels check them
// while reading.
func validateResidentIndices(opType backends.OpType, input, indices Operand, axis int) error {
	if !indices.IsDataBound() {
		return nil
	}
	indicesShape := indices.Shape()
	err := loops.ValidateIndexBuffer(indices.Bytes(), indicesShape.DType, indicesShape.Size(), input.Shape().Dimensions[axis])
	if err != nil {
		return errors.WithMessagef(err, "%s(input=%s, indices=%s, axis=%d)", opType, input.Shape(), indicesShape, axis)
	}
	return nil
}

// Gather collects, for each index, the slice of the input at that index along the axis.
//
// The output shape is the input shape with the axis dimension replaced by the indices dimensions.
type Gather struct {
	gatherBase
}

var _ NativeBinder = (*Gather)(nil)

// NewGather creates a Gather operator. If output is nil, a new operand is created in g.
//
// The axis can be negative, counting from the end. If the indices are bound, their values are checked to
// be within [0, dim(axis)).
func NewGather(g Graph, input, indices, output Operand, axis int) (*Gather, error) {
	const opType = backends.OpTypeGather
	if err := checkOperands(opType, input, indices); err != nil {
		return nil, err
	}
	axis, err := shapes.NormalizeAxis(axis, input.Shape().Rank())
	if err != nil {
		return nil, errors.WithMessagef(err, "Gather(input=%s)", input.Shape())
	}
	inferred, err := shapeinference.GatherOp(input.Shape(), indices.Shape(), axis)
	if err != nil {
		return nil, err
	}
	if err = validateResidentIndices(opType, input, indices, axis); err != nil {
		return nil, err
	}
	n, err := newNode(g, opType, inferred, output, input, indices)
	if err != nil {
		return nil, err
	}
	return &Gather{gatherBase{nativeNode: nativeNode{node: n}, axis: axis}}, nil
}

// InitNative implements NativeBinder.
func (op *Gather) InitNative(ctx device.Context) error {
	return op.native.bind(ctx, op.opType.String(), op.operandShapes(),
		func(p provider.Provider, handle provider.Handle, tds []provider.TensorDescriptor) (provider.Descriptor, provider.Status) {
			return p.CreateGatherDescriptor(handle, tds[0], tds[1], tds[2], op.axis)
		},
		provider.Provider.DestroyGatherDescriptor)
}

// GatherElements reads, for each position of the indices, the input at the same position except along
// the axis, where the index value is used.
//
// The output shape is the indices shape.
type GatherElements struct {
	gatherBase
}

var _ NativeBinder = (*GatherElements)(nil)

// NewGatherElements creates a GatherElements operator. If output is nil, a new operand is created in g.
//
// Input and indices must have the same rank, and the same dimensions except on the axis.
// If the indices are bound, their values are checked to be within [0, dim(axis)).
func NewGatherElements(g Graph, input, indices, output Operand, axis int) (*GatherElements, error) {
	const opType = backends.OpTypeGatherElements
	if err := checkOperands(opType, input, indices); err != nil {
		return nil, err
	}
	axis, err := shapes.NormalizeAxis(axis, input.Shape().Rank())
	if err != nil {
		return nil, errors.WithMessagef(err, "GatherElements(input=%s)", input.Shape())
	}
	inferred, err := shapeinference.GatherElementsOp(input.Shape(), indices.Shape(), axis)
	if err != nil {
		return nil, err
	}
	if err = validateResidentIndices(opType, input, indices, axis); err != nil {
		return nil, err
	}
	n, err := newNode(g, opType, inferred, output, input, indices)
	if err != nil {
		return nil, err
	}
	return &GatherElements{gatherBase{nativeNode: nativeNode{node: n}, axis: axis}}, nil
}

// InitNative implements NativeBinder.
func (op *GatherElements) InitNative(ctx device.Context) error {
	return op.native.bind(ctx, op.opType.String(), op.operandShapes(),
		func(p provider.Provider, handle provider.Handle, tds []provider.TensorDescriptor) (provider.Descriptor, provider.Status) {
			return p.CreateGatherElementsDescriptor(handle, tds[0], tds[1], tds[2], op.axis)
		},
		provider.Provider.DestroyGatherElementsDescriptor)
}
