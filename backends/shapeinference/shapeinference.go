// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapeinference calculates the shape resulting from operators and validates their inputs.
//
// It defines one function per operator family: GatherOp, GatherElementsOp, ReduceOp, WhereOp and MatMulOp.
// None of them looks at data: validation of index values, when possible, is done by the operator itself.
//
// Axes given to the functions may be negative (counting from the end) and are normalized with
// shapes.NormalizeAxis.
package shapeinference

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/types"
	"github.com/gomlx/opkernels/types/shapes"
	"github.com/pkg/errors"
)

var (
	// IndexDTypes are the dtypes accepted for the indices of Gather and GatherElements.
	IndexDTypes = types.SetWith(dtypes.Int32, dtypes.Int64)

	// ConditionDTypes are the dtypes accepted for the condition of Where. Uint8 is read as
	// false for 0 and true otherwise.
	ConditionDTypes = types.SetWith(dtypes.Bool, dtypes.Uint8)
)

func checkIndices(opName string, indices shapes.Shape) error {
	if !IndexDTypes.Has(indices.DType) {
		return errors.Errorf("%s() indices must be Int32 or Int64, got %s instead", opName, indices)
	}
	return nil
}

// GatherOp returns the output shape of a Gather along axis: it is the input shape with the dimension of axis
// replaced (in place) by all the dimensions of indices.
// The output rank is input.Rank() - 1 + indices.Rank(), and the DType is the input DType.
func GatherOp(input, indices shapes.Shape, axis int) (output shapes.Shape, err error) {
	if err = checkIndices("Gather", indices); err != nil {
		return shapes.Invalid(), err
	}
	adjustedAxis, err := shapes.NormalizeAxis(axis, input.Rank())
	if err != nil {
		return shapes.Invalid(), errors.WithMessagef(err, "Gather(input=%s, indices=%s)", input, indices)
	}
	dims := make([]int, 0, input.Rank()-1+indices.Rank())
	dims = append(dims, input.Dimensions[:adjustedAxis]...)
	dims = append(dims, indices.Dimensions...)
	dims = append(dims, input.Dimensions[adjustedAxis+1:]...)
	return shapes.Make(input.DType, dims...), nil
}

// GatherElementsOp returns the output shape of a GatherElements along axis, which is the shape of the indices
// with the DType of the input.
//
// It requires input and indices to have the same rank, and the same dimensions on every axis except axis.
func GatherElementsOp(input, indices shapes.Shape, axis int) (output shapes.Shape, err error) {
	if err = checkIndices("GatherElements", indices); err != nil {
		return shapes.Invalid(), err
	}
	adjustedAxis, err := shapes.NormalizeAxis(axis, input.Rank())
	if err != nil {
		return shapes.Invalid(), errors.WithMessagef(err, "GatherElements(input=%s, indices=%s)", input, indices)
	}
	if input.Rank() != indices.Rank() {
		return shapes.Invalid(), errors.Errorf("GatherElements() requires input (%s) and indices (%s) to have the same rank",
			input, indices)
	}
	for ii, dim := range input.Dimensions {
		if ii != adjustedAxis && dim != indices.Dimensions[ii] {
			return shapes.Invalid(), errors.Errorf("GatherElements(axis=%d) requires input (%s) and indices (%s) to have the same dimensions, except on the gathered axis, but axis %d differs",
				adjustedAxis, input, indices, ii)
		}
	}
	return shapes.Make(input.DType, indices.Dimensions...), nil
}

// ReduceAxes normalizes the axes of a reduction of an operand of the given rank.
// A nil axes means all axes. An empty (non-nil) axes means no axis is reduced.
func ReduceAxes(rank int, axes []int) (types.Set[int], error) {
	if axes == nil {
		all := types.MakeSet[int](rank)
		for axis := range rank {
			all.Insert(axis)
		}
		return all, nil
	}
	set, err := shapes.NormalizeAxes(axes, rank)
	if err != nil {
		return nil, errors.WithMessage(err, "Reduce()")
	}
	return set, nil
}

// ReduceOp returns the output shape of a reduction of operand over the given normalized axes (see ReduceAxes).
//
// If keepDims is true the reduced axes are kept with dimension 1. Otherwise, they are removed; and if all axes
// are removed, the output has shape [1] (never a scalar). The DType is the operand DType.
func ReduceOp(operand shapes.Shape, axes types.Set[int], keepDims bool) (output shapes.Shape, err error) {
	for axis := range axes {
		if axis < 0 || axis >= operand.Rank() {
			return shapes.Invalid(), errors.Errorf("Reduce operation require each axis to be 0 <= axis < rank, but got invalid axis %d for shape %s", axis, operand)
		}
	}
	if keepDims {
		output = operand.Clone()
		for axis := range axes {
			output.Dimensions[axis] = 1
		}
		return output, nil
	}
	dims := make([]int, 0, operand.Rank()-len(axes))
	for axis, dim := range operand.Dimensions {
		if !axes.Has(axis) {
			dims = append(dims, dim)
		}
	}
	if len(dims) == 0 {
		dims = append(dims, 1)
	}
	return shapes.Make(operand.DType, dims...), nil
}

// WhereOp returns the output shape of a Where(x, y, condition): the dimensions are the broadcast of x and y,
// then broadcast with condition. The DType is that of x and y, which must match.
//
// The condition must be Bool or Uint8.
func WhereOp(x, y, condition shapes.Shape) (output shapes.Shape, err error) {
	if x.DType != y.DType {
		return shapes.Invalid(), errors.Errorf("Where() requires x (%s) and y (%s) to have the same dtype", x, y)
	}
	if !ConditionDTypes.Has(condition.DType) {
		return shapes.Invalid(), errors.Errorf("condition for Where() must be a Bool or Uint8, got %s instead", condition)
	}
	xyDims, err := shapes.BroadcastDimensions(x.Dimensions, y.Dimensions)
	if err != nil {
		return shapes.Invalid(), errors.WithMessagef(err, "Where(x=%s, y=%s)", x, y)
	}
	dims, err := shapes.BroadcastDimensions(xyDims, condition.Dimensions)
	if err != nil {
		return shapes.Invalid(), errors.WithMessagef(err, "Where(x=%s, y=%s, condition=%s)", x, y, condition)
	}
	return shapes.Make(x.DType, dims...), nil
}

// MatMulOp returns the output shape of a batched matrix multiplication of a [..., M, K] and b [..., K, N]:
// transA (transB) means the last two axes of a (b) are swapped.
// Both operands must have rank >= 2 and the same DType, and the batch (leading) dimensions are broadcast.
// The output shape is [batch..., M, N].
func MatMulOp(a, b shapes.Shape, transA, transB bool) (output shapes.Shape, err error) {
	if a.DType != b.DType {
		return shapes.Invalid(), errors.Errorf("MatMul() requires a (%s) and b (%s) to have the same dtype", a, b)
	}
	if a.Rank() < 2 || b.Rank() < 2 {
		return shapes.Invalid(), errors.Errorf("MatMul() requires a (%s) and b (%s) to have rank >= 2", a, b)
	}
	m, k := a.Dim(-2), a.Dim(-1)
	if transA {
		m, k = k, m
	}
	kB, n := b.Dim(-2), b.Dim(-1)
	if transB {
		kB, n = n, kB
	}
	if k != kB {
		return shapes.Invalid(), errors.Errorf("MatMul(a=%s, b=%s, transA=%v, transB=%v) contracting dimensions don't match (%d != %d)",
			a, b, transA, transB, k, kB)
	}
	batch, err := shapes.BroadcastDimensions(a.Dimensions[:a.Rank()-2], b.Dimensions[:b.Rank()-2])
	if err != nil {
		return shapes.Invalid(), errors.WithMessagef(err, "MatMul(a=%s, b=%s) batch dimensions", a, b)
	}
	dims := append(slices.Clone(batch), m, n)
	return shapes.Make(a.DType, dims...), nil
}
