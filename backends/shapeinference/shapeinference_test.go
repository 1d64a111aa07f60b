// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapeinference

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/types"
	"github.com/gomlx/opkernels/types/shapes"
	"github.com/stretchr/testify/require"
)

// Aliases
var (
	Bool = dtypes.Bool
	I8   = dtypes.Int8
	U8   = dtypes.Uint8
	I32  = dtypes.Int32
	I64  = dtypes.Int64
	F16  = dtypes.Float16
	F32  = dtypes.Float32

	MS = shapes.Make
)

// must1 panics if there is an error.
func must1[T any](value T, err error) T {
	if err != nil {
		panic(err)
	}
	return value
}

func TestGatherOp(t *testing.T) {
	output := must1(GatherOp(MS(F32, 3, 2), MS(I32, 2, 2), 0))
	require.True(t, output.Equal(MS(F32, 2, 2, 2)), "got %s", output)

	output = must1(GatherOp(MS(F16, 4, 5, 6), MS(I64, 2, 3), 1))
	require.True(t, output.Equal(MS(F16, 4, 2, 3, 6)), "got %s", output)

	// Negative axis.
	output = must1(GatherOp(MS(F16, 4, 5, 6), MS(I64, 7), -1))
	require.True(t, output.Equal(MS(F16, 4, 5, 7)), "got %s", output)

	// Scalar indices remove the axis.
	output = must1(GatherOp(MS(F32, 4, 5), MS(I32), 0))
	require.True(t, output.Equal(MS(F32, 5)), "got %s", output)

	// Rank property: replacing the indices dimensions back by the axis dimension recovers the input.
	input, indices := MS(I8, 2, 3, 4, 5), MS(I32, 6, 7)
	for axis := range input.Rank() {
		output = must1(GatherOp(input, indices, axis))
		require.Equal(t, input.Rank()-1+indices.Rank(), output.Rank())
		recovered := append([]int{}, output.Dimensions[:axis]...)
		recovered = append(recovered, input.Dimensions[axis])
		recovered = append(recovered, output.Dimensions[axis+indices.Rank():]...)
		require.Equal(t, input.Dimensions, recovered)
	}

	// Errors.
	_, err := GatherOp(MS(F32, 3, 2), MS(F32, 2), 0)
	require.Error(t, err, "float indices")
	_, err = GatherOp(MS(F32, 3, 2), MS(I8, 2), 0)
	require.Error(t, err, "int8 indices")
	_, err = GatherOp(MS(F32, 3, 2), MS(I32, 2), 2)
	require.Error(t, err, "axis out of range")
	_, err = GatherOp(MS(F32), MS(I32, 2), 0)
	require.Error(t, err, "scalar input")
}

func TestGatherElementsOp(t *testing.T) {
	output := must1(GatherElementsOp(MS(F32, 3, 2), MS(I64, 5, 2), 0))
	require.True(t, output.Equal(MS(F32, 5, 2)), "got %s", output)

	output = must1(GatherElementsOp(MS(F32, 3, 2, 4), MS(I32, 3, 2, 1), -1))
	require.True(t, output.Equal(MS(F32, 3, 2, 1)), "got %s", output)

	_, err := GatherElementsOp(MS(F32, 3, 2), MS(I32, 3, 2, 1), 0)
	require.Error(t, err, "rank mismatch")
	_, err = GatherElementsOp(MS(F32, 3, 2), MS(I32, 3, 3), 0)
	require.Error(t, err, "non-axis dimension mismatch")
	_, err = GatherElementsOp(MS(F32, 3, 2), MS(U8, 3, 2), 0)
	require.Error(t, err, "uint8 indices")
}

func TestReduceOp(t *testing.T) {
	input := MS(F32, 7, 2, 5, 5)
	axes := must1(ReduceAxes(input.Rank(), []int{1, 3}))
	output := must1(ReduceOp(input, axes, true))
	require.True(t, output.Equal(MS(F32, 7, 1, 5, 1)), "got %s", output)
	output = must1(ReduceOp(input, axes, false))
	require.True(t, output.Equal(MS(F32, 7, 5)), "got %s", output)

	input = MS(F16, 1, 3, 5, 5)
	axes = must1(ReduceAxes(input.Rank(), []int{0, 2, -1}))
	output = must1(ReduceOp(input, axes, false))
	require.True(t, output.Equal(MS(F16, 3)), "got %s", output)

	// All axes: with keepDims all dimensions become 1, without it the output is [1].
	axes = must1(ReduceAxes(input.Rank(), nil))
	require.Equal(t, []int{0, 1, 2, 3}, types.SortedElements(axes))
	output = must1(ReduceOp(input, axes, true))
	require.True(t, output.Equal(MS(F16, 1, 1, 1, 1)), "got %s", output)
	output = must1(ReduceOp(input, axes, false))
	require.True(t, output.Equal(MS(F16, 1)), "got %s", output)

	// Empty axes: nothing reduced.
	axes = must1(ReduceAxes(input.Rank(), []int{}))
	output = must1(ReduceOp(input, axes, false))
	require.True(t, output.Equal(input), "got %s", output)

	// Rank property.
	input = MS(I32, 2, 3, 4)
	for _, axesList := range [][]int{{0}, {1}, {2}, {0, 1}, {0, 2}, {1, 2}, {0, 1, 2}} {
		axes = must1(ReduceAxes(input.Rank(), axesList))
		require.Equal(t, input.Rank(), must1(ReduceOp(input, axes, true)).Rank())
		wantRank := max(input.Rank()-len(axesList), 1)
		require.Equal(t, wantRank, must1(ReduceOp(input, axes, false)).Rank())
	}

	_, err := ReduceAxes(4, []int{4})
	require.Error(t, err)
	_, err = ReduceOp(MS(F32, 2), types.SetWith(1), false)
	require.Error(t, err)
}

func TestWhereOp(t *testing.T) {
	output := must1(WhereOp(MS(F32, 2, 2, 5, 5), MS(F32, 2, 2, 5, 5), MS(Bool, 2, 2, 5, 5)))
	require.True(t, output.Equal(MS(F32, 2, 2, 5, 5)), "got %s", output)

	output = must1(WhereOp(MS(F32, 3, 1), MS(F32, 3, 5), MS(U8, 5)))
	require.True(t, output.Equal(MS(F32, 3, 5)), "got %s", output)

	output = must1(WhereOp(MS(I32), MS(I32, 4), MS(Bool, 2, 1)))
	require.True(t, output.Equal(MS(I32, 2, 4)), "got %s", output)

	_, err := WhereOp(MS(F32, 3, 4), MS(F32, 3, 5), MS(Bool, 3, 5))
	require.Error(t, err, "x/y mismatch")
	_, err = WhereOp(MS(F32, 3, 5), MS(F32, 3, 5), MS(Bool, 2, 5))
	require.Error(t, err, "condition mismatch")
	_, err = WhereOp(MS(F32, 3, 5), MS(F16, 3, 5), MS(Bool, 3, 5))
	require.Error(t, err, "dtype mismatch")
	_, err = WhereOp(MS(F32, 3, 5), MS(F32, 3, 5), MS(F32, 3, 5))
	require.Error(t, err, "float condition")
}

func TestMatMulOp(t *testing.T) {
	output := must1(MatMulOp(MS(F32, 2, 3), MS(F32, 3, 4), false, false))
	require.True(t, output.Equal(MS(F32, 2, 4)), "got %s", output)

	output = must1(MatMulOp(MS(F32, 3, 2), MS(F32, 4, 3), true, true))
	require.True(t, output.Equal(MS(F32, 2, 4)), "got %s", output)

	output = must1(MatMulOp(MS(F32, 5, 1, 2, 3), MS(F32, 7, 3, 4), false, false))
	require.True(t, output.Equal(MS(F32, 5, 7, 2, 4)), "got %s", output)

	_, err := MatMulOp(MS(F32, 2, 3), MS(F32, 2, 4), false, false)
	require.Error(t, err)
	_, err = MatMulOp(MS(F32, 3), MS(F32, 3, 4), false, false)
	require.Error(t, err)
	_, err = MatMulOp(MS(F32, 2, 3), MS(I32, 3, 4), false, false)
	require.Error(t, err)
}
