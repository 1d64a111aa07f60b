// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loops

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/types"
	"github.com/gomlx/opkernels/types/shapes"
	"github.com/gomlx/opkernels/types/tensors"
	"github.com/stretchr/testify/require"
)

// chunked splits in ranges of 1 element, in reverse order.
func chunked(n int, fn func(start, end int)) {
	for ii := n - 1; ii >= 0; ii-- {
		fn(ii, ii+1)
	}
}

func TestReduceBuffers(t *testing.T) {
	dims := []int{1, 3, 5, 5}
	axes := types.SetWith(0, 2, 3)
	plan := NewReducePlan(dims, axes)
	for _, dtype := range []dtypes.DType{dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Int64, dtypes.Uint8} {
		for _, op := range []backends.OpType{backends.OpTypeReduceMean, backends.OpTypeReduceMax, backends.OpTypeReduceMin, backends.OpTypeReduceSum} {
			input := tensors.Fill(tensors.New(0, shapes.Make(dtype, dims...)), func(i int) float64 { return float64(i % 50) })
			sequential := tensors.New(1, shapes.Make(dtype, 3)).Allocate()
			split := tensors.New(2, shapes.Make(dtype, 3)).Allocate()
			scratch := tensors.AllocateBytes(ReduceScratchSize(dtype, plan))
			require.NoError(t, ReduceBuffers(plan, op, dtype, sequential.Bytes(), input.Bytes(), scratch, nil))
			require.NoError(t, ReduceBuffers(plan, op, dtype, split.Bytes(), input.Bytes(), scratch, chunked))
			require.True(t, sequential.Equal(split), "dtype=%s, op=%s", dtype, op)

			if op == backends.OpTypeReduceMax {
				// Channel c holds values 25c..25c+24, modulo 50.
				require.Equal(t, []float64{24, 49, 24}, tensors.Values(sequential), "dtype=%s", dtype)
			}
		}
	}

	// Missing scratch for half precision.
	input := tensors.FromShape(0, shapes.Make(dtypes.Float16, dims...))
	output := tensors.FromShape(1, shapes.Make(dtypes.Float16, 3))
	require.Equal(t, (75+3)*4, ReduceScratchSize(dtypes.Float16, plan))
	require.Equal(t, 0, ReduceScratchSize(dtypes.Float32, plan))
	require.Error(t, ReduceBuffers(plan, backends.OpTypeReduceSum, dtypes.Float16, output.Bytes(), input.Bytes(), nil, nil))
	require.Error(t, ReduceBuffers(plan, backends.OpTypeReduceSum, dtypes.Bool, output.Bytes(), input.Bytes(), nil, nil))
}

func TestGatherBuffers(t *testing.T) {
	input := tensors.Fill(tensors.New(0, shapes.Make(dtypes.Float16, 3, 2)), tensors.Incremental)
	indices := tensors.FromFlatDataAndDimensions(1, []int64{2, 0}, 2)
	output := tensors.FromShape(2, shapes.Make(dtypes.Float16, 2, 2))
	require.NoError(t, GatherBuffers(output.Bytes(), input.Bytes(), indices.Bytes(), []int{3, 2}, 2, 0, dtypes.Float16, dtypes.Int64, nil))
	require.Equal(t, []float64{4, 5, 0, 1}, tensors.Values(output))
	require.Error(t, GatherBuffers(output.Bytes(), input.Bytes(), indices.Bytes(), []int{3, 2}, 2, 0, dtypes.Float16, dtypes.Float32, nil))

	elemIndices := tensors.FromFlatDataAndDimensions(3, []int32{1, 0, 2, 2}, 2, 2)
	elemOutput := tensors.FromShape(4, shapes.Make(dtypes.Float16, 2, 2))
	require.NoError(t, GatherElementsBuffers(elemOutput.Bytes(), input.Bytes(), elemIndices.Bytes(), []int{3, 2}, []int{2, 2}, 0,
		dtypes.Float16, dtypes.Int32, nil))
	require.Equal(t, []float64{2, 1, 4, 5}, tensors.Values(elemOutput))
}

func TestValidateIndexBuffer(t *testing.T) {
	indices := tensors.FromFlatDataAndDimensions(0, []int32{0, 2, 1}, 3)
	require.NoError(t, ValidateIndexBuffer(indices.Bytes(), dtypes.Int32, 3, 3))
	require.Error(t, ValidateIndexBuffer(indices.Bytes(), dtypes.Int32, 3, 2))
	negative := tensors.FromFlatDataAndDimensions(1, []int64{-1}, 1)
	require.Error(t, ValidateIndexBuffer(negative.Bytes(), dtypes.Int64, 1, 10))
	require.Error(t, ValidateIndexBuffer(indices.Bytes(), dtypes.Uint8, 3, 3))
}
