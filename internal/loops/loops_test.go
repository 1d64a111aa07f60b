// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loops

import (
	"math"
	"sync"
	"testing"
	"unsafe"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/types"
	"github.com/gomlx/opkernels/types/tensors"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// asBytes returns a byte view of a slice.
func asBytes[T any](flat []T) []byte {
	var v T
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(flat))), len(flat)*int(unsafe.Sizeof(v)))
}

func TestGather(t *testing.T) {
	// input [3, 2], indices [2, 2] along axis 0 -> output [2, 2, 2].
	input := []float32{0, 1, 2, 3, 4, 5}
	indices := []int32{0, 1, 1, 2}
	output := make([]float32, 8)
	require.NoError(t, Gather(asBytes(output), asBytes(input), []int{3, 2}, 0, indices, 4, nil))
	require.Equal(t, []float32{0, 1, 2, 3, 2, 3, 4, 5}, output)

	// Along axis 1, with int64 indices: input [3, 2], indices [2] -> output [3, 2].
	output = make([]float32, 6)
	require.NoError(t, Gather(asBytes(output), asBytes(input), []int{3, 2}, 1, []int64{1, 0}, 4, nil))
	require.Equal(t, []float32{1, 0, 3, 2, 5, 4}, output)

	// Out-of-range indices.
	require.Error(t, Gather(asBytes(output), asBytes(input), []int{3, 2}, 1, []int64{2, 0}, 4, nil))
	require.Error(t, Gather(asBytes(output), asBytes(input), []int{3, 2}, 1, []int64{-1, 0}, 4, nil))
	// Wrong output size.
	require.Error(t, Gather(asBytes(output[:4]), asBytes(input), []int{3, 2}, 1, []int64{0, 0}, 4, nil))
}

func TestGatherElements(t *testing.T) {
	// ONNX example: data [[1, 2], [3, 4]], indices [[0, 0], [1, 0]], axis 1 -> [[1, 1], [4, 3]].
	input := []int32{1, 2, 3, 4}
	output := make([]int32, 4)
	require.NoError(t, GatherElements(asBytes(output), asBytes(input), []int{2, 2}, []int{2, 2}, 1, []int64{0, 0, 1, 0}, 4, nil))
	require.Equal(t, []int32{1, 1, 4, 3}, output)

	// ONNX example: data [3, 3], indices [2, 3] along axis 0.
	input = []int32{1, 2, 3, 4, 5, 6, 7, 8, 9}
	output = make([]int32, 6)
	require.NoError(t, GatherElements(asBytes(output), asBytes(input), []int{3, 3}, []int{2, 3}, 0, []int32{1, 2, 0, 2, 0, 0}, 4, nil))
	require.Equal(t, []int32{4, 8, 3, 7, 2, 3}, output)

	require.Error(t, GatherElements(asBytes(output), asBytes(input), []int{3, 3}, []int{2, 3}, 0, []int32{1, 2, 3, 2, 0, 0}, 4, nil))
}

func TestValidateIndices(t *testing.T) {
	require.NoError(t, ValidateIndices([]int32{0, 1, 2}, 3))
	require.Error(t, ValidateIndices([]int32{0, 3}, 3))
	require.Error(t, ValidateIndices([]int64{-1}, 3))
}

func TestWhere(t *testing.T) {
	x := []float32{0, 1, 2, 3, 4, 5}
	y := []float32{10, 11, 12, 13, 14, 15}
	condition := []bool{true, false, true, false, false, true}
	output := make([]float32, 6)
	dims := []int{2, 3}
	require.NoError(t, Where(asBytes(output), asBytes(x), asBytes(y), asBytes(condition), dims, dims, dims, dims, 4, nil))
	require.Equal(t, []float32{0, 11, 2, 13, 14, 5}, output)

	// Broadcasting: x [2, 1], y scalar, condition (uint8) [3] -> output [2, 3].
	x = []float32{1, 2}
	y = []float32{-1}
	conditionU8 := []uint8{1, 0, 7}
	require.NoError(t, Where(asBytes(output), asBytes(x), asBytes(y), conditionU8, []int{2, 1}, nil, []int{3}, dims, 4, nil))
	require.Equal(t, []float32{1, -1, 1, 2, -1, 2}, output)
}

// reversedChunks is a Splitter that calls fn on ranges of chunk elements, last range first, each in its own
// goroutine.
func reversedChunks(chunk int) Splitter {
	return func(n int, fn func(start, end int)) {
		var wg sync.WaitGroup
		for start := ((n - 1) / chunk) * chunk; start >= 0; start -= chunk {
			wg.Add(1)
			go func(start int) {
				defer wg.Done()
				fn(start, min(start+chunk, n))
			}(start)
		}
		wg.Wait()
	}
}

func TestSplitRanges(t *testing.T) {
	// input [4, 5, 3] gathered along axis 1, GatherElements along axis 2, and a broadcast Where: the outputs
	// must not depend on how the output ranges are split.
	inputDims := []int{4, 5, 3}
	input := make([]float32, 60)
	for ii := range input {
		input[ii] = float32(ii)
	}
	indices := []int64{4, 0, 2, 2, 1, 3, 0}
	elemIndices := make([]int32, 60)
	for ii := range elemIndices {
		elemIndices[ii] = int32((ii * 7) % 3)
	}
	condition := []uint8{1, 0, 0, 1, 1}
	y := []float32{-1, -2, -3}
	for _, chunk := range []int{1, 2, 7, 1000} {
		split := reversedChunks(chunk)
		want := make([]float32, 4*7*3)
		got := make([]float32, 4*7*3)
		require.NoError(t, Gather(asBytes(want), asBytes(input), inputDims, 1, indices, 4, nil))
		require.NoError(t, Gather(asBytes(got), asBytes(input), inputDims, 1, indices, 4, split))
		require.Equal(t, want, got, "Gather split in chunks of %d", chunk)

		want = make([]float32, 60)
		got = make([]float32, 60)
		require.NoError(t, GatherElements(asBytes(want), asBytes(input), inputDims, inputDims, 2, elemIndices, 4, nil))
		require.NoError(t, GatherElements(asBytes(got), asBytes(input), inputDims, inputDims, 2, elemIndices, 4, split))
		require.Equal(t, want, got, "GatherElements split in chunks of %d", chunk)

		require.NoError(t, Where(asBytes(want), asBytes(input), asBytes(y), condition,
			inputDims, []int{3}, []int{5, 1}, inputDims, 4, nil))
		require.NoError(t, Where(asBytes(got), asBytes(input), asBytes(y), condition,
			inputDims, []int{3}, []int{5, 1}, inputDims, 4, split))
		require.Equal(t, want, got, "Where split in chunks of %d", chunk)
		require.Equal(t, float32(-2), got[4])
		require.Equal(t, float32(9), got[9])
	}

	// An out-of-range index in any of the ranges is reported.
	output := make([]float32, 4*7*3)
	badIndices := []int64{4, 0, 2, 2, 1, 3, 5}
	require.ErrorContains(t, Gather(asBytes(output), asBytes(input), inputDims, 1, badIndices, 4, reversedChunks(3)),
		"out of range")
}

func TestReduce(t *testing.T) {
	// input [2, 3, 2] = 0..11.
	input := make([]int32, 12)
	for ii := range input {
		input[ii] = int32(ii)
	}
	dims := []int{2, 3, 2}

	plan := NewReducePlan(dims, types.SetWith(1))
	require.Equal(t, 4, plan.OutputSize)
	require.Equal(t, 3, plan.Count())
	output := make([]int32, 4)
	require.NoError(t, Reduce(plan, backends.OpTypeReduceSum, output, input, 0, 4))
	require.Equal(t, []int32{6, 9, 24, 27}, output)
	require.NoError(t, Reduce(plan, backends.OpTypeReduceMax, output, input, 0, 4))
	require.Equal(t, []int32{4, 5, 10, 11}, output)
	require.NoError(t, Reduce(plan, backends.OpTypeReduceMin, output, input, 0, 4))
	require.Equal(t, []int32{0, 1, 6, 7}, output)
	require.NoError(t, Reduce(plan, backends.OpTypeReduceMean, output, input, 0, 4))
	require.Equal(t, []int32{2, 3, 8, 9}, output)

	// Partial ranges produce the same results.
	split := make([]int32, 4)
	require.NoError(t, Reduce(plan, backends.OpTypeReduceSum, split, input, 0, 1))
	require.NoError(t, Reduce(plan, backends.OpTypeReduceSum, split, input, 1, 4))
	require.Equal(t, []int32{6, 9, 24, 27}, split)

	// Axes {0, 2}.
	plan = NewReducePlan(dims, types.SetWith(0, 2))
	output = make([]int32, 3)
	require.NoError(t, Reduce(plan, backends.OpTypeReduceSum, output, input, 0, 3))
	require.Equal(t, []int32{0 + 1 + 6 + 7, 2 + 3 + 8 + 9, 4 + 5 + 10 + 11}, output)

	// All axes, float mean.
	floats := []float64{1, 2, 3, 4}
	plan = NewReducePlan([]int{2, 2}, types.SetWith(0, 1))
	floatOut := make([]float64, 1)
	require.NoError(t, Reduce(plan, backends.OpTypeReduceMean, floatOut, floats, 0, 1))
	require.Equal(t, []float64{2.5}, floatOut)

	// Empty reduced axis.
	plan = NewReducePlan([]int{2, 0}, types.SetWith(1))
	output = []int32{7, 7}
	require.NoError(t, Reduce(plan, backends.OpTypeReduceMax, output, []int32{}, 0, 2))
	require.Equal(t, []int32{0, 0}, output)

	// Errors.
	require.Error(t, Reduce(plan, backends.OpTypeGather, output, []int32{}, 0, 2))
	require.Error(t, Reduce(plan, backends.OpTypeReduceSum, output, []int32{}, 0, 3))
}

func TestReduceNaN(t *testing.T) {
	nan := float32(math.NaN())
	// input [3, 3], NaN in the first, middle and last positions of each row.
	input := []float32{
		nan, 1, 2,
		3, nan, 5,
		6, 7, nan,
	}
	plan := NewReducePlan([]int{3, 3}, types.SetWith(1))
	for _, op := range []backends.OpType{backends.OpTypeReduceMax, backends.OpTypeReduceMin, backends.OpTypeReduceSum} {
		output := make([]float32, 3)
		require.NoError(t, Reduce(plan, op, output, input, 0, 3))
		for ii, v := range output {
			require.True(t, math.IsNaN(float64(v)), "%s: output[%d]=%g, wanted NaN", op, ii, v)
		}
	}

	// Rows without NaN are unaffected. Half precision goes through float32.
	halfNaN := float16.NaN()
	halfInput := []float16.Float16{
		float16.Fromfloat32(1), halfNaN, float16.Fromfloat32(2),
		float16.Fromfloat32(4), float16.Fromfloat32(-1), float16.Fromfloat32(3),
	}
	halfPlan := NewReducePlan([]int{2, 3}, types.SetWith(1))
	halfOutput := make([]float16.Float16, 2)
	scratch := tensors.AllocateBytes(ReduceScratchSize(dtypes.Float16, halfPlan))
	require.NoError(t, ReduceBuffers(halfPlan, backends.OpTypeReduceMin, dtypes.Float16,
		asBytes(halfOutput), asBytes(halfInput), scratch, nil))
	require.True(t, halfOutput[0].IsNaN())
	require.Equal(t, float32(-1), halfOutput[1].Float32())
}

func TestHalfConversion(t *testing.T) {
	f16 := []float16.Float16{float16.Fromfloat32(1.5), float16.Fromfloat32(-2)}
	scratch := make([]float32, 2)
	ToFloat32(scratch, f16)
	require.Equal(t, []float32{1.5, -2}, scratch)

	bf16 := make([]bfloat16.BFloat16, 2)
	FromFloat32(bf16, scratch)
	require.Equal(t, bfloat16.FromFloat32(1.5), bf16[0])
	require.Equal(t, float32(-2), bf16[1].Float32())
}

func TestMatMul(t *testing.T) {
	// [2, 3] x [3, 2]
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{7, 8, 9, 10, 11, 12}
	c := make([]float32, 4)
	MatMul(c, a, b, 2, 2, 3)
	require.Equal(t, []float32{58, 64, 139, 154}, c)

	aU := []uint32{1, 2, 3, 4}
	bU := []uint32{1, 0, 0, 1}
	cU := []uint32{99, 99, 99, 99}
	MatMul(cU, aU, bU, 2, 2, 2)
	require.Equal(t, []uint32{1, 2, 3, 4}, cU)
}
