// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"flag"
	"os"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/types/shapes"
	"github.com/gomlx/opkernels/types/tensors"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func TestMain(m *testing.M) {
	klog.InitFlags(nil)
	flag.Parse()
	os.Exit(m.Run())
}

// testGraph creates unbound tensors as operands.
type testGraph struct {
	lastGUID int
}

func (g *testGraph) NextGUID() int {
	g.lastGUID++
	return g.lastGUID
}

func (g *testGraph) NewOperand(shape shapes.Shape) Operand {
	return tensors.New(g.NextGUID(), shape)
}

func (g *testGraph) tensor(dtype dtypes.DType, dims ...int) *tensors.Tensor {
	return tensors.New(g.NextGUID(), shapes.Make(dtype, dims...))
}

var MS = shapes.Make

func TestGather(t *testing.T) {
	g := &testGraph{}
	input := g.tensor(dtypes.Float32, 3, 2)
	indices := g.tensor(dtypes.Int64, 2, 2)
	op := must.M1(NewGather(g, input, indices, nil, 0))
	assert.True(t, MS(dtypes.Float32, 2, 2, 2).Equal(op.Output().Shape()))
	assert.Equal(t, backends.OpTypeGather, op.OpType())
	assert.Equal(t, dtypes.Float32, op.DType())
	assert.Equal(t, 0, op.Axis())
	assert.Equal(t, []Operand{input, indices}, op.Inputs())
	assert.Len(t, op.Outputs(), 1)
	assert.Equal(t, "Gather[4]([3,2],[2,2],axis=0,input=1,output=3)", op.String())
	assert.Equal(t, []int{int(backends.OpTypeGather), 3, 2, 2, 2, 0}, op.WorkloadVector())
	assert.Equal(t, []int{int(backends.OpTypeGather), 0}, op.OpAttrVector())

	// Negative axis is normalized.
	op = must.M1(NewGather(g, g.tensor(dtypes.Int8, 4, 5, 6), g.tensor(dtypes.Int32, 7), nil, -1))
	assert.Equal(t, 2, op.Axis())
	assert.Equal(t, []int{4, 5, 7}, op.Output().Shape().Dimensions)

	// Rank and recovery property.
	for axis := range 3 {
		inputShape := MS(dtypes.Float32, 2, 3, 4)
		indicesShape := MS(dtypes.Int32, 5, 1)
		op = must.M1(NewGather(g, tensors.New(0, inputShape), tensors.New(0, indicesShape), nil, axis))
		outDims := op.Output().Shape().Dimensions
		require.Len(t, outDims, inputShape.Rank()-1+indicesShape.Rank())
		require.Equal(t, indicesShape.Dimensions, outDims[axis:axis+indicesShape.Rank()])
		recovered := append(append(append([]int{}, outDims[:axis]...), inputShape.Dimensions[axis]), outDims[axis+indicesShape.Rank():]...)
		require.Equal(t, inputShape.Dimensions, recovered)
	}

	// Errors.
	_, err := NewGather(g, input, indices, nil, 2)
	require.Error(t, err)
	_, err = NewGather(g, input, g.tensor(dtypes.Float32, 2), nil, 0)
	require.Error(t, err)
	_, err = NewGather(g, input, nil, nil, 0)
	require.Error(t, err)
	_, err = NewGather(g, input, indices, g.tensor(dtypes.Float32, 2, 2), 0)
	require.Error(t, err)
	_, err = NewGather(nil, input, indices, nil, 0)
	require.Error(t, err)

	// Given output with the right shape is used.
	output := g.tensor(dtypes.Float32, 2, 2, 2)
	op = must.M1(NewGather(g, input, indices, output, 0))
	assert.Same(t, output, op.Output())
}

func TestGatherResidentIndices(t *testing.T) {
	g := &testGraph{}
	input := g.tensor(dtypes.Float32, 3, 2)
	_, err := NewGather(g, input, tensors.FromFlatDataAndDimensions(g.NextGUID(), []int64{0, 2, 1, 0}, 2, 2), nil, 0)
	require.NoError(t, err)

	// Index equal to the dimension of the axis.
	_, err = NewGather(g, input, tensors.FromFlatDataAndDimensions(g.NextGUID(), []int64{0, 3}, 2), nil, 0)
	require.Error(t, err)
	_, err = NewGather(g, input, tensors.FromFlatDataAndDimensions(g.NextGUID(), []int32{-1}, 1), nil, 0)
	require.Error(t, err)
	_, err = NewGather(g, input, tensors.FromFlatDataAndDimensions(g.NextGUID(), []int32{2}, 1), nil, 1)
	require.Error(t, err)

	// Indices not bound at construction are not checked.
	unbound := g.tensor(dtypes.Int32, 2)
	op := must.M1(NewGather(g, input, unbound, nil, 0))
	require.NoError(t, unbound.Bind(tensors.FromFlatDataAndDimensions(0, []int32{7, 7}, 2).Bytes()))
	assert.NotNil(t, op)
}

func TestGatherElements(t *testing.T) {
	g := &testGraph{}
	input := g.tensor(dtypes.Float64, 3, 2)
	indices := g.tensor(dtypes.Int32, 5, 2)
	op := must.M1(NewGatherElements(g, input, indices, nil, 0))
	assert.Equal(t, backends.OpTypeGatherElements, op.OpType())
	assert.True(t, MS(dtypes.Float64, 5, 2).Equal(op.Output().Shape()))
	assert.Equal(t, "GatherElements[4]([3,2],[5,2],axis=0,input=1,output=3)", op.String())

	op = must.M1(NewGatherElements(g, g.tensor(dtypes.Uint8, 2, 3, 4), g.tensor(dtypes.Int64, 2, 3, 1), nil, -1))
	assert.Equal(t, 2, op.Axis())
	assert.Equal(t, []int{2, 3, 1}, op.Output().Shape().Dimensions)

	// Different rank.
	_, err := NewGatherElements(g, input, g.tensor(dtypes.Int32, 2), nil, 0)
	require.Error(t, err)
	// Different dimension off the axis.
	_, err = NewGatherElements(g, input, g.tensor(dtypes.Int32, 3, 3), nil, 0)
	require.Error(t, err)
	// Out-of-range resident index.
	_, err = NewGatherElements(g, input, tensors.FromFlatDataAndDimensions(g.NextGUID(), []int32{0, 3}, 1, 2), nil, 0)
	require.Error(t, err)
}

func TestReduce(t *testing.T) {
	g := &testGraph{}
	input := g.tensor(dtypes.Float32, 7, 2, 5, 5)
	op := must.M1(NewReduceSum(g, input, nil, []int{1, 3}, true))
	assert.Equal(t, []int{7, 1, 5, 1}, op.Output().Shape().Dimensions)
	assert.Equal(t, ReduceSum, op.Kind())
	assert.Equal(t, backends.OpTypeReduceSum, op.OpType())
	assert.Equal(t, "ReduceSum[3]([7,2,5,5],axes=[1,3],keepDims=1,input=1,output=2)", op.String())
	assert.Equal(t, []int{int(backends.OpTypeReduceSum), 7, 2, 5, 5, 1, 1, 3}, op.WorkloadVector())
	assert.Equal(t, []int{int(backends.OpTypeReduceSum), 1, 1, 3}, op.OpAttrVector())

	op = must.M1(NewReduceMax(g, g.tensor(dtypes.Float32, 1, 3, 5, 5), nil, []int{0, 2, 3}, false))
	assert.Equal(t, []int{3}, op.Output().Shape().Dimensions)
	assert.Equal(t, dtypes.Float32, op.DType())

	// Default: all axes.
	op = must.M1(NewReduceMean(g, input, nil, nil, false))
	assert.Equal(t, []int{1}, op.Output().Shape().Dimensions)
	assert.Equal(t, []int{0, 1, 2, 3}, op.Axes())
	op = must.M1(NewReduceMin(g, input, nil, nil, true))
	assert.Equal(t, []int{1, 1, 1, 1}, op.Output().Shape().Dimensions)

	// Negative and repeated axes.
	op = must.M1(NewReduce(g, ReduceSum, input, nil, []int{-1, 3, 0}, false))
	assert.Equal(t, []int{0, 3}, op.Axes())
	assert.Equal(t, []int{2, 5}, op.Output().Shape().Dimensions)

	// Rank property over all subsets of axes.
	for mask := range 1 << 4 {
		var axes []int
		for axis := range 4 {
			if mask&(1<<axis) != 0 {
				axes = append(axes, axis)
			}
		}
		if axes == nil {
			continue
		}
		for _, keepDims := range []bool{true, false} {
			op = must.M1(NewReduce(g, ReduceMax, input, nil, axes, keepDims))
			rank := op.Output().Shape().Rank()
			switch {
			case keepDims:
				require.Equal(t, 4, rank)
			case len(axes) == 4:
				require.Equal(t, []int{1}, op.Output().Shape().Dimensions)
			default:
				require.Equal(t, 4-len(axes), rank)
			}
		}
	}

	_, err := NewReduceSum(g, input, nil, []int{4}, false)
	require.Error(t, err)
	_, err = NewReduce(g, ReduceKind(17), input, nil, nil, false)
	require.Error(t, err)
	_, err = NewReduceSum(g, nil, nil, nil, false)
	require.Error(t, err)
}

func TestReduceKind(t *testing.T) {
	for _, kind := range ReduceKinds() {
		require.True(t, kind.OpType().IsReduce())
		got := must.M1(ReduceKindFor(kind.OpType()))
		require.Equal(t, kind, got)
		entryPoints := kind.EntryPoints()
		require.NotNil(t, entryPoints.Create)
		require.NotNil(t, entryPoints.WorkspaceSize)
		require.NotNil(t, entryPoints.Compute)
		require.NotNil(t, entryPoints.Destroy)
	}
	assert.Equal(t, "ReduceMean", ReduceMean.String())
	_, err := ReduceKindFor(backends.OpTypeWhere)
	require.Error(t, err)
	require.Panics(t, func() { _ = ReduceKind(-1).OpType() })
}

func TestWhere(t *testing.T) {
	g := &testGraph{}
	x := g.tensor(dtypes.Float32, 2, 2, 5, 5)
	y := g.tensor(dtypes.Float32, 2, 2, 5, 5)
	cond := g.tensor(dtypes.Bool, 2, 2, 5, 5)
	op := must.M1(NewWhere(g, x, y, cond, nil))
	assert.Equal(t, []int{2, 2, 5, 5}, op.Output().Shape().Dimensions)
	assert.Equal(t, "Where[5]([2,2,5,5],inputX=1,inputY=2,condition=3,output=4)", op.String())
	assert.Equal(t, []int{int(backends.OpTypeWhere), 2, 2, 5, 5}, op.WorkloadVector())
	assert.Equal(t, []int{int(backends.OpTypeWhere)}, op.OpAttrVector())

	// Broadcasting: 1 stretches to n.
	op = must.M1(NewWhere(g, g.tensor(dtypes.Int32, 3, 1), g.tensor(dtypes.Int32, 4), g.tensor(dtypes.Uint8, 2, 1, 1), nil))
	assert.Equal(t, []int{2, 3, 4}, op.Output().Shape().Dimensions)

	_, err := NewWhere(g, g.tensor(dtypes.Int32, 3), g.tensor(dtypes.Int32, 4), cond, nil)
	require.Error(t, err)
	_, err = NewWhere(g, x, g.tensor(dtypes.Float64, 2, 2, 5, 5), cond, nil)
	require.Error(t, err)
	_, err = NewWhere(g, x, y, g.tensor(dtypes.Float32, 2, 2, 5, 5), nil)
	require.Error(t, err)
}

func TestMatMul(t *testing.T) {
	g := &testGraph{}
	a := g.tensor(dtypes.Float32, 2, 3)
	b := g.tensor(dtypes.Float32, 3, 4)
	op := must.M1(NewMatMul(g, a, b, nil, false, false, ActNone))
	assert.Equal(t, []int{2, 4}, op.Output().Shape().Dimensions)
	assert.Equal(t, 1, op.Batch())
	assert.Equal(t, 2, op.M())
	assert.Equal(t, 4, op.N())
	assert.Equal(t, 3, op.K())
	assert.Equal(t, "MatMul[4]([2,3],[3,4],transA=0,transB=0,act=None,input=1,output=3)", op.String())
	assert.Equal(t, []int{int(backends.OpTypeMatMul), 1, 2, 4, 3, 0, 0, 0}, op.WorkloadVector())

	op = must.M1(NewMatMul(g, g.tensor(dtypes.Float32, 5, 3, 2), g.tensor(dtypes.Float32, 1, 4, 3), nil, true, true, ActRelu))
	assert.Equal(t, []int{5, 2, 4}, op.Output().Shape().Dimensions)
	assert.Equal(t, 5, op.Batch())
	assert.Equal(t, 3, op.K())
	assert.True(t, op.TransA())
	assert.True(t, op.TransB())
	assert.Equal(t, ActRelu, op.Act())
	assert.Equal(t, []int{int(backends.OpTypeMatMul), 1, 1, 1}, op.OpAttrVector())

	_, err := NewMatMul(g, a, a, nil, false, false, ActNone)
	require.Error(t, err)
	_, err = NewMatMul(g, a, b, nil, false, false, ActType(9))
	require.Error(t, err)

	// MatMul has no native descriptor.
	_, isBinder := Operator(op).(NativeBinder)
	assert.False(t, isBinder)
	op.Finalize()
}
