// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/graph"
	"github.com/gomlx/opkernels/ops"
	"github.com/gomlx/opkernels/types/shapes"
	"github.com/gomlx/opkernels/types/tensors"
	"github.com/pkg/errors"
)

// workload builds one operator, with its inputs filled, in a graph.
type workload struct {
	name  string
	build func(g *graph.Graph, dtype dtypes.DType) (ops.Operator, error)
}

// inputGenerator fills inputs with small values, negative ones included, that are exact in all dtypes.
func inputGenerator(i int) float64 {
	return float64((i*7)%23) - 11
}

func filled(g *graph.Graph, dtype dtypes.DType, dims ...int) *tensors.Tensor {
	return tensors.Fill(g.AddTensor(shapes.Make(dtype, dims...)).Allocate(), inputGenerator)
}

var workloads = []workload{
	{"gather", func(g *graph.Graph, dtype dtypes.DType) (ops.Operator, error) {
		indices := tensors.FromFlatDataAndDimensions(g.NextGUID(), []int32{2, 0, 1, 1}, 2, 2)
		return ops.NewGather(g, filled(g, dtype, 3, 2), indices, nil, 0)
	}},
	{"gather_large", func(g *graph.Graph, dtype dtypes.DType) (ops.Operator, error) {
		flat := make([]int64, 128)
		for ii := range flat {
			flat[ii] = int64((ii * 31) % 64)
		}
		indices := tensors.FromFlatDataAndDimensions(g.NextGUID(), flat, 128)
		return ops.NewGather(g, filled(g, dtype, 16, 64, 8), indices, nil, 1)
	}},
	{"gather_elements", func(g *graph.Graph, dtype dtypes.DType) (ops.Operator, error) {
		indices := tensors.FromFlatDataAndDimensions(g.NextGUID(), []int64{1, 0, 2, 2, 0, 1}, 3, 2)
		return ops.NewGatherElements(g, filled(g, dtype, 3, 2), indices, nil, 0)
	}},
	{"reduce_sum", func(g *graph.Graph, dtype dtypes.DType) (ops.Operator, error) {
		return ops.NewReduceSum(g, filled(g, dtype, 7, 2, 5, 5), nil, []int{1, 3}, true)
	}},
	{"reduce_max", func(g *graph.Graph, dtype dtypes.DType) (ops.Operator, error) {
		return ops.NewReduceMax(g, filled(g, dtype, 1, 3, 5, 5), nil, []int{0, 2, 3}, false)
	}},
	{"reduce_min", func(g *graph.Graph, dtype dtypes.DType) (ops.Operator, error) {
		return ops.NewReduceMin(g, filled(g, dtype, 64, 256), nil, []int{0}, false)
	}},
	{"reduce_mean", func(g *graph.Graph, dtype dtypes.DType) (ops.Operator, error) {
		return ops.NewReduceMean(g, filled(g, dtype, 32, 16, 16), nil, nil, false)
	}},
	{"where", func(g *graph.Graph, dtype dtypes.DType) (ops.Operator, error) {
		cond := tensors.Fill(g.AddTensor(shapes.Make(dtypes.Bool, 2, 2, 5, 5)).Allocate(),
			func(i int) float64 { return float64(i % 3) })
		return ops.NewWhere(g, filled(g, dtype, 2, 2, 5, 5), filled(g, dtype, 2, 2, 5, 5), cond, nil)
	}},
	{"where_broadcast", func(g *graph.Graph, dtype dtypes.DType) (ops.Operator, error) {
		cond := tensors.FromFlatDataAndDimensions(g.NextGUID(), []uint8{0, 1, 1, 0}, 4, 1)
		return ops.NewWhere(g, filled(g, dtype, 4, 32), filled(g, dtype, 32), cond, nil)
	}},
	{"matmul", func(g *graph.Graph, dtype dtypes.DType) (ops.Operator, error) {
		return ops.NewMatMul(g, filled(g, dtype, 64, 32), filled(g, dtype, 32, 48), nil, false, false, ops.ActNone)
	}},
}

// parseDTypes parses a comma-separated list of dtype names.
func parseDTypes(list string) ([]dtypes.DType, error) {
	var result []dtypes.DType
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		dtype, err := dtypes.DTypeString(name)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid dtype %q", name)
		}
		result = append(result, dtype)
	}
	if len(result) == 0 {
		return nil, errors.New("no dtypes given")
	}
	return result, nil
}
