// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loops

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/types/tensors"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// Splitter runs fn over ranges that exactly cover [0, n), possibly in parallel, and returns when all are done.
type Splitter func(n int, fn func(start, end int))

// Sequential is a Splitter that runs fn once over the whole range.
func Sequential(n int, fn func(start, end int)) {
	if n > 0 {
		fn(0, n)
	}
}

// ElementSize returns the number of bytes of one element of the dtype in a buffer.
func ElementSize(dtype dtypes.DType) int {
	return int(dtype.Memory())
}

// runSplit runs fn over the ranges given by split, and returns the first error reported by any range.
func runSplit(split Splitter, n int, fn func(start, end int) error) error {
	if split == nil {
		split = Sequential
	}
	errs := make(chan error, 1)
	split(n, func(start, end int) {
		if err := fn(start, end); err != nil {
			select {
			case errs <- err:
			default:
			}
		}
	})
	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}

// GatherBuffers runs Gather with the indices buffer interpreted according to indicesDType (Int32 or Int64).
func GatherBuffers(output, input, indices []byte, inputDims []int, numIndices, axis int,
	inputDType, indicesDType dtypes.DType, split Splitter) error {
	elemSize := ElementSize(inputDType)
	switch indicesDType {
	case dtypes.Int32:
		return Gather(output, input, inputDims, axis, tensors.FlatBytes[int32](indicesDType, indices, numIndices), elemSize, split)
	case dtypes.Int64:
		return Gather(output, input, inputDims, axis, tensors.FlatBytes[int64](indicesDType, indices, numIndices), elemSize, split)
	}
	return errors.Errorf("Gather: indices dtype %s not supported", indicesDType)
}

// GatherElementsBuffers runs GatherElements with the indices buffer interpreted according to indicesDType.
func GatherElementsBuffers(output, input, indices []byte, inputDims, indicesDims []int, axis int,
	inputDType, indicesDType dtypes.DType, split Splitter) error {
	elemSize := ElementSize(inputDType)
	numIndices := 1
	for _, dim := range indicesDims {
		numIndices *= dim
	}
	switch indicesDType {
	case dtypes.Int32:
		return GatherElements(output, input, inputDims, indicesDims, axis,
			tensors.FlatBytes[int32](indicesDType, indices, numIndices), elemSize, split)
	case dtypes.Int64:
		return GatherElements(output, input, inputDims, indicesDims, axis,
			tensors.FlatBytes[int64](indicesDType, indices, numIndices), elemSize, split)
	}
	return errors.Errorf("GatherElements: indices dtype %s not supported", indicesDType)
}

// ValidateIndexBuffer checks that the numIndices indices stored in the buffer (Int32 or Int64) are in [0, dim).
func ValidateIndexBuffer(indices []byte, indicesDType dtypes.DType, numIndices, dim int) error {
	switch indicesDType {
	case dtypes.Int32:
		return ValidateIndices(tensors.FlatBytes[int32](indicesDType, indices, numIndices), dim)
	case dtypes.Int64:
		return ValidateIndices(tensors.FlatBytes[int64](indicesDType, indices, numIndices), dim)
	}
	return errors.Errorf("indices dtype %s not supported", indicesDType)
}

// ReduceScratchSize returns the number of scratch bytes ReduceBuffers needs: half precision dtypes are
// reduced in float32, and need space for the converted input and output. Other dtypes need none.
func ReduceScratchSize(dtype dtypes.DType, p *ReducePlan) int {
	if dtype == dtypes.Float16 || dtype == dtypes.BFloat16 {
		return (p.InputSize + p.OutputSize) * 4
	}
	return 0
}

// ReduceBuffers reduces the raw input buffer of the given dtype into output, following the plan.
// scratch must have at least ReduceScratchSize bytes, 4-byte aligned.
// The output is split into ranges with split: the result doesn't depend on how it is split.
func ReduceBuffers(p *ReducePlan, op backends.OpType, dtype dtypes.DType, output, input, scratch []byte, split Splitter) error {
	if split == nil {
		split = Sequential
	}
	switch dtype {
	case dtypes.Int8:
		return reduceTyped[int8](p, op, dtype, output, input, split)
	case dtypes.Int16:
		return reduceTyped[int16](p, op, dtype, output, input, split)
	case dtypes.Int32:
		return reduceTyped[int32](p, op, dtype, output, input, split)
	case dtypes.Int64:
		return reduceTyped[int64](p, op, dtype, output, input, split)
	case dtypes.Uint8:
		return reduceTyped[uint8](p, op, dtype, output, input, split)
	case dtypes.Uint16:
		return reduceTyped[uint16](p, op, dtype, output, input, split)
	case dtypes.Uint32:
		return reduceTyped[uint32](p, op, dtype, output, input, split)
	case dtypes.Uint64:
		return reduceTyped[uint64](p, op, dtype, output, input, split)
	case dtypes.Float32:
		return reduceTyped[float32](p, op, dtype, output, input, split)
	case dtypes.Float64:
		return reduceTyped[float64](p, op, dtype, output, input, split)
	case dtypes.Float16:
		return reduceHalf[float16.Float16](p, op, dtype, output, input, scratch, split)
	case dtypes.BFloat16:
		return reduceHalf[bfloat16.BFloat16](p, op, dtype, output, input, scratch, split)
	}
	return errors.Errorf("Reduce: dtype %s not supported", dtype)
}

type numberSupported interface {
	Number
	dtypes.Supported
}

func reduceTyped[T numberSupported](p *ReducePlan, op backends.OpType, dtype dtypes.DType, output, input []byte, split Splitter) error {
	outFlat := tensors.FlatBytes[T](dtype, output, p.OutputSize)
	inFlat := tensors.FlatBytes[T](dtype, input, p.InputSize)
	return splitReduce(p, op, outFlat, inFlat, split)
}

func reduceHalf[T interface {
	Half
	dtypes.Supported
}](p *ReducePlan, op backends.OpType, dtype dtypes.DType, output, input, scratch []byte, split Splitter) error {
	if required := ReduceScratchSize(dtype, p); len(scratch) < required {
		return errors.Errorf("Reduce(%s): scratch buffer has %d bytes, wanted %d", dtype, len(scratch), required)
	}
	outFlat := tensors.FlatBytes[T](dtype, output, p.OutputSize)
	inFlat := tensors.FlatBytes[T](dtype, input, p.InputSize)
	scratchIn := tensors.FlatBytes[float32](dtypes.Float32, scratch[:p.InputSize*4], p.InputSize)
	scratchOut := tensors.FlatBytes[float32](dtypes.Float32, scratch[p.InputSize*4:], p.OutputSize)
	ToFloat32(scratchIn, inFlat)
	if err := splitReduce(p, op, scratchOut, scratchIn, split); err != nil {
		return err
	}
	FromFloat32(outFlat, scratchOut)
	return nil
}

func splitReduce[T Number](p *ReducePlan, op backends.OpType, output, input []T, split Splitter) error {
	return runSplit(split, p.OutputSize, func(start, end int) error {
		return Reduce(p, op, output, input, start, end)
	})
}
