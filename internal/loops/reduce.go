// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loops

import (
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/types"
	"github.com/gomlx/opkernels/types/shapes"
	"github.com/pkg/errors"
)

// ReducePlan holds the pre-computed offsets to reduce an input over a set of axes.
//
// Output elements are enumerated in row-major order of the kept (non-reduced) axes, which is the same
// order with or without keepDims. Each output element folds its input elements in row-major order.
type ReducePlan struct {
	// InputSize and OutputSize are the number of elements.
	InputSize, OutputSize int

	keptDims       []int
	keptStrides    []int // Input strides of the kept axes.
	reducedOffsets []int // Input offsets of the reduced sub-space, in row-major order.
}

// NewReducePlan creates the plan to reduce an input with inputDims over the given (normalized) axes.
func NewReducePlan(inputDims []int, axes types.Set[int]) *ReducePlan {
	strides := shapes.StridesFor(inputDims)
	p := &ReducePlan{InputSize: 1, OutputSize: 1}
	var reducedDims, reducedStrides []int
	for axis, dim := range inputDims {
		p.InputSize *= dim
		if axes.Has(axis) {
			reducedDims = append(reducedDims, dim)
			reducedStrides = append(reducedStrides, strides[axis])
		} else {
			p.OutputSize *= dim
			p.keptDims = append(p.keptDims, dim)
			p.keptStrides = append(p.keptStrides, strides[axis])
		}
	}
	for coords := range shapes.IterDimensions(reducedDims) {
		offset := 0
		for ii, coord := range coords {
			offset += coord * reducedStrides[ii]
		}
		p.reducedOffsets = append(p.reducedOffsets, offset)
	}
	return p
}

// Count returns the number of input elements folded into each output element.
func (p *ReducePlan) Count() int { return len(p.reducedOffsets) }

// baseOffset returns the input offset of the first element folded into the output element outputIdx.
func (p *ReducePlan) baseOffset(outputIdx int) int {
	offset := 0
	for ii := len(p.keptDims) - 1; ii >= 0; ii-- {
		dim := p.keptDims[ii]
		offset += (outputIdx % dim) * p.keptStrides[ii]
		outputIdx /= dim
	}
	return offset
}

// Reduce folds the input into the output elements in the range [start, end) with the reduction given by op,
// one of backends.OpTypeReduce{Mean,Max,Min,Sum}.
//
// Mean is the Sum divided by Count, in the arithmetic of T (integer division for integer types).
// If Count is 0 (a reduced axis has dimension 0), all reductions yield 0.
// Max and Min yield NaN if any of the folded elements is NaN.
func Reduce[T Number](p *ReducePlan, op backends.OpType, output, input []T, start, end int) error {
	if !op.IsReduce() {
		return errors.Errorf("Reduce: %s is not a reduction", op)
	}
	if len(input) < p.InputSize || len(output) < p.OutputSize {
		return errors.Errorf("Reduce: buffers too small, got input=%d and output=%d elements, wanted %d and %d",
			len(input), len(output), p.InputSize, p.OutputSize)
	}
	if start < 0 || end > p.OutputSize || start > end {
		return errors.Errorf("Reduce: invalid output range [%d, %d) for %d elements", start, end, p.OutputSize)
	}
	count := p.Count()
	if count == 0 {
		clear(output[start:end])
		return nil
	}
	for outputIdx := start; outputIdx < end; outputIdx++ {
		base := p.baseOffset(outputIdx)
		acc := input[base+p.reducedOffsets[0]]
		for _, offset := range p.reducedOffsets[1:] {
			v := input[base+offset]
			switch op {
			case backends.OpTypeReduceSum, backends.OpTypeReduceMean:
				acc += v
			case backends.OpTypeReduceMax:
				if v > acc || isNaN(v) {
					acc = v
				}
			case backends.OpTypeReduceMin:
				if v < acc || isNaN(v) {
					acc = v
				}
			}
		}
		if op == backends.OpTypeReduceMean {
			acc /= T(count)
		}
		output[outputIdx] = acc
	}
	return nil
}

// isNaN is always false for integer types.
func isNaN[T Number](v T) bool {
	return v != v
}
