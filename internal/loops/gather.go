// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loops

import (
	"github.com/gomlx/opkernels/types/shapes"
	"github.com/pkg/errors"
)

// Gather copies, for each index, the slab of input at that index along axis.
//
// The output has dimensions inputDims[:axis] + indicesDims + inputDims[axis+1:], but only the number of indices
// matters here: indices is the flat list of indices in row-major order.
// Indices must be in [0, inputDims[axis]), otherwise an error is returned and the output is left partially
// written.
//
// The output slabs are split in ranges with split (nil means Sequential).
func Gather[I Index](output, input []byte, inputDims []int, axis int, indices []I, elemSize int, split Splitter) error {
	outer := 1
	for _, dim := range inputDims[:axis] {
		outer *= dim
	}
	slabBytes := elemSize
	for _, dim := range inputDims[axis+1:] {
		slabBytes *= dim
	}
	axisDim := inputDims[axis]
	numIndices := len(indices)
	if want := outer * numIndices * slabBytes; len(output) != want {
		return errors.Errorf("Gather: output buffer has %d bytes, wanted %d", len(output), want)
	}
	if want := outer * axisDim * slabBytes; len(input) != want {
		return errors.Errorf("Gather: input buffer has %d bytes, wanted %d", len(input), want)
	}
	return runSplit(split, outer*numIndices, func(start, end int) error {
		for slab := start; slab < end; slab++ {
			outerIdx, idx := slab/numIndices, indices[slab%numIndices]
			if idx < 0 || int64(idx) >= int64(axisDim) {
				return errors.Errorf("Gather: index %d out of range [0, %d) for axis %d", idx, axisDim, axis)
			}
			inputPos := (outerIdx*axisDim + int(idx)) * slabBytes
			outputPos := slab * slabBytes
			copy(output[outputPos:outputPos+slabBytes], input[inputPos:inputPos+slabBytes])
		}
		return nil
	})
}

// GatherElements sets each output element at coordinate c to the input element at c, with c[axis] replaced by
// the index at the same coordinate c.
//
// The output and indices have the dimensions indicesDims, which must match inputDims except for axis.
// The output elements are split in ranges with split (nil means Sequential).
func GatherElements[I Index](output, input []byte, inputDims, indicesDims []int, axis int, indices []I, elemSize int,
	split Splitter) error {
	if want := len(indices) * elemSize; len(output) != want {
		return errors.Errorf("GatherElements: output buffer has %d bytes, wanted %d", len(output), want)
	}
	inputStrides := shapes.StridesFor(inputDims)
	axisDim := inputDims[axis]
	return runSplit(split, len(indices), func(start, end int) error {
		coords := make([]int, len(indicesDims))
		for flatIdx := start; flatIdx < end; flatIdx++ {
			idx := indices[flatIdx]
			if idx < 0 || int64(idx) >= int64(axisDim) {
				return errors.Errorf("GatherElements: index %d out of range [0, %d) for axis %d", idx, axisDim, axis)
			}
			unravel(coords, flatIdx, indicesDims)
			coords[axis] = int(idx)
			inputOffset := 0
			for ii, coord := range coords {
				inputOffset += coord * inputStrides[ii]
			}
			inputPos := inputOffset * elemSize
			outputPos := flatIdx * elemSize
			copy(output[outputPos:outputPos+elemSize], input[inputPos:inputPos+elemSize])
		}
		return nil
	})
}

// unravel sets coords to the row-major coordinates of the flat index within dims.
func unravel(coords []int, flatIdx int, dims []int) {
	for axis := len(dims) - 1; axis >= 0; axis-- {
		coords[axis] = flatIdx % dims[axis]
		flatIdx /= dims[axis]
	}
}

// ValidateIndices returns an error if any of the indices is not in [0, dim).
func ValidateIndices[I Index](indices []I, dim int) error {
	for ii, idx := range indices {
		if idx < 0 || int64(idx) >= int64(dim) {
			return errors.Errorf("index #%d has value %d, out of range [0, %d)", ii, idx, dim)
		}
	}
	return nil
}
