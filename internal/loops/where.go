// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loops

import (
	"github.com/gomlx/opkernels/types/shapes"
	"github.com/pkg/errors"
)

// Where sets each output element to the x element where the condition is true (non-zero), and to the y element
// otherwise. x, y and condition are broadcast to outputDims.
//
// The condition is read as one byte per element: Bool and Uint8 conditions share the same layout.
// The output elements are split in ranges with split (nil means Sequential).
func Where(output, x, y, condition []byte, xDims, yDims, conditionDims, outputDims []int, elemSize int, split Splitter) error {
	size := 1
	for _, dim := range outputDims {
		size *= dim
	}
	if want := size * elemSize; len(output) != want {
		return errors.Errorf("Where: output buffer has %d bytes, wanted %d", len(output), want)
	}
	if size == 0 {
		return nil
	}
	xStrides := shapes.BroadcastStrides(xDims, outputDims)
	yStrides := shapes.BroadcastStrides(yDims, outputDims)
	condStrides := shapes.BroadcastStrides(conditionDims, outputDims)
	return runSplit(split, size, func(start, end int) error {
		coords := make([]int, len(outputDims))
		for flatIdx := start; flatIdx < end; flatIdx++ {
			unravel(coords, flatIdx, outputDims)
			var xIdx, yIdx, condIdx int
			for axis, coord := range coords {
				xIdx += coord * xStrides[axis]
				yIdx += coord * yStrides[axis]
				condIdx += coord * condStrides[axis]
			}
			src, srcIdx := y, yIdx
			if condition[condIdx] != 0 {
				src, srcIdx = x, xIdx
			}
			inputPos := srcIdx * elemSize
			outputPos := flatIdx * elemSize
			copy(output[outputPos:outputPos+elemSize], src[inputPos:inputPos+elemSize])
		}
		return nil
	})
}
