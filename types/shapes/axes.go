// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"github.com/gomlx/opkernels/types"
	"github.com/pkg/errors"
)

// NormalizeAxis converts a possibly negative axis to its non-negative equivalent for the given
// rank: negative values count from the end, so -1 is the last axis.
//
// It returns an error if the normalized axis is not within 0 <= axis < rank.
// Normalizing an already normalized axis returns the same value.
func NormalizeAxis(axis, rank int) (int, error) {
	adjusted := axis
	if adjusted < 0 {
		adjusted += rank
	}
	if adjusted < 0 || adjusted >= rank {
		return 0, errors.Errorf("axis %d is out-of-bounds for rank %d", axis, rank)
	}
	return adjusted, nil
}

// NormalizeAxes normalizes each of the given axes (see NormalizeAxis) and returns them as a set:
// repeated axes (including -1 and rank-1) collapse into one.
func NormalizeAxes(axes []int, rank int) (types.Set[int], error) {
	set := types.MakeSet[int](len(axes))
	for _, axis := range axes {
		adjusted, err := NormalizeAxis(axis, rank)
		if err != nil {
			return nil, errors.WithMessagef(err, "invalid axes %v", axes)
		}
		set.Insert(adjusted)
	}
	return set, nil
}

// BroadcastDimensions returns the dimensions resulting from broadcasting a and b with the
// NumPy rules:
//
//   - dimensions are aligned from the trailing (last) axis;
//   - missing leading axes are treated as 1;
//   - a dimension of 1 is stretched to match the other;
//   - otherwise the dimensions must be equal.
//
// Examples:
//
//	[3 1] and [3 5]     -> [3 5]
//	[5] and [2 4 5]     -> [2 4 5]
//	[3 4] and [3 5]     -> error
func BroadcastDimensions(a, b []int) ([]int, error) {
	rank := max(len(a), len(b))
	output := make([]int, rank)
	for ii := range rank {
		aDim, bDim := 1, 1
		if aIdx := len(a) - 1 - ii; aIdx >= 0 {
			aDim = a[aIdx]
		}
		if bIdx := len(b) - 1 - ii; bIdx >= 0 {
			bDim = b[bIdx]
		}
		outAxis := rank - 1 - ii
		switch {
		case aDim == bDim:
			output[outAxis] = aDim
		case aDim == 1:
			output[outAxis] = bDim
		case bDim == 1:
			output[outAxis] = aDim
		default:
			return nil, errors.Errorf("dimensions %v and %v cannot be broadcast: axis %d has dimensions %d and %d",
				a, b, outAxis, aDim, bDim)
		}
	}
	return output, nil
}

// BroadcastStrides returns the strides, aligned to the axes of outputDims, to read an operand of the
// given dims broadcast to outputDims: broadcast (stretched or missing) axes get stride 0.
//
// It assumes dims is broadcastable to outputDims (see BroadcastDimensions).
func BroadcastStrides(dims, outputDims []int) []int {
	strides := make([]int, len(outputDims))
	operandStrides := StridesFor(dims)
	offset := len(outputDims) - len(dims)
	for axis := range dims {
		if dims[axis] == 1 && outputDims[axis+offset] != 1 {
			continue
		}
		strides[axis+offset] = operandStrides[axis]
	}
	return strides
}
