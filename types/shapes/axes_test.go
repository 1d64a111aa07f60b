// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"testing"

	"github.com/gomlx/opkernels/types"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAxis(t *testing.T) {
	for _, tc := range []struct{ axis, rank, want int }{
		{0, 4, 0},
		{3, 4, 3},
		{-1, 4, 3},
		{-4, 4, 0},
		{-1, 1, 0},
	} {
		got, err := NormalizeAxis(tc.axis, tc.rank)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "NormalizeAxis(%d, %d)", tc.axis, tc.rank)

		// Idempotent.
		again, err := NormalizeAxis(got, tc.rank)
		require.NoError(t, err)
		require.Equal(t, got, again)
	}

	for _, tc := range []struct{ axis, rank int }{{4, 4}, {-5, 4}, {0, 0}, {-1, 0}} {
		_, err := NormalizeAxis(tc.axis, tc.rank)
		require.Error(t, err, "NormalizeAxis(%d, %d) should fail", tc.axis, tc.rank)
	}
}

func TestNormalizeAxes(t *testing.T) {
	set, err := NormalizeAxes([]int{1, -1, 3}, 4)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, types.SortedElements(set))

	set, err = NormalizeAxes(nil, 4)
	require.NoError(t, err)
	require.Len(t, set, 0)

	_, err = NormalizeAxes([]int{0, 4}, 4)
	require.Error(t, err)
}

func TestBroadcastDimensions(t *testing.T) {
	got, err := BroadcastDimensions([]int{3, 1}, []int{3, 5})
	require.NoError(t, err)
	require.Equal(t, []int{3, 5}, got)

	got, err = BroadcastDimensions([]int{5}, []int{2, 4, 5})
	require.NoError(t, err)
	require.Equal(t, []int{2, 4, 5}, got)

	got, err = BroadcastDimensions([]int{2, 2, 5, 5}, []int{2, 2, 5, 5})
	require.NoError(t, err)
	require.Equal(t, []int{2, 2, 5, 5}, got)

	got, err = BroadcastDimensions(nil, []int{2, 3})
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, got)

	_, err = BroadcastDimensions([]int{3, 4}, []int{3, 5})
	require.Error(t, err)
}

func TestBroadcastStrides(t *testing.T) {
	require.Equal(t, []int{1, 0}, BroadcastStrides([]int{3, 1}, []int{3, 5}))
	require.Equal(t, []int{0, 0, 1}, BroadcastStrides([]int{5}, []int{2, 4, 5}))
	require.Equal(t, []int{5, 1}, BroadcastStrides([]int{3, 5}, []int{3, 5}))
	// A dimension 1 matched with 1 keeps its (irrelevant) stride.
	require.Equal(t, []int{1, 1}, BroadcastStrides([]int{1, 1}, []int{1, 1}))
}
