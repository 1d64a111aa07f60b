// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package loops

// MatMul computes c = a·b for row-major matrices a [m, k], b [k, n] and c [m, n].
//
// Each c[i, j] is accumulated from 0 in increasing k.
func MatMul[T Number](c, a, b []T, m, n, k int) {
	for i := range m {
		for j := range n {
			var acc T
			for kk := range k {
				acc += a[i*k+kk] * b[kk*n+j]
			}
			c[i*n+j] = acc
		}
	}
}
