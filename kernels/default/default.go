// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package _default registers the default kernels, namely the naive (direct) kernels and the native (delegating)
// kernels.
//
// To use it simply include:
//
//	import _ "github.com/gomlx/opkernels/kernels/default"
//
// If you add the tag `nonative` it will not include the native kernels: only the devices served by naive kernels
// will have kernels registered.
package _default

import (
	_ "github.com/gomlx/opkernels/kernels/naive"
)
