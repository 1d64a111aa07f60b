// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package loops implements the loop bodies shared by the host provider and the direct (naive) kernels.
//
// Data movement operators (Gather, GatherElements, Where) work on raw bytes, with the size of an element given,
// so they are agnostic of the DType. Arithmetic operators (Reduce, MatMul) are generic on the Go type.
//
// All loops are sequential and deterministic: callers that parallelize them split the output into independent
// ranges.
package loops

import (
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// Number is a Go type that can be reduced or multiplied directly.
type Number interface {
	constraints.Integer | constraints.Float
}

// Index is a Go type for indices.
type Index interface {
	constraints.Signed
}

// Half is a 16 bits float type, computed with float32 precision.
type Half interface {
	float16.Float16 | bfloat16.BFloat16
	Float32() float32
}

// ToFloat32 converts the half precision values in src to dst.
func ToFloat32[T Half](dst []float32, src []T) {
	for ii, v := range src {
		dst[ii] = v.Float32()
	}
}

// FromFloat32 converts the float32 values in src to the half precision dst.
func FromFloat32[T Half](dst []T, src []float32) {
	switch typedDst := any(dst).(type) {
	case []float16.Float16:
		for ii, v := range src {
			typedDst[ii] = float16.Fromfloat32(v)
		}
	case []bfloat16.BFloat16:
		for ii, v := range src {
			typedDst[ii] = bfloat16.FromFloat32(v)
		}
	}
}
