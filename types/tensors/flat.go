// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"slices"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

// Flat returns the data of the tensor as a flat slice of T, without copying: changes to the slice change
// the tensor.
//
// It panics if T doesn't match the tensor's DType, or if the tensor is not bound.
func Flat[T dtypes.Supported](t *Tensor) []T {
	return FlatBytes[T](t.shape.DType, t.data, t.Size())
}

// FlatBytes is like Flat, but for a raw buffer holding size elements of the given dtype.
func FlatBytes[T dtypes.Supported](dtype dtypes.DType, data []byte, size int) []T {
	if want := dtypes.FromGenericsType[T](); want != dtype {
		var v T
		exceptions.Panicf("Flat[%T] is incompatible with dtype %s", v, dtype)
	}
	if size == 0 {
		return []T{}
	}
	if data == nil {
		exceptions.Panicf("Flat(%s): data is not bound", dtype)
	}
	var v T
	if uintptr(len(data)) < uintptr(size)*unsafe.Sizeof(v) {
		exceptions.Panicf("Flat(%s): buffer has %d bytes, not enough for %d elements", dtype, len(data), size)
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(data))), size)
}

// CopyFlatData returns a copy of the flat data of the Tensor.
//
// It panics if the given generic type doesn't match the DType of the tensor.
func CopyFlatData[T dtypes.Supported](t *Tensor) []T {
	return slices.Clone(Flat[T](t))
}

// AssignFlatData sets the tensor data with the contents of fromFlat, allocating the buffer if needed.
//
// It panics if the sizes or the dtypes don't match.
func AssignFlatData[T dtypes.Supported](t *Tensor, fromFlat []T) {
	if len(fromFlat) != t.Size() {
		var v T
		exceptions.Panicf("AssignFlatData[%T] is trying to store %d values into shape %s, which requires %d values",
			v, len(fromFlat), t.Shape(), t.Size())
	}
	t.Allocate()
	copy(Flat[T](t), fromFlat)
}

// Generator computes the value of the flat element i of a tensor.
type Generator func(i int) float64

// Incremental generates 0, 1, 2, ... (converted to the tensor's dtype).
func Incremental(i int) float64 { return float64(i) }

// One generates 1 everywhere.
func One(int) float64 { return 1 }

// Fill allocates the tensor buffer if needed and sets every element with the value returned by gen,
// converted to the tensor's dtype. For Bool tensors, non-zero values are true.
func Fill(t *Tensor, gen Generator) *Tensor {
	t.Allocate()
	switch t.DType() {
	case dtypes.Bool:
		fillBool(Flat[bool](t), gen)
	case dtypes.Int8:
		fillGeneric(Flat[int8](t), gen)
	case dtypes.Int16:
		fillGeneric(Flat[int16](t), gen)
	case dtypes.Int32:
		fillGeneric(Flat[int32](t), gen)
	case dtypes.Int64:
		fillGeneric(Flat[int64](t), gen)
	case dtypes.Uint8:
		fillGeneric(Flat[uint8](t), gen)
	case dtypes.Uint16:
		fillGeneric(Flat[uint16](t), gen)
	case dtypes.Uint32:
		fillGeneric(Flat[uint32](t), gen)
	case dtypes.Uint64:
		fillGeneric(Flat[uint64](t), gen)
	case dtypes.Float32:
		fillGeneric(Flat[float32](t), gen)
	case dtypes.Float64:
		fillGeneric(Flat[float64](t), gen)
	case dtypes.Float16:
		flat := Flat[float16.Float16](t)
		for ii := range flat {
			flat[ii] = float16.Fromfloat32(float32(gen(ii)))
		}
	case dtypes.BFloat16:
		flat := Flat[bfloat16.BFloat16](t)
		for ii := range flat {
			flat[ii] = bfloat16.FromFloat32(float32(gen(ii)))
		}
	default:
		exceptions.Panicf("tensors.Fill: dtype %s not supported", t.DType())
	}
	return t
}

type fillable interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func fillGeneric[T fillable](flat []T, gen Generator) {
	for ii := range flat {
		flat[ii] = T(gen(ii))
	}
}

func fillBool(flat []bool, gen Generator) {
	for ii := range flat {
		flat[ii] = gen(ii) != 0
	}
}

// Values returns the contents of the tensor converted to float64, mostly for testing and debugging.
// Bool values are converted to 0 or 1.
func Values(t *Tensor) []float64 {
	values := make([]float64, t.Size())
	switch t.DType() {
	case dtypes.Bool:
		for ii, v := range Flat[bool](t) {
			if v {
				values[ii] = 1
			}
		}
	case dtypes.Int8:
		toFloat64(values, Flat[int8](t))
	case dtypes.Int16:
		toFloat64(values, Flat[int16](t))
	case dtypes.Int32:
		toFloat64(values, Flat[int32](t))
	case dtypes.Int64:
		toFloat64(values, Flat[int64](t))
	case dtypes.Uint8:
		toFloat64(values, Flat[uint8](t))
	case dtypes.Uint16:
		toFloat64(values, Flat[uint16](t))
	case dtypes.Uint32:
		toFloat64(values, Flat[uint32](t))
	case dtypes.Uint64:
		toFloat64(values, Flat[uint64](t))
	case dtypes.Float32:
		toFloat64(values, Flat[float32](t))
	case dtypes.Float64:
		copy(values, Flat[float64](t))
	case dtypes.Float16:
		for ii, v := range Flat[float16.Float16](t) {
			values[ii] = float64(v.Float32())
		}
	case dtypes.BFloat16:
		for ii, v := range Flat[bfloat16.BFloat16](t) {
			values[ii] = float64(v.Float32())
		}
	default:
		exceptions.Panicf("tensors.Values: dtype %s not supported", t.DType())
	}
	return values
}

func toFloat64[T fillable](values []float64, flat []T) {
	for ii, v := range flat {
		values[ii] = float64(v)
	}
}
