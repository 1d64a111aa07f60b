// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensors implements a host `Tensor`: the operand an operator reads from and writes to.
//
// A Tensor is defined by a unique id (guid), its shape (a data type and its axes dimensions) and, optionally, its
// content: a flat buffer of bytes, in row-major order, with the layout of the Go type of the DType.
// A Tensor can exist without data ("unbound"), which is how operator outputs look at graph construction time, and
// how inputs look before their data is set.
//
// There are various ways to construct a Tensor:
//
//   - New(guid, shape): creates an unbound tensor.
//   - FromShape(guid, shape): creates a tensor with the data initialized with zeros.
//   - FromFlatDataAndDimensions[T dtypes.Supported](guid, data []T, dimensions ...int): creates a Tensor with the
//     given dimensions and a copy of the flattened values in data. Example:
//
//     t := FromFlatDataAndDimensions(0, []int32{1, 2, 3, 4}, 2, 2}) // Tensor with [[1,2], [3,4]]
//
// Data buffers are always allocated 8-byte aligned, so they can be viewed (see Flat) as a slice of any supported
// Go type without copying.
package tensors

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/types/shapes"
	"github.com/pkg/errors"
)

// Tensor is a host tensor: a shape with an optional flat data buffer.
//
// Tensor is not safe for concurrent mutation: the graph that owns it serializes access.
type Tensor struct {
	guid  int
	shape shapes.Shape
	data  []byte
}

// New returns an unbound Tensor: it has a shape but no data yet.
func New(guid int, shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("tensors.New(%d): invalid shape", guid)
	}
	return &Tensor{guid: guid, shape: shape.Clone()}
}

// FromShape returns a Tensor with the given shape, with the data initialized with zeros.
func FromShape(guid int, shape shapes.Shape) *Tensor {
	t := New(guid, shape)
	t.Allocate()
	return t
}

// FromFlatDataAndDimensions creates a tensor with the given dimensions, filled with the flattened values given in
// `data`. The data is copied to the Tensor.
// The `DType` is inferred from the `data` type.
func FromFlatDataAndDimensions[T dtypes.Supported](guid int, data []T, dimensions ...int) *Tensor {
	dtype := dtypes.FromGenericsType[T]()
	shape := shapes.Make(dtype, dimensions...)
	if len(data) != shape.Size() {
		exceptions.Panicf("FromFlatDataAndDimensions(%s): data size is %d, but dimensions size is %d", shape, len(data), shape.Size())
	}
	t := FromShape(guid, shape)
	copy(Flat[T](t), data)
	return t
}

// AllocateBytes returns a zeroed buffer of size bytes, with its start 8-byte aligned.
func AllocateBytes(size int) []byte {
	words := make([]uint64, (size+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), len(words)*8)[:size:size]
}

// GUID returns the unique id of the tensor within its graph.
func (t *Tensor) GUID() int { return t.guid }

// Shape of the tensor, includes DType.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// DType returns the DType of the tensor's shape.
func (t *Tensor) DType() dtypes.DType { return t.shape.DType }

// Rank returns the rank of the tensor's shape.
func (t *Tensor) Rank() int { return t.shape.Rank() }

// Size returns the number of elements in the tensor.
func (t *Tensor) Size() int { return t.shape.Size() }

// Memory returns the number of bytes used by the data of the tensor.
func (t *Tensor) Memory() uintptr { return t.shape.Memory() }

// IsDataBound returns whether the tensor has data associated with it.
func (t *Tensor) IsDataBound() bool { return t.data != nil }

// Bytes returns the raw data of the tensor, or nil if it is not bound.
// The returned slice is owned by the tensor and writing to it changes the tensor.
func (t *Tensor) Bytes() []byte { return t.data }

// Allocate binds a zero-initialized buffer to the tensor, if it is not bound yet.
// It returns the tensor itself, so calls can be chained.
func (t *Tensor) Allocate() *Tensor {
	if t.data == nil {
		t.data = AllocateBytes(int(t.Memory()))
	}
	return t
}

// Bind copies data into the tensor, allocating its buffer if needed.
// It returns an error if data doesn't have exactly the number of bytes required by the shape.
func (t *Tensor) Bind(data []byte) error {
	if len(data) != int(t.Memory()) {
		return errors.Errorf("tensor #%d %s requires %d bytes, got %d", t.guid, t.shape, t.Memory(), len(data))
	}
	t.Allocate()
	copy(t.data, data)
	return nil
}

// Unbind releases the data of the tensor: it becomes unbound again.
func (t *Tensor) Unbind() {
	t.data = nil
}

// Equal returns whether both tensors have the same shape and, if bound, the exact same bytes.
// Unbound tensors are only equal to other unbound tensors.
func (t *Tensor) Equal(other *Tensor) bool {
	if t == other {
		return true
	}
	if !t.shape.Equal(other.shape) || t.IsDataBound() != other.IsDataBound() {
		return false
	}
	return bytes.Equal(t.data, other.data)
}

// String implements fmt.Stringer. It doesn't print the contents, see Values for that.
func (t *Tensor) String() string {
	if !t.IsDataBound() {
		return fmt.Sprintf("Tensor#%d%s(unbound)", t.guid, t.shape)
	}
	return fmt.Sprintf("Tensor#%d%s", t.guid, t.shape)
}
