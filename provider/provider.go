// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package provider defines the contract of a native kernel provider: the library that holds the actual
// implementations of the operators for a device, and to which the delegating kernels forward computation.
//
// A provider works with opaque handles: a Handle per device, TensorDescriptor for the shape of each operand,
// and one Descriptor per operator instance, created from the tensor descriptors and the attributes of the
// operator. Every call returns a Status, see Check to convert it to an error.
//
// Operand buffers are passed as byte slices with the layout of the Go type of their DType, in row-major order.
package provider

import (
	"github.com/gomlx/gopjrt/dtypes"
)

// Handle is the provider's context for one device.
type Handle uintptr

// Stream identifies an execution queue of a device.
type Stream uintptr

// TensorDescriptor describes the shape and dtype of an operand.
type TensorDescriptor uintptr

// Descriptor is the provider's representation of one operator instance.
type Descriptor uintptr

// NullDescriptor is the zero value: no descriptor bound.
const NullDescriptor Descriptor = 0

// Provider is implemented by native kernel libraries.
//
// All methods must be safe for concurrent use, except that a given Descriptor is used by one goroutine at a time.
type Provider interface {
	// Name of the provider, for logging.
	Name() string

	CreateHandle(deviceID int) (Handle, Status)
	DestroyHandle(handle Handle) Status

	// CreateTensorDescriptor for an operand with the given dimensions. Strides are in elements,
	// and if nil the tensor is assumed dense in row-major order.
	CreateTensorDescriptor(dims, strides []int, dtype dtypes.DType) (TensorDescriptor, Status)
	DestroyTensorDescriptor(desc TensorDescriptor) Status

	CreateGatherDescriptor(handle Handle, output, input, indices TensorDescriptor, axis int) (Descriptor, Status)
	Gather(desc Descriptor, output, input, indices []byte, stream Stream) Status
	DestroyGatherDescriptor(desc Descriptor) Status

	CreateGatherElementsDescriptor(handle Handle, output, input, indices TensorDescriptor, axis int) (Descriptor, Status)
	GatherElements(desc Descriptor, output, input, indices []byte, stream Stream) Status
	DestroyGatherElementsDescriptor(desc Descriptor) Status

	CreateWhereDescriptor(handle Handle, output, x, y, condition TensorDescriptor) (Descriptor, Status)
	Where(desc Descriptor, output, x, y, condition []byte, stream Stream) Status
	DestroyWhereDescriptor(desc Descriptor) Status

	CreateReduceMeanDescriptor(handle Handle, output, input TensorDescriptor, axes []int, keepDims bool) (Descriptor, Status)
	GetReduceMeanWorkspaceSize(desc Descriptor) (uint64, Status)
	ReduceMean(desc Descriptor, workspace, output, input []byte, stream Stream) Status
	DestroyReduceMeanDescriptor(desc Descriptor) Status

	CreateReduceMaxDescriptor(handle Handle, output, input TensorDescriptor, axes []int, keepDims bool) (Descriptor, Status)
	GetReduceMaxWorkspaceSize(desc Descriptor) (uint64, Status)
	ReduceMax(desc Descriptor, workspace, output, input []byte, stream Stream) Status
	DestroyReduceMaxDescriptor(desc Descriptor) Status

	CreateReduceMinDescriptor(handle Handle, output, input TensorDescriptor, axes []int, keepDims bool) (Descriptor, Status)
	GetReduceMinWorkspaceSize(desc Descriptor) (uint64, Status)
	ReduceMin(desc Descriptor, workspace, output, input []byte, stream Stream) Status
	DestroyReduceMinDescriptor(desc Descriptor) Status

	CreateReduceSumDescriptor(handle Handle, output, input TensorDescriptor, axes []int, keepDims bool) (Descriptor, Status)
	GetReduceSumWorkspaceSize(desc Descriptor) (uint64, Status)
	ReduceSum(desc Descriptor, workspace, output, input []byte, stream Stream) Status
	DestroyReduceSumDescriptor(desc Descriptor) Status
}
