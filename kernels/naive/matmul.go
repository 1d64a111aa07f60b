// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package naive

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/device"
	"github.com/gomlx/opkernels/internal/loops"
	"github.com/gomlx/opkernels/kernels"
	"github.com/gomlx/opkernels/ops"
	"github.com/gomlx/opkernels/types/tensors"
	"github.com/pkg/errors"
)

func init() {
	registerMatMul[uint32](backends.DeviceCPU)
	registerMatMul[float32](backends.DeviceCPU)

	registerMatMul[int32](backends.DeviceGo)
	registerMatMul[int64](backends.DeviceGo)
	registerMatMul[uint32](backends.DeviceGo)
	registerMatMul[uint64](backends.DeviceGo)
	registerMatMul[float32](backends.DeviceGo)
	registerMatMul[float64](backends.DeviceGo)
}

type matMulType interface {
	loops.Number
	dtypes.Supported
}

func registerMatMul[T matMulType](deviceKind backends.DeviceKind) {
	dtype := dtypes.FromGenericsType[T]()
	kernels.Register(deviceKind, backends.OpTypeMatMul, dtype, NewMatMul[T](), Name(backends.OpTypeMatMul, deviceKind, dtype))
}

// MatMul is the naive matrix multiplication: a row-major triple loop, with each output element accumulated from
// zero in increasing order of the contracting axis.
//
// It only handles single (not batched) matrices, without transposition or activation.
type MatMul[T matMulType] struct {
	timed
}

// NewMatMul returns the naive MatMul kernel for T.
func NewMatMul[T matMulType]() *MatMul[T] {
	k := &MatMul[T]{}
	k.compute = k.Compute
	return k
}

// Compute implements kernels.Kernel.
func (k *MatMul[T]) Compute(operator ops.Operator, _ device.Context) error {
	op, ok := operator.(*ops.MatMul)
	if !ok {
		return errors.Errorf("MatMul kernel given operator %s", operator)
	}
	if op.TransA() || op.TransB() {
		return errors.Errorf("%s: naive MatMul doesn't support transposed operands", op)
	}
	if op.Act() != ops.ActNone {
		return errors.Errorf("%s: naive MatMul doesn't support fused activation %s", op, op.Act())
	}
	if op.Batch() != 1 {
		return errors.Errorf("%s: naive MatMul only supports a batch of 1, got %d", op, op.Batch())
	}
	dtype := dtypes.FromGenericsType[T]()
	if op.DType() != dtype {
		return errors.Errorf("%s: naive MatMul kernel is for %s", op, dtype)
	}
	buffers, err := operandBytes(op)
	if err != nil {
		return err
	}
	m, n, kDim := op.M(), op.N(), op.K()
	c := tensors.FlatBytes[T](dtype, buffers[0], m*n)
	a := tensors.FlatBytes[T](dtype, buffers[1], m*kDim)
	b := tensors.FlatBytes[T](dtype, buffers[2], kDim*n)
	loops.MatMul(c, a, b, m, n, kDim)
	return nil
}
