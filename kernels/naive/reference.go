// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package naive

import (
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/device"
	"github.com/gomlx/opkernels/internal/loops"
	"github.com/gomlx/opkernels/kernels"
	"github.com/gomlx/opkernels/ops"
	"github.com/pkg/errors"
)

// Reference kernels of the pure Go device. They run the same loops as the host provider, sequentially,
// so their results are bit-identical to those of the native kernels on the CPU.
func init() {
	const goDevice = backends.DeviceGo
	for _, dtype := range DataDTypes {
		kernels.Register(goDevice, backends.OpTypeGather, dtype, newKernel(computeGather),
			Name(backends.OpTypeGather, goDevice, dtype))
		kernels.Register(goDevice, backends.OpTypeGatherElements, dtype, newKernel(computeGatherElements),
			Name(backends.OpTypeGatherElements, goDevice, dtype))
		kernels.Register(goDevice, backends.OpTypeWhere, dtype, newKernel(computeWhere),
			Name(backends.OpTypeWhere, goDevice, dtype))
	}
	for _, dtype := range NumericDTypes {
		for _, kind := range ops.ReduceKinds() {
			kernels.Register(goDevice, kind.OpType(), dtype, newKernel(computeReduce),
				Name(kind.OpType(), goDevice, dtype))
		}
	}
}

// kernel is a kernels.Kernel from a compute function.
type kernel struct {
	timed
}

func newKernel(compute func(op ops.Operator, ctx device.Context) error) kernel {
	return kernel{timed{compute: compute}}
}

// Compute implements kernels.Kernel.
func (k kernel) Compute(op ops.Operator, ctx device.Context) error {
	return k.compute(op, ctx)
}

func computeGather(operator ops.Operator, _ device.Context) error {
	op, ok := operator.(*ops.Gather)
	if !ok {
		return errors.Errorf("Gather kernel given operator %s", operator)
	}
	buffers, err := operandBytes(op)
	if err != nil {
		return err
	}
	inputShape, indicesShape := op.Input().Shape(), op.Indices().Shape()
	err = loops.GatherBuffers(buffers[0], buffers[1], buffers[2], inputShape.Dimensions, indicesShape.Size(), op.Axis(),
		inputShape.DType, indicesShape.DType, loops.Sequential)
	return errors.WithMessagef(err, "executing %s", op)
}

func computeGatherElements(operator ops.Operator, _ device.Context) error {
	op, ok := operator.(*ops.GatherElements)
	if !ok {
		return errors.Errorf("GatherElements kernel given operator %s", operator)
	}
	buffers, err := operandBytes(op)
	if err != nil {
		return err
	}
	inputShape, indicesShape := op.Input().Shape(), op.Indices().Shape()
	err = loops.GatherElementsBuffers(buffers[0], buffers[1], buffers[2], inputShape.Dimensions, indicesShape.Dimensions,
		op.Axis(), inputShape.DType, indicesShape.DType, loops.Sequential)
	return errors.WithMessagef(err, "executing %s", op)
}

func computeWhere(operator ops.Operator, _ device.Context) error {
	op, ok := operator.(*ops.Where)
	if !ok {
		return errors.Errorf("Where kernel given operator %s", operator)
	}
	buffers, err := operandBytes(op)
	if err != nil {
		return err
	}
	err = loops.Where(buffers[0], buffers[1], buffers[2], buffers[3],
		op.X().Shape().Dimensions, op.Y().Shape().Dimensions, op.Condition().Shape().Dimensions,
		op.Output().Shape().Dimensions, loops.ElementSize(op.DType()), loops.Sequential)
	return errors.WithMessagef(err, "executing %s", op)
}

// computeReduce runs any of the reductions. Half precision dtypes are reduced in float32, in a scratch
// buffer taken from the device workspace.
func computeReduce(operator ops.Operator, ctx device.Context) error {
	op, ok := operator.(*ops.Reduce)
	if !ok {
		return errors.Errorf("Reduce kernel given operator %s", operator)
	}
	buffers, err := operandBytes(op)
	if err != nil {
		return err
	}
	plan := loops.NewReducePlan(op.Input().Shape().Dimensions, op.AxesSet())
	scratchSize := uint64(loops.ReduceScratchSize(op.DType(), plan))
	err = device.WithWorkspace(ctx, scratchSize, func(scratch []byte) error {
		return loops.ReduceBuffers(plan, op.OpType(), op.DType(), buffers[0], buffers[1], scratch, loops.Sequential)
	})
	return errors.WithMessagef(err, "executing %s", op)
}
