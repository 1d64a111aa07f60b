// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package native implements the delegating kernels: they forward the computation of an operator to the native
// provider of the device, through the operator's native descriptor.
//
// They are registered for all dtypes of the devices with a native provider: the provider rejects the dtypes it
// doesn't support when the descriptor is created.
package native

import (
	"fmt"

	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/device"
	"github.com/gomlx/opkernels/kernels"
	"github.com/gomlx/opkernels/ops"
	"github.com/gomlx/opkernels/provider"
	"github.com/pkg/errors"
)

func init() {
	for _, deviceKind := range backends.DeviceKinds() {
		if !deviceKind.HasNativeProvider() {
			continue
		}
		register := func(opType backends.OpType, kernel kernels.Kernel) {
			kernels.RegisterAnyDType(deviceKind, opType, kernel, Name(opType, deviceKind))
		}
		register(backends.OpTypeGather, gatherKernel{})
		register(backends.OpTypeGatherElements, gatherElementsKernel{})
		for _, kind := range ops.ReduceKinds() {
			register(kind.OpType(), reduceKernel{kind: kind})
		}
		register(backends.OpTypeWhere, whereKernel{})
	}
}

// Name of the native kernel of an operator type for a device kind, e.g. "ReduceSum_native_cpu".
func Name(opType backends.OpType, deviceKind backends.DeviceKind) string {
	return fmt.Sprintf("%s_native_%s", opType, deviceKind)
}

// delegating implements the part of kernels.Kernel common to all native kernels.
type delegating struct{}

// Tune implements kernels.Kernel: the provider does its own algorithm selection, so there is nothing to measure.
func (delegating) Tune(ops.Operator, device.Context) (kernels.PerfRecord, error) {
	return kernels.PerfRecord{}, nil
}

// prepare binds the native descriptor of op if needed, and returns the raw buffers of the output followed by
// the inputs.
func prepare(op ops.NativeBinder, ctx device.Context) (provider.Provider, provider.Descriptor, [][]byte, error) {
	if err := op.InitNative(ctx); err != nil {
		return nil, provider.NullDescriptor, nil, err
	}
	native := op.NativeDescriptor()
	if native.Provider() != ctx.Provider() {
		return nil, provider.NullDescriptor, nil, errors.Errorf("%s: native descriptor was bound to provider %q, not to the provider of device %s",
			op, native.Provider().Name(), ctx.Kind())
	}
	operands := append(op.Outputs(), op.Inputs()...)
	buffers := make([][]byte, len(operands))
	for ii, operand := range operands {
		if !operand.IsDataBound() {
			return nil, provider.NullDescriptor, nil, errors.Errorf("%s: operand #%d (guid %d) has no data bound", op, ii, operand.GUID())
		}
		buffers[ii] = operand.Bytes()
	}
	return native.Provider(), native.Descriptor(), buffers, nil
}

func checkStatus(op ops.Operator, status provider.Status) error {
	if err := provider.Check(status, op.OpType().String()); err != nil {
		return errors.WithMessagef(err, "executing %s", op)
	}
	return nil
}

func castOp[T ops.NativeBinder](op ops.Operator) (T, error) {
	typed, ok := op.(T)
	if !ok {
		var zero T
		return zero, errors.Errorf("native kernel for %T given operator %s", zero, op)
	}
	return typed, nil
}

type gatherKernel struct{ delegating }

// Compute implements kernels.Kernel.
func (gatherKernel) Compute(op ops.Operator, ctx device.Context) error {
	gather, err := castOp[*ops.Gather](op)
	if err != nil {
		return err
	}
	p, desc, buffers, err := prepare(gather, ctx)
	if err != nil {
		return err
	}
	return checkStatus(op, p.Gather(desc, buffers[0], buffers[1], buffers[2], ctx.CurrentStream()))
}

type gatherElementsKernel struct{ delegating }

// Compute implements kernels.Kernel.
func (gatherElementsKernel) Compute(op ops.Operator, ctx device.Context) error {
	gather, err := castOp[*ops.GatherElements](op)
	if err != nil {
		return err
	}
	p, desc, buffers, err := prepare(gather, ctx)
	if err != nil {
		return err
	}
	return checkStatus(op, p.GatherElements(desc, buffers[0], buffers[1], buffers[2], ctx.CurrentStream()))
}

type whereKernel struct{ delegating }

// Compute implements kernels.Kernel.
func (whereKernel) Compute(op ops.Operator, ctx device.Context) error {
	where, err := castOp[*ops.Where](op)
	if err != nil {
		return err
	}
	p, desc, buffers, err := prepare(where, ctx)
	if err != nil {
		return err
	}
	return checkStatus(op, p.Where(desc, buffers[0], buffers[1], buffers[2], buffers[3], ctx.CurrentStream()))
}

// reduceKernel executes the reductions: the kind selects the provider entry points.
type reduceKernel struct {
	delegating
	kind ops.ReduceKind
}

// Compute implements kernels.Kernel.
//
// It queries the workspace size the provider needs, and fails if it exceeds the device workspace capacity.
func (k reduceKernel) Compute(op ops.Operator, ctx device.Context) error {
	reduce, err := castOp[*ops.Reduce](op)
	if err != nil {
		return err
	}
	if reduce.Kind() != k.kind {
		return errors.Errorf("%s kernel given operator %s", k.kind, op)
	}
	p, desc, buffers, err := prepare(reduce, ctx)
	if err != nil {
		return err
	}
	entryPoints := k.kind.EntryPoints()
	workspaceSize, status := entryPoints.WorkspaceSize(p, desc)
	if err := checkStatus(op, status); err != nil {
		return err
	}
	err = device.WithWorkspace(ctx, workspaceSize, func(workspace []byte) error {
		return checkStatus(op, entryPoints.Compute(p, desc, workspace, buffers[0], buffers[1], ctx.CurrentStream()))
	})
	if err != nil {
		return errors.WithMessagef(err, "%s on device %s", op, ctx.Kind())
	}
	return nil
}
