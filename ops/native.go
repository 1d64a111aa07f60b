// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/device"
	"github.com/gomlx/opkernels/provider"
	"github.com/gomlx/opkernels/types/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// NativeBinder is implemented by operators that can be executed by a native provider.
type NativeBinder interface {
	Operator

	// InitNative creates the native descriptor of the operator for the provider of the device.
	// It is a no-op if the operator is already bound.
	// If it fails, the operator is left unbound.
	InitNative(ctx device.Context) error

	// NativeDescriptor returns the descriptor owned by the operator, possibly unbound.
	NativeDescriptor() *NativeDescriptor
}

// destroyFn destroys an operator descriptor of a provider.
type destroyFn func(p provider.Provider, desc provider.Descriptor) provider.Status

// NativeDescriptor owns a provider operator descriptor. It is either unbound (zero value) or bound.
//
// It must not be copied once bound: only the owning operator finalizes it.
type NativeDescriptor struct {
	provider   provider.Provider
	descriptor provider.Descriptor
	destroy    destroyFn
	owner      string
}

// IsBound returns whether the descriptor has been created.
func (d *NativeDescriptor) IsBound() bool {
	return d.descriptor != provider.NullDescriptor
}

// Descriptor returns the provider descriptor, or provider.NullDescriptor if unbound.
func (d *NativeDescriptor) Descriptor() provider.Descriptor { return d.descriptor }

// Provider that created the descriptor, or nil if unbound.
func (d *NativeDescriptor) Provider() provider.Provider { return d.provider }

// Finalize destroys the descriptor, if bound. Failures, returned or panicked, are logged and not propagated.
// After Finalize the descriptor is unbound, so it is destroyed at most once.
func (d *NativeDescriptor) Finalize() {
	if !d.IsBound() {
		return
	}
	p, desc, destroy, owner := d.provider, d.descriptor, d.destroy, d.owner
	*d = NativeDescriptor{}
	var err error
	exception := exceptions.Try(func() {
		err = provider.Check(destroy(p, desc), "Destroy"+owner+"Descriptor")
	})
	if exception != nil {
		klog.Warningf("ops: panic while destroying native descriptor of %s: %v", owner, exception)
		return
	}
	if err != nil {
		klog.Warningf("ops: failed to destroy native descriptor of %s: %+v", owner, err)
	}
}

// NativeDType returns the dtype a Where condition of the given dtype is described with to a provider:
// Bool is encoded as Uint8 (true=1, false=0), others are unchanged.
func NativeDType(dtype dtypes.DType) dtypes.DType {
	if dtype == dtypes.Bool {
		return dtypes.Uint8
	}
	return dtype
}

// createFn creates an operator descriptor from the tensor descriptors of the output followed by the inputs.
type createFn func(p provider.Provider, handle provider.Handle, tensors []provider.TensorDescriptor) (provider.Descriptor, provider.Status)

// bind creates the native descriptor of an operator: it creates one transient tensor descriptor per shape
// (output first, then the inputs), calls create, and destroys the transient descriptors.
func (d *NativeDescriptor) bind(ctx device.Context, owner string, operandShapes []shapes.Shape, create createFn, destroy destroyFn) error {
	if d.IsBound() {
		return nil
	}
	p := ctx.Provider()
	if p == nil {
		return errors.Errorf("%s: device %s has no native provider", owner, ctx.Kind())
	}
	tensorDescs := make([]provider.TensorDescriptor, 0, len(operandShapes))
	defer func() {
		for _, td := range tensorDescs {
			if err := provider.Check(p.DestroyTensorDescriptor(td), "DestroyTensorDescriptor"); err != nil {
				klog.Warningf("ops: %s: %+v", owner, err)
			}
		}
	}()
	for _, shape := range operandShapes {
		td, status := p.CreateTensorDescriptor(shape.Dimensions, nil, shape.DType)
		if err := provider.Check(status, "CreateTensorDescriptor"); err != nil {
			return errors.WithMessagef(err, "%s: binding operand of shape %s with provider %q", owner, shape, p.Name())
		}
		tensorDescs = append(tensorDescs, td)
	}
	desc, status := create(p, ctx.NativeHandle(), tensorDescs)
	if err := provider.Check(status, "Create"+owner+"Descriptor"); err != nil {
		return errors.WithMessagef(err, "%s: binding with provider %q", owner, p.Name())
	}
	*d = NativeDescriptor{provider: p, descriptor: desc, destroy: destroy, owner: owner}
	klog.V(2).Infof("ops: %s bound to native descriptor %d of provider %q", owner, desc, p.Name())
	return nil
}

// nativeNode is the base of operators with a native descriptor.
type nativeNode struct {
	node
	native NativeDescriptor
}

// NativeDescriptor implements NativeBinder.
func (n *nativeNode) NativeDescriptor() *NativeDescriptor { return &n.native }

// Finalize implements Operator: it destroys the native descriptor if bound.
func (n *nativeNode) Finalize() { n.native.Finalize() }

// operandShapes returns the shapes of the output followed by the inputs.
func (n *nativeNode) operandShapes() []shapes.Shape {
	all := make([]shapes.Shape, 0, 1+len(n.inputs))
	all = append(all, n.output.Shape())
	for _, input := range n.inputs {
		all = append(all, input.Shape())
	}
	return all
}
