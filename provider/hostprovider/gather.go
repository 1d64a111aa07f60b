// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostprovider

import (
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/backends/shapeinference"
	"github.com/gomlx/opkernels/internal/loops"
	"github.com/gomlx/opkernels/provider"
	"github.com/gomlx/opkernels/types/shapes"
	"k8s.io/klog/v2"
)

// createGatherFamilyDescriptor validates and registers a Gather or GatherElements descriptor.
func (p *Provider) createGatherFamilyDescriptor(op backends.OpType, handle provider.Handle,
	output, input, indices provider.TensorDescriptor, axis int) (provider.Descriptor, provider.Status) {
	p.mu.Lock()
	tensorShapes, status := p.lockedTensorShapes(handle, output, input, indices)
	p.mu.Unlock()
	if status != provider.Success {
		return provider.NullDescriptor, status
	}
	outputShape, inputShape, indicesShape := tensorShapes[0], tensorShapes[1], tensorShapes[2]
	if !shapeinference.IndexDTypes.Has(indicesShape.DType) || outputShape.DType != inputShape.DType {
		return provider.NullDescriptor, provider.BadTensorDType
	}
	if axis < 0 || axis >= inputShape.Rank() {
		return provider.NullDescriptor, provider.BadParam
	}
	var want shapes.Shape
	var err error
	if op == backends.OpTypeGather {
		want, err = shapeinference.GatherOp(inputShape, indicesShape, axis)
	} else {
		want, err = shapeinference.GatherElementsOp(inputShape, indicesShape, axis)
	}
	if err != nil || !want.Equal(outputShape) {
		klog.V(2).Infof("%s provider: Create%sDescriptor: output %s, expected %s (err=%v)", p.name, op, outputShape, want, err)
		return provider.NullDescriptor, provider.BadTensorShape
	}
	return p.registerDesc(&opDesc{
		op:     op,
		handle: handle,
		output: outputShape,
		inputs: []shapes.Shape{inputShape, indicesShape},
		axis:   axis,
	}), provider.Success
}

// CreateGatherDescriptor implements provider.Provider.
func (p *Provider) CreateGatherDescriptor(handle provider.Handle, output, input, indices provider.TensorDescriptor, axis int) (provider.Descriptor, provider.Status) {
	return p.createGatherFamilyDescriptor(backends.OpTypeGather, handle, output, input, indices, axis)
}

// Gather implements provider.Provider.
func (p *Provider) Gather(desc provider.Descriptor, output, input, indices []byte, _ provider.Stream) provider.Status {
	d, status := p.getDesc(desc, backends.OpTypeGather)
	if status != provider.Success {
		return status
	}
	inputShape, indicesShape := d.inputs[0], d.inputs[1]
	if !checkBuffer(output, d.output) || !checkBuffer(input, inputShape) || !checkBuffer(indices, indicesShape) {
		return provider.BadParam
	}
	err := loops.GatherBuffers(output, input, indices, inputShape.Dimensions, indicesShape.Size(), d.axis,
		inputShape.DType, indicesShape.DType, p.split)
	if err != nil {
		klog.V(1).Infof("%s provider: Gather failed: %+v", p.name, err)
		return provider.ExecutionFailed
	}
	return provider.Success
}

// DestroyGatherDescriptor implements provider.Provider.
func (p *Provider) DestroyGatherDescriptor(desc provider.Descriptor) provider.Status {
	return p.destroyDesc(desc, backends.OpTypeGather)
}

// CreateGatherElementsDescriptor implements provider.Provider.
func (p *Provider) CreateGatherElementsDescriptor(handle provider.Handle, output, input, indices provider.TensorDescriptor, axis int) (provider.Descriptor, provider.Status) {
	return p.createGatherFamilyDescriptor(backends.OpTypeGatherElements, handle, output, input, indices, axis)
}

// GatherElements implements provider.Provider.
func (p *Provider) GatherElements(desc provider.Descriptor, output, input, indices []byte, _ provider.Stream) provider.Status {
	d, status := p.getDesc(desc, backends.OpTypeGatherElements)
	if status != provider.Success {
		return status
	}
	inputShape, indicesShape := d.inputs[0], d.inputs[1]
	if !checkBuffer(output, d.output) || !checkBuffer(input, inputShape) || !checkBuffer(indices, indicesShape) {
		return provider.BadParam
	}
	err := loops.GatherElementsBuffers(output, input, indices, inputShape.Dimensions, indicesShape.Dimensions, d.axis,
		inputShape.DType, indicesShape.DType, p.split)
	if err != nil {
		klog.V(1).Infof("%s provider: GatherElements failed: %+v", p.name, err)
		return provider.ExecutionFailed
	}
	return provider.Success
}

// DestroyGatherElementsDescriptor implements provider.Provider.
func (p *Provider) DestroyGatherElementsDescriptor(desc provider.Descriptor) provider.Status {
	return p.destroyDesc(desc, backends.OpTypeGatherElements)
}
