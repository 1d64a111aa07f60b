// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostprovider

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/backends/shapeinference"
	"github.com/gomlx/opkernels/internal/loops"
	"github.com/gomlx/opkernels/provider"
	"github.com/gomlx/opkernels/types/shapes"
	"k8s.io/klog/v2"
)

// CreateWhereDescriptor implements provider.Provider. The condition must be described as Uint8.
func (p *Provider) CreateWhereDescriptor(handle provider.Handle, output, x, y, condition provider.TensorDescriptor) (provider.Descriptor, provider.Status) {
	p.mu.Lock()
	tensorShapes, status := p.lockedTensorShapes(handle, output, x, y, condition)
	p.mu.Unlock()
	if status != provider.Success {
		return provider.NullDescriptor, status
	}
	outputShape, xShape, yShape, conditionShape := tensorShapes[0], tensorShapes[1], tensorShapes[2], tensorShapes[3]
	if conditionShape.DType != dtypes.Uint8 || xShape.DType != yShape.DType || outputShape.DType != xShape.DType {
		return provider.NullDescriptor, provider.BadTensorDType
	}
	want, err := shapeinference.WhereOp(xShape, yShape, conditionShape)
	if err != nil || !want.Equal(outputShape) {
		klog.V(2).Infof("%s provider: CreateWhereDescriptor: output %s, expected %s (err=%v)", p.name, outputShape, want, err)
		return provider.NullDescriptor, provider.BadTensorShape
	}
	return p.registerDesc(&opDesc{
		op:     backends.OpTypeWhere,
		handle: handle,
		output: outputShape,
		inputs: []shapes.Shape{xShape, yShape, conditionShape},
	}), provider.Success
}

// Where implements provider.Provider.
func (p *Provider) Where(desc provider.Descriptor, output, x, y, condition []byte, _ provider.Stream) provider.Status {
	d, status := p.getDesc(desc, backends.OpTypeWhere)
	if status != provider.Success {
		return status
	}
	xShape, yShape, conditionShape := d.inputs[0], d.inputs[1], d.inputs[2]
	if !checkBuffer(output, d.output) || !checkBuffer(x, xShape) || !checkBuffer(y, yShape) ||
		!checkBuffer(condition, conditionShape) {
		return provider.BadParam
	}
	err := loops.Where(output, x, y, condition, xShape.Dimensions, yShape.Dimensions, conditionShape.Dimensions,
		d.output.Dimensions, loops.ElementSize(d.output.DType), p.split)
	if err != nil {
		klog.V(1).Infof("%s provider: Where failed: %+v", p.name, err)
		return provider.ExecutionFailed
	}
	return provider.Success
}

// DestroyWhereDescriptor implements provider.Provider.
func (p *Provider) DestroyWhereDescriptor(desc provider.Descriptor) provider.Status {
	return p.destroyDesc(desc, backends.OpTypeWhere)
}
