// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostprovider

import (
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/backends/shapeinference"
	"github.com/gomlx/opkernels/internal/loops"
	"github.com/gomlx/opkernels/provider"
	"github.com/gomlx/opkernels/types"
	"github.com/gomlx/opkernels/types/shapes"
	"k8s.io/klog/v2"
)

// reduceState is the part of a reduction descriptor computed at creation.
type reduceState struct {
	plan          *loops.ReducePlan
	workspaceSize uint64
}

func (p *Provider) createReduceDescriptor(op backends.OpType, handle provider.Handle, output, input provider.TensorDescriptor,
	axes []int, keepDims bool) (provider.Descriptor, provider.Status) {
	p.mu.Lock()
	tensorShapes, status := p.lockedTensorShapes(handle, output, input)
	p.mu.Unlock()
	if status != provider.Success {
		return provider.NullDescriptor, status
	}
	outputShape, inputShape := tensorShapes[0], tensorShapes[1]
	if outputShape.DType != inputShape.DType {
		return provider.NullDescriptor, provider.BadTensorDType
	}
	axesSet := types.MakeSet[int](len(axes))
	for _, axis := range axes {
		if axis < 0 || axis >= inputShape.Rank() || axesSet.Has(axis) {
			return provider.NullDescriptor, provider.BadParam
		}
		axesSet.Insert(axis)
	}
	want, err := shapeinference.ReduceOp(inputShape, axesSet, keepDims)
	if err != nil || !want.Equal(outputShape) {
		klog.V(2).Infof("%s provider: Create%sDescriptor: output %s, expected %s (err=%v)", p.name, op, outputShape, want, err)
		return provider.NullDescriptor, provider.BadTensorShape
	}
	plan := loops.NewReducePlan(inputShape.Dimensions, axesSet)
	return p.registerDesc(&opDesc{
		op:     op,
		handle: handle,
		output: outputShape,
		inputs: []shapes.Shape{inputShape},
		reduce: &reduceState{
			plan:          plan,
			workspaceSize: uint64(loops.ReduceScratchSize(inputShape.DType, plan)),
		},
	}), provider.Success
}

func (p *Provider) reduceWorkspaceSize(op backends.OpType, desc provider.Descriptor) (uint64, provider.Status) {
	d, status := p.getDesc(desc, op)
	if status != provider.Success {
		return 0, status
	}
	return d.reduce.workspaceSize, provider.Success
}

func (p *Provider) reduce(op backends.OpType, desc provider.Descriptor, workspace, output, input []byte) provider.Status {
	d, status := p.getDesc(desc, op)
	if status != provider.Success {
		return status
	}
	if !checkBuffer(output, d.output) || !checkBuffer(input, d.inputs[0]) {
		return provider.BadParam
	}
	if uint64(len(workspace)) < d.reduce.workspaceSize {
		return provider.InsufficientWorkspace
	}
	err := loops.ReduceBuffers(d.reduce.plan, op, d.output.DType, output, input, workspace, p.split)
	if err != nil {
		klog.V(1).Infof("%s provider: %s failed: %+v", p.name, op, err)
		return provider.ExecutionFailed
	}
	return provider.Success
}

// CreateReduceMeanDescriptor implements provider.Provider.
func (p *Provider) CreateReduceMeanDescriptor(handle provider.Handle, output, input provider.TensorDescriptor, axes []int, keepDims bool) (provider.Descriptor, provider.Status) {
	return p.createReduceDescriptor(backends.OpTypeReduceMean, handle, output, input, axes, keepDims)
}

// GetReduceMeanWorkspaceSize implements provider.Provider.
func (p *Provider) GetReduceMeanWorkspaceSize(desc provider.Descriptor) (uint64, provider.Status) {
	return p.reduceWorkspaceSize(backends.OpTypeReduceMean, desc)
}

// ReduceMean implements provider.Provider.
func (p *Provider) ReduceMean(desc provider.Descriptor, workspace, output, input []byte, _ provider.Stream) provider.Status {
	return p.reduce(backends.OpTypeReduceMean, desc, workspace, output, input)
}

// DestroyReduceMeanDescriptor implements provider.Provider.
func (p *Provider) DestroyReduceMeanDescriptor(desc provider.Descriptor) provider.Status {
	return p.destroyDesc(desc, backends.OpTypeReduceMean)
}

// CreateReduceMaxDescriptor implements provider.Provider.
func (p *Provider) CreateReduceMaxDescriptor(handle provider.Handle, output, input provider.TensorDescriptor, axes []int, keepDims bool) (provider.Descriptor, provider.Status) {
	return p.createReduceDescriptor(backends.OpTypeReduceMax, handle, output, input, axes, keepDims)
}

// GetReduceMaxWorkspaceSize implements provider.Provider.
func (p *Provider) GetReduceMaxWorkspaceSize(desc provider.Descriptor) (uint64, provider.Status) {
	return p.reduceWorkspaceSize(backends.OpTypeReduceMax, desc)
}

// ReduceMax implements provider.Provider.
func (p *Provider) ReduceMax(desc provider.Descriptor, workspace, output, input []byte, _ provider.Stream) provider.Status {
	return p.reduce(backends.OpTypeReduceMax, desc, workspace, output, input)
}

// DestroyReduceMaxDescriptor implements provider.Provider.
func (p *Provider) DestroyReduceMaxDescriptor(desc provider.Descriptor) provider.Status {
	return p.destroyDesc(desc, backends.OpTypeReduceMax)
}

// CreateReduceMinDescriptor implements provider.Provider.
func (p *Provider) CreateReduceMinDescriptor(handle provider.Handle, output, input provider.TensorDescriptor, axes []int, keepDims bool) (provider.Descriptor, provider.Status) {
	return p.createReduceDescriptor(backends.OpTypeReduceMin, handle, output, input, axes, keepDims)
}

// GetReduceMinWorkspaceSize implements provider.Provider.
func (p *Provider) GetReduceMinWorkspaceSize(desc provider.Descriptor) (uint64, provider.Status) {
	return p.reduceWorkspaceSize(backends.OpTypeReduceMin, desc)
}

// ReduceMin implements provider.Provider.
func (p *Provider) ReduceMin(desc provider.Descriptor, workspace, output, input []byte, _ provider.Stream) provider.Status {
	return p.reduce(backends.OpTypeReduceMin, desc, workspace, output, input)
}

// DestroyReduceMinDescriptor implements provider.Provider.
func (p *Provider) DestroyReduceMinDescriptor(desc provider.Descriptor) provider.Status {
	return p.destroyDesc(desc, backends.OpTypeReduceMin)
}

// CreateReduceSumDescriptor implements provider.Provider.
func (p *Provider) CreateReduceSumDescriptor(handle provider.Handle, output, input provider.TensorDescriptor, axes []int, keepDims bool) (provider.Descriptor, provider.Status) {
	return p.createReduceDescriptor(backends.OpTypeReduceSum, handle, output, input, axes, keepDims)
}

// GetReduceSumWorkspaceSize implements provider.Provider.
func (p *Provider) GetReduceSumWorkspaceSize(desc provider.Descriptor) (uint64, provider.Status) {
	return p.reduceWorkspaceSize(backends.OpTypeReduceSum, desc)
}

// ReduceSum implements provider.Provider.
func (p *Provider) ReduceSum(desc provider.Descriptor, workspace, output, input []byte, _ provider.Stream) provider.Status {
	return p.reduce(backends.OpTypeReduceSum, desc, workspace, output, input)
}

// DestroyReduceSumDescriptor implements provider.Provider.
func (p *Provider) DestroyReduceSumDescriptor(desc provider.Descriptor) provider.Status {
	return p.destroyDesc(desc, backends.OpTypeReduceSum)
}
