// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hostprovider implements a provider.Provider in pure Go, computing on host memory.
//
// It keeps every handle and descriptor it creates in a table, so invalid or already destroyed descriptors are
// reported with provider.BadDescriptor instead of crashing. Like most native libraries, it doesn't accept
// Bool tensors: callers should describe them as Uint8.
//
// Reductions of Float16 and BFloat16 are computed in float32, and require a workspace with room for the
// converted input and output (see loops.ReduceScratchSize). Large gathers, wheres and reductions are split in
// output ranges over a workerspool.Pool.
package hostprovider

import (
	"slices"
	"sync"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/internal/workerspool"
	"github.com/gomlx/opkernels/provider"
	"github.com/gomlx/opkernels/types/shapes"
	"k8s.io/klog/v2"
)

// SupportedDTypes are the dtypes accepted in tensor descriptors.
var SupportedDTypes = []dtypes.DType{
	dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
	dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
	dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64,
}

// DefaultMinChunk is the minimum number of output elements (or gathered slabs) handled by each parallel task.
const DefaultMinChunk = 4096

// Provider is a pure Go implementation of provider.Provider.
// Create it with New.
type Provider struct {
	name     string
	pool     *workerspool.Pool
	minChunk int

	mu      sync.Mutex
	nextID  uintptr
	handles map[provider.Handle]int
	tensors map[provider.TensorDescriptor]*tensorDesc
	descs   map[provider.Descriptor]*opDesc
}

var _ provider.Provider = (*Provider)(nil)

// Option for New.
type Option func(p *Provider)

// WithName sets the name of the provider, used in logs.
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithParallelism sets the soft limit of parallel tasks: 0 disables parallelism, -1 is unlimited.
// The default is runtime.NumCPU().
func WithParallelism(maxParallelism int) Option {
	return func(p *Provider) { p.pool.SetMaxParallelism(maxParallelism) }
}

// WithMinChunk sets the minimum number of output elements (or gathered slabs) handled by each parallel task.
func WithMinChunk(minChunk int) Option {
	return func(p *Provider) { p.minChunk = minChunk }
}

// New creates a new host provider.
func New(options ...Option) *Provider {
	p := &Provider{
		name:     "host",
		pool:     workerspool.New(),
		minChunk: DefaultMinChunk,
		nextID:   1,
		handles:  make(map[provider.Handle]int),
		tensors:  make(map[provider.TensorDescriptor]*tensorDesc),
		descs:    make(map[provider.Descriptor]*opDesc),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return p.name }

// split is the loops.Splitter of the provider: output ranges run in parallel in the workers pool.
func (p *Provider) split(n int, fn func(start, end int)) {
	p.pool.RunRanges(n, p.minChunk, fn)
}

// lockedNewID returns a new unique id, for any type of handle or descriptor.
func (p *Provider) lockedNewID() uintptr {
	id := p.nextID
	p.nextID++
	return id
}

// CreateHandle implements provider.Provider.
func (p *Provider) CreateHandle(deviceID int) (provider.Handle, provider.Status) {
	if deviceID < 0 {
		return 0, provider.BadParam
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	handle := provider.Handle(p.lockedNewID())
	p.handles[handle] = deviceID
	return handle, provider.Success
}

// DestroyHandle implements provider.Provider.
func (p *Provider) DestroyHandle(handle provider.Handle) provider.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, found := p.handles[handle]; !found {
		return provider.BadParam
	}
	delete(p.handles, handle)
	return provider.Success
}

// tensorDesc is the contents of a provider.TensorDescriptor.
type tensorDesc struct {
	shape shapes.Shape
}

// CreateTensorDescriptor implements provider.Provider.
func (p *Provider) CreateTensorDescriptor(dims, strides []int, dtype dtypes.DType) (provider.TensorDescriptor, provider.Status) {
	if !slices.Contains(SupportedDTypes, dtype) {
		return 0, provider.BadTensorDType
	}
	for _, dim := range dims {
		if dim < 0 {
			return 0, provider.BadTensorShape
		}
	}
	if strides != nil {
		if len(strides) != len(dims) {
			return 0, provider.BadParam
		}
		if !slices.Equal(strides, shapes.StridesFor(dims)) {
			// Only dense row-major layouts are supported.
			return 0, provider.NotSupported
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	desc := provider.TensorDescriptor(p.lockedNewID())
	p.tensors[desc] = &tensorDesc{shape: shapes.Make(dtype, dims...)}
	return desc, provider.Success
}

// DestroyTensorDescriptor implements provider.Provider.
func (p *Provider) DestroyTensorDescriptor(desc provider.TensorDescriptor) provider.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, found := p.tensors[desc]; !found {
		return provider.BadDescriptor
	}
	delete(p.tensors, desc)
	return provider.Success
}

// LiveTensorDescriptors returns the number of tensor descriptors created and not yet destroyed.
func (p *Provider) LiveTensorDescriptors() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tensors)
}

// LiveDescriptors returns the number of operator descriptors created and not yet destroyed.
func (p *Provider) LiveDescriptors() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.descs)
}

// opDesc is the contents of a provider.Descriptor.
type opDesc struct {
	op     backends.OpType
	handle provider.Handle
	output shapes.Shape
	inputs []shapes.Shape
	axis   int
	reduce *reduceState
}

// lockedTensorShapes returns the shapes of the given tensor descriptors, and validates the handle.
func (p *Provider) lockedTensorShapes(handle provider.Handle, descs ...provider.TensorDescriptor) ([]shapes.Shape, provider.Status) {
	if _, found := p.handles[handle]; !found {
		return nil, provider.BadParam
	}
	result := make([]shapes.Shape, len(descs))
	for ii, desc := range descs {
		t, found := p.tensors[desc]
		if !found {
			return nil, provider.BadDescriptor
		}
		result[ii] = t.shape.Clone()
	}
	return result, provider.Success
}

// registerDesc stores a new operator descriptor.
func (p *Provider) registerDesc(d *opDesc) provider.Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	desc := provider.Descriptor(p.lockedNewID())
	p.descs[desc] = d
	return desc
}

// getDesc returns the operator descriptor, if it exists and is of the given op type.
func (p *Provider) getDesc(desc provider.Descriptor, op backends.OpType) (*opDesc, provider.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, found := p.descs[desc]
	if !found || d.op != op {
		return nil, provider.BadDescriptor
	}
	return d, provider.Success
}

// destroyDesc removes the operator descriptor, if it exists and is of the given op type.
func (p *Provider) destroyDesc(desc provider.Descriptor, op backends.OpType) provider.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, found := p.descs[desc]
	if !found || d.op != op {
		klog.V(2).Infof("%s provider: Destroy%sDescriptor(%d) of invalid descriptor", p.name, op, desc)
		return provider.BadDescriptor
	}
	delete(p.descs, desc)
	return provider.Success
}

// checkBuffer returns whether the buffer has the exact number of bytes for shape.
func checkBuffer(buf []byte, shape shapes.Shape) bool {
	return uintptr(len(buf)) == shape.Memory()
}
