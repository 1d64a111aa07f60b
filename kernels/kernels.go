// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package kernels holds the registry of kernels: the executors of operators for a device kind.
//
// Kernels are registered during initialization (in `init()` functions of the executor packages, see
// kernels/default), keyed by device kind, operator type and dtype. The first lookup seals the registry: from then
// on it is read-only, lookups are safe for concurrent use, and registering panics.
//
// There is no fallback: if no kernel is registered for a combination, Lookup returns an error wrapping
// ErrUnsupported.
package kernels

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/device"
	"github.com/gomlx/opkernels/ops"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Kernel executes operators of one type on a device.
type Kernel interface {
	// Compute runs the operator once. The operands must be bound.
	Compute(op ops.Operator, ctx device.Context) error

	// Tune measures the kernel on the operator. It doesn't change the results of Compute.
	// Kernels that can't be tuned return an empty PerfRecord.
	Tune(op ops.Operator, ctx device.Context) (PerfRecord, error)
}

// AnyDType is the dtype of the key of kernels registered for all dtypes.
const AnyDType = dtypes.InvalidDType

// Key of a kernel in the registry.
type Key struct {
	Device backends.DeviceKind
	OpType backends.OpType
	DType  dtypes.DType
}

// String implements fmt.Stringer.
func (k Key) String() string {
	dtype := "*"
	if k.DType != AnyDType {
		dtype = k.DType.String()
	}
	return fmt.Sprintf("%s/%s/%s", k.Device, k.OpType, dtype)
}

// Entry is a registered kernel.
type Entry struct {
	Key    Key
	Name   string
	Kernel Kernel
}

// ErrUnsupported is wrapped by the errors returned by Lookup when no kernel matches.
var ErrUnsupported = errors.New("unsupported operator/device/dtype combination")

// Registry of kernels. Most users use the package level functions, which use the default registry.
type Registry struct {
	mu      sync.Mutex
	sealed  atomic.Bool
	entries map[Key]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Key]Entry)}
}

// Register a kernel under the key (deviceKind, opType, dtype). Use AnyDType for a kernel that handles all dtypes.
//
// It panics if the key is already registered, if the registry is sealed, or if the arguments are invalid:
// these are programming errors.
func (r *Registry) Register(deviceKind backends.DeviceKind, opType backends.OpType, dtype dtypes.DType, kernel Kernel, name string) {
	key := Key{Device: deviceKind, OpType: opType, DType: dtype}
	if deviceKind == backends.DeviceInvalid || opType <= backends.OpTypeInvalid || opType >= backends.OpTypeLast {
		exceptions.Panicf("kernels.Register(%q): invalid key %s", name, key)
	}
	if kernel == nil || name == "" {
		exceptions.Panicf("kernels.Register(%s): kernel and name must be given", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed.Load() {
		exceptions.Panicf("kernels.Register(%q): registry is sealed, kernels can only be registered during initialization", name)
	}
	if previous, found := r.entries[key]; found {
		exceptions.Panicf("kernels.Register(%q): key %s already registered by %q", name, key, previous.Name)
	}
	r.entries[key] = Entry{Key: key, Name: name, Kernel: kernel}
}

// RegisterAnyDType registers a kernel for all dtypes of (deviceKind, opType).
// A kernel registered for a specific dtype takes precedence.
func (r *Registry) RegisterAnyDType(deviceKind backends.DeviceKind, opType backends.OpType, kernel Kernel, name string) {
	r.Register(deviceKind, opType, AnyDType, kernel, name)
}

// Seal makes the registry read-only. It is idempotent, and called by the first Lookup.
func (r *Registry) Seal() {
	if r.sealed.Load() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sealed.Load() {
		r.sealed.Store(true)
		klog.V(1).Infof("kernels: registry sealed with %d kernels", len(r.entries))
	}
}

// IsSealed returns whether the registry has been sealed.
func (r *Registry) IsSealed() bool { return r.sealed.Load() }

// Lookup returns the kernel for the key: the one registered for the exact dtype if any, otherwise the one
// registered for AnyDType. If none matches, it returns an error wrapping ErrUnsupported.
func (r *Registry) Lookup(deviceKind backends.DeviceKind, opType backends.OpType, dtype dtypes.DType) (Entry, error) {
	r.Seal()
	key := Key{Device: deviceKind, OpType: opType, DType: dtype}
	if entry, found := r.entries[key]; found {
		return entry, nil
	}
	key.DType = AnyDType
	if entry, found := r.entries[key]; found {
		return entry, nil
	}
	return Entry{}, errors.Wrapf(ErrUnsupported, "no kernel for %s on device %s with dtype %s", opType, deviceKind, dtype)
}

// LookupFor returns the kernel for the operator on the device.
func (r *Registry) LookupFor(op ops.Operator, ctx device.Context) (Entry, error) {
	entry, err := r.Lookup(ctx.Kind(), op.OpType(), op.DType())
	if err != nil {
		return Entry{}, errors.WithMessagef(err, "dispatching %s", op)
	}
	klog.V(1).Infof("kernels: %s dispatched to %q", op, entry.Name)
	return entry, nil
}

// List returns all the registered kernels, sorted by key.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Or(
			cmp.Compare(a.Key.Device, b.Key.Device),
			cmp.Compare(a.Key.OpType, b.Key.OpType),
			cmp.Compare(a.Key.DType, b.Key.DType))
	})
	return entries
}

// String lists the registered kernels, one per line.
func (r *Registry) String() string {
	var sb strings.Builder
	for _, entry := range r.List() {
		fmt.Fprintf(&sb, "%s: %s\n", entry.Key, entry.Name)
	}
	return sb.String()
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry used by the package level functions.
func Default() *Registry { return defaultRegistry }

// Register a kernel in the default registry. See Registry.Register.
func Register(deviceKind backends.DeviceKind, opType backends.OpType, dtype dtypes.DType, kernel Kernel, name string) {
	defaultRegistry.Register(deviceKind, opType, dtype, kernel, name)
}

// RegisterAnyDType registers a kernel for all dtypes in the default registry. See Registry.RegisterAnyDType.
func RegisterAnyDType(deviceKind backends.DeviceKind, opType backends.OpType, kernel Kernel, name string) {
	defaultRegistry.RegisterAnyDType(deviceKind, opType, kernel, name)
}

// Lookup a kernel in the default registry. See Registry.Lookup.
func Lookup(deviceKind backends.DeviceKind, opType backends.OpType, dtype dtypes.DType) (Entry, error) {
	return defaultRegistry.Lookup(deviceKind, opType, dtype)
}

// LookupFor returns the kernel of the default registry for the operator on the device.
func LookupFor(op ops.Operator, ctx device.Context) (Entry, error) {
	return defaultRegistry.LookupFor(op, ctx)
}

// List the kernels of the default registry.
func List() []Entry { return defaultRegistry.List() }
