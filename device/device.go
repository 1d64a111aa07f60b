// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package device defines the execution context kernels run on: the device kind and id, its native provider
// handle, its current stream, and the scratch workspace buffers available to the provider.
//
// Host is the implementation for devices whose memory is the host memory: the pure Go device, and the
// devices backed by a provider that works on host buffers (see package provider/hostprovider).
package device

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/provider"
	"github.com/gomlx/opkernels/provider/hostprovider"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Context is what kernels see of the device they execute on.
type Context interface {
	// Kind of the device, used to select kernels.
	Kind() backends.DeviceKind

	// ID of the device among the devices of the same kind.
	ID() int

	// Provider returns the native kernel provider, or nil if the device has none (DeviceGo).
	Provider() provider.Provider

	// NativeHandle returns the provider handle for this device.
	NativeHandle() provider.Handle

	// CurrentStream returns the stream provider calls should be issued on.
	CurrentStream() provider.Stream

	// WorkspaceCapacity is the maximum size in bytes of a workspace that can be acquired.
	WorkspaceCapacity() uint64

	// AcquireWorkspace returns a scratch buffer of the given size. It must be released when no longer needed,
	// and must not be held across kernel calls. See WithWorkspace.
	AcquireWorkspace(bytes uint64) (*Workspace, error)

	// Finalize releases the device resources. It is idempotent.
	Finalize()
}

// DefaultWorkspaceCapacity is the workspace capacity used if none is configured.
const DefaultWorkspaceCapacity = 64 * humanize.MiByte

// OPKERNELS_WORKSPACE is the environment variable with the workspace capacity of devices created with
// NewFromEnv. It accepts humanized sizes, like "64MiB" or "1GB".
const OPKERNELS_WORKSPACE = "OPKERNELS_WORKSPACE"

// Host implements Context for devices computing on host memory.
type Host struct {
	kind     backends.DeviceKind
	id       int
	tag      uuid.UUID
	provider provider.Provider
	handle   provider.Handle
	stream   provider.Stream
	capacity uint64

	// workspacePools maps a size (uint64) to a *sync.Pool of buffers of that size.
	workspacePools sync.Map
	liveWorkspaces atomic.Int64

	finalizeOnce sync.Once
}

var _ Context = (*Host)(nil)

// Option for New.
type Option func(h *Host)

// WithProvider sets the native provider of the device. The default for devices with a native provider
// is a new hostprovider.Provider.
func WithProvider(p provider.Provider) Option {
	return func(h *Host) { h.provider = p }
}

// WithWorkspaceCapacity sets the maximum workspace size. Default is DefaultWorkspaceCapacity.
func WithWorkspaceCapacity(bytes uint64) Option {
	return func(h *Host) { h.capacity = bytes }
}

// WithDeviceID sets the id of the device. Default is 0.
func WithDeviceID(id int) Option {
	return func(h *Host) { h.id = id }
}

// WithStream sets the stream returned by CurrentStream.
func WithStream(stream provider.Stream) Option {
	return func(h *Host) { h.stream = stream }
}

// New creates a device of the given kind.
//
// For kinds with a native provider, it creates the provider handle for the device.
func New(kind backends.DeviceKind, options ...Option) (*Host, error) {
	if kind == backends.DeviceInvalid {
		return nil, errors.New("device.New(): invalid device kind")
	}
	h := &Host{
		kind:     kind,
		tag:      uuid.New(),
		capacity: DefaultWorkspaceCapacity,
	}
	for _, option := range options {
		option(h)
	}
	if h.id < 0 {
		return nil, errors.Errorf("device.New(%s): invalid device id %d", kind, h.id)
	}
	if !kind.HasNativeProvider() {
		if h.provider != nil {
			return nil, errors.Errorf("device.New(%s): device kind doesn't take a native provider", kind)
		}
		return h, nil
	}
	if h.provider == nil {
		h.provider = hostprovider.New(hostprovider.WithName(kind.String()))
	}
	handle, status := h.provider.CreateHandle(h.id)
	if err := provider.Check(status, "CreateHandle"); err != nil {
		return nil, errors.WithMessagef(err, "device.New(%s:%d) with provider %q", kind, h.id, h.provider.Name())
	}
	h.handle = handle
	klog.V(1).Infof("device %s created (tag %s, workspace capacity %s)", h, h.tag, humanize.IBytes(h.capacity))
	return h, nil
}

// NewFromEnv creates a device configured by the environment variables OPKERNELS_DEVICE (see backends.ParseConfig)
// and OPKERNELS_WORKSPACE.
func NewFromEnv(options ...Option) (*Host, error) {
	config := backends.ConfigFromEnv()
	kind, id, err := backends.ParseConfig(config)
	if err != nil {
		return nil, err
	}
	capacity := uint64(DefaultWorkspaceCapacity)
	if value, found := os.LookupEnv(OPKERNELS_WORKSPACE); found && value != "" {
		capacity, err = humanize.ParseBytes(value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s=%q", OPKERNELS_WORKSPACE, value)
		}
	}
	options = append([]Option{WithDeviceID(id), WithWorkspaceCapacity(capacity)}, options...)
	return New(kind, options...)
}

// String implements fmt.Stringer, as "<kind>:<id>".
func (h *Host) String() string {
	return fmt.Sprintf("%s:%d", h.kind, h.id)
}

// Kind implements Context.
func (h *Host) Kind() backends.DeviceKind { return h.kind }

// ID implements Context.
func (h *Host) ID() int { return h.id }

// Tag is a unique identifier of this device instance, used in logs.
func (h *Host) Tag() uuid.UUID { return h.tag }

// Provider implements Context.
func (h *Host) Provider() provider.Provider { return h.provider }

// NativeHandle implements Context.
func (h *Host) NativeHandle() provider.Handle { return h.handle }

// CurrentStream implements Context.
func (h *Host) CurrentStream() provider.Stream { return h.stream }

// WorkspaceCapacity implements Context.
func (h *Host) WorkspaceCapacity() uint64 { return h.capacity }

// Finalize implements Context: it destroys the provider handle. Failures are logged, not returned.
func (h *Host) Finalize() {
	h.finalizeOnce.Do(func() {
		if h.provider == nil || h.handle == 0 {
			return
		}
		if err := provider.Check(h.provider.DestroyHandle(h.handle), "DestroyHandle"); err != nil {
			klog.Warningf("device %s: failed to destroy provider handle: %+v", h, err)
		}
		h.handle = 0
	})
}
