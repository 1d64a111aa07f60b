// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package device

import (
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/opkernels/types/tensors"
	"github.com/pkg/errors"
)

// Workspace is a scratch buffer borrowed from a device. Release returns it to the device.
type Workspace struct {
	buf     []byte
	release func(buf []byte)
}

// Bytes returns the buffer. It is 8-byte aligned, and its contents are undefined.
// It must not be used after Release.
func (w *Workspace) Bytes() []byte { return w.buf }

// Size of the workspace in bytes.
func (w *Workspace) Size() uint64 { return uint64(len(w.buf)) }

// Release returns the workspace to the device. It is idempotent.
func (w *Workspace) Release() {
	if w == nil || w.release == nil {
		return
	}
	release := w.release
	w.release = nil
	release(w.buf)
	w.buf = nil
}

// getWorkspacePool returns the pool of buffers of the given size.
func (h *Host) getWorkspacePool(size uint64) *sync.Pool {
	poolInterface, ok := h.workspacePools.Load(size)
	if !ok {
		poolInterface, _ = h.workspacePools.LoadOrStore(size, &sync.Pool{
			New: func() any {
				return tensors.AllocateBytes(int(size))
			},
		})
	}
	return poolInterface.(*sync.Pool)
}

// AcquireWorkspace implements Context.
func (h *Host) AcquireWorkspace(bytes uint64) (*Workspace, error) {
	if bytes > h.capacity {
		return nil, errors.Errorf("device %s: workspace of %s requested, but capacity is %s",
			h, humanize.IBytes(bytes), humanize.IBytes(h.capacity))
	}
	pool := h.getWorkspacePool(bytes)
	buf := pool.Get().([]byte)
	h.liveWorkspaces.Add(1)
	return &Workspace{
		buf: buf,
		release: func(buf []byte) {
			h.liveWorkspaces.Add(-1)
			pool.Put(buf) //nolint:staticcheck
		},
	}, nil
}

// LiveWorkspaces returns the number of workspaces acquired and not yet released.
func (h *Host) LiveWorkspaces() int {
	return int(h.liveWorkspaces.Load())
}

// WithWorkspace checks that a workspace of the required size fits the device capacity, acquires it,
// and calls fn with it. The workspace is released when fn returns or panics.
func WithWorkspace(ctx Context, required uint64, fn func(workspace []byte) error) error {
	if capacity := ctx.WorkspaceCapacity(); required > capacity {
		return errors.Errorf("insufficient workspace: %s required, device capacity is %s",
			humanize.IBytes(required), humanize.IBytes(capacity))
	}
	workspace, err := ctx.AcquireWorkspace(required)
	if err != nil {
		return err
	}
	defer workspace.Release()
	return fn(workspace.Bytes())
}
