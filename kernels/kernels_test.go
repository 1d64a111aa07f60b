// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"flag"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/device"
	"github.com/gomlx/opkernels/ops"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func TestMain(m *testing.M) {
	klog.InitFlags(nil)
	flag.Parse()
	os.Exit(m.Run())
}

type fakeKernel struct{ name string }

func (k *fakeKernel) Compute(ops.Operator, device.Context) error { return nil }
func (k *fakeKernel) Tune(ops.Operator, device.Context) (PerfRecord, error) {
	return PerfRecord{}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	sumF32 := &fakeKernel{"sum_f32"}
	sumAny := &fakeKernel{"sum_any"}
	r.Register(backends.DeviceCPU, backends.OpTypeReduceSum, dtypes.Float32, sumF32, "ReduceSum_f32")
	r.RegisterAnyDType(backends.DeviceCPU, backends.OpTypeReduceSum, sumAny, "ReduceSum_any")
	r.Register(backends.DeviceGo, backends.OpTypeWhere, dtypes.Int8, &fakeKernel{}, "Where_go")

	// Duplicates and invalid keys panic.
	require.Panics(t, func() {
		r.Register(backends.DeviceCPU, backends.OpTypeReduceSum, dtypes.Float32, sumF32, "again")
	})
	require.Panics(t, func() { r.Register(backends.DeviceInvalid, backends.OpTypeWhere, dtypes.Int8, sumF32, "x") })
	require.Panics(t, func() { r.Register(backends.DeviceGo, backends.OpTypeLast, dtypes.Int8, sumF32, "x") })
	require.Panics(t, func() { r.Register(backends.DeviceGo, backends.OpTypeGather, dtypes.Int8, nil, "x") })
	require.False(t, r.IsSealed())

	entry := must.M1(r.Lookup(backends.DeviceCPU, backends.OpTypeReduceSum, dtypes.Float32))
	assert.Same(t, sumF32, entry.Kernel)
	assert.Equal(t, "ReduceSum_f32", entry.Name)
	require.True(t, r.IsSealed())

	// Falls back to the any-dtype entry of the same device and op only.
	entry = must.M1(r.Lookup(backends.DeviceCPU, backends.OpTypeReduceSum, dtypes.Float64))
	assert.Same(t, sumAny, entry.Kernel)

	_, err := r.Lookup(backends.DeviceCUDA, backends.OpTypeReduceSum, dtypes.Float32)
	require.ErrorIs(t, err, ErrUnsupported)
	_, err = r.Lookup(backends.DeviceGo, backends.OpTypeWhere, dtypes.Int16)
	require.ErrorIs(t, err, ErrUnsupported)
	_, err = r.Lookup(backends.DeviceCPU, backends.OpTypeReduceMax, dtypes.Float32)
	require.ErrorIs(t, err, ErrUnsupported)

	// No registration after sealing.
	require.Panics(t, func() {
		r.Register(backends.DeviceCUDA, backends.OpTypeGather, dtypes.Int8, sumF32, "late")
	})

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, backends.DeviceGo, list[0].Key.Device)
	assert.Equal(t, AnyDType, list[1].Key.DType)
	assert.Equal(t, dtypes.Float32, list[2].Key.DType)
	assert.Contains(t, r.String(), "cpu/ReduceSum/*: ReduceSum_any")
}

func TestRegistryConcurrentLookups(t *testing.T) {
	r := NewRegistry()
	kernel := &fakeKernel{}
	r.Register(backends.DeviceCPU, backends.OpTypeGather, dtypes.Float32, kernel, "gather")
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				entry, err := r.Lookup(backends.DeviceCPU, backends.OpTypeGather, dtypes.Float32)
				if err != nil || entry.Kernel != kernel {
					t.Errorf("unexpected lookup result: %v, %v", entry, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "cuda/Gather/Float16", Key{backends.DeviceCUDA, backends.OpTypeGather, dtypes.Float16}.String())
	assert.Equal(t, "go/Where/*", Key{backends.DeviceGo, backends.OpTypeWhere, AnyDType}.String())
}

func TestTimeit(t *testing.T) {
	calls := 0
	elapsed := must.M1(Timeit(func() error {
		calls++
		time.Sleep(time.Millisecond)
		return nil
	}, 1, 3))
	assert.Equal(t, 4, calls)
	assert.GreaterOrEqual(t, elapsed, time.Millisecond)

	errFn := errors.New("failed")
	_, err := Timeit(func() error { return errFn }, 0, 1)
	require.ErrorIs(t, err, errFn)
	_, err = Timeit(func() error { return nil }, 0, 0)
	require.Error(t, err)
}

func TestPerfCache(t *testing.T) {
	c := NewPerfCache()
	workload := []int{3, 7, 2}
	_, found := c.Get("k", workload)
	require.False(t, found)

	c.Put("k", workload, PerfRecord{})
	record, found := c.Get("k", workload)
	require.True(t, found)
	assert.True(t, record.IsEmpty())

	c.Put("k", workload, PerfRecord{Time: 10})
	c.Put("k", workload, PerfRecord{Time: 20})
	c.Put("k", workload, PerfRecord{})
	record, _ = c.Get("k", workload)
	assert.Equal(t, time.Duration(10), record.Time)

	c.Put("k", []int{3, 72}, PerfRecord{Time: 5})
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "PerfRecord(empty)", PerfRecord{}.String())
}
