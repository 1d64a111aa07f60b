// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

//go:build !nonative

package _default

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/kernels"
	"github.com/gomlx/opkernels/kernels/naive"
	"github.com/gomlx/opkernels/kernels/native"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
)

func TestDefaultKernels(t *testing.T) {
	entry := must.M1(kernels.Lookup(backends.DeviceCPU, backends.OpTypeReduceMax, dtypes.Float32))
	assert.Equal(t, native.Name(backends.OpTypeReduceMax, backends.DeviceCPU), entry.Name)
	entry = must.M1(kernels.Lookup(backends.DeviceCPU, backends.OpTypeMatMul, dtypes.Float32))
	assert.Equal(t, naive.Name(backends.OpTypeMatMul, backends.DeviceCPU, dtypes.Float32), entry.Name)
	entry = must.M1(kernels.Lookup(backends.DeviceGo, backends.OpTypeWhere, dtypes.Bool))
	assert.Equal(t, naive.Name(backends.OpTypeWhere, backends.DeviceGo, dtypes.Bool), entry.Name)
	assert.NotEmpty(t, kernels.List())
}
