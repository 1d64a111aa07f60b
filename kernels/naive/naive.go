// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package naive implements the direct kernels: portable loops executed in-process, used as the reference
// implementation on the pure Go device, and for MatMul on the CPU.
package naive

import (
	"fmt"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/device"
	"github.com/gomlx/opkernels/kernels"
	"github.com/gomlx/opkernels/ops"
	"github.com/pkg/errors"
)

// Name of a naive kernel, e.g. "MatMulNaive_CPU_float32".
func Name(opType backends.OpType, deviceKind backends.DeviceKind, dtype dtypes.DType) string {
	return fmt.Sprintf("%sNaive_%s_%s", opType, strings.ToUpper(deviceKind.String()), strings.ToLower(dtype.String()))
}

// DataDTypes are the dtypes of the data movement kernels (Gather, GatherElements, Where) of the Go device.
var DataDTypes = []dtypes.DType{
	dtypes.Bool,
	dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
	dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
	dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64,
}

// NumericDTypes are the dtypes of the arithmetic kernels (Reduce*) of the Go device.
var NumericDTypes = DataDTypes[1:]

// timed implements kernels.Kernel.Tune by measuring Compute.
type timed struct {
	compute func(op ops.Operator, ctx device.Context) error
}

// Number of runs used by Tune.
const (
	tuneWarmup = 1
	tuneRepeat = 3
)

// Tune implements kernels.Kernel.
func (k timed) Tune(op ops.Operator, ctx device.Context) (kernels.PerfRecord, error) {
	elapsed, err := kernels.Timeit(func() error { return k.compute(op, ctx) }, tuneWarmup, tuneRepeat)
	if err != nil {
		return kernels.PerfRecord{}, err
	}
	return kernels.PerfRecord{Time: elapsed}, nil
}

// operandBytes returns the raw buffers of the output followed by the inputs.
func operandBytes(op ops.Operator) ([][]byte, error) {
	operands := append(op.Outputs(), op.Inputs()...)
	buffers := make([][]byte, len(operands))
	for ii, operand := range operands {
		if !operand.IsDataBound() {
			return nil, errors.Errorf("%s: operand #%d (guid %d) has no data bound", op, ii, operand.GUID())
		}
		buffers[ii] = operand.Bytes()
	}
	return buffers, nil
}
