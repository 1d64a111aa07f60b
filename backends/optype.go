// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package backends

// OpType is an enum of all the operators that can be defined and dispatched to a kernel.
//
// The integer value of an OpType is stable: it is the first element of the workload and attribute
// vectors (see ops.Operator) used as cache keys, so new values must only be appended.
type OpType int

//go:generate go tool enumer -type=OpType -trimprefix=OpType -output=gen_optype_enumer.go optype.go

const (
	OpTypeInvalid OpType = iota
	OpTypeGather
	OpTypeGatherElements
	OpTypeReduceMean
	OpTypeReduceMax
	OpTypeReduceMin
	OpTypeReduceSum
	OpTypeWhere
	OpTypeMatMul

	// OpTypeLast should always be kept the last, it is used as a counter/marker for OpType.
	OpTypeLast
)

// IsReduce returns whether the op is one of the Reduce* family.
func (op OpType) IsReduce() bool {
	return op >= OpTypeReduceMean && op <= OpTypeReduceSum
}
