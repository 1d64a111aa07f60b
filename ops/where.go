// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"

	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/backends/shapeinference"
	"github.com/gomlx/opkernels/device"
	"github.com/gomlx/opkernels/provider"
)

// Where selects, element-wise, x where condition is true and y otherwise.
// The operands are broadcast to a common shape.
type Where struct {
	nativeNode
}

var _ NativeBinder = (*Where)(nil)

// NewWhere creates a Where operator. If output is nil, a new operand is created in g.
//
// The condition must be Bool or Uint8 (0 is false), and x and y must have the same dtype.
// The output dimensions are the broadcast of x and y, then broadcast with condition.
func NewWhere(g Graph, x, y, condition, output Operand) (*Where, error) {
	const opType = backends.OpTypeWhere
	if err := checkOperands(opType, x, y, condition); err != nil {
		return nil, err
	}
	inferred, err := shapeinference.WhereOp(x.Shape(), y.Shape(), condition.Shape())
	if err != nil {
		return nil, err
	}
	n, err := newNode(g, opType, inferred, output, x, y, condition)
	if err != nil {
		return nil, err
	}
	return &Where{nativeNode{node: n}}, nil
}

// X is the operand selected where the condition is true.
func (op *Where) X() Operand { return op.inputs[0] }

// Y is the operand selected where the condition is false.
func (op *Where) Y() Operand { return op.inputs[1] }

// Condition operand.
func (op *Where) Condition() Operand { return op.inputs[2] }

// String implements Operator.
func (op *Where) String() string {
	return op.signature(
		dimsString(op.Condition().Shape().Dimensions),
		fmt.Sprintf("inputX=%d", op.X().GUID()),
		fmt.Sprintf("inputY=%d", op.Y().GUID()),
		fmt.Sprintf("condition=%d", op.Condition().GUID()),
		fmt.Sprintf("output=%d", op.output.GUID()))
}

// WorkloadVector implements Operator: [op, output dims...].
func (op *Where) WorkloadVector() []int {
	return append([]int{int(op.opType)}, op.output.Shape().Dimensions...)
}

// OpAttrVector implements Operator: [op].
func (op *Where) OpAttrVector() []int {
	return []int{int(op.opType)}
}

// InitNative implements NativeBinder. A Bool condition is described to the provider as Uint8.
func (op *Where) InitNative(ctx device.Context) error {
	operandShapes := op.operandShapes()
	condition := &operandShapes[len(operandShapes)-1]
	condition.DType = NativeDType(condition.DType)
	return op.native.bind(ctx, op.opType.String(), operandShapes,
		func(p provider.Provider, handle provider.Handle, tds []provider.TensorDescriptor) (provider.Descriptor, provider.Status) {
			return p.CreateWhereDescriptor(handle, tds[0], tds[1], tds[2], tds[3])
		},
		provider.Provider.DestroyWhereDescriptor)
}
