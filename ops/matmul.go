// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"

	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/backends/shapeinference"
	"github.com/pkg/errors"
)

// ActType is an activation fused into the output of an operator.
type ActType int

const (
	ActNone ActType = iota
	ActRelu
	ActSigmoid
	ActTanh
	numActTypes
)

var actNames = [numActTypes]string{"None", "Relu", "Sigmoid", "Tanh"}

// String implements fmt.Stringer.
func (act ActType) String() string {
	if act < 0 || act >= numActTypes {
		return fmt.Sprintf("ActType(%d)", int(act))
	}
	return actNames[act]
}

// MatMul is the batched matrix multiplication of a [batch..., M, K] by b [batch..., K, N], with the
// last two axes of a (or b) swapped if transA (or transB) is set.
//
// MatMul has no native provider path: it is executed by direct kernels only.
type MatMul struct {
	node
	transA, transB bool
	act            ActType
	batch, m, n, k int
}

// NewMatMul creates a MatMul operator. If output is nil, a new operand is created in g.
// The batch dimensions of a and b are broadcast.
func NewMatMul(g Graph, a, b, output Operand, transA, transB bool, act ActType) (*MatMul, error) {
	const opType = backends.OpTypeMatMul
	if err := checkOperands(opType, a, b); err != nil {
		return nil, err
	}
	if act < 0 || act >= numActTypes {
		return nil, errors.Errorf("MatMul: invalid activation %s", act)
	}
	inferred, err := shapeinference.MatMulOp(a.Shape(), b.Shape(), transA, transB)
	if err != nil {
		return nil, err
	}
	n, err := newNode(g, opType, inferred, output, a, b)
	if err != nil {
		return nil, err
	}
	op := &MatMul{node: n, transA: transA, transB: transB, act: act}
	op.m, op.n = inferred.Dim(-2), inferred.Dim(-1)
	op.k = a.Shape().Dim(-1)
	if transA {
		op.k = a.Shape().Dim(-2)
	}
	op.batch = 1
	for _, dim := range inferred.Dimensions[:inferred.Rank()-2] {
		op.batch *= dim
	}
	return op, nil
}

// A is the left-hand side operand.
func (op *MatMul) A() Operand { return op.inputs[0] }

// B is the right-hand side operand.
func (op *MatMul) B() Operand { return op.inputs[1] }

// Batch is the product of the (broadcast) batch dimensions.
func (op *MatMul) Batch() int { return op.batch }

// M is the number of rows of the output matrices.
func (op *MatMul) M() int { return op.m }

// N is the number of columns of the output matrices.
func (op *MatMul) N() int { return op.n }

// K is the contracting dimension.
func (op *MatMul) K() int { return op.k }

// TransA returns whether A is transposed, that is, given as [..., K, M].
func (op *MatMul) TransA() bool { return op.transA }

// TransB returns whether B is transposed, that is, given as [..., N, K].
func (op *MatMul) TransB() bool { return op.transB }

// Act is the activation applied to the output.
func (op *MatMul) Act() ActType { return op.act }

// String implements Operator.
func (op *MatMul) String() string {
	return op.signature(
		dimsString(op.A().Shape().Dimensions),
		dimsString(op.B().Shape().Dimensions),
		fmt.Sprintf("transA=%d", boolToInt(op.transA)),
		fmt.Sprintf("transB=%d", boolToInt(op.transB)),
		"act="+op.act.String(),
		fmt.Sprintf("input=%d", op.A().GUID()),
		fmt.Sprintf("output=%d", op.output.GUID()))
}

// WorkloadVector implements Operator: [op, batch, m, n, k, transA, transB, act].
func (op *MatMul) WorkloadVector() []int {
	return []int{int(op.opType), op.batch, op.m, op.n, op.k,
		boolToInt(op.transA), boolToInt(op.transB), int(op.act)}
}

// OpAttrVector implements Operator: [op, transA, transB, act].
func (op *MatMul) OpAttrVector() []int {
	return []int{int(op.opType), boolToInt(op.transA), boolToInt(op.transB), int(op.act)}
}
