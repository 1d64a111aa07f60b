// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package ops defines the operator nodes: each one holds references to its operands, its attributes,
// and the output operand whose shape is inferred at construction.
//
// Operators are created with the New* functions, which validate the operands and attributes and return
// an error if they are not compatible. Once created, an operator is immutable, except for the binding of
// its native descriptor (see NativeBinder), which happens when it is first executed on a device with a native
// provider.
package ops

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/types/shapes"
	"github.com/pkg/errors"
)

// Operand is a reference to a tensor used or produced by an operator. Operators don't own their operands.
type Operand interface {
	// GUID is a unique id of the operand within its graph.
	GUID() int

	// Shape of the operand, always known.
	Shape() shapes.Shape

	// IsDataBound returns whether the operand has data resident.
	IsDataBound() bool

	// Bytes returns the raw data of the operand, or nil if it is not bound.
	Bytes() []byte
}

// Graph is what operators need from the graph that owns them.
type Graph interface {
	// NextGUID returns a new unique id, used for operators.
	NextGUID() int

	// NewOperand creates a new (unbound) operand owned by the graph.
	NewOperand(shape shapes.Shape) Operand
}

// Operator is the common interface of all operator nodes.
type Operator interface {
	GUID() int
	OpType() backends.OpType

	// Inputs returns the operands in the order defined by the operator.
	Inputs() []Operand

	// Outputs returns the output operands: for all current operators there is exactly one.
	Outputs() []Operand

	// Output returns the only output.
	Output() Operand

	// DType of the output, used to select the kernel.
	DType() dtypes.DType

	// String returns the signature of the operator, e.g. "Gather[3]([3,2],[2,2],axis=0,input=1,output=4)".
	String() string

	// WorkloadVector identifies the computation, used as a key to cache tuning results.
	// Its first element is the OpType.
	WorkloadVector() []int

	// OpAttrVector identifies the attributes of the operator. Its first element is the OpType.
	OpAttrVector() []int

	// Finalize releases resources owned by the operator (its native descriptor). It is idempotent and never fails.
	Finalize()
}

// node is the base implementation of Operator.
type node struct {
	guid   int
	opType backends.OpType
	inputs []Operand
	output Operand
}

// GUID implements Operator.
func (n *node) GUID() int { return n.guid }

// OpType implements Operator.
func (n *node) OpType() backends.OpType { return n.opType }

// Inputs implements Operator.
func (n *node) Inputs() []Operand { return n.inputs }

// Outputs implements Operator.
func (n *node) Outputs() []Operand { return []Operand{n.output} }

// Output implements Operator.
func (n *node) Output() Operand { return n.output }

// DType implements Operator.
func (n *node) DType() dtypes.DType { return n.output.Shape().DType }

// Finalize implements Operator. Nodes without a native descriptor have nothing to release.
func (n *node) Finalize() {}

// checkOperands returns an error if any of the operands is nil.
func checkOperands(opType backends.OpType, operands ...Operand) error {
	for ii, operand := range operands {
		if operand == nil {
			return errors.Errorf("%s: operand #%d is nil", opType, ii)
		}
	}
	return nil
}

// newNode creates the base node for an operator: if output is nil, a new operand with the inferred shape
// is created in the graph, otherwise the output shape must be the inferred one.
func newNode(g Graph, opType backends.OpType, inferred shapes.Shape, output Operand, inputs ...Operand) (node, error) {
	if g == nil {
		return node{}, errors.Errorf("%s: nil graph", opType)
	}
	if output == nil {
		output = g.NewOperand(inferred)
	} else if !output.Shape().Equal(inferred) {
		return node{}, errors.Errorf("%s: output shape %s is inconsistent with the inferred shape %s",
			opType, output.Shape(), inferred)
	}
	return node{
		guid:   g.NextGUID(),
		opType: opType,
		inputs: inputs,
		output: output,
	}, nil
}

// dimsString formats dimensions as "[3,2]".
func dimsString(dims []int) string {
	parts := make([]string, len(dims))
	for ii, dim := range dims {
		parts[ii] = strconv.Itoa(dim)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// signature formats "<op>[<guid>](<args>)".
func (n *node) signature(args ...string) string {
	return fmt.Sprintf("%s[%d](%s)", n.opType, n.guid, strings.Join(args, ","))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
