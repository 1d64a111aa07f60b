// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package provider

import (
	"fmt"

	"github.com/pkg/errors"
)

// Status returned by every provider call.
type Status int

const (
	Success Status = iota
	BadParam
	BadTensorDType
	BadTensorShape
	BadDescriptor
	InsufficientWorkspace
	ExecutionFailed
	NotSupported
)

var statusNames = []string{
	Success:               "Success",
	BadParam:              "BadParam",
	BadTensorDType:        "BadTensorDType",
	BadTensorShape:        "BadTensorShape",
	BadDescriptor:         "BadDescriptor",
	InsufficientWorkspace: "InsufficientWorkspace",
	ExecutionFailed:       "ExecutionFailed",
	NotSupported:          "NotSupported",
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// StatusError is the error returned by Check for a non-successful status.
type StatusError struct {
	Status Status
	Call   string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("provider call %s failed with status %s", e.Call, e.Status)
}

// Check converts a status returned by the provider call named call to an error, with a stack trace.
// It returns nil for Success.
func Check(status Status, call string) error {
	if status == Success {
		return nil
	}
	return errors.WithStack(&StatusError{Status: status, Call: call})
}

// StatusOf returns the Status of an error created by Check, or Success if err is nil.
// For any other error it returns ExecutionFailed.
func StatusOf(err error) Status {
	if err == nil {
		return Success
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status
	}
	return ExecutionFailed
}
