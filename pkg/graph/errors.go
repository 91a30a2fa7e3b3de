// Copyright 2026 Tolga Akin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graph

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable identifier of a run failure.
type ErrorKind string

const (
	KindIterationLimitExceeded ErrorKind = "IterationLimitExceeded"
	KindNoMatchingEdge         ErrorKind = "NoMatchingEdge"
	KindNodeExecutionFailed    ErrorKind = "NodeExecutionFailed"
	KindToolNotRegistered      ErrorKind = "ToolNotRegistered"
	KindToolValidationFailed   ErrorKind = "ToolValidationFailed"
	KindToolExecutionFailed    ErrorKind = "ToolExecutionFailed"
	KindCancelled              ErrorKind = "Cancelled"
	KindTimeout                ErrorKind = "Timeout"
)

// Error is a run failure with a stable kind and human-readable detail.
type Error struct {
	Kind   ErrorKind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError creates a run error.
func NewError(kind ErrorKind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

// KindOf extracts the kind of err, or empty when err is not a run error.
func KindOf(err error) ErrorKind {
	var runErr *Error
	if errors.As(err, &runErr) {
		return runErr.Kind
	}
	return ""
}
