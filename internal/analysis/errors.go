/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package analysis

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrDatabaseConnection represents errors that occur during database connection attempts
type ErrDatabaseConnection struct {
	Msg string
	Err error
}

// ErrQueryExecution represents errors that occur while reading a table
type ErrQueryExecution struct {
	Msg string
	Err error
}

// ErrInvalidInput represents errors related to invalid input parameters
type ErrInvalidInput struct {
	Msg string
	Err error
}

// ErrTimeout represents timeout errors during operations
type ErrTimeout struct {
	Msg string
	Err error
}

// ErrCancelled represents errors when an operation is cancelled
type ErrCancelled struct {
	Msg string
	Err error
}

// ErrUnavailable represents a model backend that is temporarily unable to
// serve, including rate limiting.
type ErrUnavailable struct {
	Msg string
	Err error
}

func format(kind, msg string, err error) string {
	if err == nil {
		return fmt.Sprintf("%s: %s", kind, msg)
	}
	return fmt.Sprintf("%s: %s: %v", kind, msg, err)
}

func (e *ErrDatabaseConnection) Error() string {
	return format("database connection error", e.Msg, e.Err)
}

func (e *ErrDatabaseConnection) Unwrap() error { return e.Err }

func (e *ErrQueryExecution) Error() string {
	return format("query execution error", e.Msg, e.Err)
}

func (e *ErrQueryExecution) Unwrap() error { return e.Err }

func (e *ErrInvalidInput) Error() string {
	return format("invalid input error", e.Msg, e.Err)
}

func (e *ErrInvalidInput) Unwrap() error { return e.Err }

func (e *ErrTimeout) Error() string {
	return format("timeout error", e.Msg, e.Err)
}

func (e *ErrTimeout) Unwrap() error { return e.Err }

func (e *ErrCancelled) Error() string {
	return format("operation cancelled", e.Msg, e.Err)
}

func (e *ErrCancelled) Unwrap() error { return e.Err }

func (e *ErrUnavailable) Error() string {
	return format("service unavailable", e.Msg, e.Err)
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// classifyModelError maps a model client error onto the typed errors that
// drive retries.
func classifyModelError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.Canceled):
		return &ErrCancelled{Msg: "insight generation cancelled", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &ErrTimeout{Msg: "insight generation timed out", Err: err}
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.Aborted:
			return &ErrUnavailable{Msg: "model backend unavailable", Err: err}
		case codes.DeadlineExceeded:
			return &ErrTimeout{Msg: "model call timed out", Err: err}
		case codes.Canceled:
			return &ErrCancelled{Msg: "model call cancelled", Err: err}
		case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied:
			return &ErrInvalidInput{Msg: "model rejected the request", Err: err}
		}
	}
	return err
}
