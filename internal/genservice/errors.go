package genservice

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failed invocation.
type Kind string

const (
	KindNetwork   Kind = "network"
	KindTimeout   Kind = "timeout"
	KindRejected  Kind = "rejected"
	KindMalformed Kind = "malformed"
)

// ServiceError is the only error type an Invoker returns.
type ServiceError struct {
	Kind Kind
	Err  error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service %s: %v", e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether a fresh submission has a chance of succeeding.
// Nothing in this package retries on its own.
func (e *ServiceError) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindTimeout
}

// RejectedError carries the status a service answered with.
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

func rejected(err error) *ServiceError  { return &ServiceError{Kind: KindRejected, Err: err} }
func malformed(err error) *ServiceError { return &ServiceError{Kind: KindMalformed, Err: err} }

// transportError classifies an error raised while sending a request or
// reading its response.
func transportError(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ServiceError{Kind: KindTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &ServiceError{Kind: KindTimeout, Err: err}
	}
	return &ServiceError{Kind: KindNetwork, Err: err}
}
