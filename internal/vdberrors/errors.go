// Package vdberrors defines the closed error taxonomy shared by every layer
// of vecdb, from the per-shard LSH index up through the coordinator's public
// API. Every error that crosses a package boundary in this module is either
// one of these kinds or wraps one.
package vdberrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error into one of the taxonomy buckets spec'd for the
// system. The Kind is part of Error's message text, which is what the HTTP
// handlers put in the error envelope; they do not branch on Kind.
type Kind string

const (
	// NotFound indicates a collection, vector, bucket, or shard with the
	// given identifier does not exist in the addressed scope.
	NotFound Kind = "not_found"

	// AlreadyExists indicates an attempt to create a collection whose name
	// is already registered.
	AlreadyExists Kind = "already_exists"

	// DimensionMismatch indicates a vector length that does not equal the
	// owning collection's configured dimension.
	DimensionMismatch Kind = "dimension_mismatch"

	// InvalidArgument indicates a malformed request: unknown metric,
	// unknown routing strategy, negative k, empty embedding, and the like.
	InvalidArgument Kind = "invalid_argument"

	// IO indicates a storage or filesystem failure that is not NotFound.
	IO Kind = "io"

	// RemoteUnavailable indicates a shard could not be reached, returned a
	// non-success HTTP status, or timed out.
	RemoteUnavailable Kind = "remote_unavailable"

	// RemoteError indicates a shard replied with success=false; the
	// wrapped error carries the shard's message.
	RemoteError Kind = "remote_error"

	// ShuttingDown indicates a request arrived after the node began its
	// stop sequence.
	ShuttingDown Kind = "shutting_down"
)

// Error is the concrete type behind every vdberrors value. It pairs a Kind
// with an underlying cause so that the cause chain survives up to the HTTP
// boundary for logging, while callers can still switch on Kind alone.
type Error struct {
	cause error
	msg   string
	Kind  Kind
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As and
// github.com/pkg/errors.Cause keep working through this layer.
func (e *Error) Unwrap() error { return e.cause }

// New creates a new Error of the given kind with a formatted message and no
// wrapped cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind to an existing error, preserving it as the cause via
// github.com/pkg/errors so a stack trace is captured at the wrap site. If err
// is nil, Wrap returns nil.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...), cause: errors.WithStack(err)}
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, returning ok
// = false otherwise. Handlers use this to decide whether an error came from
// a known taxonomy bucket or is an unexpected internal failure.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is a vdberrors error of the given kind. It is the
// usual entry point for call sites that only care about one kind, e.g.
// "is this NotFound".
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
