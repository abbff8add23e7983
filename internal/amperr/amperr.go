// Package amperr defines the typed error kinds returned across amp's
// components, so callers (notably the HTTP API) can map errors to the
// right status code without string-matching.
package amperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for status-code mapping and metrics labeling.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindConflict          Kind = "conflict"
	KindTimeout           Kind = "timeout"
	KindStorageError      Kind = "storage_error"
	KindEmbeddingDisabled Kind = "embedding_disabled"
	KindEmbeddingError    Kind = "embedding_error"
	KindGraphUnreachable  Kind = "graph_unreachable"
	KindCancelled         Kind = "cancelled"
)

// Error is a typed, wrapped error carrying a Kind for dispatch and an
// underlying cause for logging.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s; %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error with the given kind, operation name, and message.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an *Error that carries an underlying cause.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf extracts the Kind from err, walking the unwrap chain. Returns ""
// if err does not carry an amperr.Error anywhere in its chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err's chain carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func NotFound(op, message string) *Error     { return New(KindNotFound, op, message) }
func InvalidInput(op, message string) *Error { return New(KindInvalidInput, op, message) }
func Conflict(op, message string) *Error     { return New(KindConflict, op, message) }

func Timeout(op string, err error) *Error {
	return Wrap(KindTimeout, op, "operation timed out", err)
}

func Storage(op string, err error) *Error {
	return Wrap(KindStorageError, op, "storage operation failed", err)
}

func EmbeddingDisabled(op string) *Error {
	return New(KindEmbeddingDisabled, op, "embeddings provider is disabled")
}

func EmbeddingError(op string, err error) *Error {
	return Wrap(KindEmbeddingError, op, "embedding request failed", err)
}

func GraphUnreachable(op, message string) *Error {
	return New(KindGraphUnreachable, op, message)
}

func Cancelled(op string, err error) *Error {
	return Wrap(KindCancelled, op, "operation cancelled", err)
}
