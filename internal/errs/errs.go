// Package errs defines the typed error-kind taxonomy shared by every
// component (spec §7), so the outbox and metadata store can tell transient
// from fatal failures without string matching. The teacher wraps errors with
// plain fmt.Errorf("...: %w", err); this package keeps that wrapping style
// but attaches a typed Kind the teacher never needed, because it has no
// outbox to make retry/dead-letter decisions from.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds spec §7 enumerates.
type Kind string

const (
	Config             Kind = "Config"
	Parse              Kind = "Parse"
	Extraction         Kind = "Extraction"
	StorageTransient   Kind = "StorageTransient"
	StorageFatal       Kind = "StorageFatal"
	EmbeddingTooLarge  Kind = "EmbeddingTooLarge"
	EmbeddingTransient Kind = "EmbeddingTransient"
	GraphUnresolved    Kind = "GraphUnresolved"
	ResolutionAmbiguous Kind = "ResolutionAmbiguous"
)

// Error is a Kind-tagged wrapper around an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap tags err with kind, recording op for diagnostics. Returns nil if err
// is nil, matching fmt.Errorf's convention of composing cleanly in callers
// that conditionally wrap.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, returning ok=false if err was never
// wrapped by this package.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Retryable reports whether the outbox/metadata store should retry an
// operation that failed with this error, per spec §7's disposition table.
func Retryable(err error) bool {
	k, ok := KindOf(err)
	if !ok {
		return false
	}
	return k == StorageTransient || k == EmbeddingTransient
}

// Fatal reports whether an error should be surfaced to the caller /
// terminal-state the outbox row instead of retried.
func Fatal(err error) bool {
	k, ok := KindOf(err)
	if !ok {
		return false
	}
	return k == Config || k == StorageFatal
}
