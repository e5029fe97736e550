package remote

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a remote store failure. The sync engine's offline
// and retry decisions key off this kind exactly; the store implementation
// is responsible for mapping its transport and database failures onto it.
type ErrorKind string

const (
	// KindNetwork covers connectivity failures: dial errors, resets,
	// DNS failures, the process being offline.
	KindNetwork ErrorKind = "network"
	// KindTimeout covers deadline and cancellation failures.
	KindTimeout ErrorKind = "timeout"
	// KindValidation covers server-side rejection of the row contents.
	KindValidation ErrorKind = "validation"
	// KindAuthorization covers row-level authorization denials.
	KindAuthorization ErrorKind = "authorization"
	// KindGuard covers billing lifecycle guard rejections enforced
	// server-side (invalid transition, locked details).
	KindGuard ErrorKind = "guard"
	// KindConflict covers writes invalidated by concurrent server state.
	KindConflict ErrorKind = "conflict"
	// KindNotFound covers rows that do not exist in the caller's scope.
	KindNotFound ErrorKind = "not_found"
	// KindInternal covers everything else.
	KindInternal ErrorKind = "internal"
)

// Error is a remote store failure with an exact classification
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("remote %s: %s", e.Op, e.Kind)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified remote error
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the classification of err, or KindInternal when err is
// not a remote error.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the failure is network-class: the mutation
// should be queued and replayed later rather than surfaced as an error.
func IsRetryable(err error) bool {
	k := KindOf(err)
	return k == KindNetwork || k == KindTimeout
}

// IsGuard reports whether the failure is a billing guard rejection
func IsGuard(err error) bool {
	return KindOf(err) == KindGuard
}

// IsConflict reports whether the write was invalidated by concurrent
// server state
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsNotFound reports whether the target row does not exist in scope
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
