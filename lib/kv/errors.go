package kv

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorKind enumerates the error taxonomy of spec.md §7. It is carried
// on Error the way dKV's store.Error carries a RetCode
// (lib/store/interface.go), but built on cockroachdb/errors so causes
// can be wrapped, marked and unwound with errors.Is/As across package
// boundaries. Errors returned by rpc/client are plain wrapped errors
// and carry no ErrorKind.
type ErrorKind int

const (
	// InvalidArgument — malformed filter/regex, missing required field.
	InvalidArgument ErrorKind = iota
	// UnknownArea — area not configured on this node.
	UnknownArea
	// PeerUnreachable — transport-level peer op failure; never surfaces
	// to local callers, drives the Peer FSM to resync.
	PeerUnreachable
	// SyncTimeout — full-sync exceeded its deadline; same disposition
	// as PeerUnreachable.
	SyncTimeout
	// Lagged — subscriber queue overflow; cancels that subscription.
	Lagged
	// TtlExpired — not an error to the caller; surfaced as a removal.
	TtlExpired
	// Internal — invariant violation; fatal, terminates the area loop.
	Internal
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case UnknownArea:
		return "UnknownArea"
	case PeerUnreachable:
		return "PeerUnreachable"
	case SyncTimeout:
		return "SyncTimeout"
	case Lagged:
		return "Lagged"
	case TtlExpired:
		return "TtlExpired"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the typed error carried across the Store's boundaries.
type Error struct {
	Kind  ErrorKind
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("kvstore: %s: %s", e.Kind, e.cause)
	}
	return fmt.Sprintf("kvstore: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError builds an Error of the given kind wrapping msg.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Wrap builds an Error of the given kind wrapping an existing cause,
// preserving its stack via cockroachdb/errors for Internal errors where
// the area loop's panic-recovery handler needs a trace.
func Wrap(kind ErrorKind, cause error, msg string) *Error {
	if kind == Internal {
		return &Error{Kind: kind, cause: errors.WithStack(errors.Wrap(cause, msg))}
	}
	return &Error{Kind: kind, cause: errors.Wrap(cause, msg)}
}

// Is reports whether err is a *Error of the given kind, unwrapping
// through cockroachdb/errors-wrapped causes.
func Is(err error, kind ErrorKind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
