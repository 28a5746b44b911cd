// Package errkind holds the single closed error taxonomy shared by the
// store, VM, and engine. Every user-visible failure in the core resolves
// to exactly one of these kinds.
package errkind

import "errors"

// Kind is a closed error category surfaced to callers of dispatch and to
// primitive response envelopes.
type Kind string

const (
	IntentNotFound         Kind = "intent_not_found"
	PrimitiveNotFound      Kind = "primitive_not_found"
	ProtocolNotFound       Kind = "protocol_not_found"
	InvalidInputs          Kind = "invalid_inputs"
	PhysicsViolation       Kind = "physics_violation"
	ExecutionError         Kind = "execution_error"
	NotFound               Kind = "not_found"
	AlreadyResolved        Kind = "already_resolved"
	DependencyUnavailable  Kind = "dependency_unavailable"

	// Store-local failure modes. They are not mapped onto the kinds
	// above at the engine boundary: a dispatch that fails with one of
	// them reports that kind unchanged.
	DuplicateID     Kind = "duplicate_id"
	InvalidData     Kind = "invalid_data"
	ArchiveHasBonds Kind = "archive_has_bonds"
)

// Error is a typed error carrying a Kind alongside a message, so callers
// can switch on Kind without string matching.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

// New constructs an *Error for the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error; otherwise it returns ExecutionError as the catch-all.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ExecutionError
}
