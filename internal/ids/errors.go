package ids

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol marks an ordering violation by the producer: a reference
	// to an id before its create, a duplicate create, or traffic after dispose.
	ErrProtocol = errors.New("protocol violation")

	// ErrMissingDependency marks a data-integrity problem: an entity refers to
	// another entity that was never created.
	ErrMissingDependency = errors.New("missing dependency")
)

// EntityError carries the entity an error is about so it can be traced back
// to the originating document.
type EntityError struct {
	Kind Kind
	ID   ID
	Op   string
	Err  error
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Kind, e.ID, e.Err)
}

func (e *EntityError) Unwrap() error {
	return e.Err
}

// Protocol builds a protocol violation for the given entity.
func Protocol(kind Kind, id ID, op string, format string, args ...any) error {
	return &EntityError{
		Kind: kind,
		ID:   id,
		Op:   op,
		Err:  fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...)),
	}
}

// Missing builds a missing-dependency error: entity (kind, id) needs dep of depKind.
func Missing(kind Kind, id ID, op string, depKind Kind, dep ID) error {
	return &EntityError{
		Kind: kind,
		ID:   id,
		Op:   op,
		Err:  fmt.Errorf("%w: %s %s", ErrMissingDependency, depKind, dep),
	}
}

// IsProtocol reports whether err is a protocol violation.
func IsProtocol(err error) bool {
	return errors.Is(err, ErrProtocol)
}

// IsMissing reports whether err is a missing-dependency error.
func IsMissing(err error) bool {
	return errors.Is(err, ErrMissingDependency)
}

// ErrInvalidDefinition marks a definition that cannot be materialized, such
// as a primitive without positions.
var ErrInvalidDefinition = errors.New("invalid definition")

// Invalid builds an invalid-definition error for the given entity.
func Invalid(kind Kind, id ID, op string, format string, args ...any) error {
	return &EntityError{
		Kind: kind,
		ID:   id,
		Op:   op,
		Err:  fmt.Errorf("%w: %s", ErrInvalidDefinition, fmt.Sprintf(format, args...)),
	}
}

// IsInvalid reports whether err is an invalid-definition error.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidDefinition)
}
