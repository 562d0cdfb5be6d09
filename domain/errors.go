package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure. The API layer maps kinds to transport
// status codes; the domain never formats user-facing text.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindInvalidInput    Kind = "invalid_input"
	KindInvalidPosition Kind = "invalid_position"
)

// Error carries a failure kind plus the identifiers needed to report it.
type Error struct {
	Kind   Kind
	Entity string
	ID     string
	Field  string
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Entity != "":
		return fmt.Sprintf("%s: %s.%s", e.Kind, e.Entity, e.Field)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	case e.ID != "":
		return fmt.Sprintf("%s: %s %s", e.Kind, e.Entity, e.ID)
	case e.Entity != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Entity)
	default:
		return string(e.Kind)
	}
}

// KindOf extracts the failure kind from err, or "" for non-domain errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id}
}

func Forbidden(entity, id string) *Error {
	return &Error{Kind: KindForbidden, Entity: entity, ID: id}
}

func Conflict(entity, field string) *Error {
	return &Error{Kind: KindConflict, Entity: entity, Field: field}
}

func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated}
}

func InvalidInput(entity, field string) *Error {
	return &Error{Kind: KindInvalidInput, Entity: entity, Field: field}
}

func InvalidPosition(entity, field string) *Error {
	return &Error{Kind: KindInvalidPosition, Entity: entity, Field: field}
}
