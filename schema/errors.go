package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingEntityMarker is returned when the root type has no entity marker or container.
	ErrMissingEntityMarker = errors.New("schema: entity type must declare an entity marker")

	// ErrMissingIdentifier is returned when no top-level identifier field exists.
	ErrMissingIdentifier = errors.New("schema: entity type must have an id field")

	// ErrDuplicateIdentifier is returned when a second top-level identifier is declared.
	ErrDuplicateIdentifier = errors.New("schema: entity type must have only one id field")

	// ErrNestedIdentifierNotAllowed is returned for identifier fields below the root.
	ErrNestedIdentifierNotAllowed = errors.New("schema: nested type must not have an id field")

	// ErrInvalidIdentifier is returned when the identifier is not a text field named "id".
	ErrInvalidIdentifier = errors.New("schema: id field must be text and named id")

	// ErrMissingSerializedName is returned for a data field without a wire name.
	ErrMissingSerializedName = errors.New("schema: field must have a serialized name")

	// ErrDuplicateSerializedName is returned when two fields of one level share a wire name.
	ErrDuplicateSerializedName = errors.New("schema: duplicate serialized name")

	// ErrUnsupportedFieldType is returned for kinds outside the allow-list or malformed composites.
	ErrUnsupportedFieldType = errors.New("schema: unsupported field type")

	// ErrDuplicateEnumValue is returned when two variants share an internal name.
	ErrDuplicateEnumValue = errors.New("schema: enum value must be unique")

	// ErrMissingEnumSerializedName is returned for a variant without a wire value.
	ErrMissingEnumSerializedName = errors.New("schema: enum value must have a serialized name")
)

// Error reports a structural schema defect. Code is one of the sentinel
// errors of this package; use errors.Is to match it.
type Error struct {
	Code   error
	Type   string
	Path   string
	Detail string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%v, type=%s", e.Code, e.Type)
	if e.Path != "" {
		msg += ", path=" + e.Path
	}
	if e.Detail != "" {
		msg += ", " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Code
}
