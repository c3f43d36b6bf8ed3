// Package extid gives every state/command/trigger variant a canonical,
// string-based identity that travels unchanged through persistence,
// events, and metrics: (type_name, variant_name).
package extid

import (
	"fmt"
	"strings"
)

// ID is the canonical (type_name, variant_name) identity of one
// state/command/trigger variant. variant_name uses snake_case with "::"
// segments for nested variants, e.g. "radiator::bedroom".
type ID struct {
	Type    string
	Variant string
}

// New constructs an ID in O(1).
func New(typeName, variantName string) ID {
	return ID{Type: typeName, Variant: variantName}
}

// Nested joins an outer variant with a recursively-decoded inner one.
func Nested(outer, inner string) string {
	return outer + "::" + inner
}

func (id ID) String() string {
	return fmt.Sprintf("%s/%s", id.Type, id.Variant)
}

// SplitNested splits the first "::" segment off a variant name, returning
// the outer discriminant and the remaining inner string (empty if flat).
func SplitNested(variant string) (outer, rest string) {
	outer, rest, found := strings.Cut(variant, "::")
	if !found {
		return variant, ""
	}
	return outer, rest
}

// UnknownVariantError reports a variant_name that didn't decode against a
// registered enum.
type UnknownVariantError struct {
	ID ID
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown variant for id %s", e.ID)
}

// Decoder maps a registered type_name to a per-variant decode function.
// TryFrom(id) for an enum succeeds iff id.Type matches the enum's
// registered type_name and id.Variant decodes.
type Decoder[T any] struct {
	TypeName string
	Decode   func(variant string) (T, bool)
}

func (d Decoder[T]) TryFrom(id ID) (T, error) {
	var zero T
	if id.Type != d.TypeName {
		return zero, &UnknownVariantError{ID: id}
	}
	v, ok := d.Decode(id.Variant)
	if !ok {
		return zero, &UnknownVariantError{ID: id}
	}
	return v, nil
}
