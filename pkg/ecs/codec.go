package ecs

import "bytes"

// Codec compares two component values by their serialized bytes, standing
// in for the reflected-type comparator the original engine's field-table
// reflection system provides. Keeping this behind an interface means
// changeset never depends on a concrete reflection implementation, per the
// spec's explicit non-goal of depending on "the reflection type system
// itself" — callers inject whatever value codec fits their component
// encoding.
type Codec interface {
	// Equal reports whether a and b, both values of componentID, are
	// equal. A blittable component with identical bytes must compare
	// equal; a codec for a component with e.g. padding bytes or
	// non-canonical encodings may need a deeper comparison than
	// bytes.Equal.
	Equal(componentID ComponentID, a, b []byte) bool
}

// BytesCodec is the trivial Codec: components compare equal iff their
// encoded bytes are identical. Correct for any component type serialized
// canonically (fixed-width numeric fields, sorted maps, etc.).
type BytesCodec struct{}

// Equal implements Codec.
func (BytesCodec) Equal(_ ComponentID, a, b []byte) bool {
	return bytes.Equal(a, b)
}
