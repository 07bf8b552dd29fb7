package httptools

import "encoding/json"

// Patch represents a PATCH-body field with three states:
//   - Absent from JSON (zero value): field untouched
//   - Present as null: field cleared
//   - Present with value: field replaced
type Patch[T any] struct {
	set   bool
	value *T
}

// PatchValue creates a Patch holding a value.
func PatchValue[T any](v T) Patch[T] {
	return Patch[T]{set: true, value: &v}
}

// PatchNull creates a Patch that clears the field.
func PatchNull[T any]() Patch[T] {
	return Patch[T]{set: true}
}

// IsSet reports whether the field appeared in the request body at all.
func (p Patch[T]) IsSet() bool {
	return p.set
}

// Value returns the patch value, or the zero value and false when the field
// was absent or null.
func (p Patch[T]) Value() (T, bool) {
	if p.value == nil {
		var zero T
		return zero, false
	}
	return *p.value, true
}

// IsZero reports whether the field was not set (for omitzero support).
func (p Patch[T]) IsZero() bool {
	return !p.set
}

// MarshalJSON implements json.Marshaler.
func (p Patch[T]) MarshalJSON() ([]byte, error) {
	if p.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*p.value)
}

// UnmarshalJSON implements json.Unmarshaler. It is only invoked when the
// field is present, which is what distinguishes null from absent.
func (p *Patch[T]) UnmarshalJSON(data []byte) error {
	p.set = true
	if string(data) == "null" {
		p.value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	p.value = &v
	return nil
}
