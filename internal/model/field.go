package model

import (
	"bytes"
	"encoding/json"
)

// Field is one member of a partial update.  It tells apart a key that
// was not sent (Set false), a key sent as null (Set and Null true) and a
// key sent with a value.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present, non-null field.
func Some[T any](v T) Field[T] { return Field[T]{Set: true, Value: v} }

// Null returns a present field holding JSON null.
func Null[T any]() Field[T] { return Field[T]{Set: true, Null: true} }

// HasValue reports a present, non-null field.
func (f Field[T]) HasValue() bool { return f.Set && !f.Null }

// UnmarshalJSON is only invoked for keys present in the document.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(b, &f.Value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set || f.Null {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}
