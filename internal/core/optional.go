package core

import (
	"bytes"
	"encoding/json"
)

// Optional tracks whether a JSON field was sent at all, and whether it was
// sent as null, so a patch can tell "absent" from "cleared".
//
// A value that fails to decode does not abort the surrounding object; it is
// kept as Invalid so validation can report it next to every other field.
type Optional[T any] struct {
	Present bool
	Null    bool
	Value   T

	err error
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Present: true, Value: v}
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Present = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		var zero T
		o.Value = zero
		o.err = err
	}
	return nil
}

// Invalid reports whether the field was sent with a value of the wrong shape.
func (o Optional[T]) Invalid() bool {
	return o.err != nil
}
