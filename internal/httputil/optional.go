package httputil

import (
	"bytes"
	"encoding/json"
)

// The Optional* types track presence and value for JSON PATCH-style
// semantics (RFC 7396). They express the tri-state that plain pointers
// cannot:
//   - Present=false: field absent from JSON (don't change)
//   - Present=true, Value=nil: field is JSON null (clear)
//   - Present=true, Value non-nil: field has a value

// OptionalString is a tri-state string field.
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON implements json.Unmarshaler. Being called at all means
// the field was present in the JSON.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true

	if isJSONNull(data) {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// OptionalJSON is a tri-state structured field holding a value of type T.
type OptionalJSON[T any] struct {
	Present bool
	Value   *T
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalJSON[T]) UnmarshalJSON(data []byte) error {
	o.Present = true

	if isJSONNull(data) {
		o.Value = nil
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func isJSONNull(data []byte) bool {
	return string(bytes.TrimSpace(data)) == "null"
}
