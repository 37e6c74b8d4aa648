package types

import (
	"bytes"
	"encoding/json"
)

// NullableInt64 tracks whether an id field was explicitly present in an update
// payload: absent (Valid=false) leaves the column untouched, an explicit null
// (Valid=true, Value=nil) clears it.
type NullableInt64 struct {
	Valid bool
	Value *int64
}

// Set returns a present, non-null value.
func Set(v int64) NullableInt64 {
	return NullableInt64{Valid: true, Value: &v}
}

// Clear returns a present null value.
func Clear() NullableInt64 {
	return NullableInt64{Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableInt64) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if bytes.Equal(trimmed, []byte("null")) {
		n.Valid = true
		n.Value = nil
		return nil
	}

	var parsed int64
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	n.Valid = true
	n.Value = &parsed
	return nil
}

// Clone returns a copy of the NullableInt64.
func (n NullableInt64) Clone() NullableInt64 {
	if n.Value == nil {
		return NullableInt64{Valid: n.Valid}
	}
	copy := *n.Value
	return NullableInt64{Valid: n.Valid, Value: &copy}
}
