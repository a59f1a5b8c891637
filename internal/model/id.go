package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RemoteID is an identifier issued by the remote scan store.
// The store may hand out numeric or string identifiers. The wire kind is
// kept so an identifier is written back exactly as it was received.
type RemoteID struct {
	value   string
	numeric bool
}

// StringID returns an identifier that is encoded as a JSON string.
func StringID(s string) RemoteID {
	return RemoteID{value: s}
}

// NumericID returns an identifier that is encoded as a JSON number.
// Text that is not a valid JSON number is kept as a string identifier.
func NumericID(s string) RemoteID {
	if !isJSONNumber(s) {
		return StringID(s)
	}
	return RemoteID{value: s, numeric: true}
}

// IsZero reports whether no identifier was issued.
func (id RemoteID) IsZero() bool {
	return id.value == ""
}

// IsNumeric reports whether the identifier arrived as a JSON number.
func (id RemoteID) IsNumeric() bool {
	return id.numeric
}

// IsLocal reports whether the identifier was minted locally by LocalScanID.
func (id RemoteID) IsLocal() bool {
	return !id.numeric && strings.HasPrefix(id.value, localPrefix)
}

// String returns the identifier as text.
func (id RemoteID) String() string {
	return id.value
}

// MarshalJSON encodes the zero ID as null.
func (id RemoteID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if id.numeric && isJSONNumber(id.value) {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON accepts a JSON string, number, or null.
func (id *RemoteID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = RemoteID{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("remote id must be a string or number: %w", err)
		}
		*id = NumericID(n.String())
		return nil
	}
}

func isJSONNumber(s string) bool {
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}
	return json.Valid([]byte(s))
}
