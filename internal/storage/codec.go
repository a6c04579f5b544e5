package storage

import (
	"encoding/json"
	"fmt"
)

// encodeValue serializes a value as JSON text.
func encodeValue(key string, value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encoding value for %q: %w", key, err)
	}
	return string(data), nil
}

// decodeValue parses raw as JSON. Text that is not valid JSON is
// returned unchanged as a string.
func decodeValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
