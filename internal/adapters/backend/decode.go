package backend

import (
	"encoding/json"
	"fmt"
)

// Decode unmarshals a success payload into T. An empty or null payload yields the zero value.
func Decode[T any](payload json.RawMessage) (T, error) {
	var out T
	if len(payload) == 0 || string(payload) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, fmt.Errorf("decode backend payload: %w", err)
	}
	return out, nil
}
