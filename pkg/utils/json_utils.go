package utils

import (
	"encoding/json"
	"fmt"
)

// ToRawMessage marshals v into a json.RawMessage so callers can store
// or forward an already-encoded payload without a second marshal pass.
func ToRawMessage(v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal struct to JSON: %w", err)
	}
	return json.RawMessage(data), nil
}
