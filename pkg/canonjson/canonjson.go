// Package canonjson serializes values to canonical JSON: object keys are
// emitted in lexicographic order so equal logical values produce byte-equal
// documents. The audit log and dead-letter stores depend on this property.
package canonjson

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal encodes v as canonical JSON. The value is first round-tripped
// through the generic JSON representation so struct field order and map
// iteration order never leak into the output; encoding/json sorts map keys
// lexicographically when encoding.
func Marshal(v any) ([]byte, error) {
	normalized, err := Normalize(v)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to encode canonical JSON: %w", err)
	}

	return data, nil
}

// Normalize converts v into the generic JSON representation
// (map[string]any, []any, json.Number, string, bool, nil).
// Numbers are preserved verbatim via json.Number so normalization
// never changes their textual form.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var normalized any
	if err := decoder.Decode(&normalized); err != nil {
		return nil, fmt.Errorf("failed to normalize value: %w", err)
	}

	return normalized, nil
}
