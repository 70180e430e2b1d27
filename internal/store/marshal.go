package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/choreo/internal/ir"
)

// marshalObject converts a params map or signal payload to canonical JSON
// TEXT for storage. A nil map is stored as "{}".
func marshalObject(obj map[string]any) (string, error) {
	if obj == nil {
		obj = map[string]any{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return string(data), nil
}

// unmarshalObject parses stored JSON TEXT back to a map. Numbers decode as
// json.Number so integers beyond 2^53 survive; "{}" decodes to nil to
// mirror the empty params the engine emits.
func unmarshalObject(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	return obj, nil
}
