package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/absim/internal/ir"
)

// marshalObject converts an IRObject to canonical JSON TEXT for storage.
// RFC 8785 output makes equal objects byte-identical in the database.
func marshalObject(what string, obj ir.IRObject) (string, error) {
	if obj == nil {
		obj = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	return string(data), nil
}

// marshalSummary stores a state description as a JSON array of lines.
func marshalSummary(lines []string) (string, error) {
	data, err := ir.MarshalCanonical(ir.StringArray(lines))
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	return string(data), nil
}

func unmarshalSummary(data string) ([]string, error) {
	lines := []string{}
	if data == "" {
		return lines, nil
	}
	if err := json.Unmarshal([]byte(data), &lines); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return lines, nil
}
