package providers

import (
	"encoding/json"
	"fmt"
)

// StructuredRequest wraps a Request with the set of top-level keys the
// caller expects in the parsed JSON response. Unlike a full JSON-Schema
// validator, it only checks shape: valid JSON object, required keys present.
// Value-level constraints (types, enums, ranges) are intentionally not
// enforced here.
type StructuredRequest struct {
	Request
	RequiredKeys []string
}

// ValidateStructured parses raw as a JSON object and confirms every key in
// requiredKeys is present. It returns the decoded object on success.
func ValidateStructured(raw string, requiredKeys []string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("structured output is not a JSON object: %w", err)
	}
	var missing []string
	for _, k := range requiredKeys {
		if _, ok := obj[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("structured output missing required keys: %v", missing)
	}
	return obj, nil
}
