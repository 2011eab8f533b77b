package letta

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// MemoryVariablesEnv is the variable the memory payload is usually read from;
// it appears in validation messages so operators know what to fix.
const MemoryVariablesEnv = "LETTA_TEMPLATE_MEMORY_JSON"

// ParseMemoryVariables decodes a JSON object of string values. An empty
// input yields nil.
func ParseMemoryVariables(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("%s must be a JSON object: %v", MemoryVariablesEnv, err)}
	}
	return NormalizeMemoryVariables(v)
}

// NormalizeMemoryVariables checks that v is a flat object of strings, as
// produced by a JSON or YAML decoder, and returns it as a map.
func NormalizeMemoryVariables(v any) (map[string]string, error) {
	if v == nil {
		return nil, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ConfigError{Message: MemoryVariablesEnv + " must be a JSON object"}
	}
	out := make(map[string]string, len(obj))
	for _, key := range slices.Sorted(maps.Keys(obj)) {
		s, ok := obj[key].(string)
		if !ok {
			return nil, &ConfigError{
				Key:     key,
				Message: fmt.Sprintf("%s value for '%s' must be a string", MemoryVariablesEnv, key),
			}
		}
		out[key] = s
	}
	return out, nil
}
