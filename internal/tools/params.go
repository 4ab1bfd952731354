package tools

import (
	"bytes"
	"encoding/json"
	"sort"
)

// decodeArgs unmarshals tool arguments into dst. Missing or null arguments
// decode as an empty object.
func decodeArgs(args json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		return NewToolErrorf(ErrInvalidArguments, "invalid arguments: %v", err)
	}
	return nil
}

// UnknownParams returns the keys in args that are not in knownKeys, sorted.
// Non-object arguments yield nil.
func UnknownParams(args json.RawMessage, knownKeys []string) []string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(args, &m); err != nil {
		return nil
	}
	known := make(map[string]bool, len(knownKeys))
	for _, k := range knownKeys {
		known[k] = true
	}
	var unknown []string
	for k := range m {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// schemaKeys lists the property names declared in a JSON schema object.
func schemaKeys(schema map[string]interface{}) []string {
	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
