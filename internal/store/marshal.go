package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalStrings converts a string list to JSON TEXT for storage.
// HTML escaping is disabled so SAN and FEN text is stored verbatim.
func marshalStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return "", fmt.Errorf("marshal strings: %w", err)
	}
	// Encoder adds a trailing newline
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalStrings parses JSON TEXT written by marshalStrings.
func unmarshalStrings(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}
