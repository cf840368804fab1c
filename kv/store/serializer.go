package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Serializer encodes the value map of a persistent backend into a durable
// document and back.
type Serializer interface {
	// Serialize encodes values into a document.
	Serialize(values map[string]any) ([]byte, error)
	// Deserialize decodes a document into a value map.
	Deserialize(data []byte) (map[string]any, error)
}

// JSONSerializer writes human-readable, indented UTF-8 JSON documents whose
// top-level shape is an object mapping keys to values.
type JSONSerializer struct {
	indent string
}

var _ Serializer = (*JSONSerializer)(nil)

// NewJSONSerializer returns a JSONSerializer indenting with two spaces.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{indent: "  "}
}

// Serialize encodes values as an indented JSON object. A nil map encodes as {}.
func (s *JSONSerializer) Serialize(values map[string]any) ([]byte, error) {
	if values == nil {
		values = map[string]any{}
	}

	data, err := json.MarshalIndent(values, "", s.indent)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializerEncodeFailed, err)
	}

	return append(data, '\n'), nil
}

// Deserialize decodes a JSON object. Numbers decode as float64, matching what
// encoding/json produces for untyped values. Anything other than an object
// (including null) is rejected.
func (s *JSONSerializer) Deserialize(data []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: document is not a JSON object", ErrSerializerDecodeFailed)
	}

	var values map[string]any
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializerDecodeFailed, err)
	}

	return values, nil
}
