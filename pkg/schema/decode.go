package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies a serialized definition encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the definition format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// DecodeDefinition parses a workflow definition in the given format.
// JSON input rejects unknown fields.
func DecodeDefinition(data []byte, format Format) (*WorkflowDefinition, error) {
	var def WorkflowDefinition
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, NewError(ErrCodeValidation, fmt.Sprintf("decode yaml definition: %v", err)).WithCause(err)
		}
		def.InputsSchema = normalizeYAML(def.InputsSchema)
		def.Metadata = normalizeYAML(def.Metadata)
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, NewError(ErrCodeValidation, fmt.Sprintf("decode json definition: %v", err)).WithCause(err)
		}
	default:
		return nil, NewErrorf(ErrCodeValidation, "unsupported definition format %q", format)
	}
	return &def, nil
}

// LoadDefinitionFile reads and decodes a definition file (.json, .yaml, .yml).
func LoadDefinitionFile(path string) (*WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition %s: %w", path, err)
	}
	def, err := DecodeDefinition(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("load definition %s: %w", path, err)
	}
	return def, nil
}

// normalizeYAML converts yaml.v3 map[any]any leftovers into JSON-compatible maps.
func normalizeYAML(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out, _ := normalizeValue(m).(map[string]any)
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
