package validation

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/tileflow/pkg/schema"
)

const definitionSchemaURL = "https://tileflow.dev/schemas/definition.json"

//go:embed schemas/definition.json
var definitionSchemaJSON []byte

// Violation is one leaf failure of a JSON Schema check. Path uses the
// element path notation, e.g. "elements[0].yes.elements[1].type".
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string { return v.Path + ": " + v.Message }

// JSONSchemaValidator checks definitions against the embedded Draft 2020-12
// schema and trace inputs against each definition's inputs_schema.
type JSONSchemaValidator struct {
	definitionSchema *jsonschema.Schema

	mu     sync.Mutex
	inputs map[[sha256.Size]byte]*jsonschema.Schema
}

func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	compiled, err := compileSchema(definitionSchemaURL, definitionSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("definition schema: %w", err)
	}
	return &JSONSchemaValidator{
		definitionSchema: compiled,
		inputs:           make(map[[sha256.Size]byte]*jsonschema.Schema),
	}, nil
}

// ValidateDefinition checks the document shape, then id uniqueness across
// nested branches.
func (v *JSONSchemaValidator) ValidateDefinition(def *schema.WorkflowDefinition) error {
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}
	if err := validateAgainst(v.definitionSchema, def); err != nil {
		return err
	}

	seen := make(map[string]string)
	var dup *schema.TileflowError
	walkElements(def.Elements, "elements", func(elem *schema.ElementDefinition, path string) bool {
		first, exists := seen[elem.ID]
		if !exists {
			seen[elem.ID] = path
			return true
		}
		dup = schema.NewErrorf(schema.ErrCodeValidation,
			"duplicate element id %q at %s (first declared at %s)", elem.ID, path, first).
			WithElement(elem.ID)
		return false
	})
	if dup != nil {
		return dup
	}
	return nil
}

// ValidateInput checks trace inputs against a raw inputs schema. An empty
// schema accepts anything.
func (v *JSONSchemaValidator) ValidateInput(input map[string]any, inputSchema []byte) error {
	if input == nil {
		return schema.NewError(schema.ErrCodeValidation, "input is nil")
	}
	if len(inputSchema) == 0 {
		return nil
	}
	compiled, err := v.inputSchema(inputSchema)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid inputs schema").WithCause(err)
	}
	return validateAgainst(compiled, input)
}

// inputSchema compiles raw once per distinct content.
func (v *JSONSchemaValidator) inputSchema(raw []byte) (*jsonschema.Schema, error) {
	key := sha256.Sum256(raw)

	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.inputs[key]; ok {
		return s, nil
	}
	s, err := compileSchema("tileflow://inputs-schema/"+hex.EncodeToString(key[:8]), raw)
	if err != nil {
		return nil, err
	}
	v.inputs[key] = s
	return s, nil
}

func (v *JSONSchemaValidator) cachedInputSchemas() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.inputs)
}

func compileSchema(url string, raw []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(url)
}

// validateAgainst runs s over v after a JSON round trip, which gives the
// validator json.Number values and plain maps.
func validateAgainst(s *jsonschema.Schema, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "document is not JSON encodable").WithCause(err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "document is not JSON encodable").WithCause(err)
	}
	if err := s.Validate(doc); err != nil {
		return violationError(err)
	}
	return nil
}

func violationError(err error) *schema.TileflowError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}
	vs := violations(verr, nil)
	sort.SliceStable(vs, func(i, j int) bool { return vs[i].Path < vs[j].Path })

	msg := verr.Error()
	switch len(vs) {
	case 0:
	case 1:
		msg = vs[0].String()
	default:
		msg = fmt.Sprintf("document violates its schema in %d places; first: %s", len(vs), vs[0])
	}
	return schema.NewError(schema.ErrCodeValidation, msg).WithDetails(map[string]any{"violations": vs})
}

func violations(verr *jsonschema.ValidationError, acc []Violation) []Violation {
	if len(verr.Causes) == 0 {
		return append(acc, Violation{Path: elementPath(verr.InstanceLocation), Message: verr.Error()})
	}
	for _, c := range verr.Causes {
		acc = violations(c, acc)
	}
	return acc
}

// elementPath renders a JSON pointer's tokens the way walkElements names
// paths: array indexes in brackets, keys joined by dots, "/" for the root.
func elementPath(tokens []string) string {
	if len(tokens) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, tok := range tokens {
		if _, err := strconv.Atoi(tok); err == nil {
			b.WriteString("[" + tok + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(tok)
	}
	return b.String()
}
