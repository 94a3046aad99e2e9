package validation

import (
	"context"
	"encoding/json"

	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/pkg/schema"
)

// WorkflowValidator orchestrates the validation pipeline:
// 1. Structural (JSON Schema, unique ids)
// 2. Semantic (conditions, goto targets, titles, kind attributes)
// 3. Flow (compilation, reachability)
// 4. Layout (every switch classifies, enumeration stays under the ceiling)
type WorkflowValidator struct {
	jsonSchema *JSONSchemaValidator
	conditions ConditionCompiler
	layout     *layout.Engine
}

// NewWorkflowValidator creates a WorkflowValidator.
// conditions may be nil to skip condition compilation; le may be nil to skip
// the layout stage.
func NewWorkflowValidator(conditions ConditionCompiler, le *layout.Engine) (*WorkflowValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &WorkflowValidator{
		jsonSchema: jsv,
		conditions: conditions,
		layout:     le,
	}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Each stage runs only when the previous ones produced no errors.
func (wv *WorkflowValidator) Validate(ctx context.Context, def *schema.WorkflowDefinition) *schema.ValidationResult {
	if def == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "workflow definition is nil")
		return r
	}

	result := validateStructural(wv.jsonSchema, def)
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(def, wv.conditions))
	if !result.Valid() {
		return result
	}

	prog, flow := validateFlow(def)
	result.Merge(flow)
	if !result.Valid() || wv.layout == nil {
		return result
	}

	result.Merge(validateLayout(ctx, wv.layout, prog, def))
	return result
}

// ValidateDefinition satisfies the Validator interface.
func (wv *WorkflowValidator) ValidateDefinition(def *schema.WorkflowDefinition) error {
	return wv.Validate(context.Background(), def).ToError()
}

// ValidateInput delegates to the underlying JSONSchemaValidator.
func (wv *WorkflowValidator) ValidateInput(input map[string]any, inputSchema []byte) error {
	return wv.jsonSchema.ValidateInput(input, inputSchema)
}

// ValidateTraceInputs checks trace inputs against the definition's inputs_schema.
// Definitions without one accept any inputs.
func (wv *WorkflowValidator) ValidateTraceInputs(def *schema.WorkflowDefinition, inputs map[string]any) error {
	if def == nil || len(def.InputsSchema) == 0 {
		return nil
	}
	raw, err := json.Marshal(def.InputsSchema)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize inputs schema").WithCause(err)
	}
	if inputs == nil {
		inputs = map[string]any{}
	}
	return wv.jsonSchema.ValidateInput(inputs, raw)
}

// validateStructural wraps JSONSchemaValidator.ValidateDefinition, converting
// its error output into a ValidationResult.
func validateStructural(v *JSONSchemaValidator, def *schema.WorkflowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := v.ValidateDefinition(def)
	if err == nil {
		return result
	}

	tfErr, ok := err.(*schema.TileflowError)
	if !ok {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	if vs, ok := tfErr.Details["violations"].([]Violation); ok {
		for _, v := range vs {
			result.AddError(v.Path, schema.ErrCodeValidation, v.Message)
		}
		return result
	}
	result.AddError("/", schema.ErrCodeValidation, tfErr.Message)
	return result
}
