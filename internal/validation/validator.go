package validation

import "github.com/rendis/tileflow/pkg/schema"

// Validator checks workflow definitions before they are compiled and laid out.
// Uses JSON Schema Draft 2020-12 for trace input validation.
type Validator interface {
	ValidateDefinition(def *schema.WorkflowDefinition) error
	ValidateInput(input map[string]any, inputSchema []byte) error
}
