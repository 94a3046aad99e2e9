package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rendis/tileflow/internal/engine"
	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/pkg/schema"
)

// switchWarnThreshold is the switch count above which enumeration may
// outgrow the default path ceiling.
const switchWarnThreshold = 12

// validateFlow compiles the definition and checks the resulting graph:
// goto targets must point backwards and every element must be reachable.
// The compiled program is returned for the layout stage.
func validateFlow(def *schema.WorkflowDefinition) (*engine.Program, *schema.ValidationResult) {
	result := &schema.ValidationResult{}
	paths := elementPaths(def)

	prog, err := engine.Compile(def)
	if err != nil {
		result.AddError(issuePath(err, paths), issueCode(err), causeMessage(err))
		return nil, result
	}

	reachable := prog.Reachable()
	for _, id := range prog.Elements() {
		if !reachable[id] {
			result.AddWarning(paths[id], schema.ErrCodeValidation,
				fmt.Sprintf("element %q is unreachable: every branch before it ends the workflow", id))
		}
	}

	if n := len(prog.Switches()); n > switchWarnThreshold {
		result.AddWarning("elements", schema.ErrCodeCombinatorial,
			fmt.Sprintf("%d switches may yield up to %d decision sequences", n, uint64(1)<<min(n, 62)))
	}
	return prog, result
}

// validateLayout lays the program out and reports classification and
// combinatorial failures as issues.
func validateLayout(ctx context.Context, le *layout.Engine, prog *engine.Program, def *schema.WorkflowDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if _, err := le.Compute(ctx, prog); err != nil {
		tfErr := layout.Structured(err)
		result.AddError(issuePath(tfErr, elementPaths(def)), tfErr.Code, tfErr.Message)
	}
	return result
}

func issuePath(err error, paths map[string]string) string {
	var tfErr *schema.TileflowError
	if errors.As(err, &tfErr) && tfErr.ElementID != "" {
		if p, ok := paths[tfErr.ElementID]; ok {
			return p
		}
	}
	return "elements"
}

func issueCode(err error) string {
	var tfErr *schema.TileflowError
	if errors.As(err, &tfErr) {
		return tfErr.Code
	}
	return schema.ErrCodeValidation
}
