package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rendis/tileflow/internal/expressions"
	"github.com/rendis/tileflow/pkg/schema"
)

func action(id string) schema.ElementDefinition {
	return schema.ElementDefinition{ID: id, Action: "noop"}
}

func switchOf(id, condition string, yes, no *schema.Branch) schema.ElementDefinition {
	return schema.ElementDefinition{ID: id, Type: schema.KindSwitch, Condition: condition, Yes: yes, No: no}
}

func branch(elems ...schema.ElementDefinition) *schema.Branch {
	return &schema.Branch{Elements: elems}
}

func definition(elems ...schema.ElementDefinition) *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{ID: "wf", Elements: elems}
}

// ifElse is a valid two-branch workflow.
func ifElse() *schema.WorkflowDefinition {
	return definition(
		action("a"),
		switchOf("s", "inputs.amount > 100", branch(action("y")), branch(action("n"))),
		action("z"),
	)
}

func registry(t *testing.T) *expressions.Registry {
	t.Helper()
	r, err := expressions.NewRegistry()
	require.NoError(t, err)
	return r
}

func codes(issues []schema.ValidationIssue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Code
	}
	return out
}
