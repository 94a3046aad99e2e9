package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/pkg/schema"
)

func TestFlow_Valid(t *testing.T) {
	prog, result := validateFlow(ifElse())
	require.NotNil(t, prog)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestFlow_ForwardGoto(t *testing.T) {
	def := definition(
		switchOf("s", "true", &schema.Branch{GoTo: "later"}, branch(action("n"))),
		action("later"),
	)

	prog, result := validateFlow(def)
	assert.Nil(t, prog)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "elements[0]", result.Errors[0].Path)
	assert.Equal(t, schema.ErrCodeInvalidReference, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "jumps forward")
}

func TestFlow_Unreachable(t *testing.T) {
	def := definition(
		action("a"),
		switchOf("s", "true", &schema.Branch{Elements: []schema.ElementDefinition{action("y")}, End: true}, &schema.Branch{End: true}),
		action("dead"),
	)

	_, result := validateFlow(def)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "elements[2]", result.Warnings[0].Path)
	assert.Contains(t, result.Warnings[0].Message, "unreachable")
}

func TestFlow_ManySwitches(t *testing.T) {
	var elems []schema.ElementDefinition
	for i := 0; i <= switchWarnThreshold; i++ {
		id := string(rune('a' + i))
		elems = append(elems, switchOf("s"+id, "true", branch(action("y"+id)), branch(action("n"+id))))
	}

	_, result := validateFlow(definition(elems...))
	assert.True(t, result.Valid())
	assert.Equal(t, []string{schema.ErrCodeCombinatorial}, codes(result.Warnings))
}

func TestLayoutStage_Combinatorial(t *testing.T) {
	def := definition(
		switchOf("s1", "true", branch(action("y1")), branch(action("n1"))),
		switchOf("s2", "true", branch(action("y2")), branch(action("n2"))),
		switchOf("s3", "true", branch(action("y3")), branch(action("n3"))),
	)
	prog, flow := validateFlow(def)
	require.True(t, flow.Valid())

	result := validateLayout(context.Background(), layout.NewEngine(layout.WithMaxPaths(4)), prog, def)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.ErrCodeCombinatorial, result.Errors[0].Code)
	assert.Equal(t, "elements", result.Errors[0].Path)
}

func TestLayoutStage_Valid(t *testing.T) {
	def := ifElse()
	prog, _ := validateFlow(def)

	result := validateLayout(context.Background(), layout.NewEngine(), prog, def)
	assert.True(t, result.Valid())
}
