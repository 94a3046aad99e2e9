package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/tileflow/internal/diagram"
	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/internal/store"
	"github.com/rendis/tileflow/pkg/schema"
)

func newService(t *testing.T, withStore bool) *Service {
	t.Helper()
	deps := Deps{}
	if withStore {
		st, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "svc.db"))
		require.NoError(t, err)
		require.NoError(t, st.Migrate(context.Background()))
		t.Cleanup(func() { _ = st.Close() })
		deps.Store = st
	}
	s, err := New(deps)
	require.NoError(t, err)
	return s
}

func ifElse() *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{
		ID:    "refunds",
		Title: "Refund for ${{inputs.customer}}",
		Elements: []schema.ElementDefinition{
			{
				ID: "S", Type: schema.KindSwitch, Title: "Large?", Condition: "inputs.amount > 100",
				Yes: &schema.Branch{Elements: []schema.ElementDefinition{{ID: "a", Action: "refund.manual"}}},
				No:  &schema.Branch{Elements: []schema.ElementDefinition{{ID: "b", Action: "refund.auto"}}},
			},
			{ID: "d", Type: schema.KindStatus, Status: "refunded"},
		},
		InputsSchema: map[string]any{
			"type":     "object",
			"required": []any{"amount"},
			"properties": map[string]any{
				"amount": map[string]any{"type": "number"},
			},
		},
	}
}

func unclassifiable() *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{
		ID: "broken",
		Elements: []schema.ElementDefinition{
			{
				ID: "S1", Type: schema.KindSwitch, Condition: "true",
				Yes: &schema.Branch{Elements: []schema.ElementDefinition{
					{ID: "S2", Type: schema.KindSwitch, Condition: "true"},
				}},
			},
			{ID: "d"},
		},
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var tfErr *schema.TileflowError
	require.True(t, errors.As(err, &tfErr), "expected TileflowError, got %v", err)
	assert.Equal(t, code, tfErr.Code)
}

func TestLayout(t *testing.T) {
	s := newService(t, false)

	out, err := s.Layout(context.Background(), ifElse())
	require.NoError(t, err)
	assert.Equal(t, "refunds", out.DefinitionID)
	assert.Equal(t, 2, out.Cols)
	assert.Equal(t, 4, out.Rows)
	assert.Equal(t, 2, out.Paths)
	require.Len(t, out.Switches, 1)

	got := map[string][2]int{}
	for _, p := range out.Points {
		got[p.Item.ID] = [2]int{p.X, p.Y}
	}
	assert.Equal(t, map[string][2]int{"S": {0, 0}, "a": {1, 1}, "b": {1, 2}, "d": {0, 3}}, got)
}

func TestLayout_Errors(t *testing.T) {
	s := newService(t, false)
	ctx := context.Background()

	_, err := s.Layout(ctx, nil)
	requireCode(t, err, schema.ErrCodeValidation)

	bad := ifElse()
	bad.Elements[0].No = &schema.Branch{GoTo: "nowhere"}
	_, err = s.Layout(ctx, bad)
	requireCode(t, err, schema.ErrCodeValidation)

	_, err = s.Layout(ctx, unclassifiable())
	var clsErr *layout.ClassificationError
	require.True(t, errors.As(err, &clsErr))
	assert.Equal(t, "S2", clsErr.SwitchID)
}

func TestValidate_IncludesLayoutStage(t *testing.T) {
	s := newService(t, false)

	assert.True(t, s.Validate(context.Background(), ifElse()).Valid())

	result := s.Validate(context.Background(), unclassifiable())
	require.False(t, result.Valid())
	assert.Equal(t, schema.ErrCodeClassification, result.Errors[0].Code)
}

func TestDiagram_Formats(t *testing.T) {
	s := newService(t, false)
	ctx := context.Background()

	ascii, err := s.Diagram(ctx, ifElse(), DiagramOptions{})
	require.NoError(t, err)
	assert.Equal(t, FormatASCII, ascii.Format)
	assert.Equal(t, "text/plain; charset=utf-8", ascii.ContentType)
	assert.Contains(t, string(ascii.Data), "Large?")
	assert.Nil(t, ascii.Trace)
	assert.Equal(t, 4, ascii.Layout.Rows)

	mermaid, err := s.Diagram(ctx, ifElse(), DiagramOptions{Format: FormatMermaid})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(mermaid.Data), "graph TD"))
}

func TestDiagram_TraceOverlay(t *testing.T) {
	s := newService(t, false)

	out, err := s.Diagram(context.Background(), ifElse(), DiagramOptions{
		Format: FormatMermaid,
		Inputs: map[string]any{"amount": 250, "customer": "Ada"},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Trace)
	assert.Equal(t, map[string]bool{"S": true}, out.Trace.Taken())
	assert.True(t, out.Trace.Visited()["a"])
	assert.False(t, out.Trace.Visited()["b"])
	assert.Contains(t, string(out.Data), "classDef visited")
}

func TestDiagram_Errors(t *testing.T) {
	s := newService(t, false)
	ctx := context.Background()

	_, err := s.Diagram(ctx, ifElse(), DiagramOptions{Format: "svg"})
	requireCode(t, err, schema.ErrCodeValidation)

	_, err = s.Diagram(ctx, ifElse(), DiagramOptions{Format: FormatImage, Scale: diagram.Scale{X: -1, Y: 10}})
	requireCode(t, err, schema.ErrCodeValidation)

	_, err = s.Diagram(ctx, ifElse(), DiagramOptions{Inputs: map[string]any{"amount": "lots"}})
	requireCode(t, err, schema.ErrCodeValidation)
}

func TestDefinitions(t *testing.T) {
	s := newService(t, true)
	ctx := context.Background()
	require.True(t, s.HasStore())

	out, err := s.Define(ctx, &store.DefinitionRecord{ID: "refunds", Definition: *ifElse()})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Record.Version)
	assert.Equal(t, 1, out.Record.Switches)

	def, err := s.Resolve(ctx, Ref{ID: "refunds"})
	require.NoError(t, err)
	assert.Equal(t, "refunds", def.ID)

	lo, err := s.Layout(ctx, def)
	require.NoError(t, err)
	assert.Len(t, lo.Points, 4)

	list, err := s.ListDefinitions(ctx, store.DefinitionFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got, err := s.GetDefinition(ctx, "refunds", 1)
	require.NoError(t, err)
	assert.Equal(t, out.Record.Checksum, got.Checksum)

	require.NoError(t, s.DeleteDefinition(ctx, "refunds"))
	_, err = s.Resolve(ctx, Ref{ID: "refunds"})
	requireCode(t, err, schema.ErrCodeNotFound)
}

func TestDefine_RejectsInvalid(t *testing.T) {
	s := newService(t, true)

	_, err := s.Define(context.Background(), &store.DefinitionRecord{ID: "broken", Definition: *unclassifiable()})
	requireCode(t, err, schema.ErrCodeClassification)

	_, err = s.GetDefinition(context.Background(), "broken", 0)
	requireCode(t, err, schema.ErrCodeNotFound)
}

func TestWithoutStore(t *testing.T) {
	s := newService(t, false)
	ctx := context.Background()
	assert.False(t, s.HasStore())

	_, err := s.Define(ctx, &store.DefinitionRecord{Definition: *ifElse()})
	requireCode(t, err, schema.ErrCodeStore)
	_, err = s.Resolve(ctx, Ref{ID: "refunds"})
	requireCode(t, err, schema.ErrCodeStore)
	_, err = s.ListDefinitions(ctx, store.DefinitionFilter{})
	requireCode(t, err, schema.ErrCodeStore)
	requireCode(t, s.DeleteDefinition(ctx, "x"), schema.ErrCodeStore)

	_, err = s.Resolve(ctx, Ref{})
	requireCode(t, err, schema.ErrCodeValidation)

	inline := ifElse()
	def, err := s.Resolve(ctx, Ref{Definition: inline, ID: "ignored"})
	require.NoError(t, err)
	assert.Same(t, inline, def)
}
