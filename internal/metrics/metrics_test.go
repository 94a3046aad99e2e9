package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/tileflow/internal/engine"
	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/pkg/schema"
)

func program(t *testing.T, elems ...schema.ElementDefinition) *engine.Program {
	t.Helper()
	p, err := engine.Compile(&schema.WorkflowDefinition{ID: "metrics", Elements: elems})
	require.NoError(t, err)
	return p
}

func ifElse(t *testing.T) *engine.Program {
	return program(t,
		schema.ElementDefinition{
			ID: "S", Type: schema.KindSwitch, Condition: "true",
			Yes: &schema.Branch{Elements: []schema.ElementDefinition{{ID: "a"}}},
			No:  &schema.Branch{Elements: []schema.ElementDefinition{{ID: "b"}}},
		},
		schema.ElementDefinition{ID: "d"},
	)
}

func TestLayoutMetrics_ObserveSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewLayoutMetrics(reg)
	require.NoError(t, err)

	e := layout.NewEngine(layout.WithObserver(m))
	res, err := e.Compute(context.Background(), ifElse(t))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.layouts.WithLabelValues(ResultOK)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.patterns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.patterns.WithLabelValues(res.Switches[0].Type.String())))
	assert.Equal(t, float64(len(res.Corrections)), testutil.ToFloat64(m.fixes))

	n, err := testutil.GatherAndCount(reg, "tileflow_layout_duration_seconds", "tileflow_layout_paths", "tileflow_layout_tiles")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestLayoutMetrics_ObserveFailure(t *testing.T) {
	m, err := NewLayoutMetrics(nil)
	require.NoError(t, err)

	inner := schema.ElementDefinition{ID: "S2", Type: schema.KindSwitch, Condition: "true", Yes: &schema.Branch{}, No: &schema.Branch{}}
	bad := program(t,
		schema.ElementDefinition{ID: "S1", Type: schema.KindSwitch, Condition: "true", Yes: &schema.Branch{Elements: []schema.ElementDefinition{inner}}},
		schema.ElementDefinition{ID: "d"},
	)

	_, err = layout.NewEngine(layout.WithObserver(m)).Compute(context.Background(), bad)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.layouts.WithLabelValues("classification_error")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.patterns))
}

func TestResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ResultOK},
		{context.Canceled, ResultCanceled},
		{fmt.Errorf("compute: %w", context.DeadlineExceeded), ResultCanceled},
		{&layout.CombinatorialLimitError{Limit: 4}, "combinatorial_limit"},
		{&layout.DefinitionError{Reason: "boom"}, "definition_error"},
		{&layout.ClassificationError{SwitchID: "s"}, "classification_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResultLabel(tt.err))
	}
}

func TestNewLayoutMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewLayoutMetrics(reg)
	require.NoError(t, err)

	_, err = NewLayoutMetrics(reg)
	assert.Error(t, err)
}

func TestRegistry_Handler(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	_, err = layout.NewEngine(layout.WithObserver(r.Layout)).Compute(context.Background(), ifElse(t))
	require.NoError(t, err)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `tileflow_layouts_total{result="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")

	mfs, err := r.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}
