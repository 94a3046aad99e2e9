package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "", DefinitionID(ctx))
	assert.Equal(t, "", SwitchID(ctx))
	assert.Equal(t, "", RequestID(ctx))

	ctx = WithDefinitionID(ctx, "order-flow")
	ctx = WithSwitchID(ctx, "approved")
	ctx = WithRequestID(ctx, "req-42")

	assert.Equal(t, "order-flow", DefinitionID(ctx))
	assert.Equal(t, "approved", SwitchID(ctx))
	assert.Equal(t, "req-42", RequestID(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithDefinitionID(context.Background(), "order-flow")
	ctx = WithSwitchID(ctx, "approved")
	ctx = WithRequestID(ctx, "req-1")

	LogWith(ctx, logger).Info("test message")

	output := buf.String()
	assert.Contains(t, output, "definition_id=order-flow")
	assert.Contains(t, output, "switch_id=approved")
	assert.Contains(t, output, "request_id=req-1")
	assert.Contains(t, output, "test message")
}

func TestLogWithMissingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithDefinitionID(context.Background(), "only-def")
	LogWith(ctx, logger).Info("partial context")

	output := buf.String()
	assert.Contains(t, output, "definition_id=only-def")
	assert.NotContains(t, output, "switch_id")
	assert.NotContains(t, output, "request_id")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithRequestID(WithDefinitionID(context.Background(), "def-auto"), "req-auto")
	logger.InfoContext(ctx, "auto inject")

	output := buf.String()
	assert.Contains(t, output, `"definition_id":"def-auto"`)
	assert.Contains(t, output, `"request_id":"req-auto"`)
	assert.NotContains(t, output, "switch_id")
}

func TestCorrelationHandlerEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "bare log")

	output := buf.String()
	assert.NotContains(t, output, "definition_id")
	assert.Contains(t, output, "bare log")
}

func TestCorrelationHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	handler := NewCorrelationHandler(slog.NewJSONHandler(&buf, nil))
	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("component", "layout")}).WithGroup("grid"))

	logger.InfoContext(WithSwitchID(context.Background(), "s1"), "grouped", "rows", 4)

	output := buf.String()
	assert.Contains(t, output, `"component":"layout"`)
	assert.Contains(t, output, "s1")
	assert.Contains(t, output, "grouped")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelWarn, "json", &buf)

	logger.InfoContext(context.Background(), "dropped")
	logger.WarnContext(WithDefinitionID(context.Background(), "d"), "kept")

	output := buf.String()
	assert.NotContains(t, output, "dropped")
	assert.Contains(t, output, `"msg":"kept"`)
	assert.Contains(t, output, `"definition_id":"d"`)
}
