package service

import (
	"context"
	"log/slog"

	"github.com/rendis/tileflow/internal/diagram"
	"github.com/rendis/tileflow/internal/engine"
	"github.com/rendis/tileflow/internal/logging"
	"github.com/rendis/tileflow/pkg/schema"
)

// Diagram formats.
const (
	FormatASCII   = "ascii"
	FormatMermaid = "mermaid"
	FormatImage   = "image"
)

// Formats lists the supported diagram formats.
var Formats = []string{FormatASCII, FormatMermaid, FormatImage}

// DiagramOptions selects the output of Diagram.
type DiagramOptions struct {
	Format string
	Scale  diagram.Scale // image only; zero means diagram.DefaultScale
	// Inputs enables the trace overlay when non-nil.
	Inputs map[string]any
}

// DiagramOutput is a rendered diagram.
type DiagramOutput struct {
	Format      string
	ContentType string
	Data        []byte
	Trace       *engine.Trace
	Layout      *LayoutOutput
}

// Diagram lays out def and renders it. With inputs the switch conditions
// are evaluated and the resulting run is highlighted.
func (s *Service) Diagram(ctx context.Context, def *schema.WorkflowDefinition, opts DiagramOptions) (*DiagramOutput, error) {
	format := opts.Format
	if format == "" {
		format = FormatASCII
	}
	scale := opts.Scale
	if scale == (diagram.Scale{}) {
		scale = diagram.DefaultScale
	}
	switch {
	case format != FormatASCII && format != FormatMermaid && format != FormatImage:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unsupported diagram format %q (want ascii, mermaid or image)", format)
	case !scale.Valid():
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "scale coefficients must be positive, got %gx%g", scale.X, scale.Y)
	}

	lo, err := s.Layout(ctx, def)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithDefinitionID(ctx, def.ID)

	var overlay *diagram.Overlay
	var trace *engine.Trace
	if opts.Inputs != nil {
		if err := s.validator.ValidateTraceInputs(def, opts.Inputs); err != nil {
			return nil, err
		}
		trace, err = lo.program.Trace(ctx, s.conditions, opts.Inputs)
		if err != nil {
			return nil, err
		}
		overlay = &diagram.Overlay{Trace: trace, Inputs: opts.Inputs}
	}

	model, err := diagram.Build(lo.program, lo.Points, overlay)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeRender, err.Error()).WithCause(err)
	}

	out := &DiagramOutput{Format: format, Trace: trace, Layout: lo}
	switch format {
	case FormatASCII:
		out.ContentType = "text/plain; charset=utf-8"
		out.Data = []byte(diagram.RenderASCII(model))
	case FormatMermaid:
		out.ContentType = "text/plain; charset=utf-8"
		out.Data = []byte(diagram.RenderMermaid(model))
	case FormatImage:
		png, err := diagram.RenderImage(ctx, model, scale)
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeRender, err.Error()).WithCause(err)
		}
		out.ContentType = "image/png"
		out.Data = png
	}

	s.logger.DebugContext(ctx, "diagram rendered",
		slog.String("format", format),
		slog.Int("bytes", len(out.Data)),
		slog.Bool("traced", trace != nil))
	return out, nil
}
