// Package service runs the tileflow pipeline shared by the HTTP API, the
// MCP server and the CLI: resolve a definition, validate it, compile it,
// compute its layout and render diagrams.
package service

import (
	"context"
	"log/slog"

	"github.com/rendis/tileflow/internal/engine"
	"github.com/rendis/tileflow/internal/expressions"
	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/internal/logging"
	"github.com/rendis/tileflow/internal/store"
	"github.com/rendis/tileflow/internal/validation"
	"github.com/rendis/tileflow/pkg/schema"
)

// Deps holds the collaborators of a Service. Only Store is optional
// beyond what New fills in; without it stored definitions are unavailable.
type Deps struct {
	Store      store.Store
	Layout     *layout.Engine
	Conditions *expressions.Registry
	Logger     *slog.Logger

	// Concurrency bounds batch operations; GOMAXPROCS when zero.
	Concurrency int
}

// Service is safe for concurrent use.
type Service struct {
	store      store.Store
	layout     *layout.Engine
	conditions *expressions.Registry
	precheck   *validation.WorkflowValidator // no layout stage
	validator  *validation.WorkflowValidator
	logger     *slog.Logger

	concurrency int
}

// New creates a Service, filling in a default layout engine, expression
// registry and logger when deps leaves them nil.
func New(deps Deps) (*Service, error) {
	s := &Service{
		store:      deps.Store,
		layout:     deps.Layout,
		conditions: deps.Conditions,
		logger:     deps.Logger,

		concurrency: deps.Concurrency,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.layout == nil {
		s.layout = layout.NewEngine(layout.WithLogger(s.logger))
	}
	if s.conditions == nil {
		reg, err := expressions.NewRegistry()
		if err != nil {
			return nil, err
		}
		s.conditions = reg
	}

	var err error
	if s.precheck, err = validation.NewWorkflowValidator(s.conditions, nil); err != nil {
		return nil, err
	}
	if s.validator, err = validation.NewWorkflowValidator(s.conditions, s.layout); err != nil {
		return nil, err
	}
	return s, nil
}

// HasStore reports whether stored definitions are available.
func (s *Service) HasStore() bool { return s.store != nil }

// Ref names a definition: inline, or stored by id and version (0 = latest).
type Ref struct {
	Definition *schema.WorkflowDefinition `json:"definition,omitempty"`
	ID         string                     `json:"id,omitempty"`
	Version    int                        `json:"version,omitempty"`
}

// Resolve returns the definition a Ref names. An inline definition wins.
func (s *Service) Resolve(ctx context.Context, ref Ref) (*schema.WorkflowDefinition, error) {
	if ref.Definition != nil {
		return ref.Definition, nil
	}
	if ref.ID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "a definition or a definition id is required")
	}
	st, err := s.requireStore()
	if err != nil {
		return nil, err
	}
	rec, err := st.GetDefinition(ctx, ref.ID, ref.Version)
	if err != nil {
		return nil, err
	}
	return &rec.Definition, nil
}

// Validate runs every validation stage, layout included.
func (s *Service) Validate(ctx context.Context, def *schema.WorkflowDefinition) *schema.ValidationResult {
	if def != nil {
		ctx = logging.WithDefinitionID(ctx, def.ID)
	}
	result := s.validator.Validate(ctx, def)
	s.logger.DebugContext(ctx, "definition validated",
		slog.Int("errors", len(result.Errors)),
		slog.Int("warnings", len(result.Warnings)))
	return result
}

// Compile validates def up to the flow stage and compiles it. Warnings are
// returned alongside the program.
func (s *Service) Compile(ctx context.Context, def *schema.WorkflowDefinition) (*engine.Program, []schema.ValidationIssue, error) {
	result := s.precheck.Validate(ctx, def)
	if err := result.ToError(); err != nil {
		return nil, result.Warnings, err
	}
	prog, err := engine.Compile(def)
	if err != nil {
		return nil, result.Warnings, err
	}
	return prog, result.Warnings, nil
}

func (s *Service) requireStore() (store.Store, error) {
	if s.store == nil {
		return nil, schema.NewError(schema.ErrCodeStore, "no definition store configured")
	}
	return s.store, nil
}
