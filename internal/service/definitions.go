package service

import (
	"context"
	"log/slog"

	"github.com/rendis/tileflow/internal/logging"
	"github.com/rendis/tileflow/internal/store"
	"github.com/rendis/tileflow/pkg/schema"
)

// DefineOutput is a stored definition with the validation warnings it carried.
type DefineOutput struct {
	Record   *store.DefinitionRecord  `json:"record"`
	Warnings []schema.ValidationIssue `json:"warnings,omitempty"`
}

// Define validates rec.Definition with every stage and stores it as a new
// version. Definitions with validation errors are rejected.
func (s *Service) Define(ctx context.Context, rec *store.DefinitionRecord) (*DefineOutput, error) {
	st, err := s.requireStore()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "definition record is nil")
	}
	if rec.ID != "" && rec.Definition.ID == "" {
		rec.Definition.ID = rec.ID
	}

	result := s.Validate(ctx, &rec.Definition)
	if err := result.ToError(); err != nil {
		return nil, err
	}
	if err := st.SaveDefinition(ctx, rec); err != nil {
		return nil, err
	}

	ctx = logging.WithDefinitionID(ctx, rec.ID)
	s.logger.InfoContext(ctx, "definition stored",
		slog.Int("version", rec.Version),
		slog.Int("switches", rec.Switches))
	return &DefineOutput{Record: rec, Warnings: result.Warnings}, nil
}

// GetDefinition returns a stored definition; version 0 means latest.
func (s *Service) GetDefinition(ctx context.Context, id string, version int) (*store.DefinitionRecord, error) {
	st, err := s.requireStore()
	if err != nil {
		return nil, err
	}
	return st.GetDefinition(ctx, id, version)
}

// ListDefinitions lists stored definitions.
func (s *Service) ListDefinitions(ctx context.Context, filter store.DefinitionFilter) ([]*store.DefinitionRecord, error) {
	st, err := s.requireStore()
	if err != nil {
		return nil, err
	}
	return st.ListDefinitions(ctx, filter)
}

// DeleteDefinition removes every version of a stored definition.
func (s *Service) DeleteDefinition(ctx context.Context, id string) error {
	st, err := s.requireStore()
	if err != nil {
		return err
	}
	if err := st.DeleteDefinition(ctx, id); err != nil {
		return err
	}
	ctx = logging.WithDefinitionID(ctx, id)
	s.logger.InfoContext(ctx, "definition deleted")
	return nil
}
