package service

import (
	"context"

	"github.com/rendis/tileflow/internal/engine"
	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/internal/logging"
	"github.com/rendis/tileflow/pkg/schema"
)

// LayoutOutput is a computed layout plus the data clients use to debug it.
type LayoutOutput struct {
	DefinitionID string                    `json:"definition_id,omitempty"`
	Cols         int                       `json:"cols"`
	Rows         int                       `json:"rows"`
	Paths        int                       `json:"paths"`
	Points       []schema.MapPoint         `json:"points"`
	Switches     []layout.Topology         `json:"switches,omitempty"`
	Corrections  []layout.CorrectionRecord `json:"corrections,omitempty"`
	Warnings     []schema.ValidationIssue  `json:"warnings,omitempty"`

	program *engine.Program
}

// Layout validates, compiles and lays out def.
func (s *Service) Layout(ctx context.Context, def *schema.WorkflowDefinition) (*LayoutOutput, error) {
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}
	ctx = logging.WithDefinitionID(ctx, def.ID)

	prog, warnings, err := s.Compile(ctx, def)
	if err != nil {
		return nil, err
	}
	res, err := s.layout.Compute(ctx, prog)
	if err != nil {
		return nil, err
	}

	cols, rows := res.Size()
	return &LayoutOutput{
		DefinitionID: def.ID,
		Cols:         cols,
		Rows:         rows,
		Paths:        res.Paths,
		Points:       res.Points,
		Switches:     res.Switches,
		Corrections:  res.Corrections,
		Warnings:     warnings,
		program:      prog,
	}, nil
}
