package service

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/pkg/schema"
)

// BatchItem is one definition of a batch, addressed by Name (a file path,
// an id, a request index).
type BatchItem struct {
	Name       string
	Definition *schema.WorkflowDefinition
}

// LayoutBatchResult is the outcome for one BatchItem. Exactly one of
// Layout and Error is set.
type LayoutBatchResult struct {
	Name   string                `json:"name"`
	Layout *LayoutOutput         `json:"layout,omitempty"`
	Error  *schema.TileflowError `json:"error,omitempty"`
}

// ValidateBatchResult pairs a BatchItem name with its validation result.
type ValidateBatchResult struct {
	Name   string                   `json:"name"`
	Result *schema.ValidationResult `json:"result"`
}

func (s *Service) batchSize() int {
	if s.concurrency > 0 {
		return s.concurrency
	}
	return runtime.GOMAXPROCS(0)
}

// LayoutBatch lays out every item concurrently. Results keep the order of
// items; a failing item does not stop the others.
func (s *Service) LayoutBatch(ctx context.Context, items []BatchItem) ([]LayoutBatchResult, error) {
	results := make([]LayoutBatchResult, len(items))
	p := newPool(s.batchSize())
	for i, item := range items {
		results[i].Name = item.Name
		err := p.Go(ctx, func(ctx context.Context) error {
			out, err := s.Layout(ctx, item.Definition)
			if err != nil {
				results[i].Error = layout.Structured(err)
				return err
			}
			results[i].Layout = out
			return nil
		}, func(err error) {
			results[i].Error = schema.NewError(schema.ErrCodeDefinition, err.Error())
		})
		if err != nil {
			p.Wait()
			return nil, err
		}
	}
	stats := p.Wait()
	s.logger.InfoContext(ctx, "layout batch finished",
		slog.Int("items", len(items)),
		slog.Int64("failed", stats.Failed),
		slog.Int64("panics", stats.Panics))
	return results, nil
}

// ValidateBatch validates every item concurrently, keeping item order.
func (s *Service) ValidateBatch(ctx context.Context, items []BatchItem) ([]ValidateBatchResult, error) {
	results := make([]ValidateBatchResult, len(items))
	p := newPool(s.batchSize())
	for i, item := range items {
		results[i].Name = item.Name
		err := p.Go(ctx, func(ctx context.Context) error {
			results[i].Result = s.Validate(ctx, item.Definition)
			return results[i].Result.ToError()
		}, func(err error) {
			results[i].Result = &schema.ValidationResult{}
			results[i].Result.AddError("/", schema.ErrCodeValidation, err.Error())
		})
		if err != nil {
			p.Wait()
			return nil, err
		}
	}
	p.Wait()
	return results, nil
}
