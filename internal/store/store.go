package store

import "context"

// Store defines the persistence layer contract for workflow definitions.
// Layout results are never stored; they are recomputed on demand.
// All implementations must be safe for concurrent use.
type Store interface {
	// Definitions (versioned)
	SaveDefinition(ctx context.Context, rec *DefinitionRecord) error
	GetDefinition(ctx context.Context, id string, version int) (*DefinitionRecord, error)
	ListDefinitions(ctx context.Context, filter DefinitionFilter) ([]*DefinitionRecord, error)
	DeleteDefinition(ctx context.Context, id string) error

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
