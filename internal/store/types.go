package store

import (
	"time"

	"github.com/rendis/tileflow/pkg/schema"
)

// DefinitionRecord is one stored version of a workflow definition.
type DefinitionRecord struct {
	ID          string                    `json:"id"`
	Version     int                       `json:"version"` // 0 on save means next version
	Title       string                    `json:"title,omitempty"`
	Description string                    `json:"description,omitempty"`
	Definition  schema.WorkflowDefinition `json:"definition"`
	Checksum    string                    `json:"checksum"`
	Switches    int                       `json:"switches"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// DefinitionFilter specifies criteria for listing definitions.
type DefinitionFilter struct {
	ID          string `json:"id,omitempty"`           // all versions of one definition
	AllVersions bool   `json:"all_versions,omitempty"` // otherwise only the latest version per id
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}
