package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/tileflow/internal/diagram"
	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/internal/service"
	"github.com/rendis/tileflow/internal/store"
	"github.com/rendis/tileflow/pkg/schema"
)

// handleDefine validates and stores a definition with auto-versioning.
func (s *TileflowServer) handleDefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, err := parseDefinition(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if def == nil {
		return mcp.NewToolResultError("definition is required"), nil
	}

	out, err := s.svc.Define(ctx, &store.DefinitionRecord{
		ID:          req.GetString("id", ""),
		Version:     req.GetInt("version", 0),
		Title:       req.GetString("title", ""),
		Description: req.GetString("description", ""),
		Definition:  *def,
	})
	if err != nil {
		return toolError("define failed", err)
	}

	return marshalResult(map[string]any{
		"id":       out.Record.ID,
		"version":  out.Record.Version,
		"checksum": out.Record.Checksum,
		"switches": out.Record.Switches,
		"warnings": out.Warnings,
	})
}

// handleLayout computes the layout of an inline or stored definition.
func (s *TileflowServer) handleLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, errResult := s.resolve(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	out, err := s.svc.Layout(ctx, def)
	if err != nil {
		return toolError("layout failed", err)
	}
	return marshalResult(out)
}

// handleDiagram renders a workflow diagram in the requested format.
func (s *TileflowServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	def, errResult := s.resolve(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	opts := service.DiagramOptions{
		Format: format,
		Scale:  diagram.Scale{X: req.GetFloat("scale_x", 0), Y: req.GetFloat("scale_y", 0)},
		Inputs: mcp.ParseStringMap(req, "inputs", nil),
	}
	if opts.Scale.X != 0 || opts.Scale.Y != 0 {
		if opts.Scale.X == 0 {
			opts.Scale.X = diagram.DefaultScale.X
		}
		if opts.Scale.Y == 0 {
			opts.Scale.Y = diagram.DefaultScale.Y
		}
	}

	out, err := s.svc.Diagram(ctx, def, opts)
	if err != nil {
		return toolError("diagram failed", err)
	}

	if out.Format == service.FormatImage {
		encoded := base64.StdEncoding.EncodeToString(out.Data)
		return mcp.NewToolResultImage(fmt.Sprintf("%s diagram (%d bytes)", def.Label(), len(out.Data)), encoded, out.ContentType), nil
	}
	return mcp.NewToolResultText(string(out.Data)), nil
}

// handleQuery lists stored definitions or fetches one.
func (s *TileflowServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}

	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "definitions":
		return s.queryDefinitions(ctx, filter)
	case "definition":
		return s.queryDefinition(ctx, filter)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// handleValidate returns the aggregated validation result.
func (s *TileflowServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, errResult := s.resolve(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	result := s.svc.Validate(ctx, def)
	return marshalResult(map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

// --- Query helpers ---

func (s *TileflowServer) queryDefinitions(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	df := store.DefinitionFilter{
		Limit:  extractInt(filter, "limit", 50),
		Offset: extractInt(filter, "offset", 0),
	}
	if id, ok := filter["id"].(string); ok {
		df.ID = id
	}
	if all, ok := filter["all_versions"].(bool); ok {
		df.AllVersions = all
	}

	recs, err := s.svc.ListDefinitions(ctx, df)
	if err != nil {
		return toolError("query failed", err)
	}
	summaries := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		summaries = append(summaries, map[string]any{
			"id":         r.ID,
			"version":    r.Version,
			"title":      r.Title,
			"switches":   r.Switches,
			"checksum":   r.Checksum,
			"created_at": r.CreatedAt,
		})
	}
	return marshalResult(map[string]any{"definitions": summaries})
}

func (s *TileflowServer) queryDefinition(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	id, _ := filter["id"].(string)
	if id == "" {
		return mcp.NewToolResultError("definition query requires 'id' in filter"), nil
	}
	rec, err := s.svc.GetDefinition(ctx, id, extractInt(filter, "version", 0))
	if err != nil {
		return toolError("query failed", err)
	}
	return marshalResult(rec)
}

// --- Internal helpers ---

// resolve reads the definition reference arguments and loads the definition.
// A non-nil result is an error to return to the client.
func (s *TileflowServer) resolve(ctx context.Context, req mcp.CallToolRequest) (*schema.WorkflowDefinition, *mcp.CallToolResult) {
	def, err := parseDefinition(req)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	resolved, err := s.svc.Resolve(ctx, service.Ref{
		Definition: def,
		ID:         req.GetString("id", ""),
		Version:    req.GetInt("version", 0),
	})
	if err != nil {
		res, _ := toolError("definition lookup failed", err)
		return nil, res
	}
	return resolved, nil
}

// parseDefinition decodes the definition argument, nil when absent.
func parseDefinition(req mcp.CallToolRequest) (*schema.WorkflowDefinition, error) {
	raw := mcp.ParseStringMap(req, "definition", nil)
	if raw == nil {
		return nil, nil
	}

	// Marshal then unmarshal the definition to get a proper WorkflowDefinition.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid definition: %v", err)
	}
	var def schema.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("invalid definition: %v", err)
	}
	return &def, nil
}

// toolError reports err as a tool error carrying the structured error JSON.
func toolError(prefix string, err error) (*mcp.CallToolResult, error) {
	tfErr := layout.Structured(err)
	data, mErr := json.Marshal(map[string]any{"error": tfErr})
	if mErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err)), nil
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %s", prefix, data)), nil
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
