package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rendis/tileflow/internal/diagram"
	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/internal/service"
	"github.com/rendis/tileflow/internal/store"
	"github.com/rendis/tileflow/pkg/schema"
)

// refRequest names a definition inline or by stored id.
type refRequest struct {
	Definition *schema.WorkflowDefinition `json:"definition,omitempty"`
	ID         string                     `json:"id,omitempty"`
	Version    int                        `json:"version,omitempty"`
}

func (q refRequest) ref() service.Ref {
	return service.Ref{Definition: q.Definition, ID: q.ID, Version: q.Version}
}

type diagramRequest struct {
	refRequest
	Format string         `json:"format,omitempty"`
	ScaleX float64        `json:"scale_x,omitempty"`
	ScaleY float64        `json:"scale_y,omitempty"`
	Inputs map[string]any `json:"inputs,omitempty"`
}

type defineRequest struct {
	ID          string                    `json:"id,omitempty"`
	Version     int                       `json:"version,omitempty"`
	Title       string                    `json:"title,omitempty"`
	Description string                    `json:"description,omitempty"`
	Definition  schema.WorkflowDefinition `json:"definition"`
}

// handleLayout computes the layout of an inline or stored definition.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	var body refRequest
	if !decodeBody(w, r, &body) {
		return
	}
	s.layout(w, r, body.ref())
}

func (s *Server) handleDefinitionLayout(w http.ResponseWriter, r *http.Request) {
	s.layout(w, r, service.Ref{ID: chi.URLParam(r, "id"), Version: queryInt(r, "version", 0)})
}

func (s *Server) layout(w http.ResponseWriter, r *http.Request, ref service.Ref) {
	def, err := s.svc.Resolve(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.Layout(r.Context(), def)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type batchRequest struct {
	Items []refRequest `json:"items"`
}

// handleLayoutBatch lays out several definitions in one request. Items
// that cannot be resolved fail individually.
func (s *Server) handleLayoutBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if len(body.Items) == 0 || len(body.Items) > maxBatchItems {
		badRequest(w, "items must hold between 1 and %d entries", maxBatchItems)
		return
	}

	results := make([]service.LayoutBatchResult, len(body.Items))
	items := make([]service.BatchItem, 0, len(body.Items))
	slots := make([]int, 0, len(body.Items))
	for i, q := range body.Items {
		name := q.ID
		if name == "" && q.Definition != nil {
			name = q.Definition.ID
		}
		if name == "" {
			name = strconv.Itoa(i)
		}
		results[i].Name = name

		def, err := s.svc.Resolve(r.Context(), q.ref())
		if err != nil {
			results[i].Error = layout.Structured(err)
			continue
		}
		items = append(items, service.BatchItem{Name: name, Definition: def})
		slots = append(slots, i)
	}

	laid, err := s.svc.LayoutBatch(r.Context(), items)
	if err != nil {
		writeError(w, err)
		return
	}
	for j, res := range laid {
		results[slots[j]] = res
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// handleDiagram renders an inline or stored definition. Query parameters
// format and scale override the body.
func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	var body diagramRequest
	if !decodeBody(w, r, &body) {
		return
	}
	opts := service.DiagramOptions{
		Format: body.Format,
		Scale:  diagram.Scale{X: body.ScaleX, Y: body.ScaleY},
		Inputs: body.Inputs,
	}
	if !s.queryDiagramOptions(w, r, &opts) {
		return
	}
	s.diagram(w, r, body.ref(), opts)
}

// handleDefinitionDiagram renders a stored definition. Trace inputs are
// passed as a JSON object in the inputs query parameter.
func (s *Server) handleDefinitionDiagram(w http.ResponseWriter, r *http.Request) {
	var opts service.DiagramOptions
	if raw := r.URL.Query().Get("inputs"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts.Inputs); err != nil {
			badRequest(w, "inputs must be a JSON object: %v", err)
			return
		}
	}
	if !s.queryDiagramOptions(w, r, &opts) {
		return
	}
	s.diagram(w, r, service.Ref{ID: chi.URLParam(r, "id"), Version: queryInt(r, "version", 0)}, opts)
}

func (s *Server) queryDiagramOptions(w http.ResponseWriter, r *http.Request, opts *service.DiagramOptions) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		opts.Format = f
	}
	if raw := r.URL.Query().Get("scale"); raw != "" {
		scale, err := parseScale(raw)
		if err != nil {
			badRequest(w, "%v", err)
			return false
		}
		opts.Scale = scale
	}
	return true
}

func (s *Server) diagram(w http.ResponseWriter, r *http.Request, ref service.Ref, opts service.DiagramOptions) {
	def, err := s.svc.Resolve(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.svc.Diagram(r.Context(), def, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Data)
}

// handleValidate always answers 200 with the aggregated validation result.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body refRequest
	if !decodeBody(w, r, &body) {
		return
	}
	def, err := s.svc.Resolve(r.Context(), body.ref())
	if err != nil {
		writeError(w, err)
		return
	}
	result := s.svc.Validate(r.Context(), def)
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

// handleDefine stores a new definition version.
func (s *Server) handleDefine(w http.ResponseWriter, r *http.Request) {
	var body defineRequest
	if !decodeBody(w, r, &body) {
		return
	}
	out, err := s.svc.Define(r.Context(), &store.DefinitionRecord{
		ID:          body.ID,
		Version:     body.Version,
		Title:       body.Title,
		Description: body.Description,
		Definition:  body.Definition,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	recs, err := s.svc.ListDefinitions(r.Context(), store.DefinitionFilter{
		ID:          r.URL.Query().Get("id"),
		AllVersions: queryBool(r, "all_versions"),
		Limit:       queryInt(r, "limit", 50),
		Offset:      queryInt(r, "offset", 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []*store.DefinitionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"definitions": recs})
}

func (s *Server) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.GetDefinition(r.Context(), chi.URLParam(r, "id"), queryInt(r, "version", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteDefinition(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
