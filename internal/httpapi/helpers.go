package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rendis/tileflow/internal/diagram"
	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/pkg/schema"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error *schema.TileflowError `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as a structured error with the status its code maps to.
func writeError(w http.ResponseWriter, err error) {
	tfErr := layout.Structured(err)
	writeJSON(w, statusFor(err, tfErr.Code), errorBody{Error: tfErr})
}

// badRequest writes a VALIDATION_ERROR with status 400.
func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: schema.NewErrorf(schema.ErrCodeValidation, format, args...)})
}

func statusFor(err error, code string) int {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	switch code {
	case schema.ErrCodeValidation, schema.ErrCodeExpression, schema.ErrCodeInvalidReference, schema.ErrCodeUnknownElement:
		return http.StatusBadRequest
	case schema.ErrCodeDefinition, schema.ErrCodeClassification, schema.ErrCodeCombinatorial:
		return http.StatusUnprocessableEntity
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeConflict:
		return http.StatusConflict
	case schema.ErrCodeStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid JSON: %v", err)
		return false
	}
	return true
}

// queryInt extracts an integer query param with a default value.
func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// queryBool reads true/1 as true.
func queryBool(r *http.Request, key string) bool {
	v := r.URL.Query().Get(key)
	return v == "true" || v == "1"
}

// parseScale reads "160x96" into a diagram scale; empty means zero.
func parseScale(s string) (diagram.Scale, error) {
	if s == "" {
		return diagram.Scale{}, nil
	}
	xs, ys, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return diagram.Scale{}, fmt.Errorf("scale %q must look like 160x96", s)
	}
	x, errX := strconv.ParseFloat(xs, 64)
	y, errY := strconv.ParseFloat(ys, 64)
	if errX != nil || errY != nil {
		return diagram.Scale{}, fmt.Errorf("scale %q must look like 160x96", s)
	}
	return diagram.Scale{X: x, Y: y}, nil
}
