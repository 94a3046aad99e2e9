package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeDefinition       = "DEFINITION_ERROR"
	ErrCodeClassification   = "CLASSIFICATION_ERROR"
	ErrCodeCombinatorial    = "COMBINATORIAL_LIMIT"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeStore            = "STORE_ERROR"
	ErrCodeRender           = "RENDER_ERROR"
	ErrCodeExpression       = "EXPRESSION_ERROR"
	ErrCodeUnknownElement   = "UNKNOWN_ELEMENT"
	ErrCodeInvalidReference = "INVALID_REFERENCE"
)

// TileflowError is the structured error type shared by every tileflow surface.
type TileflowError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	ElementID string         `json:"element_id,omitempty"`
	Cause     error          `json:"-"`
}

func (e *TileflowError) Error() string {
	if e.ElementID != "" {
		return fmt.Sprintf("[%s] element %s: %s", e.Code, e.ElementID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *TileflowError) Unwrap() error {
	return e.Cause
}

// NewError creates a new TileflowError.
func NewError(code, message string) *TileflowError {
	return &TileflowError{Code: code, Message: message}
}

// NewErrorf creates a new TileflowError with a formatted message.
func NewErrorf(code, format string, args ...any) *TileflowError {
	return &TileflowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithElement attaches an element ID to the error.
func (e *TileflowError) WithElement(elementID string) *TileflowError {
	e.ElementID = elementID
	return e
}

// WithCause attaches an underlying cause.
func (e *TileflowError) WithCause(err error) *TileflowError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *TileflowError) WithDetails(details map[string]any) *TileflowError {
	e.Details = details
	return e
}
