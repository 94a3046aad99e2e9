package schema

import (
	"cmp"
	"fmt"
	"slices"
)

// ValidationSeverity indicates whether an issue blocks a definition.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is one finding, located by a path into the definition
// such as "elements[0].yes.elements[1]".
type ValidationIssue struct {
	Path     string             `json:"path"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%s %s [%s] %s", i.Severity, i.Path, i.Code, i.Message)
}

// ValidationResult collects the issues of every validation stage.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid reports whether there are no errors. Warnings never invalidate.
func (r *ValidationResult) Valid() bool { return len(r.Errors) == 0 }

func (r *ValidationResult) AddError(path, code, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Path: path, Code: code, Message: message, Severity: SeverityError})
}

func (r *ValidationResult) AddWarning(path, code, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Path: path, Code: code, Message: message, Severity: SeverityWarning})
}

// Merge appends the issues of other, which may be nil.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Issues returns errors and warnings ordered by path, errors first within
// a path. Issue order within a stage is kept for equal keys.
func (r *ValidationResult) Issues() []ValidationIssue {
	all := make([]ValidationIssue, 0, len(r.Errors)+len(r.Warnings))
	all = append(all, r.Errors...)
	all = append(all, r.Warnings...)
	slices.SortStableFunc(all, func(a, b ValidationIssue) int {
		if c := cmp.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return cmp.Compare(severityRank(a.Severity), severityRank(b.Severity))
	})
	return all
}

// HasCode reports whether any error carries code.
func (r *ValidationResult) HasCode(code string) bool {
	return slices.ContainsFunc(r.Errors, func(i ValidationIssue) bool { return i.Code == code })
}

func severityRank(s ValidationSeverity) int {
	if s == SeverityError {
		return 0
	}
	return 1
}

// layoutCodes are the error codes the layout stage reports. A result whose
// first error is one of them converts to an error with that code.
var layoutCodes = map[string]bool{
	ErrCodeDefinition:     true,
	ErrCodeClassification: true,
	ErrCodeCombinatorial:  true,
}

// ToError returns nil for a valid result, otherwise a TileflowError whose
// details hold every issue.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	first := r.Errors[0]
	code := ErrCodeValidation
	if layoutCodes[first.Code] {
		code = first.Code
	}
	msg := first.Message
	if n := len(r.Errors); n > 1 {
		msg = fmt.Sprintf("definition has %d errors; first at %s: %s", n, first.Path, first.Message)
	}

	return NewError(code, msg).WithDetails(map[string]any{
		"error_count":   len(r.Errors),
		"warning_count": len(r.Warnings),
		"errors":        r.Errors,
		"warnings":      r.Warnings,
	})
}
