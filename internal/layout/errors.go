package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rendis/tileflow/pkg/schema"
)

// DefinitionError reports a generator that failed, misbehaved or never terminated.
type DefinitionError struct {
	Reason    string
	Decisions string // used decisions of the failing run, if any
	ElementID string // tile the failure is about, if any
	Cause     error
}

func (e *DefinitionError) Error() string {
	var b strings.Builder
	b.WriteString("layout: definition error: ")
	b.WriteString(e.Reason)
	if e.Decisions != "" {
		fmt.Fprintf(&b, " (decisions %s)", e.Decisions)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *DefinitionError) Unwrap() error { return e.Cause }

// Candidate is a tile taking part in a switch classification.
// An empty ID stands for the virtual exit past the last row.
type Candidate struct {
	ID          string `json:"id,omitempty"`
	Occurrences uint64 `json:"occurrences"`
	Row         int    `json:"row"`
}

// IsExit reports whether the candidate is the virtual exit tile.
func (c Candidate) IsExit() bool { return c.ID == "" }

func (c Candidate) String() string {
	id := c.ID
	if c.IsExit() {
		id = "<exit>"
	}
	return fmt.Sprintf("%s(occurrences=%d,row=%d)", id, c.Occurrences, c.Row)
}

// ClassificationError reports a switch whose branch topology matches no
// pattern, or more than one.
type ClassificationError struct {
	SwitchID    string
	Occurrences uint64
	Row         int
	Yes         Candidate
	No          Candidate
	Matched     []schema.SwitchType
	Reason      string
}

func (e *ClassificationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "branch topology matches no known pattern"
		if len(e.Matched) > 1 {
			reason = fmt.Sprintf("branch topology matches %d patterns %v", len(e.Matched), e.Matched)
		}
	}
	return fmt.Sprintf("layout: switch %s (occurrences=%d,row=%d): %s; yes=%s no=%s",
		e.SwitchID, e.Occurrences, e.Row, reason, e.Yes, e.No)
}

// CombinatorialLimitError reports a workflow with too many decision sequences.
type CombinatorialLimitError struct {
	Sequences int // sequences discovered before giving up
	Switches  int
	Limit     int
	Reason    string
}

func (e *CombinatorialLimitError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("layout: combinatorial limit: %s", e.Reason)
	}
	return fmt.Sprintf("layout: combinatorial limit: more than %d decision sequences over %d switches",
		e.Limit, e.Switches)
}

// Structured converts a layout error into a TileflowError for transport
// layers. Errors that are already structured pass through; anything else is
// wrapped as a definition error.
func Structured(err error) *schema.TileflowError {
	if err == nil {
		return nil
	}

	var defErr *DefinitionError
	var clsErr *ClassificationError
	var limErr *CombinatorialLimitError
	var tfErr *schema.TileflowError

	switch {
	case errors.As(err, &clsErr):
		matched := make([]string, len(clsErr.Matched))
		for i, m := range clsErr.Matched {
			matched[i] = m.String()
		}
		return schema.NewError(schema.ErrCodeClassification, err.Error()).
			WithElement(clsErr.SwitchID).
			WithCause(err).
			WithDetails(map[string]any{
				"switch_id":   clsErr.SwitchID,
				"occurrences": clsErr.Occurrences,
				"row":         clsErr.Row,
				"yes":         clsErr.Yes,
				"no":          clsErr.No,
				"matched":     matched,
			})
	case errors.As(err, &limErr):
		return schema.NewError(schema.ErrCodeCombinatorial, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{
				"sequences": limErr.Sequences,
				"switches":  limErr.Switches,
				"limit":     limErr.Limit,
			})
	case errors.As(err, &defErr):
		tfErr := schema.NewError(schema.ErrCodeDefinition, err.Error()).WithCause(err)
		if defErr.ElementID != "" {
			tfErr = tfErr.WithElement(defErr.ElementID)
		}
		return tfErr
	case errors.As(err, &tfErr):
		return tfErr
	default:
		return schema.NewError(schema.ErrCodeDefinition, err.Error()).WithCause(err)
	}
}
