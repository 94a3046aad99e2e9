package schema

import (
	"fmt"
	"strings"
)

// ElementKind tags a diagram node. The set is closed: five executable kinds
// and five decorative kinds that only exist for rendering.
type ElementKind string

const (
	KindAction      ElementKind = "action"
	KindStatus      ElementKind = "status"
	KindSwitch      ElementKind = "switch"
	KindBoundary    ElementKind = "boundary"
	KindPlaceholder ElementKind = "placeholder"

	KindVerticalLine   ElementKind = "vertical_line"
	KindHorizontalLine ElementKind = "horizontal_line"
	KindCorner         ElementKind = "corner"
	KindYesMarker      ElementKind = "yes_marker"
	KindNoMarker       ElementKind = "no_marker"
)

var executableKinds = map[ElementKind]bool{
	KindAction:      true,
	KindStatus:      true,
	KindSwitch:      true,
	KindBoundary:    true,
	KindPlaceholder: true,
}

var decorativeKinds = map[ElementKind]bool{
	KindVerticalLine:   true,
	KindHorizontalLine: true,
	KindCorner:         true,
	KindYesMarker:      true,
	KindNoMarker:       true,
}

// Executable reports whether the kind can appear in a workflow definition.
func (k ElementKind) Executable() bool { return executableKinds[k] }

// Decorative reports whether the kind is a rendering-only connector or marker.
func (k ElementKind) Decorative() bool { return decorativeKinds[k] }

// Valid reports whether k belongs to the closed kind set.
func (k ElementKind) Valid() bool { return executableKinds[k] || decorativeKinds[k] }

// WorkflowItem is one node yielded by the executable sequence generator.
// CurrentLoopTurn is nil on the first visit and k on the k-th revisit within one run.
type WorkflowItem struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Kind            ElementKind `json:"type"`
	CurrentLoopTurn *int        `json:"current_loop_turn,omitempty"`
}

// IsLoopTurn reports whether the item is a loop re-entry.
func (i WorkflowItem) IsLoopTurn() bool { return i.CurrentLoopTurn != nil }

// Canonical returns a copy of the item without its loop turn marker.
func (i WorkflowItem) Canonical() WorkflowItem {
	i.CurrentLoopTurn = nil
	return i
}

// SwitchFactory instantiates the canonical Switch item from stored element attributes.
type SwitchFactory func() WorkflowItem

// SwitchDecision is one entry of a SwitchDecisionSequence.
type SwitchDecision struct {
	SwitchID    string `json:"switch_id"`
	Outcome     bool   `json:"outcome"`
	HasBeenUsed bool   `json:"has_been_used"`
}

// DecisionResolver decides a switch that has no fixed outcome in a sequence.
type DecisionResolver func(switchID string) (bool, error)

// SwitchDecisionSequence is one combination of switch outcomes handed to the
// generator. Resolve marks the decision as used the first time it is read.
type SwitchDecisionSequence struct {
	decisions []SwitchDecision
	index     map[string]int
	fixed     map[string]bool
	useOrder  []string
	resolver  DecisionResolver
}

// NewDecisionSequence builds a sequence over the given switch ids. Switches
// missing from outcomes default to true.
func NewDecisionSequence(switchIDs []string, outcomes map[string]bool) *SwitchDecisionSequence {
	s := &SwitchDecisionSequence{
		decisions: make([]SwitchDecision, len(switchIDs)),
		index:     make(map[string]int, len(switchIDs)),
		fixed:     make(map[string]bool, len(outcomes)),
	}
	for i, id := range switchIDs {
		outcome, ok := outcomes[id]
		if !ok {
			outcome = true
		} else {
			s.fixed[id] = true
		}
		s.decisions[i] = SwitchDecision{SwitchID: id, Outcome: outcome}
		s.index[id] = i
	}
	return s
}

// NewResolvingSequence builds a sequence whose outcomes are decided lazily by resolver.
func NewResolvingSequence(switchIDs []string, resolver DecisionResolver) *SwitchDecisionSequence {
	s := NewDecisionSequence(switchIDs, nil)
	s.resolver = resolver
	return s
}

// Resolve returns the outcome for switchID and marks it as used.
// Later calls for the same switch return the same outcome.
func (s *SwitchDecisionSequence) Resolve(switchID string) (bool, error) {
	i, ok := s.index[switchID]
	if !ok {
		return false, NewErrorf(ErrCodeUnknownElement, "switch %q is not part of the decision sequence", switchID).
			WithElement(switchID)
	}
	d := &s.decisions[i]
	if d.HasBeenUsed {
		return d.Outcome, nil
	}
	if s.resolver != nil && !s.fixed[switchID] {
		outcome, err := s.resolver(switchID)
		if err != nil {
			return false, err
		}
		d.Outcome = outcome
	}
	d.HasBeenUsed = true
	s.useOrder = append(s.useOrder, switchID)
	return d.Outcome, nil
}

// Decisions returns a copy of all decisions in switch order.
func (s *SwitchDecisionSequence) Decisions() []SwitchDecision {
	out := make([]SwitchDecision, len(s.decisions))
	copy(out, s.decisions)
	return out
}

// UsedOrder returns the used switch ids in the order they were first resolved.
func (s *SwitchDecisionSequence) UsedOrder() []string {
	out := make([]string, len(s.useOrder))
	copy(out, s.useOrder)
	return out
}

// Fixed reports whether switchID had a preset outcome.
func (s *SwitchDecisionSequence) Fixed(switchID string) bool {
	return s.fixed[switchID]
}

// Outcome returns the decision for switchID and whether it was used.
func (s *SwitchDecisionSequence) Outcome(switchID string) (outcome, used bool) {
	i, ok := s.index[switchID]
	if !ok {
		return false, false
	}
	return s.decisions[i].Outcome, s.decisions[i].HasBeenUsed
}

// String renders the used decisions, e.g. "check=yes,retry=no".
func (s *SwitchDecisionSequence) String() string {
	parts := make([]string, 0, len(s.useOrder))
	for _, id := range s.useOrder {
		outcome, _ := s.Outcome(id)
		parts = append(parts, fmt.Sprintf("%s=%s", id, OutcomeLabel(outcome)))
	}
	return strings.Join(parts, ",")
}

// OutcomeLabel returns "yes" or "no".
func OutcomeLabel(outcome bool) string {
	if outcome {
		return "yes"
	}
	return "no"
}
