package engine

import (
	"context"
	"fmt"

	"github.com/rendis/tileflow/pkg/schema"
)

// ConditionEvaluator evaluates a switch condition to a boolean.
type ConditionEvaluator interface {
	EvaluateCondition(ctx context.Context, lang, expression string, data map[string]any) (bool, error)
}

// Trace is the single run selected by evaluating switch conditions against inputs.
type Trace struct {
	Decisions []schema.SwitchDecision `json:"decisions"`
	Items     []schema.WorkflowItem   `json:"items"`
}

// Visited returns the set of element ids the trace passes through.
func (t *Trace) Visited() map[string]bool {
	out := make(map[string]bool, len(t.Items))
	for _, item := range t.Items {
		out[item.ID] = true
	}
	return out
}

// Taken returns, per used switch, the outcome it resolved to.
func (t *Trace) Taken() map[string]bool {
	out := make(map[string]bool, len(t.Decisions))
	for _, d := range t.Decisions {
		if d.HasBeenUsed {
			out[d.SwitchID] = d.Outcome
		}
	}
	return out
}

// Trace runs the program once, deciding each switch by evaluating its
// condition. The first evaluation of a switch fixes its outcome for the run.
// Conditions see the variables inputs, workflow and switch.
func (p *Program) Trace(ctx context.Context, eval ConditionEvaluator, inputs map[string]any) (*Trace, error) {
	if eval == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "trace requires a condition evaluator")
	}
	if inputs == nil {
		inputs = map[string]any{}
	}

	workflow := map[string]any{"id": p.def.ID, "title": p.def.Title}
	seq := schema.NewResolvingSequence(p.switches, func(switchID string) (bool, error) {
		elem := p.nodes[switchID].elem
		data := map[string]any{
			"inputs":   inputs,
			"workflow": workflow,
			"switch":   map[string]any{"id": elem.ID, "title": elem.Label(), "params": elem.Params},
		}
		ok, err := eval.EvaluateCondition(ctx, elem.ConditionLang(), elem.Condition, data)
		if err != nil {
			return false, fmt.Errorf("switch %s: %w", switchID, err)
		}
		return ok, nil
	})

	items, err := p.Items(seq)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	return &Trace{Decisions: seq.Decisions(), Items: items}, nil
}
