package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rendis/tileflow/pkg/schema"
)

// mapEvaluator answers conditions from a fixed table keyed by expression.
type mapEvaluator struct {
	answers map[string]bool
	calls   []string
	seen    []map[string]any
}

func (m *mapEvaluator) EvaluateCondition(_ context.Context, lang, expression string, data map[string]any) (bool, error) {
	m.calls = append(m.calls, lang+":"+expression)
	m.seen = append(m.seen, data)
	v, ok := m.answers[expression]
	if !ok {
		return false, errors.New("no answer for " + expression)
	}
	return v, nil
}

func TestTrace_FollowsConditions(t *testing.T) {
	s1 := switchElem("amount_ok", elems(actionElem("approve")), elems(actionElem("review")))
	s1.Condition = "inputs.amount < 100"
	s2 := switchElem("notify", elems(actionElem("email")), nil)
	s2.Condition = ".notify"
	s2.Lang = schema.LangJQ

	p := mustCompile(t, s1, s2, actionElem("close"))
	eval := &mapEvaluator{answers: map[string]bool{"inputs.amount < 100": false, ".notify": true}}

	tr, err := p.Trace(context.Background(), eval, map[string]any{"amount": 250})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := render(tr.Items); got != "amount_ok review notify email close" {
		t.Errorf("unexpected trace %q", got)
	}
	taken := tr.Taken()
	if taken["amount_ok"] || !taken["notify"] {
		t.Errorf("unexpected outcomes: %v", taken)
	}
	if !tr.Visited()["review"] || tr.Visited()["approve"] {
		t.Errorf("unexpected visited set: %v", tr.Visited())
	}
	if strings.Join(eval.calls, ",") != "cel:inputs.amount < 100,jq:.notify" {
		t.Errorf("unexpected evaluation calls: %v", eval.calls)
	}

	inputs, _ := eval.seen[0]["inputs"].(map[string]any)
	if inputs["amount"] != 250 {
		t.Errorf("expected inputs to reach the evaluator, got %v", eval.seen[0])
	}
}

func TestTrace_LoopEvaluatesOnce(t *testing.T) {
	s := switchElem("again", &schema.Branch{GoTo: "work"}, nil)
	s.Condition = "retry"
	p := mustCompile(t, actionElem("work"), s, actionElem("done"))
	eval := &mapEvaluator{answers: map[string]bool{"retry": true}}

	tr, err := p.Trace(context.Background(), eval, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := render(tr.Items); got != "work again work^1 again^1 done" {
		t.Errorf("unexpected trace %q", got)
	}
	if len(eval.calls) != 1 {
		t.Errorf("expected a single evaluation, got %d", len(eval.calls))
	}
}

func TestTrace_Errors(t *testing.T) {
	p := mustCompile(t, switchElem("s", nil, nil))

	if _, err := p.Trace(context.Background(), nil, nil); err == nil {
		t.Error("expected error for nil evaluator")
	}

	_, err := p.Trace(context.Background(), &mapEvaluator{}, nil)
	if err == nil || !strings.Contains(err.Error(), "switch s") {
		t.Errorf("expected evaluation error naming the switch, got %v", err)
	}
}
