package engine

import (
	"strings"
	"testing"

	"github.com/rendis/tileflow/pkg/schema"
)

// render joins item ids, marking loop turns as id^turn.
func render(items []schema.WorkflowItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.ID
		if it.CurrentLoopTurn != nil {
			parts[i] += "^" + string(rune('0'+*it.CurrentLoopTurn))
		}
	}
	return strings.Join(parts, " ")
}

func run(t *testing.T, p *Program, outcomes map[string]bool) (string, *schema.SwitchDecisionSequence) {
	t.Helper()
	seq := schema.NewDecisionSequence(p.Switches(), outcomes)
	items, err := p.Items(seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return render(items), seq
}

func TestGenerate_Branches(t *testing.T) {
	p := mustCompile(t,
		actionElem("start"),
		switchElem("s", elems(actionElem("y1"), actionElem("y2")), elems(actionElem("n1"))),
		actionElem("end"),
	)

	tests := []struct {
		outcome bool
		want    string
	}{
		{true, "start s y1 y2 end"},
		{false, "start s n1 end"},
	}
	for _, tt := range tests {
		got, seq := run(t, p, map[string]bool{"s": tt.outcome})
		if got != tt.want {
			t.Errorf("outcome %v: expected %q, got %q", tt.outcome, tt.want, got)
		}
		if _, used := seq.Outcome("s"); !used {
			t.Error("expected switch s to be marked used")
		}
	}
}

func TestGenerate_UnreachedSwitchStaysUnused(t *testing.T) {
	p := mustCompile(t,
		switchElem("outer", elems(switchElem("inner", elems(actionElem("a")), nil)), elems(actionElem("b"))),
	)

	got, seq := run(t, p, map[string]bool{"outer": false})
	if got != "outer b" {
		t.Errorf("expected %q, got %q", "outer b", got)
	}
	if _, used := seq.Outcome("inner"); used {
		t.Error("inner switch must not be used when outer takes no")
	}
	if order := seq.UsedOrder(); len(order) != 1 || order[0] != "outer" {
		t.Errorf("unexpected used order: %v", order)
	}
}

func TestGenerate_DefaultsToYes(t *testing.T) {
	p := mustCompile(t, switchElem("s", elems(actionElem("y")), elems(actionElem("n"))))

	got, seq := run(t, p, nil)
	if got != "s y" {
		t.Errorf("expected yes branch, got %q", got)
	}
	if seq.Fixed("s") {
		t.Error("defaulted switch must not be reported as fixed")
	}
}

func TestGenerate_EndBranch(t *testing.T) {
	p := mustCompile(t,
		switchElem("s", &schema.Branch{Elements: []schema.ElementDefinition{actionElem("abort")}, End: true}, nil),
		actionElem("after"),
	)

	if got, _ := run(t, p, map[string]bool{"s": true}); got != "s abort" {
		t.Errorf("expected run to stop after abort, got %q", got)
	}
	if got, _ := run(t, p, map[string]bool{"s": false}); got != "s after" {
		t.Errorf("expected fall through, got %q", got)
	}
}

func TestGenerate_LoopTurns(t *testing.T) {
	loopBody := &schema.Branch{Elements: []schema.ElementDefinition{actionElem("retry")}, GoTo: "call"}

	tests := []struct {
		name  string
		turns int
		want  string
	}{
		{"default", 0, "call check retry call^1 check^1 retry^1 done"},
		{"two turns", 2, "call check retry call^1 check^1 retry^1 call^2 check^2 retry^2 done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(&schema.WorkflowDefinition{
				MaxLoopTurns: tt.turns,
				Elements: []schema.ElementDefinition{
					actionElem("call"),
					switchElem("check", loopBody, nil),
					actionElem("done"),
				},
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, _ := run(t, p, map[string]bool{"check": true})
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGenerate_StopsWhenConsumerStops(t *testing.T) {
	p := mustCompile(t, actionElem("a"), actionElem("b"), actionElem("c"))
	seq := schema.NewDecisionSequence(p.Switches(), nil)

	var seen []string
	for item, err := range p.Generate(seq) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen = append(seen, item.ID)
		if item.ID == "b" {
			break
		}
	}
	if strings.Join(seen, ",") != "a,b" {
		t.Errorf("expected a,b got %v", seen)
	}
}

func TestGenerate_UnknownSwitch(t *testing.T) {
	p := mustCompile(t, switchElem("s", nil, nil))
	seq := schema.NewDecisionSequence(nil, nil)

	_, err := p.Items(seq)
	assertError(t, err, schema.ErrCodeUnknownElement)
}

func TestGenerate_Restartable(t *testing.T) {
	p := mustCompile(t,
		actionElem("a"),
		switchElem("s", &schema.Branch{GoTo: "a"}, nil),
	)
	first, _ := run(t, p, map[string]bool{"s": true})
	second, _ := run(t, p, map[string]bool{"s": true})
	if first != second {
		t.Errorf("runs differ: %q vs %q", first, second)
	}
	if first != "a s a^1 s^1" {
		t.Errorf("unexpected loop run %q", first)
	}
}
