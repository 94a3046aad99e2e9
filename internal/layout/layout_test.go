package layout

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/tileflow/internal/engine"
	"github.com/rendis/tileflow/pkg/schema"
)

// --- helpers ---

func act(id string) schema.ElementDefinition {
	return schema.ElementDefinition{ID: id, Type: schema.KindAction}
}

func branch(elems ...schema.ElementDefinition) *schema.Branch {
	return &schema.Branch{Elements: elems}
}

func sw(id string, yes, no *schema.Branch) schema.ElementDefinition {
	return schema.ElementDefinition{ID: id, Type: schema.KindSwitch, Condition: "true", Yes: yes, No: no}
}

func compile(t *testing.T, elems ...schema.ElementDefinition) *engine.Program {
	t.Helper()
	p, err := engine.Compile(&schema.WorkflowDefinition{ID: "test", Elements: elems})
	require.NoError(t, err)
	return p
}

func compute(t *testing.T, def Definition, opts ...Option) *Result {
	t.Helper()
	res, err := NewEngine(opts...).Compute(context.Background(), def)
	require.NoError(t, err)
	return res
}

type xy struct{ X, Y int }

func coords(res *Result) map[string]xy {
	out := make(map[string]xy, len(res.Points))
	for _, p := range res.Points {
		out[p.Item.ID] = xy{p.X, p.Y}
	}
	return out
}

func assertNoOverlap(t *testing.T, points []schema.MapPoint) {
	t.Helper()
	seen := make(map[xy]string)
	for _, p := range points {
		c := xy{p.X, p.Y}
		if other, ok := seen[c]; ok {
			t.Errorf("tiles %s and %s share cell (%d,%d)", other, p.Item.ID, p.X, p.Y)
		}
		seen[c] = p.Item.ID
	}
}

// --- grids ---

func TestComputeLayout_NoSwitches(t *testing.T) {
	p := compile(t, act("a"), act("b"), act("c"))

	points, err := ComputeLayout(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, points, 3)

	for i, pt := range points {
		assert.Equal(t, 0, pt.X, pt.Item.ID)
		assert.Equal(t, i, pt.Y, pt.Item.ID)
		assert.Equal(t, uint64(1), pt.Occurrences)
	}
	assert.Equal(t, "b", points[0].NextItemID)
	assert.Equal(t, "c", points[1].NextItemID)
	assert.Equal(t, "", points[2].NextItemID)
	assert.True(t, points[1].IsPointedAtTop)
}

func TestCompute_Grids(t *testing.T) {
	tests := []struct {
		name  string
		elems []schema.ElementDefinition
		want  map[string]xy
		paths int
	}{
		{
			name:  "if else",
			elems: []schema.ElementDefinition{sw("S", branch(act("a")), branch(act("b"))), act("d")},
			want:  map[string]xy{"S": {0, 0}, "a": {1, 1}, "b": {1, 2}, "d": {0, 3}},
			paths: 2,
		},
		{
			name:  "longer yes branch",
			elems: []schema.ElementDefinition{sw("S", branch(act("a1"), act("a2")), branch(act("b"))), act("d")},
			want:  map[string]xy{"S": {0, 0}, "a1": {1, 1}, "a2": {1, 2}, "b": {1, 3}, "d": {0, 4}},
			paths: 2,
		},
		{
			name: "nested in yes",
			elems: []schema.ElementDefinition{
				sw("S1", branch(sw("S2", branch(act("a")), branch(act("b")))), branch(act("c"))),
				act("d"),
			},
			want:  map[string]xy{"S1": {0, 0}, "S2": {1, 1}, "a": {2, 2}, "b": {2, 3}, "c": {1, 4}, "d": {0, 5}},
			paths: 3,
		},
		{
			name: "nested in no",
			elems: []schema.ElementDefinition{
				sw("S1", branch(act("a")), branch(sw("S2", branch(act("b")), branch(act("c"))))),
				act("d"),
			},
			want:  map[string]xy{"S1": {0, 0}, "S2": {1, 1}, "b": {2, 2}, "c": {2, 3}, "a": {1, 4}, "d": {0, 5}},
			paths: 3,
		},
		{
			name: "sequential",
			elems: []schema.ElementDefinition{
				sw("S1", branch(act("a")), branch(act("b"))),
				sw("S2", branch(act("c")), branch(act("e"))),
				act("f"),
			},
			want: map[string]xy{
				"S1": {0, 0}, "a": {1, 1}, "b": {1, 2},
				"S2": {0, 3}, "c": {1, 4}, "e": {1, 5}, "f": {0, 6},
			},
			paths: 4,
		},
		{
			name:  "empty yes branch",
			elems: []schema.ElementDefinition{sw("S", branch(), branch(act("b"))), act("d")},
			want:  map[string]xy{"S": {0, 0}, "b": {1, 2}, "d": {0, 3}},
			paths: 2,
		},
		{
			name: "if without else nested",
			elems: []schema.ElementDefinition{
				sw("S1", branch(sw("S2", branch(act("a")), nil)), branch(act("c"))),
				act("d"),
			},
			want:  map[string]xy{"S1": {0, 0}, "S2": {1, 1}, "a": {2, 3}, "c": {1, 4}, "d": {0, 5}},
			paths: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compute(t, compile(t, tt.elems...))
			assert.Equal(t, tt.want, coords(res))
			assert.Equal(t, tt.paths, res.Paths)
			assertNoOverlap(t, res.Points)
		})
	}
}

func TestCompute_IfElsePointers(t *testing.T) {
	res := compute(t, compile(t, sw("S", branch(act("a")), branch(act("b"))), act("d")))

	s, ok := res.Point("S")
	require.True(t, ok)
	assert.Equal(t, schema.SwitchTypeBothNext, s.WorkflowSwitchTypeID)
	assert.Equal(t, "a", s.NextYesItemID)
	assert.Equal(t, "b", s.NextNoItemID)
	assert.Empty(t, s.NextItemID)
	assert.Equal(t, uint64(2), s.Occurrences)

	a, _ := res.Point("a")
	assert.Equal(t, "d", a.NextItemID)
	assert.True(t, a.IsPointedAtLeft)
	assert.Equal(t, uint64(1), a.Occurrences)

	d, _ := res.Point("d")
	assert.True(t, d.IsPointedAtRight)
	assert.Empty(t, d.NextItemID)

	ids := make([]string, len(res.Points))
	for i, p := range res.Points {
		ids[i] = p.Item.ID
	}
	assert.Equal(t, []string{"S", "a", "b", "d"}, ids)

	require.Len(t, res.Corrections, 2)
	assert.Equal(t, "both-next/stack-runs", res.Corrections[0].Name)
	assert.Equal(t, 1, res.Corrections[0].Offset)
	assert.Equal(t, "both-next/shift-downstream", res.Corrections[1].Name)
	assert.Equal(t, SweepStructural, res.Corrections[1].Sweep)
}

func TestCompute_SwitchTypes(t *testing.T) {
	tests := []struct {
		name   string
		elems  []schema.ElementDefinition
		target string
		want   schema.SwitchType
	}{
		{
			name:   "both next",
			elems:  []schema.ElementDefinition{sw("S", branch(act("a")), branch(act("b"))), act("d")},
			target: "S",
			want:   schema.SwitchTypeBothNext,
		},
		{
			name:   "same next",
			elems:  []schema.ElementDefinition{sw("S", nil, branch(act("b"))), act("d")},
			target: "S",
			want:   schema.SwitchTypeSameNext,
		},
		{
			name: "next prior",
			elems: []schema.ElementDefinition{
				sw("S1", branch(sw("S2", branch(act("a")), nil)), branch(act("c"))),
				act("d"),
			},
			target: "S2",
			want:   schema.SwitchTypeNextPrior,
		},
		{
			name: "same below above",
			elems: []schema.ElementDefinition{
				act("a"),
				sw("L", &schema.Branch{GoTo: "a"}, nil),
				act("c"),
			},
			target: "L",
			want:   schema.SwitchTypeSameBelowAbove,
		},
		{
			name: "prior above",
			elems: []schema.ElementDefinition{
				sw("S1", branch(act("x"), sw("L", &schema.Branch{GoTo: "x"}, nil)), nil),
				act("d"),
			},
			target: "L",
			want:   schema.SwitchTypePriorAbove,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compute(t, compile(t, tt.elems...))
			p, ok := res.Point(tt.target)
			require.True(t, ok)
			assert.Equal(t, tt.want, p.WorkflowSwitchTypeID)
			assertNoOverlap(t, res.Points)
		})
	}
}

func TestCompute_LoopSameBelowAbove(t *testing.T) {
	res := compute(t, compile(t,
		act("a"),
		sw("L", &schema.Branch{GoTo: "a"}, nil),
		act("c"),
	))

	assert.Equal(t, map[string]xy{"a": {0, 0}, "L": {0, 1}, "c": {0, 4}}, coords(res))

	l, _ := res.Point("L")
	assert.Equal(t, "a", l.NextYesItemID)
	assert.Equal(t, "c", l.NextNoItemID)

	c, _ := res.Point("c")
	assert.True(t, c.IsPointedAtTop)

	last := res.Corrections[len(res.Corrections)-1]
	assert.Equal(t, SweepShift, last.Sweep)
	assert.Equal(t, "same-below-above/corner", last.Name)
	assert.Equal(t, 2, last.Offset)
}

func TestCompute_LoopBodySameNext(t *testing.T) {
	res := compute(t, compile(t,
		act("a"),
		sw("L", &schema.Branch{Elements: []schema.ElementDefinition{act("b")}, GoTo: "a"}, nil),
		act("c"),
	))

	assert.Equal(t, map[string]xy{"a": {0, 0}, "L": {0, 1}, "b": {1, 3}, "c": {0, 4}}, coords(res))

	l, _ := res.Point("L")
	assert.Equal(t, schema.SwitchTypeSameNext, l.WorkflowSwitchTypeID)

	b, _ := res.Point("b")
	assert.Empty(t, b.NextItemID, "loop back to the first tile ends the chain")
}

func TestCompute_PriorAboveGrid(t *testing.T) {
	res := compute(t, compile(t,
		sw("S1", branch(act("x"), sw("L", &schema.Branch{GoTo: "x"}, nil)), nil),
		act("d"),
	))

	assert.Equal(t, map[string]xy{"S1": {0, 0}, "x": {1, 1}, "L": {1, 2}, "d": {0, 3}}, coords(res))

	s1, _ := res.Point("S1")
	assert.Equal(t, schema.SwitchTypeSameNext, s1.WorkflowSwitchTypeID)

	var names []string
	for _, c := range res.Corrections {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "prior-above/none")
}

func TestCompute_UnclassifiableSwitch(t *testing.T) {
	p := compile(t,
		sw("S1", branch(sw("S2", branch(), branch())), nil),
		act("d"),
	)

	_, err := NewEngine().Compute(context.Background(), p)
	require.Error(t, err)

	var clsErr *ClassificationError
	require.True(t, errors.As(err, &clsErr))
	assert.Equal(t, "S2", clsErr.SwitchID)
	assert.Equal(t, uint64(2), clsErr.Occurrences)
	assert.Equal(t, "d", clsErr.Yes.ID)
	assert.Equal(t, uint64(4), clsErr.Yes.Occurrences)
	assert.Equal(t, uint64(4), clsErr.No.Occurrences)
	assert.Empty(t, clsErr.Matched)

	structured := Structured(err)
	assert.Equal(t, schema.ErrCodeClassification, structured.Code)
	assert.Equal(t, "S2", structured.ElementID)
}

// --- properties ---

func TestCompute_PathCountSequential(t *testing.T) {
	for k := 1; k <= 5; k++ {
		t.Run(fmt.Sprintf("%d switches", k), func(t *testing.T) {
			var elems []schema.ElementDefinition
			for i := 0; i < k; i++ {
				elems = append(elems, sw(fmt.Sprintf("S%d", i),
					branch(act(fmt.Sprintf("y%d", i))),
					branch(act(fmt.Sprintf("n%d", i)))))
			}
			elems = append(elems, act("end"))

			res := compute(t, compile(t, elems...))
			assert.Equal(t, 1<<k, res.Paths)
			assertNoOverlap(t, res.Points)
		})
	}
}

func TestCompute_Idempotent(t *testing.T) {
	p := compile(t,
		sw("S1", branch(sw("S2", branch(act("a")), branch(act("b")))), branch(act("c"))),
		act("d"),
		sw("S3", nil, branch(act("e"))),
		act("f"),
	)

	first := compute(t, p)
	second := compute(t, p)
	assert.Equal(t, first, second)
}

func TestCompute_RowsNeverDecreaseColumnsStable(t *testing.T) {
	defs := [][]schema.ElementDefinition{
		{sw("S", branch(act("a")), branch(act("b"))), act("d")},
		{sw("S1", branch(sw("S2", branch(act("a")), branch(act("b")))), branch(act("c"))), act("d")},
		{act("a"), sw("L", &schema.Branch{Elements: []schema.ElementDefinition{act("b")}, GoTo: "a"}, nil), act("c")},
		{sw("S", nil, branch(act("b1"), act("b2"), act("b3"), act("b4"))), act("d")},
	}

	for i, elems := range defs {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			p := compile(t, elems...)
			assertCorrectionInvariants(t, p, compute(t, p))
		})
	}
}

func TestCompute_SameNextDistantCommonTile(t *testing.T) {
	p := compile(t,
		sw("S", nil, branch(act("b1"), act("b2"), act("b3"), act("b4"))),
		act("d"),
	)

	res := compute(t, p)
	assert.Equal(t, map[string]xy{
		"S": {0, 0}, "b1": {1, 1}, "b2": {1, 2}, "b3": {1, 3}, "b4": {1, 4}, "d": {0, 5},
	}, coords(res))
	assertNoOverlap(t, res.Points)

	for _, c := range res.Corrections {
		assert.Equal(t, 0, c.Offset, c.Name)
		assert.Equal(t, 0, c.Moved, c.Name)
	}
	assert.Equal(t, res, compute(t, p))
}

func TestCompute_SameNextThreshold(t *testing.T) {
	near := compute(t, compile(t, sw("S", nil, branch(act("b1"))), act("d")))
	assert.Equal(t, map[string]xy{"S": {0, 0}, "b1": {1, 2}, "d": {0, 3}}, coords(near))

	atThreshold := compute(t, compile(t, sw("S", nil, branch(act("b1"), act("b2"))), act("d")))
	assert.Equal(t, map[string]xy{"S": {0, 0}, "b1": {1, 1}, "b2": {1, 2}, "d": {0, 3}}, coords(atThreshold))
}

// --- failure modes ---

func TestCompute_CombinatorialLimitBeforeMaterializing(t *testing.T) {
	var elems []schema.ElementDefinition
	for i := 0; i < 4; i++ {
		elems = append(elems, sw(fmt.Sprintf("S%d", i), branch(act(fmt.Sprintf("a%d", i))), nil))
	}
	p := compile(t, elems...)

	runs := 0
	counting := Funcs{
		GenerateFunc: func(d *schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error] {
			runs++
			return p.Generate(d)
		},
		SwitchIDs: p.Switches(),
		Factories: p.SwitchFactories(),
	}

	_, err := NewEngine(WithMaxPaths(8)).Compute(context.Background(), counting)
	require.Error(t, err)

	var limErr *CombinatorialLimitError
	require.True(t, errors.As(err, &limErr))
	assert.Equal(t, 8, limErr.Limit)
	assert.Equal(t, 4, limErr.Switches)
	assert.Equal(t, 9, runs, "only discovery runs happen before the limit trips")
	assert.Equal(t, schema.ErrCodeCombinatorial, Structured(err).Code)
}

func TestCompute_TooManySwitches(t *testing.T) {
	ids := make([]string, maxSwitchBits+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("s%d", i)
	}
	def := Funcs{
		GenerateFunc: func(*schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error] {
			return func(func(schema.WorkflowItem, error) bool) {}
		},
		SwitchIDs: ids,
	}

	_, err := NewEngine().Compute(context.Background(), def)
	var limErr *CombinatorialLimitError
	assert.True(t, errors.As(err, &limErr))
}

func items(ids ...string) iter.Seq2[schema.WorkflowItem, error] {
	return func(yield func(schema.WorkflowItem, error) bool) {
		for _, id := range ids {
			if !yield(schema.WorkflowItem{ID: id, Kind: schema.KindAction}, nil) {
				return
			}
		}
	}
}

func TestCompute_DefinitionErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		def  Funcs
	}{
		{
			name: "generator error",
			def: Funcs{GenerateFunc: func(*schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error] {
				return func(yield func(schema.WorkflowItem, error) bool) {
					if yield(schema.WorkflowItem{ID: "a", Kind: schema.KindAction}, nil) {
						yield(schema.WorkflowItem{}, boom)
					}
				}
			}},
		},
		{
			name: "never terminates",
			def: Funcs{GenerateFunc: func(*schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error] {
				return func(yield func(schema.WorkflowItem, error) bool) {
					for yield(schema.WorkflowItem{ID: "spin", Kind: schema.KindAction}, nil) {
					}
				}
			}},
		},
		{
			name: "empty path",
			def:  Funcs{GenerateFunc: func(*schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error] { return items() }},
		},
		{
			name: "item without id",
			def:  Funcs{GenerateFunc: func(*schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error] { return items("a", "") }},
		},
		{
			name: "undeclared switch",
			def: Funcs{GenerateFunc: func(*schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error] {
				return func(yield func(schema.WorkflowItem, error) bool) {
					yield(schema.WorkflowItem{ID: "ghost", Kind: schema.KindSwitch}, nil)
				}
			}},
		},
		{
			name: "unknown switch consulted",
			def: Funcs{GenerateFunc: func(d *schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error] {
				return func(yield func(schema.WorkflowItem, error) bool) {
					if _, err := d.Resolve("ghost"); err != nil {
						yield(schema.WorkflowItem{}, err)
					}
				}
			}},
		},
		{
			name: "switch without factory",
			def: Funcs{
				GenerateFunc: func(*schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error] { return items("a") },
				SwitchIDs:    []string{"s"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(WithMaxSteps(50)).Compute(context.Background(), tt.def)
			require.Error(t, err)

			var defErr *DefinitionError
			assert.True(t, errors.As(err, &defErr), "got %T: %v", err, err)
			assert.Equal(t, schema.ErrCodeDefinition, Structured(err).Code)
		})
	}
}

func TestCompute_GeneratorErrorIsWrapped(t *testing.T) {
	def := Funcs{GenerateFunc: func(d *schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error] {
		return func(yield func(schema.WorkflowItem, error) bool) {
			_, err := d.Resolve("ghost")
			yield(schema.WorkflowItem{}, err)
		}
	}}

	_, err := NewEngine().Compute(context.Background(), def)
	var tfErr *schema.TileflowError
	require.True(t, errors.As(err, &tfErr))
	assert.Equal(t, schema.ErrCodeUnknownElement, tfErr.Code)
}

func TestCompute_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine().Compute(ctx, compile(t, act("a")))
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingObserver struct {
	results []*Result
	errs    []error
}

func (o *recordingObserver) ObserveLayout(res *Result, _ time.Duration, err error) {
	o.results = append(o.results, res)
	o.errs = append(o.errs, err)
}

func TestCompute_Observer(t *testing.T) {
	obs := &recordingObserver{}
	e := NewEngine(WithObserver(obs))

	_, err := e.Compute(context.Background(), compile(t, act("a")))
	require.NoError(t, err)
	_, err = e.Compute(context.Background(), compile(t, sw("S1", branch(sw("S2", branch(), branch())), nil), act("d")))
	require.Error(t, err)

	require.Len(t, obs.errs, 2)
	assert.NoError(t, obs.errs[0])
	assert.NotNil(t, obs.results[0])
	assert.Error(t, obs.errs[1])
	assert.Nil(t, obs.results[1])
}
