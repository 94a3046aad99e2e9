package layout

import (
	"fmt"

	"github.com/rendis/tileflow/pkg/schema"
)

// maxSwitchBits bounds the known switch count so combination weights fit in uint64.
const maxSwitchBits = 62

// Path is one execution path together with the decisions that produced it.
type Path struct {
	Items     []schema.WorkflowItem
	Decisions []schema.SwitchDecision
	// Weight is the number of full decision combinations over all known
	// switches that collapse onto this path: 2^(known - used).
	Weight uint64

	used map[string]bool
	// first maps an id to the index of its first (non loop turn) entry.
	first map[string]int
}

// Decision returns the outcome of switchID on this path and whether it was used.
func (p *Path) Decision(switchID string) (outcome, used bool) {
	outcome, used = p.used[switchID]
	return outcome, used
}

// Index returns the position of the first entry for id, or -1.
func (p *Path) Index(id string) int {
	if i, ok := p.first[id]; ok {
		return i
	}
	return -1
}

// PathSet is the output of the path enumerator.
type PathSet struct {
	Paths    []Path
	Flat     []schema.WorkflowItem // every path concatenated in enumeration order
	Switches []string
	Total    uint64 // 2^len(Switches)

	offsets []int // start of each path inside Flat
}

// flatIndex returns the position inside Flat of item k of path pi.
func (ps *PathSet) flatIndex(pi, k int) int { return ps.offsets[pi] + k }

// enumerator produces one path per leaf of the reachable decision tree.
type enumerator struct {
	def       Definition
	switches  []string
	factories map[string]schema.SwitchFactory
	maxPaths  int
	maxSteps  int
}

func newEnumerator(def Definition, maxPaths, maxSteps int) (*enumerator, error) {
	switches := def.Switches()
	if len(switches) > maxSwitchBits {
		return nil, &CombinatorialLimitError{
			Switches: len(switches),
			Limit:    maxPaths,
			Reason:   fmt.Sprintf("%d switches exceed the supported maximum of %d", len(switches), maxSwitchBits),
		}
	}

	seen := make(map[string]bool, len(switches))
	for _, id := range switches {
		if id == "" {
			return nil, &DefinitionError{Reason: "switch list contains an empty id"}
		}
		if seen[id] {
			return nil, &DefinitionError{Reason: fmt.Sprintf("switch %s listed twice", id)}
		}
		seen[id] = true
	}

	factories := def.SwitchFactories()
	for _, id := range switches {
		if factories[id] == nil {
			return nil, &DefinitionError{Reason: fmt.Sprintf("switch %s has no factory", id)}
		}
	}

	return &enumerator{
		def:       def,
		switches:  switches,
		factories: factories,
		maxPaths:  maxPaths,
		maxSteps:  maxSteps,
	}, nil
}

// enumerate discovers every decision sequence, checks the ceiling, and only
// then materializes the paths.
func (e *enumerator) enumerate() (*PathSet, error) {
	leaves, err := e.discover()
	if err != nil {
		return nil, err
	}

	ps := &PathSet{
		Paths:    make([]Path, 0, len(leaves)),
		Switches: e.switches,
		Total:    uint64(1) << uint(len(e.switches)),
	}
	for _, leaf := range leaves {
		seq := schema.NewDecisionSequence(e.switches, leaf)
		items, err := e.run(seq, true)
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, &DefinitionError{Reason: "generator produced an empty path", Decisions: seq.String()}
		}

		path := Path{
			Items:     items,
			Decisions: seq.Decisions(),
			used:      make(map[string]bool, len(leaf)),
			first:     make(map[string]int, len(items)),
		}
		for _, id := range seq.UsedOrder() {
			outcome, _ := seq.Outcome(id)
			path.used[id] = outcome
		}
		for k, item := range items {
			if item.IsLoopTurn() {
				continue
			}
			if _, ok := path.first[item.ID]; !ok {
				path.first[item.ID] = k
			}
		}
		path.Weight = uint64(1) << uint(len(e.switches)-len(path.used))

		ps.offsets = append(ps.offsets, len(ps.Flat))
		ps.Flat = append(ps.Flat, items...)
		ps.Paths = append(ps.Paths, path)
	}
	return ps, nil
}

// discover walks the decision tree depth first, "yes" before "no". Each run
// fixes the decisions it inherited; every free decision it used spawns one
// sibling run with that decision flipped to "no". Switches a run never
// reaches are never branched on.
func (e *enumerator) discover() ([]map[string]bool, error) {
	var leaves []map[string]bool

	var walk func(fixed map[string]bool) error
	walk = func(fixed map[string]bool) error {
		seq := schema.NewDecisionSequence(e.switches, fixed)
		if _, err := e.run(seq, false); err != nil {
			return err
		}

		used := seq.UsedOrder()
		leaf := make(map[string]bool, len(used))
		for _, id := range used {
			leaf[id], _ = seq.Outcome(id)
		}
		leaves = append(leaves, leaf)
		if len(leaves) > e.maxPaths {
			return &CombinatorialLimitError{Sequences: len(leaves), Switches: len(e.switches), Limit: e.maxPaths}
		}

		for i, id := range used {
			if seq.Fixed(id) {
				continue
			}
			child := make(map[string]bool, i+1)
			for _, prev := range used[:i] {
				child[prev] = leaf[prev]
			}
			child[id] = false
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(map[string]bool{}); err != nil {
		return nil, err
	}
	return leaves, nil
}

// run drives the generator once. Items are kept only when keep is set.
func (e *enumerator) run(seq *schema.SwitchDecisionSequence, keep bool) ([]schema.WorkflowItem, error) {
	var items []schema.WorkflowItem
	steps := 0
	for item, err := range e.def.Generate(seq) {
		if err != nil {
			return nil, &DefinitionError{Reason: "generator failed", Decisions: seq.String(), Cause: err}
		}
		steps++
		if steps > e.maxSteps {
			return nil, &DefinitionError{
				Reason:    fmt.Sprintf("generator did not terminate within %d items", e.maxSteps),
				Decisions: seq.String(),
			}
		}
		if err := e.check(item); err != nil {
			return nil, err
		}
		if keep {
			items = append(items, item)
		}
	}
	return items, nil
}

// check rejects items the layout cannot place.
func (e *enumerator) check(item schema.WorkflowItem) error {
	switch {
	case item.ID == "":
		return &DefinitionError{Reason: "generator yielded an item without id"}
	case !item.Kind.Executable():
		return &DefinitionError{Reason: fmt.Sprintf("item %s has non-executable kind %q", item.ID, item.Kind)}
	case item.Kind == schema.KindSwitch && e.factories[item.ID] == nil:
		return &DefinitionError{Reason: fmt.Sprintf("switch %s is not declared", item.ID)}
	}
	return nil
}
