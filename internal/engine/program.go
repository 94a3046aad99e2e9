package engine

import (
	"fmt"

	"github.com/rendis/tileflow/pkg/schema"
)

// Program is the compiled, executable form of a WorkflowDefinition.
// It is immutable after Compile and safe for concurrent Generate calls.
type Program struct {
	def      *schema.WorkflowDefinition
	entry    *node
	nodes    map[string]*node
	order    []string // element ids in document order
	switches []string // switch ids in document order
	maxTurns int
}

// node is one compiled element, or a branch exit when exit is non-nil.
type node struct {
	elem  *schema.ElementDefinition
	next  *node
	yes   *node
	no    *node
	exit  *branchExit
	depth int
}

// branchExit is reached when a branch runs out of elements.
type branchExit struct {
	owner  *node
	end    bool
	target *node // loop target when the branch has a goto
	label  string
}

// Compile parses a WorkflowDefinition into an executable Program.
// It checks element ids, kinds, switch conditions and goto targets.
func Compile(def *schema.WorkflowDefinition) (*Program, error) {
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}
	if len(def.Elements) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow has no elements")
	}
	if def.MaxLoopTurns < 0 || def.MaxLoopTurns > schema.MaxLoopTurnsLimit {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"max_loop_turns must be between 0 and %d, got %d", schema.MaxLoopTurnsLimit, def.MaxLoopTurns)
	}

	p := &Program{
		def:      def,
		nodes:    make(map[string]*node),
		maxTurns: def.LoopTurns(),
	}

	// First pass: register every element, nested ones included.
	if err := p.register(def.Elements, "elements"); err != nil {
		return nil, err
	}

	// Second pass: link sequences, branches and loop targets.
	entry, err := p.link(def.Elements, nil, nil, 0)
	if err != nil {
		return nil, err
	}
	p.entry = entry
	return p, nil
}

// register records element ids in document order and rejects duplicates.
func (p *Program) register(elems []schema.ElementDefinition, path string) error {
	for i := range elems {
		elem := &elems[i]
		at := fmt.Sprintf("%s[%d]", path, i)

		if elem.ID == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "element at %s has empty ID", at)
		}
		if _, exists := p.nodes[elem.ID]; exists {
			return schema.NewErrorf(schema.ErrCodeValidation, "duplicate element ID: %s", elem.ID).WithElement(elem.ID)
		}

		kind := elem.Kind()
		if !kind.Executable() {
			return schema.NewErrorf(schema.ErrCodeValidation, "element %s has unsupported type: %s", elem.ID, kind).
				WithElement(elem.ID)
		}

		p.nodes[elem.ID] = &node{elem: elem}
		p.order = append(p.order, elem.ID)

		if kind != schema.KindSwitch {
			if elem.Yes != nil || elem.No != nil {
				return schema.NewErrorf(schema.ErrCodeValidation, "element %s of type %s cannot have branches", elem.ID, kind).
					WithElement(elem.ID)
			}
			continue
		}

		if elem.Condition == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "switch %s has no condition", elem.ID).WithElement(elem.ID)
		}
		p.switches = append(p.switches, elem.ID)

		for _, br := range []struct {
			label  string
			branch *schema.Branch
		}{{"yes", elem.Yes}, {"no", elem.No}} {
			if br.branch == nil {
				continue
			}
			if br.branch.End && br.branch.GoTo != "" {
				return schema.NewErrorf(schema.ErrCodeValidation, "switch %s %s branch has both goto and end", elem.ID, br.label).
					WithElement(elem.ID)
			}
			if err := p.register(br.branch.Elements, fmt.Sprintf("%s.%s.elements", at, br.label)); err != nil {
				return err
			}
		}
	}
	return nil
}

// link wires one sequence. after is the continuation once the sequence is
// exhausted (nil means the workflow ends). visible holds the ids a goto in
// this sequence may target.
func (p *Program) link(elems []schema.ElementDefinition, after *node, visible map[string]bool, depth int) (*node, error) {
	if len(elems) == 0 {
		return after, nil
	}

	scope := make(map[string]bool, len(visible)+len(elems))
	for id := range visible {
		scope[id] = true
	}

	for i := range elems {
		n := p.nodes[elems[i].ID]
		n.depth = depth
		scope[n.elem.ID] = true
		if i+1 < len(elems) {
			n.next = p.nodes[elems[i+1].ID]
		} else {
			n.next = after
		}

		if n.elem.Kind() != schema.KindSwitch {
			continue
		}

		var err error
		if n.yes, err = p.linkBranch(n, n.elem.Yes, "yes", scope, depth+1); err != nil {
			return nil, err
		}
		if n.no, err = p.linkBranch(n, n.elem.No, "no", scope, depth+1); err != nil {
			return nil, err
		}
	}
	return p.nodes[elems[0].ID], nil
}

// linkBranch wires a switch branch and returns its entry node.
func (p *Program) linkBranch(owner *node, br *schema.Branch, label string, visible map[string]bool, depth int) (*node, error) {
	exit := &node{exit: &branchExit{owner: owner, label: label}, depth: depth}
	if br == nil {
		return exit, nil
	}

	exit.exit.end = br.End
	if br.GoTo != "" {
		if !visible[br.GoTo] {
			if _, exists := p.nodes[br.GoTo]; !exists {
				return nil, schema.NewErrorf(schema.ErrCodeInvalidReference,
					"switch %s %s branch jumps to non-existent element %q", owner.elem.ID, label, br.GoTo).
					WithElement(owner.elem.ID)
			}
			return nil, schema.NewErrorf(schema.ErrCodeInvalidReference,
				"switch %s %s branch jumps forward to %q; goto may only target an element already passed",
				owner.elem.ID, label, br.GoTo).WithElement(owner.elem.ID)
		}
		exit.exit.target = p.nodes[br.GoTo]
	}

	return p.link(br.Elements, exit, visible, depth)
}

// Definition returns the source definition.
func (p *Program) Definition() *schema.WorkflowDefinition { return p.def }

// Switches returns the switch ids in document order.
func (p *Program) Switches() []string {
	out := make([]string, len(p.switches))
	copy(out, p.switches)
	return out
}

// Elements returns every element id in document order.
func (p *Program) Elements() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// Element returns the element definition for id.
func (p *Program) Element(id string) (*schema.ElementDefinition, bool) {
	n, ok := p.nodes[id]
	if !ok {
		return nil, false
	}
	return n.elem, true
}

// Depth returns the branch nesting depth of an element (0 for top level).
func (p *Program) Depth(id string) int {
	if n, ok := p.nodes[id]; ok {
		return n.depth
	}
	return -1
}

// Reachable returns the ids of the elements some run can visit.
func (p *Program) Reachable() map[string]bool {
	seen := make(map[string]bool, len(p.nodes))
	left := make(map[*branchExit]bool)

	stack := []*node{p.entry}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil {
			continue
		}
		if n.exit != nil {
			if n.exit.end || left[n.exit] {
				continue
			}
			left[n.exit] = true
			stack = append(stack, n.exit.target, n.exit.owner.next)
			continue
		}
		if seen[n.elem.ID] {
			continue
		}
		seen[n.elem.ID] = true
		if n.elem.Kind() == schema.KindSwitch {
			// Both branches link to an exit node, which continues at next.
			stack = append(stack, n.yes, n.no)
			continue
		}
		stack = append(stack, n.next)
	}
	return seen
}

// MaxLoopTurns returns the effective bound on loop back edges per run.
func (p *Program) MaxLoopTurns() int { return p.maxTurns }

// SwitchFactories returns a factory per switch id that instantiates the
// canonical Switch item from the stored element attributes.
func (p *Program) SwitchFactories() map[string]schema.SwitchFactory {
	factories := make(map[string]schema.SwitchFactory, len(p.switches))
	for _, id := range p.switches {
		elem := p.nodes[id].elem
		factories[id] = func() schema.WorkflowItem {
			return itemFor(elem, 0)
		}
	}
	return factories
}

// itemFor builds the WorkflowItem for an element visited for the turn-th time.
func itemFor(elem *schema.ElementDefinition, turn int) schema.WorkflowItem {
	item := schema.WorkflowItem{
		ID:    elem.ID,
		Title: elem.Label(),
		Kind:  elem.Kind(),
	}
	if turn > 0 {
		t := turn
		item.CurrentLoopTurn = &t
	}
	return item
}
