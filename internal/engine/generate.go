package engine

import (
	"iter"

	"github.com/rendis/tileflow/pkg/schema"
)

// Generate walks the program once under the given decisions and yields the
// visited items in causal order. Switch outcomes are read through
// decisions.Resolve, which marks them as used. A loop back edge is followed at
// most MaxLoopTurns times per run; after that the branch falls through to the
// element following its switch, so every run terminates.
func (p *Program) Generate(decisions *schema.SwitchDecisionSequence) iter.Seq2[schema.WorkflowItem, error] {
	return func(yield func(schema.WorkflowItem, error) bool) {
		visits := make(map[string]int, len(p.nodes))
		jumps := make(map[*branchExit]int)

		for n := p.entry; n != nil; {
			if n.exit != nil {
				n = p.leave(n.exit, jumps)
				continue
			}

			turn := visits[n.elem.ID]
			visits[n.elem.ID] = turn + 1
			if !yield(itemFor(n.elem, turn), nil) {
				return
			}

			if n.elem.Kind() != schema.KindSwitch {
				n = n.next
				continue
			}

			outcome, err := decisions.Resolve(n.elem.ID)
			if err != nil {
				yield(schema.WorkflowItem{}, err)
				return
			}
			if outcome {
				n = n.yes
			} else {
				n = n.no
			}
		}
	}
}

// leave resolves where the walk continues once a branch is exhausted.
func (p *Program) leave(exit *branchExit, jumps map[*branchExit]int) *node {
	if exit.end {
		return nil
	}
	if exit.target != nil && jumps[exit] < p.maxTurns {
		jumps[exit]++
		return exit.target
	}
	return exit.owner.next
}

// Items collects one full run into a slice.
func (p *Program) Items(decisions *schema.SwitchDecisionSequence) ([]schema.WorkflowItem, error) {
	var items []schema.WorkflowItem
	for item, err := range p.Generate(decisions) {
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
