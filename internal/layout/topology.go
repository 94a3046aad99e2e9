package layout

import (
	"fmt"

	"github.com/rendis/tileflow/pkg/schema"
)

// Topology is the classification of one switch.
type Topology struct {
	SwitchID string            `json:"switch_id"`
	Switch   Candidate         `json:"switch"`
	Type     schema.SwitchType `json:"type"`
	Yes      Candidate         `json:"yes"`
	No       Candidate         `json:"no"`
	// Common is the first tile both branches reach, or the exit.
	Common Candidate `json:"common"`
	// YesRun and NoRun are the branch tiles between the switch and Common.
	// Only filled for BothNext switches.
	YesRun []string `json:"yes_run,omitempty"`
	NoRun  []string `json:"no_run,omitempty"`
}

// classifier reads the base grid; it never mutates it.
type classifier struct {
	ps   *PathSet
	g    *grid
	exit Candidate
}

func newClassifier(ps *PathSet, g *grid) *classifier {
	return &classifier{
		ps:   ps,
		g:    g,
		exit: Candidate{Occurrences: ps.Total, Row: g.maxRow() + 1},
	}
}

// classify matches the switch against the five branch patterns. Exactly one
// must match.
func (c *classifier) classify(p BaseMapPoint) (*Topology, error) {
	id := p.Item.ID
	sw := Candidate{ID: id, Occurrences: p.Occurrences, Row: p.Y}

	yes, yesOK := c.successor(id, true)
	no, noOK := c.successor(id, false)
	if !yesOK || !noOK {
		missing := schema.OutcomeLabel(!yesOK)
		return nil, &ClassificationError{
			SwitchID:    id,
			Occurrences: sw.Occurrences,
			Row:         sw.Row,
			Yes:         yes,
			No:          no,
			Reason:      fmt.Sprintf("no enumerated path takes the %s branch", missing),
		}
	}

	matched := matchPatterns(sw, yes, no)
	if len(matched) != 1 {
		return nil, &ClassificationError{
			SwitchID:    id,
			Occurrences: sw.Occurrences,
			Row:         sw.Row,
			Yes:         yes,
			No:          no,
			Matched:     matched,
		}
	}

	t := &Topology{
		SwitchID: id,
		Switch:   sw,
		Type:     matched[0],
		Yes:      yes,
		No:       no,
		Common:   c.common(sw),
	}
	if t.Type == schema.SwitchTypeBothNext {
		t.YesRun = c.run(sw, true, t.Common, nil)
		t.NoRun = c.run(sw, false, t.Common, t.YesRun)
	}
	return t, nil
}

// matchPatterns returns every pattern the branch targets satisfy.
func matchPatterns(sw, a, b Candidate) []schema.SwitchType {
	cs, ca, cb := sw.Occurrences, a.Occurrences, b.Occurrences
	var m []schema.SwitchType

	if 2*ca == cs && 2*cb == cs {
		m = append(m, schema.SwitchTypeBothNext)
	}
	if (ca == cs && cb < cs) || (cb == cs && ca < cs) {
		m = append(m, schema.SwitchTypeSameNext)
	}
	if (ca > cs && cb < cs) || (cb > cs && ca < cs) {
		m = append(m, schema.SwitchTypeNextPrior)
	}
	if ca == cs && cb == cs {
		m = append(m, schema.SwitchTypeSameBelowAbove)
	}
	if (ca == cs && a.Row < sw.Row && cb > cs) || (cb == cs && b.Row < sw.Row && ca > cs) {
		m = append(m, schema.SwitchTypePriorAbove)
	}
	return m
}

// tails returns, for every path taking outcome at the switch, the items
// following the switch's first entry.
func (c *classifier) tails(switchID string, outcome bool) [][]schema.WorkflowItem {
	var out [][]schema.WorkflowItem
	for pi := range c.ps.Paths {
		path := &c.ps.Paths[pi]
		if o, used := path.Decision(switchID); !used || o != outcome {
			continue
		}
		k := path.Index(switchID)
		if k < 0 {
			continue
		}
		out = append(out, path.Items[k+1:])
	}
	return out
}

// successor returns the branch target for outcome: the item right after the
// switch on the first path taking that outcome. ok is false when no path
// takes it.
func (c *classifier) successor(switchID string, outcome bool) (Candidate, bool) {
	tails := c.tails(switchID, outcome)
	if len(tails) == 0 {
		return c.exit, false
	}
	if len(tails[0]) == 0 {
		return c.exit, true
	}
	return c.g.candidate(&tails[0][0], c.exit), true
}

// common picks the lowest-row tile reachable on both branches that sits
// below the switch and keeps at least its occurrence count.
func (c *classifier) common(sw Candidate) Candidate {
	noReach := make(map[string]bool)
	for _, tail := range c.tails(sw.ID, false) {
		for _, item := range tail {
			noReach[item.ID] = true
		}
	}

	best, found := c.exit, false
	seen := make(map[string]bool)
	for _, tail := range c.tails(sw.ID, true) {
		for _, item := range tail {
			if seen[item.ID] || item.ID == sw.ID || !noReach[item.ID] {
				continue
			}
			seen[item.ID] = true

			cand := c.g.candidate(&item, c.exit)
			if cand.IsExit() || cand.Occurrences < sw.Occurrences || cand.Row <= sw.Row {
				continue
			}
			if !found || cand.Row < best.Row {
				best, found = cand, true
			}
		}
	}
	return best
}

// run lists the tiles a branch places between the switch and the common
// tile, skipping loop turns and any id in exclude.
func (c *classifier) run(sw Candidate, outcome bool, common Candidate, exclude []string) []string {
	skip := make(map[string]bool, len(exclude)+1)
	skip[sw.ID] = true
	for _, id := range exclude {
		skip[id] = true
	}

	var out []string
	for _, tail := range c.tails(sw.ID, outcome) {
		for _, item := range tail {
			if !common.IsExit() && item.ID == common.ID {
				break
			}
			if item.IsLoopTurn() || skip[item.ID] {
				continue
			}
			if r, ok := c.g.row(item.ID); !ok || r <= sw.Row {
				continue
			}
			skip[item.ID] = true
			out = append(out, item.ID)
		}
	}
	return out
}
