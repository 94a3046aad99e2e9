package layout

import (
	"fmt"

	"github.com/rendis/tileflow/pkg/schema"
)

// Sweep identifies the pass a correction runs in.
type Sweep int

const (
	// SweepStructural relocates BothNext branch runs.
	SweepStructural Sweep = 1
	// SweepShift applies the single row shifts of the other patterns.
	SweepShift Sweep = 2
)

// CorrectionRecord logs one applied correction.
type CorrectionRecord struct {
	Sweep    Sweep  `json:"sweep"`
	Name     string `json:"name"`
	SwitchID string `json:"switch_id"`
	Offset   int    `json:"offset"`
	Moved    int    `json:"moved"`
}

// correction is a named grid operation. Offsets are computed when the
// operation is applied, from the grid as left by earlier operations.
type correction interface {
	name() string
	switchID() string
	apply(g *grid) (offset, moved int)
}

// corrector accumulates corrections while switches are classified and
// applies them afterwards, structural sweep first.
type corrector struct {
	structural []correction
	shifts     []correction
	records    []CorrectionRecord
}

func (c *corrector) enqueue(t *Topology) {
	switch t.Type {
	case schema.SwitchTypeBothNext:
		pair := &runPair{switchID: t.SwitchID, yes: t.YesRun, no: t.NoRun}
		c.structural = append(c.structural, &stackRuns{pair: pair}, &shiftPastRun{pair: pair})
	case schema.SwitchTypeSameNext:
		c.shifts = append(c.shifts, &sameNextShift{id: t.SwitchID, common: t.Common})
	case schema.SwitchTypeNextPrior:
		c.shifts = append(c.shifts, &rowShift{label: "next-prior/connector", id: t.SwitchID, delta: 1})
	case schema.SwitchTypeSameBelowAbove:
		c.shifts = append(c.shifts, &rowShift{label: "same-below-above/corner", id: t.SwitchID, delta: 2})
	case schema.SwitchTypePriorAbove:
		c.shifts = append(c.shifts, &rowShift{label: "prior-above/none", id: t.SwitchID, delta: 0})
	}
}

// apply runs both sweeps in queue order and records every operation.
func (c *corrector) apply(g *grid) {
	for _, sweep := range []struct {
		id  Sweep
		ops []correction
	}{{SweepStructural, c.structural}, {SweepShift, c.shifts}} {
		for _, op := range sweep.ops {
			offset, moved := op.apply(g)
			c.records = append(c.records, CorrectionRecord{
				Sweep:    sweep.id,
				Name:     op.name(),
				SwitchID: op.switchID(),
				Offset:   offset,
				Moved:    moved,
			})
		}
	}
}

// runPair is shared by the two BothNext stages. Stage A decides which run
// moves; stage B reads that decision.
type runPair struct {
	switchID string
	yes      []string
	no       []string

	resolved bool
	moved    []string
	kept     []string
}

// stackRuns is BothNext stage A: the shorter run moves below the longer one.
// On equal length the "no" run moves.
type stackRuns struct{ pair *runPair }

func (s *stackRuns) name() string     { return "both-next/stack-runs" }
func (s *stackRuns) switchID() string { return s.pair.switchID }

func (s *stackRuns) apply(g *grid) (int, int) {
	yLo, yHi, yOK := g.span(s.pair.yes)
	nLo, nHi, nOK := g.span(s.pair.no)
	if !yOK || !nOK {
		return 0, 0
	}

	moved, kept := s.pair.no, s.pair.yes
	mLo, kHi := nLo, yHi
	if yHi-yLo < nHi-nLo {
		moved, kept = s.pair.yes, s.pair.no
		mLo, kHi = yLo, nHi
	}
	s.pair.moved, s.pair.kept, s.pair.resolved = moved, kept, true

	delta := kHi + 1 - mLo
	if delta <= 0 {
		return 0, 0
	}
	for _, id := range moved {
		if p, ok := g.point(id); ok {
			p.Y += delta
		}
	}
	return delta, len(moved)
}

// shiftPastRun is BothNext stage B: everything outside the switch's runs that
// sits at or below the relocated run moves down by the run's length.
type shiftPastRun struct{ pair *runPair }

func (s *shiftPastRun) name() string     { return "both-next/shift-downstream" }
func (s *shiftPastRun) switchID() string { return s.pair.switchID }

func (s *shiftPastRun) apply(g *grid) (int, int) {
	if !s.pair.resolved {
		return 0, 0
	}
	lo, hi, ok := g.span(s.pair.moved)
	if !ok {
		return 0, 0
	}

	except := make(map[string]bool, len(s.pair.moved)+len(s.pair.kept)+1)
	except[s.pair.switchID] = true
	for _, id := range s.pair.moved {
		except[id] = true
	}
	for _, id := range s.pair.kept {
		except[id] = true
	}

	length := hi - lo + 1
	return length, g.shiftBelow(lo-1, length, except)
}

// rowShift moves every tile below the switch by a fixed delta.
type rowShift struct {
	label string
	id    string
	delta int
}

func (r *rowShift) name() string     { return r.label }
func (r *rowShift) switchID() string { return r.id }

func (r *rowShift) apply(g *grid) (int, int) {
	row, ok := g.row(r.id)
	if !ok {
		return 0, 0
	}
	return r.delta, g.shiftBelow(row, r.delta, nil)
}

// sameNextShift adds one row below the switch when its common tile is fewer
// than three rows away. Larger distances leave the grid untouched.
type sameNextShift struct {
	id     string
	common Candidate
}

// sameNextMinDistance is the distance from which no connector row is needed.
const sameNextMinDistance = 3

func (s *sameNextShift) name() string     { return "same-next/connector" }
func (s *sameNextShift) switchID() string { return s.id }

func (s *sameNextShift) apply(g *grid) (int, int) {
	row, ok := g.row(s.id)
	if !ok {
		return 0, 0
	}
	target := g.maxRow() + 1
	if !s.common.IsExit() {
		if r, found := g.row(s.common.ID); found {
			target = r
		}
	}
	if target-row >= sameNextMinDistance {
		return 0, 0
	}
	return 1, g.shiftBelow(row, 1, nil)
}

func (r CorrectionRecord) String() string {
	return fmt.Sprintf("sweep %d %s[%s] offset=%d moved=%d", r.Sweep, r.Name, r.SwitchID, r.Offset, r.Moved)
}
