package layout

import (
	"fmt"
	"sort"

	"github.com/rendis/tileflow/pkg/schema"
)

// BaseMapPoint is a tile with its uncorrected grid coordinates.
type BaseMapPoint struct {
	IDFrequency
	X int
	Y int
}

// columnPowers returns [2^n, 2^(n-1), ..., 2^1].
func columnPowers(n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = uint64(1) << uint(n-i)
	}
	return out
}

// columnFor returns the index of occurrences in powers, or len(powers) when
// the count is not listed (an item present on every combination of a
// workflow without switches, or one seen on a single combination).
func columnFor(powers []uint64, occurrences uint64) int {
	for i, p := range powers {
		if p == occurrences {
			return i
		}
	}
	return len(powers)
}

// rowsByID returns, per id, the maximum index it reaches in any path once
// loop turn entries are filtered out.
func rowsByID(ps *PathSet) map[string]int {
	rows := make(map[string]int)
	for _, path := range ps.Paths {
		idx := 0
		for _, item := range path.Items {
			if item.IsLoopTurn() {
				continue
			}
			if r, ok := rows[item.ID]; !ok || idx > r {
				rows[item.ID] = idx
			}
			idx++
		}
	}
	return rows
}

// mapBaseGrid assigns base coordinates and orders the result by row.
// Ties keep first-appearance order.
func mapBaseGrid(ps *PathSet, freqs []IDFrequency) []BaseMapPoint {
	powers := columnPowers(len(ps.Switches))
	rows := rowsByID(ps)

	points := make([]BaseMapPoint, len(freqs))
	for i, f := range freqs {
		points[i] = BaseMapPoint{
			IDFrequency: f,
			X:           columnFor(powers, f.Occurrences),
			Y:           rows[f.Item.ID],
		}
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Y < points[j].Y })
	return points
}

// grid is the mutable tile table the corrections operate on.
type grid struct {
	points []BaseMapPoint
	index  map[string]int
}

func newGrid(base []BaseMapPoint) *grid {
	g := &grid{
		points: make([]BaseMapPoint, len(base)),
		index:  make(map[string]int, len(base)),
	}
	copy(g.points, base)
	for i, p := range g.points {
		g.index[p.Item.ID] = i
	}
	return g
}

func (g *grid) point(id string) (*BaseMapPoint, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return &g.points[i], true
}

func (g *grid) row(id string) (int, bool) {
	p, ok := g.point(id)
	if !ok {
		return 0, false
	}
	return p.Y, true
}

func (g *grid) maxRow() int {
	hi := -1
	for _, p := range g.points {
		if p.Y > hi {
			hi = p.Y
		}
	}
	return hi
}

// span returns the row range covered by ids.
func (g *grid) span(ids []string) (lo, hi int, ok bool) {
	for _, id := range ids {
		r, found := g.row(id)
		if !found {
			continue
		}
		if !ok || r < lo {
			lo = r
		}
		if !ok || r > hi {
			hi = r
		}
		ok = true
	}
	return lo, hi, ok
}

// shiftBelow moves every tile strictly below row by delta, skipping ids in
// except. It returns the number of tiles moved.
func (g *grid) shiftBelow(row, delta int, except map[string]bool) int {
	if delta == 0 {
		return 0
	}
	moved := 0
	for i := range g.points {
		p := &g.points[i]
		if p.Y > row && !except[p.Item.ID] {
			p.Y += delta
			moved++
		}
	}
	return moved
}

// candidate describes a tile for classification; an unknown id is the exit.
func (g *grid) candidate(item *schema.WorkflowItem, exit Candidate) Candidate {
	if item == nil {
		return exit
	}
	p, ok := g.point(item.ID)
	if !ok {
		return exit
	}
	return Candidate{ID: p.Item.ID, Occurrences: p.Occurrences, Row: p.Y}
}

// checkOverlap fails when two tiles share a cell after corrections.
func (g *grid) checkOverlap() error {
	taken := make(map[[2]int]string, len(g.points))
	for _, p := range g.points {
		cell := [2]int{p.X, p.Y}
		if other, ok := taken[cell]; ok {
			return &DefinitionError{
				Reason:    fmt.Sprintf("tiles %s and %s both land on column %d row %d", other, p.Item.ID, p.X, p.Y),
				ElementID: p.Item.ID,
			}
		}
		taken[cell] = p.Item.ID
	}
	return nil
}
