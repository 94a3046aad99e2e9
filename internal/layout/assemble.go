package layout

import (
	"sort"

	"github.com/rendis/tileflow/pkg/schema"
)

// assemble turns the corrected grid into MapPoints with successor pointers
// and arrival flags, ordered by row, then column, then first appearance.
func assemble(ps *PathSet, g *grid, topologies map[string]*Topology, factories map[string]schema.SwitchFactory) []schema.MapPoint {
	points := make([]schema.MapPoint, len(g.points))
	byID := make(map[string]int, len(g.points))

	order := make([]int, len(g.points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := g.points[order[a]], g.points[order[b]]
		if pa.Y != pb.Y {
			return pa.Y < pb.Y
		}
		if pa.X != pb.X {
			return pa.X < pb.X
		}
		return pa.first < pb.first
	})

	for i, gi := range order {
		bp := g.points[gi]
		mp := schema.MapPoint{
			Item:        bp.Item,
			Occurrences: bp.Occurrences,
			X:           bp.X,
			Y:           bp.Y,
		}

		if t, ok := topologies[bp.Item.ID]; ok {
			if factory := factories[bp.Item.ID]; factory != nil {
				mp.Item = factory()
			}
			mp.NextYesItemID = t.Yes.ID
			mp.NextNoItemID = t.No.ID
			mp.WorkflowSwitchTypeID = t.Type
		} else {
			mp.NextItemID = nextInFlat(ps.Flat, bp.first)
		}

		points[i] = mp
		byID[bp.Item.ID] = i
	}

	markArrivals(points, byID)
	return points
}

// nextInFlat returns the first id after position i of the flattened paths
// that differs from the item at i. Running off the end, or wrapping onto the
// first tile, yields "".
func nextInFlat(flat []schema.WorkflowItem, i int) string {
	if i < 0 || i >= len(flat) {
		return ""
	}
	self := flat[i].ID
	for j := i + 1; j < len(flat); j++ {
		next := flat[j].ID
		if next == self {
			continue
		}
		if next == flat[0].ID {
			return ""
		}
		return next
	}
	return ""
}

// markArrivals sets on each pointed-at tile the side an arrow enters from.
func markArrivals(points []schema.MapPoint, byID map[string]int) {
	for i := range points {
		src := points[i]
		for _, succ := range src.Successors() {
			j, ok := byID[succ.ID]
			if !ok {
				continue
			}
			dst := &points[j]
			switch {
			case src.X < dst.X:
				dst.IsPointedAtLeft = true
			case src.X > dst.X:
				dst.IsPointedAtRight = true
			case src.Y < dst.Y:
				dst.IsPointedAtTop = true
			}
		}
	}
}
