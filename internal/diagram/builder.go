package diagram

import (
	"fmt"

	"github.com/rendis/tileflow/internal/engine"
	"github.com/rendis/tileflow/internal/expressions"
	"github.com/rendis/tileflow/pkg/schema"
)

// Overlay highlights one run on the diagram and supplies the inputs used to
// resolve ${{...}} references in titles.
type Overlay struct {
	Trace  *engine.Trace
	Inputs map[string]any
}

// Build constructs a Model from a compiled program and its layout. overlay may
// be nil. Titles whose references cannot be resolved are shown verbatim.
func Build(prog *engine.Program, points []schema.MapPoint, overlay *Overlay) (*Model, error) {
	if prog == nil {
		return nil, fmt.Errorf("diagram: program is nil")
	}

	def := prog.Definition()
	workflow := map[string]any{"id": def.ID, "title": def.Title}
	var inputs map[string]any
	if overlay != nil {
		inputs = overlay.Inputs
	}

	model := &Model{
		Title: resolveTitle(def.Label(), expressions.Scope{Inputs: inputs, Workflow: workflow}),
	}

	var visited map[string]bool
	var taken map[string]bool
	var steps map[[2]string]bool
	if overlay != nil && overlay.Trace != nil {
		model.Traced = true
		visited = overlay.Trace.Visited()
		taken = overlay.Trace.Taken()
		steps = stepPairs(overlay.Trace.Items)
	}

	occupied := make(map[[2]int]bool, len(points))
	for _, p := range points {
		if occupied[[2]int{p.X, p.Y}] {
			return nil, fmt.Errorf("diagram: two tiles at (%d,%d)", p.X, p.Y)
		}
		occupied[[2]int{p.X, p.Y}] = true

		scope := expressions.Scope{Inputs: inputs, Workflow: workflow}
		if elem, ok := prog.Element(p.Item.ID); ok && elem.Kind() == schema.KindSwitch {
			scope.Switch = map[string]any{"id": elem.ID, "params": elem.Params}
		}
		model.Tiles = append(model.Tiles, &Tile{
			ID:          p.Item.ID,
			Label:       resolveTitle(p.Item.Title, scope),
			Kind:        p.Item.Kind,
			X:           p.X,
			Y:           p.Y,
			Occurrences: p.Occurrences,
			SwitchType:  p.WorkflowSwitchTypeID,
			Visited:     visited[p.Item.ID],
		})
		model.grow(p.X, p.Y)
	}

	for _, p := range points {
		for _, s := range p.Successors() {
			e := Edge{From: p.Item.ID, To: s.ID, Label: s.Label}
			if model.Traced && steps[[2]string{e.From, e.To}] {
				outcome, used := taken[e.From]
				e.Taken = e.Label == "" || (used && schema.OutcomeLabel(outcome) == e.Label)
			}
			model.Edges = append(model.Edges, e)
		}
	}

	model.route(occupied)
	return model, nil
}

func resolveTitle(title string, scope expressions.Scope) string {
	out, err := expressions.Interpolate(title, scope)
	if err != nil {
		return title
	}
	return out
}

// stepPairs returns the consecutive (from, to) id pairs of a run.
func stepPairs(items []schema.WorkflowItem) map[[2]string]bool {
	out := make(map[[2]string]bool, len(items))
	for i := 1; i < len(items); i++ {
		out[[2]string{items[i-1].ID, items[i].ID}] = true
	}
	return out
}

func (m *Model) grow(x, y int) {
	m.Cols = max(m.Cols, x+1)
	m.Rows = max(m.Rows, y+1)
}

// route lays decorative cells along every downward edge. Rightward edges
// leave the tile horizontally then drop; leftward edges drop first then run
// back. Upward loop edges get no cells. The first connector claiming a cell
// keeps it; the first cell of a switch edge becomes its yes/no marker.
func (m *Model) route(occupied map[[2]int]bool) {
	claimed := make(map[[2]int]int)
	put := func(x, y int, kind schema.ElementKind, joins Side) {
		at := [2]int{x, y}
		if occupied[at] {
			return
		}
		if i, ok := claimed[at]; ok {
			m.Cells[i].Joins |= joins
			return
		}
		claimed[at] = len(m.Cells)
		m.Cells = append(m.Cells, Cell{X: x, Y: y, Kind: kind, Joins: joins})
		m.grow(x, y)
	}

	for _, e := range m.Edges {
		src, _ := m.Tile(e.From)
		dst, ok := m.Tile(e.To)
		if !ok || dst.Y <= src.Y {
			continue
		}

		var route []Cell
		switch {
		case dst.X == src.X:
			for y := src.Y + 1; y < dst.Y; y++ {
				route = append(route, Cell{X: src.X, Y: y, Kind: schema.KindVerticalLine, Joins: SideUp | SideDown})
			}
		case dst.X > src.X:
			for x := src.X + 1; x < dst.X; x++ {
				route = append(route, Cell{X: x, Y: src.Y, Kind: schema.KindHorizontalLine, Joins: SideLeft | SideRight})
			}
			route = append(route, Cell{X: dst.X, Y: src.Y, Kind: schema.KindCorner, Joins: SideLeft | SideDown})
			for y := src.Y + 1; y < dst.Y; y++ {
				route = append(route, Cell{X: dst.X, Y: y, Kind: schema.KindVerticalLine, Joins: SideUp | SideDown})
			}
		default:
			for y := src.Y + 1; y < dst.Y; y++ {
				route = append(route, Cell{X: src.X, Y: y, Kind: schema.KindVerticalLine, Joins: SideUp | SideDown})
			}
			route = append(route, Cell{X: src.X, Y: dst.Y, Kind: schema.KindCorner, Joins: SideUp | SideLeft})
			for x := src.X - 1; x > dst.X; x-- {
				route = append(route, Cell{X: x, Y: dst.Y, Kind: schema.KindHorizontalLine, Joins: SideLeft | SideRight})
			}
		}

		for i, c := range route {
			kind := c.Kind
			if i == 0 && e.Label != "" && !occupied[[2]int{c.X, c.Y}] {
				kind = markerKind(e.Label)
			}
			put(c.X, c.Y, kind, c.Joins)
		}
	}
}

func markerKind(label string) schema.ElementKind {
	if label == schema.OutcomeLabel(true) {
		return schema.KindYesMarker
	}
	return schema.KindNoMarker
}
