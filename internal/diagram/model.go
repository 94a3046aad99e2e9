package diagram

import "github.com/rendis/tileflow/pkg/schema"

// Model is the intermediate representation used by all renderers. It is the
// laid-out grid: executable tiles at their MapPoint coordinates plus the
// decorative connector cells drawn between them.
type Model struct {
	Title  string
	Cols   int
	Rows   int
	Tiles  []*Tile
	Cells  []Cell
	Edges  []Edge
	Traced bool // a trace overlay was applied
}

// Tile is one positioned workflow element.
type Tile struct {
	ID          string
	Label       string
	Kind        schema.ElementKind
	X, Y        int
	Occurrences uint64
	SwitchType  schema.SwitchType
	Visited     bool // on the traced run
}

// Side is a bit set of the cell sides a connector touches.
type Side uint8

const (
	SideUp Side = 1 << iota
	SideDown
	SideLeft
	SideRight
)

// Cell is a decorative grid cell: a line segment, a corner or a yes/no marker.
type Cell struct {
	X, Y  int
	Kind  schema.ElementKind
	Joins Side
}

// Edge is one pointer between two tiles.
type Edge struct {
	From  string
	To    string
	Label string // "", "yes" or "no"
	Taken bool   // followed by the traced run
}

// Tile returns the tile with the given id.
func (m *Model) Tile(id string) (*Tile, bool) {
	for _, t := range m.Tiles {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Cell returns the decorative cell at (x, y).
func (m *Model) Cell(x, y int) (Cell, bool) {
	for _, c := range m.Cells {
		if c.X == x && c.Y == y {
			return c, true
		}
	}
	return Cell{}, false
}
