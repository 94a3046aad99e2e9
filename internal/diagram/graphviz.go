package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/rendis/tileflow/pkg/schema"
)

// pointsPerInch converts pixel scale coefficients into graphviz inches.
const pointsPerInch = 72.0

// Scale holds the per-axis coefficients, in pixels per grid unit, applied
// when projecting tile coordinates onto an image.
type Scale struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DefaultScale is used when no coefficients are configured.
var DefaultScale = Scale{X: 160, Y: 96}

// Project maps grid coordinates to pixel coordinates.
func (s Scale) Project(x, y int) (px, py float64) {
	return float64(x) * s.X, float64(y) * s.Y
}

// Valid reports whether both coefficients are positive.
func (s Scale) Valid() bool { return s.X > 0 && s.Y > 0 }

// RenderImage renders a Model as a PNG image using graphviz. Tiles are
// pinned at their grid positions times scale; neato only routes the edges.
func RenderImage(ctx context.Context, model *Model, scale Scale) ([]byte, error) {
	if !scale.Valid() {
		scale = DefaultScale
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.NEATO)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	gvNodes := make(map[string]*cgraph.Node, len(model.Tiles))
	for _, t := range model.Tiles {
		gvNode, nErr := graph.CreateNodeByName(t.ID)
		if nErr != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", t.ID, nErr)
		}
		px, py := scale.Project(t.X, t.Y)
		// Graphviz y grows upwards.
		gvNode.SetPos(px/pointsPerInch, -py/pointsPerInch)
		gvNode.SetPin(true)
		gvNode.SetLabel(firstLine(t.Label))
		applyNodeStyle(gvNode, t, model.Traced)
		gvNodes[t.ID] = gvNode
	}

	for _, e := range model.Edges {
		fromGV, toGV := gvNodes[e.From], gvNodes[e.To]
		if fromGV == nil || toGV == nil {
			continue
		}
		gvEdge, eErr := graph.CreateEdgeByName("", fromGV, toGV)
		if eErr != nil {
			return nil, fmt.Errorf("diagram: create edge %s->%s: %w", e.From, e.To, eErr)
		}
		if e.Label != "" {
			gvEdge.SetLabel(e.Label)
		}
		if e.Taken {
			gvEdge.SetColor("#2d6a2d")
			gvEdge.SetPenWidth(2.5)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// applyNodeStyle sets graphviz attributes based on tile kind and trace state.
func applyNodeStyle(gvNode *cgraph.Node, t *Tile, traced bool) {
	switch t.Kind {
	case schema.KindSwitch:
		gvNode.SetShape(cgraph.DiamondShape)
	case schema.KindStatus:
		gvNode.SetShape(cgraph.EllipseShape)
	case schema.KindBoundary:
		gvNode.SetShape(cgraph.CircleShape)
		gvNode.SetWidth(0.5)
		gvNode.SetHeight(0.5)
	case schema.KindPlaceholder:
		gvNode.SetShape(cgraph.BoxShape)
		gvNode.SetStyle(cgraph.DashedNodeStyle)
	default:
		gvNode.SetShape(cgraph.BoxShape)
	}

	if !traced {
		return
	}
	gvNode.SetStyle(cgraph.FilledNodeStyle)
	if t.Visited {
		gvNode.SetFillColor("#2d6a2d")
		gvNode.SetFontColor("white")
		return
	}
	gvNode.SetFillColor("#e8e8e8")
	gvNode.SetFontColor("#888888")
}
