package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rendis/tileflow/pkg/schema"
)

const (
	maxLabelWidth = 18
	minLabelWidth = 3
	cellLines     = 3
)

// kindTag returns a short prefix marking the tile kind inside its box.
func kindTag(kind schema.ElementKind) string {
	switch kind {
	case schema.KindSwitch:
		return "? "
	case schema.KindStatus:
		return "# "
	case schema.KindBoundary:
		return "o "
	case schema.KindPlaceholder:
		return "~ "
	default:
		return ""
	}
}

// RenderASCII renders a Model as a text grid. Every grid row is three text
// lines tall and every column has the width of the widest label. Tiles on
// the traced run are drawn with double borders.
func RenderASCII(model *Model) string {
	var b strings.Builder

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n\n", model.Title))
	}

	inner := minLabelWidth
	for _, t := range model.Tiles {
		inner = max(inner, min(utf8.RuneCountInString(tileText(t)), maxLabelWidth))
	}
	width := inner + 4 // 2 border + 2 padding

	grid := make([][][]string, model.Rows)
	for y := range grid {
		grid[y] = make([][]string, model.Cols)
		for x := range grid[y] {
			grid[y][x] = blankCell(width)
		}
	}
	for _, t := range model.Tiles {
		grid[t.Y][t.X] = makeBox(t, inner, model.Traced && t.Visited)
	}
	for _, c := range model.Cells {
		grid[c.Y][c.X] = drawCell(c, width)
	}

	for _, row := range grid {
		for line := 0; line < cellLines; line++ {
			var sb strings.Builder
			for x, cell := range row {
				if x > 0 {
					sb.WriteString(gap(row[x-1], cell, line))
				}
				sb.WriteString(cell[line])
			}
			b.WriteString(strings.TrimRight(sb.String(), " "))
			b.WriteByte('\n')
		}
	}

	if loops := loopEdges(model); len(loops) > 0 {
		b.WriteString("\n")
		for _, e := range loops {
			label := ""
			if e.Label != "" {
				label = fmt.Sprintf(" [%s]", e.Label)
			}
			b.WriteString(fmt.Sprintf("  %s ─→ %s%s (loop)\n", e.From, e.To, label))
		}
	}

	return b.String()
}

func tileText(t *Tile) string {
	return kindTag(t.Kind) + firstLine(t.Label)
}

// makeBox draws a tile box. inner is the label width inside the borders.
func makeBox(t *Tile, inner int, visited bool) []string {
	tl, tr, bl, br, h, v := "┌", "┐", "└", "┘", "─", "│"
	if visited {
		tl, tr, bl, br, h, v = "╔", "╗", "╚", "╝", "═", "║"
	}

	label := truncate(tileText(t), inner)
	pad := inner - utf8.RuneCountInString(label)
	return []string{
		tl + strings.Repeat(h, inner+2) + tr,
		v + " " + label + strings.Repeat(" ", pad) + " " + v,
		bl + strings.Repeat(h, inner+2) + br,
	}
}

func blankCell(width int) []string {
	line := strings.Repeat(" ", width)
	return []string{line, line, line}
}

// drawCell draws a connector, corner or marker centred in its cell.
func drawCell(c Cell, width int) []string {
	mid := width / 2
	top, middle, bottom := []rune(strings.Repeat(" ", width)), []rune(strings.Repeat(" ", width)), []rune(strings.Repeat(" ", width))

	if c.Joins&SideUp != 0 {
		top[mid] = '│'
	}
	if c.Joins&SideDown != 0 {
		bottom[mid] = '│'
	}
	if c.Joins&SideLeft != 0 {
		for i := 0; i < mid; i++ {
			middle[i] = '─'
		}
	}
	if c.Joins&SideRight != 0 {
		for i := mid + 1; i < width; i++ {
			middle[i] = '─'
		}
	}
	middle[mid] = junction(c.Joins)

	switch c.Kind {
	case schema.KindYesMarker, schema.KindNoMarker:
		text := []rune(" " + schema.OutcomeLabel(c.Kind == schema.KindYesMarker) + " ")
		start := max(0, mid-len(text)/2)
		for i, r := range text {
			if start+i < width {
				middle[start+i] = r
			}
		}
	}
	return []string{string(top), string(middle), string(bottom)}
}

// junction picks the box-drawing rune joining the given sides.
func junction(s Side) rune {
	switch s {
	case SideUp | SideDown:
		return '│'
	case SideLeft | SideRight:
		return '─'
	case SideLeft | SideDown:
		return '┐'
	case SideRight | SideDown:
		return '┌'
	case SideUp | SideLeft:
		return '┘'
	case SideUp | SideRight:
		return '└'
	case SideUp | SideDown | SideLeft:
		return '┤'
	case SideUp | SideDown | SideRight:
		return '├'
	case SideLeft | SideRight | SideDown:
		return '┬'
	case SideLeft | SideRight | SideUp:
		return '┴'
	default:
		return '┼'
	}
}

// gap joins two neighbouring cells on a line: a horizontal connector
// continues through the gap into a cell reached from the left.
func gap(left, right []string, line int) string {
	if line == 1 && strings.HasPrefix(right[1], "─") && strings.ContainsAny(lastRune(left[1]), "─│║") {
		return "──"
	}
	return "  "
}

func lastRune(s string) string {
	r, _ := utf8.DecodeLastRuneInString(s)
	return string(r)
}

// loopEdges returns edges pointing up the grid, which get no connector cells.
func loopEdges(model *Model) []Edge {
	var out []Edge
	for _, e := range model.Edges {
		src, ok1 := model.Tile(e.From)
		dst, ok2 := model.Tile(e.To)
		if ok1 && ok2 && dst.Y <= src.Y {
			out = append(out, e)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}
