package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/tileflow/pkg/schema"
)

// RenderMermaid renders a Model as a Mermaid flowchart string. Mermaid lays
// the graph out itself; grid coordinates are kept as comments.
func RenderMermaid(model *Model) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	for _, t := range model.Tiles {
		b.WriteString(fmt.Sprintf("    %s %%%% (%d,%d)\n", mermaidNodeDef(t), t.X, t.Y))
	}

	var taken []string
	for i, e := range model.Edges {
		label := ""
		if e.Label != "" {
			label = fmt.Sprintf("|%s|", e.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n", mermaidSafeID(e.From), label, mermaidSafeID(e.To)))
		if e.Taken {
			taken = append(taken, fmt.Sprint(i))
		}
	}

	if !model.Traced {
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString("    classDef visited fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef skipped fill:#4a4a4a,stroke:#333,color:#aaa,stroke-dasharray:5 5\n")
	for _, t := range model.Tiles {
		cls := "skipped"
		if t.Visited {
			cls = "visited"
		}
		b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(t.ID), cls))
	}
	if len(taken) > 0 {
		b.WriteString(fmt.Sprintf("    linkStyle %s stroke:#2d6a2d,stroke-width:3px\n", strings.Join(taken, ",")))
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the shape of its kind.
func mermaidNodeDef(t *Tile) string {
	id := mermaidSafeID(t.ID)
	label := mermaidEscapeLabel(firstLine(t.Label))

	switch t.Kind {
	case schema.KindSwitch:
		return fmt.Sprintf("%s{%q}", id, label)
	case schema.KindStatus:
		return fmt.Sprintf("%s([%q])", id, label)
	case schema.KindBoundary:
		return fmt.Sprintf("%s((%q))", id, label)
	case schema.KindPlaceholder:
		return fmt.Sprintf("%s[/%q/]", id, label)
	default: // action
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

// mermaidSafeID converts a tile ID to a Mermaid-safe identifier.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// mermaidEscapeLabel replaces the double quotes Mermaid cannot nest in labels.
func mermaidEscapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "'")
}
