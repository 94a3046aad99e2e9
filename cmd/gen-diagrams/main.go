// gen-diagrams generates sample diagram outputs for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/tileflow/internal/diagram"
	"github.com/rendis/tileflow/internal/engine"
	"github.com/rendis/tileflow/internal/expressions"
	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/pkg/schema"
)

func main() {
	// Order workflow: validate → in stock? → (pay, retry on failure) | (notify restock, end) → ship
	def := &schema.WorkflowDefinition{
		ID:    "orders",
		Title: "Order ${{inputs.order_id}}",
		Elements: []schema.ElementDefinition{
			{ID: "received", Type: schema.KindBoundary},
			{ID: "validate", Action: "order.validate"},
			{ID: "in-stock", Type: schema.KindSwitch, Title: "In stock?", Condition: "inputs.quantity > 0",
				Yes: &schema.Branch{Elements: []schema.ElementDefinition{
					{ID: "charge", Action: "payment.charge"},
					{ID: "paid", Type: schema.KindSwitch, Title: "Paid?", Condition: "inputs.card_ok",
						No: &schema.Branch{GoTo: "charge"}},
				}},
				No: &schema.Branch{Elements: []schema.ElementDefinition{
					{ID: "notify-restock", Action: "email.send"},
					{ID: "backordered", Type: schema.KindStatus, Status: "backordered"},
				}, End: true},
			},
			{ID: "ship", Action: "shipping.create"},
			{ID: "shipped", Type: schema.KindStatus, Status: "shipped"},
		},
	}

	ctx := context.Background()
	prog, err := engine.Compile(def)
	if err != nil {
		fail("compile", err)
	}
	points, err := layout.ComputeLayout(ctx, prog)
	if err != nil {
		fail("layout", err)
	}

	registry, err := expressions.NewRegistry()
	if err != nil {
		fail("expressions", err)
	}
	inputs := map[string]any{"order_id": "A-1042", "quantity": 3, "card_ok": true}
	trace, err := prog.Trace(ctx, registry, inputs)
	if err != nil {
		fail("trace", err)
	}

	model, err := diagram.Build(prog, points, &diagram.Overlay{Trace: trace, Inputs: inputs})
	if err != nil {
		fail("build", err)
	}

	outDir := filepath.Join("docs", "assets")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fail("mkdir", err)
	}

	layoutJSON, _ := schema.MarshalLayout(points)
	write(filepath.Join(outDir, "layout-sample.json"), layoutJSON)

	ascii := diagram.RenderASCII(model)
	write(filepath.Join(outDir, "diagram-ascii.txt"), []byte(ascii))
	fmt.Println("=== ASCII ===")
	fmt.Println(ascii)

	mermaid := diagram.RenderMermaid(model)
	write(filepath.Join(outDir, "diagram-mermaid.md"), []byte("```mermaid\n"+mermaid+"\n```\n"))
	fmt.Println("=== Mermaid ===")
	fmt.Println(mermaid)

	png, imgErr := diagram.RenderImage(ctx, model, diagram.DefaultScale)
	if imgErr != nil {
		fmt.Fprintf(os.Stderr, "image error: %v\n", imgErr)
		return
	}
	pngPath := filepath.Join(outDir, "diagram-sample.png")
	write(pngPath, png)
	fmt.Printf("=== Image (PNG) ===\nWritten: %s (%d bytes)\n", pngPath, len(png))
}

func write(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fail("write "+path, err)
	}
}

func fail(stage string, err error) {
	fmt.Fprintf(os.Stderr, "%s error: %v\n", stage, err)
	os.Exit(1)
}
