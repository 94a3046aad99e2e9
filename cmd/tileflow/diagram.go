package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rendis/tileflow/internal/diagram"
	"github.com/rendis/tileflow/internal/service"
)

var diagramCmd = &cobra.Command{
	Use:   "diagram [definition-file|-]",
	Short: "Render a workflow diagram as ASCII, Mermaid or PNG",
	Long: `Lays out a workflow definition and renders it.

Trace inputs (--inputs file.json or repeated --input key=value) evaluate the
switch conditions and highlight the run they select.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")
		stdinFormat, _ := cmd.Flags().GetString("stdin-format")
		inputsFile, _ := cmd.Flags().GetString("inputs")
		pairs, _ := cmd.Flags().GetStringArray("input")

		a, err := newApp(cmd.Context(), cmd, appOptions{store: cmd.Flags().Changed("id")})
		if err != nil {
			return err
		}
		defer a.Close()

		scale := diagram.Scale{X: a.cfg.ScaleX, Y: a.cfg.ScaleY}
		if cmd.Flags().Changed("scale-x") {
			scale.X, _ = cmd.Flags().GetFloat64("scale-x")
		}
		if cmd.Flags().Changed("scale-y") {
			scale.Y, _ = cmd.Flags().GetFloat64("scale-y")
		}
		if format == service.FormatImage && (out == "" || out == "-") {
			return fmt.Errorf("image output needs --out <file.png>")
		}

		inputs, err := readInputs(inputsFile, pairs)
		if err != nil {
			return err
		}
		def, err := commandDefinition(cmd, a, args, stdinFormat)
		if err != nil {
			return err
		}

		res, err := a.svc.Diagram(cmd.Context(), def, service.DiagramOptions{
			Format: format,
			Scale:  scale,
			Inputs: inputs,
		})
		if err != nil {
			return describe(err)
		}
		data := res.Data
		if format != service.FormatImage && !strings.HasSuffix(string(data), "\n") {
			data = append(data, '\n')
		}
		return writeOutput(cmd.OutOrStdout(), out, data)
	},
}

// readInputs merges a JSON inputs file with key=value pairs. Pair values
// are parsed as JSON when possible, so amount=250 is a number. Returns nil
// when neither is given.
func readInputs(file string, pairs []string) (map[string]any, error) {
	if file == "" && len(pairs) == 0 {
		return nil, nil
	}
	inputs := map[string]any{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read inputs: %w", err)
		}
		if err := json.Unmarshal(data, &inputs); err != nil {
			return nil, fmt.Errorf("inputs file must hold a JSON object: %w", err)
		}
	}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("input %q must look like key=value", p)
		}
		var val any
		if err := json.Unmarshal([]byte(v), &val); err != nil {
			val = v
		}
		inputs[k] = val
	}
	return inputs, nil
}

func init() {
	rootCmd.AddCommand(diagramCmd)
	diagramCmd.Flags().StringP("format", "f", service.FormatASCII, "output format: "+strings.Join(service.Formats, ", "))
	diagramCmd.Flags().StringP("out", "o", "", "write output to a file instead of stdout")
	diagramCmd.Flags().Float64("scale-x", 160, "image pixels per grid column")
	diagramCmd.Flags().Float64("scale-y", 96, "image pixels per grid row")
	diagramCmd.Flags().String("inputs", "", "JSON file with trace inputs")
	diagramCmd.Flags().StringArray("input", nil, "trace input as key=value (repeatable)")
	addStoredFlags(diagramCmd)
	diagramCmd.Flags().String("stdin-format", "json", "format of a definition read from stdin: json or yaml")
}
