package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/tileflow/internal/layout"
	"github.com/rendis/tileflow/pkg/schema"
)

var layoutCmd = &cobra.Command{
	Use:   "layout [definition-file|-]",
	Short: "Compute the grid layout of a workflow definition",
	Long: `Computes the grid coordinates of every tile and prints them as JSON.
With --points only the MapPoint list is printed. --id lays out a stored
definition instead of a file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stdinFormat, _ := cmd.Flags().GetString("stdin-format")
		out, _ := cmd.Flags().GetString("out")
		pointsOnly, _ := cmd.Flags().GetBool("points")

		a, err := newApp(cmd.Context(), cmd, appOptions{store: cmd.Flags().Changed("id")})
		if err != nil {
			return err
		}
		defer a.Close()

		def, err := commandDefinition(cmd, a, args, stdinFormat)
		if err != nil {
			return err
		}
		res, err := a.svc.Layout(cmd.Context(), def)
		if err != nil {
			return describe(err)
		}
		for _, w := range res.Warnings {
			a.logger.Warn("definition warning", "path", w.Path, "code", w.Code, "message", w.Message)
		}

		var data []byte
		if pointsOnly {
			data, err = schema.MarshalLayout(res.Points)
		} else {
			data, err = json.MarshalIndent(res, "", "  ")
		}
		if err != nil {
			return err
		}
		return writeOutput(cmd.OutOrStdout(), out, append(data, '\n'))
	},
}

// describe renders a layout or validation failure with its structured details.
func describe(err error) error {
	tfErr := layout.Structured(err)
	if len(tfErr.Details) == 0 {
		return tfErr
	}
	details, mErr := json.MarshalIndent(tfErr.Details, "", "  ")
	if mErr != nil {
		return tfErr
	}
	return fmt.Errorf("%w\n%s", tfErr, details)
}

func init() {
	rootCmd.AddCommand(layoutCmd)
	layoutCmd.Flags().StringP("out", "o", "", "write output to a file instead of stdout")
	layoutCmd.Flags().Bool("points", false, "print only the MapPoint list")
	addStoredFlags(layoutCmd)
	layoutCmd.Flags().String("stdin-format", "json", "format of a definition read from stdin: json or yaml")
}
