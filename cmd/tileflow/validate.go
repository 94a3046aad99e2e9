package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rendis/tileflow/internal/service"
	"github.com/rendis/tileflow/pkg/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate <definition-file>...",
	Short: "Validate workflow definitions",
	Long: `Runs the structural, semantic, flow and layout checks on each file and
prints every error and warning. Exits non-zero when any file has errors.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp(cmd.Context(), cmd, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		// Files that fail to load are reported without being validated.
		loadErrs := make(map[string]error)
		items := make([]service.BatchItem, 0, len(args))
		for _, path := range args {
			def, err := schema.LoadDefinitionFile(path)
			if err != nil {
				loadErrs[path] = err
				continue
			}
			items = append(items, service.BatchItem{Name: path, Definition: def})
		}
		batch, err := a.svc.ValidateBatch(cmd.Context(), items)
		if err != nil {
			return err
		}

		reports := make(map[string]*schema.ValidationResult, len(args))
		for path, err := range loadErrs {
			result := &schema.ValidationResult{}
			result.AddError("/", schema.ErrCodeValidation, err.Error())
			reports[path] = result
		}
		for _, r := range batch {
			reports[r.Name] = r.Result
		}

		failed := 0
		for _, path := range args {
			if !reports[path].Valid() {
				failed++
			}
			if !asJSON {
				printReport(cmd.OutOrStdout(), path, reports[path])
			}
		}

		if asJSON {
			data, err := json.MarshalIndent(reports, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d definitions failed validation", failed, len(args))
		}
		return nil
	},
}

func printReport(w io.Writer, path string, result *schema.ValidationResult) {
	status := "ok"
	if !result.Valid() {
		status = "invalid"
	}
	fmt.Fprintf(w, "%s: %s\n", path, status)
	for _, issue := range result.Errors {
		fmt.Fprintf(w, "  error   %-28s %-20s %s\n", issue.Path, issue.Code, issue.Message)
	}
	for _, issue := range result.Warnings {
		fmt.Fprintf(w, "  warning %-28s %-20s %s\n", issue.Path, issue.Code, issue.Message)
	}
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("json", false, "print results as JSON keyed by file")
}
