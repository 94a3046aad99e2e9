package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rendis/tileflow/internal/store"
)

var definitionsCmd = &cobra.Command{
	Use:     "definitions",
	Aliases: []string{"defs"},
	Short:   "Manage stored workflow definitions",
}

var defineCmd = &cobra.Command{
	Use:   "define <definition-file|->",
	Short: "Validate and store a definition as a new version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		version, _ := cmd.Flags().GetInt("version")
		stdinFormat, _ := cmd.Flags().GetString("stdin-format")

		a, err := newApp(cmd.Context(), cmd, appOptions{store: true})
		if err != nil {
			return err
		}
		defer a.Close()

		def, err := loadDefinition(args[0], cmd.InOrStdin(), stdinFormat)
		if err != nil {
			return err
		}
		out, err := a.svc.Define(cmd.Context(), &store.DefinitionRecord{ID: id, Version: version, Definition: *def})
		if err != nil {
			return describe(err)
		}
		for _, w := range out.Warnings {
			a.logger.Warn("definition warning", "path", w.Path, "code", w.Code, "message", w.Message)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s@v%d %s\n", out.Record.ID, out.Record.Version, out.Record.Checksum[:12])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored definitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter store.DefinitionFilter
		filter.ID, _ = cmd.Flags().GetString("id")
		filter.AllVersions, _ = cmd.Flags().GetBool("all")
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), cmd, appOptions{store: true})
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.svc.ListDefinitions(cmd.Context(), filter)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tVERSION\tSWITCHES\tCREATED\tTITLE")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", r.ID, r.Version, r.Switches, r.CreatedAt.Format("2006-01-02 15:04"), r.Title)
		}
		return tw.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored definition as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, _ := cmd.Flags().GetInt("version")

		a, err := newApp(cmd.Context(), cmd, appOptions{store: true})
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.svc.GetDefinition(cmd.Context(), args[0], version)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete every version of a stored definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd, appOptions{store: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.svc.DeleteDefinition(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(definitionsCmd)
	definitionsCmd.AddCommand(defineCmd, listCmd, showCmd, deleteCmd)

	defineCmd.Flags().String("id", "", "definition id (default: the definition's own id, else generated)")
	defineCmd.Flags().Int("version", 0, "explicit version (default next)")
	defineCmd.Flags().String("stdin-format", "json", "format of a definition read from stdin: json or yaml")

	listCmd.Flags().String("id", "", "list all versions of one definition")
	listCmd.Flags().Bool("all", false, "include every version")
	listCmd.Flags().Int("limit", 0, "maximum rows")

	showCmd.Flags().Int("version", 0, "version (default latest)")
}
