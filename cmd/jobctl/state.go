package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/H3199/duunikanban/internal/statefile"
	"github.com/H3199/duunikanban/internal/views"
)

var importStateCmd = &cobra.Command{
	Use:   "import-state <file>",
	Short: "Append the states from a legacy job_state.json to the history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := statefile.Load(args[0])
		if err != nil {
			return err
		}
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		rep, err := statefile.Import(cmd.Context(), s, f)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "imported=%d unchanged=%d unknown_jobs=%d skipped=%d\n",
			rep.Imported, rep.Unchanged, len(rep.UnknownJobs), len(rep.Skipped))
		for id, st := range rep.Skipped {
			fmt.Fprintf(out, "skipped %s: state %q\n", id, st)
		}
		return nil
	},
}

var exportStateCmd = &cobra.Command{
	Use:   "export-state <file>",
	Short: "Write the current board to a job_state.json file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		f, err := statefile.Export(cmd.Context(), views.NewBuilder(s))
		if err != nil {
			return err
		}
		if err := statefile.Save(args[0], f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d jobs to %s\n", len(f), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importStateCmd, exportStateCmd)
}
