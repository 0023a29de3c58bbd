package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rflorenc/shop-migration-workbench/internal/history"
	"github.com/rflorenc/shop-migration-workbench/internal/models"
)

func newHistoryCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect archived migration runs",
	}
	cmd.AddCommand(newHistoryListCmd(g), newHistoryShowCmd(g))
	return cmd
}

func openHistory(g *globalOptions) (*history.Store, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	if cfg.HistoryDB == "" {
		return nil, errors.New("run archive is not configured (set history_db)")
	}
	return history.Open(cfg.HistoryDB)
}

func newHistoryListCmd(g *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory(g)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs archived yet.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tKIND\tPOLICY\tTARGET\tCREATED\tUPDATED\tSKIPPED\tERRORS")
			for _, r := range runs {
				kind := string(r.Kind)
				if r.DryRun {
					kind += " (dry run)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
					r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), kind, r.Policy, r.TargetShop,
					r.Summary.Created, r.Summary.Updated, r.Summary.Skipped, r.Summary.Errors)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

func newHistoryShowCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the outcomes of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(g)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.Get(cmd.Context(), args[0])
			if errors.Is(err, history.ErrNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:     %s\n", run.ID)
			fmt.Fprintf(out, "Kind:    %s\n", run.Kind)
			fmt.Fprintf(out, "Policy:  %s (dry run: %t)\n", run.Policy, run.DryRun)
			fmt.Fprintf(out, "Source:  %s\n", run.SourceShop)
			fmt.Fprintf(out, "Target:  %s\n", run.TargetShop)
			fmt.Fprintf(out, "Started: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
			if run.Error != "" {
				fmt.Fprintf(out, "Error:   %s\n", run.Error)
			}
			printResults(out, &models.MigrationResult{Results: run.Results, Summary: run.Summary})
			return nil
		},
	}
}
