package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/localrank/internal/model"
	"github.com/sells-group/localrank/internal/store"
)

var (
	tasksKind   string
	tasksStatus string
	tasksLimit  int
	purgeKind   string
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and maintain the enrichment task ledger",
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger rows newest-first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnrich(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		filter := store.TaskFilter{Limit: tasksLimit}
		if tasksKind != "" {
			k, err := model.ParseKind(tasksKind)
			if err != nil {
				return err
			}
			filter.Kind = k
		}
		if tasksStatus != "" {
			s, err := model.ParseStatus(tasksStatus)
			if err != nil {
				return err
			}
			filter.Status = s
		}

		tasks, err := env.Orchestrator.GetLatestTasks(ctx, filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tPLACE\tSTATUS\tCODE\tITEMS\tCREATED")
		for _, t := range tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				t.ID, t.Kind, t.PlaceID, t.Status, t.StatusCode,
				t.LastPopulateCount, t.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var tasksPurgeCmd = &cobra.Command{
	Use:   "purge-errors",
	Short: "Delete terminal error rows so their places become due again",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnrich(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var kind *model.TaskKind
		if purgeKind != "" {
			k, err := model.ParseKind(purgeKind)
			if err != nil {
				return err
			}
			kind = &k
		}

		n, err := env.Orchestrator.DeleteErrorTasks(ctx, kind)
		if err != nil {
			return err
		}
		fmt.Printf("purged %d error tasks\n", n)
		return nil
	},
}

func init() {
	tasksListCmd.Flags().StringVar(&tasksKind, "kind", "", "filter by task kind")
	tasksListCmd.Flags().StringVar(&tasksStatus, "status", "", "filter by task status")
	tasksListCmd.Flags().IntVar(&tasksLimit, "limit", 50, "max rows")
	tasksPurgeCmd.Flags().StringVar(&purgeKind, "kind", "", "restrict purge to one kind")
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksPurgeCmd)
	rootCmd.AddCommand(tasksCmd)
}
