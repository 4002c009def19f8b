package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/localrank/internal/report"
	"github.com/sells-group/localrank/internal/store"
)

var (
	reportOut   string
	reportQuery string
	reportLimit int
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export the task ledger and ranking snapshots to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnrich(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		tasks, err := env.Store.ListLatestTasks(ctx, store.TaskFilter{Limit: reportLimit})
		if err != nil {
			return err
		}
		snapshots, err := env.Store.ListRankSnapshots(ctx, reportQuery, reportLimit)
		if err != nil {
			return err
		}

		if err := report.WriteWorkbook(reportOut, tasks, snapshots); err != nil {
			return err
		}
		fmt.Printf("wrote %s (%d tasks, %d snapshots)\n", reportOut, len(tasks), len(snapshots))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOut, "out", "localrank.xlsx", "output workbook path")
	reportCmd.Flags().StringVar(&reportQuery, "query", "", "restrict rankings to one search query")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 1000, "max rows per sheet")
	rootCmd.AddCommand(reportCmd)
}
