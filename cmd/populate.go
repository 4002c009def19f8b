package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/model"
)

var (
	populateTaskID string
	populateKind   string
)

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Fetch ready task results and merge them into the domain tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnrich(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if populateTaskID != "" {
			items, err := env.Orchestrator.PopulateTask(ctx, populateTaskID)
			if err != nil {
				return err
			}
			fmt.Printf("task %s: %d items\n", populateTaskID, items)
			return nil
		}

		var kind *model.TaskKind
		if populateKind != "" {
			k, err := model.ParseKind(populateKind)
			if err != nil {
				return err
			}
			kind = &k
		}

		stats, err := env.Orchestrator.PopulateReadyTasks(ctx, kind)
		if err != nil {
			return err
		}
		zap.L().Info("population pass complete",
			zap.Int("attempted", stats.Attempted),
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("failed", stats.Failed),
			zap.Int("items", stats.Items),
		)
		fmt.Printf("populated %d/%d tasks (%d items, %d failed)\n",
			stats.Succeeded, stats.Attempted, stats.Items, stats.Failed)
		return nil
	},
}

func init() {
	populateCmd.Flags().StringVar(&populateTaskID, "task", "", "populate a single task by id")
	populateCmd.Flags().StringVar(&populateKind, "kind", "", "restrict to one task kind")
	rootCmd.AddCommand(populateCmd)
}
