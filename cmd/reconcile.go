package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Sync the task ledger against the provider's ready-lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnrich(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		touched, err := env.Orchestrator.Reconcile(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("reconciliation complete", zap.Int("touched", touched))
		fmt.Printf("reconciled %d ledger rows\n", touched)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
