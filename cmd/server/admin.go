package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rescue/internal/app"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative maintenance",
}

var clearInterventionsCmd = &cobra.Command{
	Use:   "clear-interventions",
	Short: "Delete every recorded intervention",
	Args:  cobra.NoArgs,
	RunE:  clearInterventions,
}

func init() {
	adminCmd.AddCommand(clearInterventionsCmd)
	rootCmd.AddCommand(adminCmd)
}

func clearInterventions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, log, false)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.Interventions.BulkClear(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d interventions\n", n)
	return err
}
