package main

import (
	"github.com/spf13/cobra"

	"github.com/opsguardian/ticket-triage/internal/bootstrap"
)

var batchFlags struct {
	status   string
	openOnly bool
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Triage every ticket the backend lists",
	RunE:  runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVar(&batchFlags.status, "status", "", "Only list tickets with this status (default BATCH_STATUS)")
	f.BoolVar(&batchFlags.openOnly, "open-only", false, "Skip tickets whose status is not OPEN (default PROCESS_OPEN_ONLY)")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	return withContainer(cmd.Context(), func(app *bootstrap.Container) error {
		status := app.Config.Batch.Status
		if cmd.Flags().Changed("status") {
			status = batchFlags.status
		}
		runner := app.Batch
		if cmd.Flags().Changed("open-only") {
			runner = app.BatchRunner(batchFlags.openOnly)
		}
		summary, err := runner.Run(cmd.Context(), status)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), summary)
	})
}
