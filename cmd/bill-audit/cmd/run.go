package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/bill-audit/internal/app"
	"github.com/joseph-ayodele/bill-audit/internal/audit"
)

var runArgs auditArgs

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Audit one ZIP of bills and write the Excel report",
	Example: "  bill-audit run --bills march.zip --ledger march.csv --out reports/march.xlsx\n" +
		"  bill-audit run --bills scans.zip",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stack, err := app.Build(ctx, cfg, nil, logger)
		if err != nil {
			return err
		}
		defer stack.Shutdown(ctx)

		summary, err := runAudit(ctx, stack.Audit, runArgs, cmd.OutOrStdout())
		printSummary(cmd.OutOrStdout(), summary)
		return err
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runArgs.Bills, "bills", "", "ZIP archive of bill scans (required)")
	f.StringVar(&runArgs.Ledger, "ledger", "", "reference CSV or XLSX; omit for extraction-only mode")
	f.StringVar(&runArgs.Out, "out", audit.ReportFileName, "report output path")
	f.DurationVar(&runArgs.Interval, "poll", 500*time.Millisecond, "progress polling interval")
	_ = runCmd.MarkFlagRequired("bills")
}
