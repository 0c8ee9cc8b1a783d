package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/bill-audit/internal/app"
	"github.com/joseph-ayodele/bill-audit/internal/common"
)

var (
	cfg     *common.Config
	logger  *slog.Logger
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:          "bill-audit",
	Short:        "Audit scanned purchase bills against a reference ledger",
	Long:         "Extracts a ZIP of bill scans, OCRs every page, matches them against ledger rows and writes an Excel report.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = common.LoadConfig()
		if verbose {
			cfg.LogLevel = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger = app.NewLogger(cfg, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command until it returns or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(ocrCmd)
}
