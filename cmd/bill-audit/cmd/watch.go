package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/bill-audit/internal/app"
	"github.com/joseph-ayodele/bill-audit/internal/ingest"
)

var watchOpts struct {
	dir         string
	ledger      string
	outDir      string
	debounce    time.Duration
	initialScan bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Audit every ZIP archive dropped into an inbox directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stack, err := app.Build(ctx, cfg, nil, logger)
		if err != nil {
			return err
		}
		defer stack.Shutdown(ctx)

		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{watchOpts.dir},
			InitialScan: watchOpts.initialScan,
			Debounce:    watchOpts.debounce,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		logger.Info("watch.started", "dir", watchOpts.dir)

		w := cmd.OutOrStdout()
		for {
			select {
			case <-ctx.Done():
				return nil
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn("watch.error", "error", err)
			case p, ok := <-paths:
				if !ok {
					return nil
				}
				out := reportPathFor(p, watchOpts.outDir)
				summary, err := runAudit(ctx, stack.Audit, auditArgs{Bills: p, Ledger: watchOpts.ledger, Out: out}, w)
				if err != nil {
					logger.Error("watch.audit.failed", "archive", p, "error", err)
					continue
				}
				printSummary(w, summary)
			}
		}
	},
}

// reportPathFor places the report beside the archive unless outDir is set.
func reportPathFor(archive, outDir string) string {
	base := strings.TrimSuffix(filepath.Base(archive), filepath.Ext(archive))
	name := fmt.Sprintf("%s_audit.xlsx", base)
	if outDir == "" {
		return filepath.Join(filepath.Dir(archive), name)
	}
	return filepath.Join(outDir, name)
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchOpts.dir, "dir", "", "inbox directory to watch (required)")
	f.StringVar(&watchOpts.ledger, "ledger", "", "reference ledger applied to every archive")
	f.StringVar(&watchOpts.outDir, "out-dir", "", "report directory (default: beside each archive)")
	f.DurationVar(&watchOpts.debounce, "debounce", 2*time.Second, "quiet period before an upload is picked up")
	f.BoolVar(&watchOpts.initialScan, "initial-scan", false, "audit archives already present at startup")
	_ = watchCmd.MarkFlagRequired("dir")
}
