package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/bill-audit/constants"
	"github.com/joseph-ayodele/bill-audit/internal/audit"
	"github.com/joseph-ayodele/bill-audit/internal/entity"
	"github.com/joseph-ayodele/bill-audit/internal/jobs"
	"github.com/joseph-ayodele/bill-audit/internal/server"
)

type auditArgs struct {
	Bills    string
	Ledger   string
	Out      string
	Interval time.Duration
}

// runAudit submits one archive, streams its log lines to w and writes the
// finished report to a.Out.
func runAudit(ctx context.Context, api server.AuditAPI, a auditArgs, w io.Writer) (*entity.Summary, error) {
	bills, err := os.Open(a.Bills)
	if err != nil {
		return nil, fmt.Errorf("open bills archive: %w", err)
	}
	defer bills.Close()

	req := audit.SubmitRequest{ArchiveName: filepath.Base(a.Bills), Archive: bills}
	if a.Ledger != "" {
		ledger, err := os.Open(a.Ledger)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		defer ledger.Close()
		req.LedgerName = filepath.Base(a.Ledger)
		req.Ledger = ledger
	}

	id, err := api.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(w, "audit %s submitted\n", id)

	st, err := waitForAudit(ctx, api, id, a.Interval, w)
	if err != nil {
		return nil, err
	}
	if st.Status == constants.JobStatusError {
		return st.Summary, fmt.Errorf("audit failed: %s", st.Error)
	}

	rc, _, err := api.Report(ctx, id)
	if err != nil {
		return st.Summary, err
	}
	defer rc.Close()
	if err := writeFile(a.Out, rc); err != nil {
		return st.Summary, err
	}
	fmt.Fprintf(w, "report written to %s\n", a.Out)
	return st.Summary, nil
}

func waitForAudit(ctx context.Context, api server.AuditAPI, id uuid.UUID, interval time.Duration, w io.Writer) (jobs.Status, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		st, err := api.Poll(ctx, id)
		if err != nil {
			return jobs.Status{}, err
		}
		for _, l := range st.Logs {
			fmt.Fprintf(w, "%3d%% %-4s %s\n", st.Progress, l.Severity, l.Message)
		}
		if st.Status.Terminal() {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return jobs.Status{}, ctx.Err()
		case <-t.C:
		}
	}
}

func writeFile(path string, r io.Reader) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

func printSummary(w io.Writer, s *entity.Summary) {
	if s == nil {
		return
	}
	fmt.Fprintf(w, "records: %d  matched: %d  review: %d  not found: %d  duplicates: %d  no csv: %d\n",
		s.Total, s.Matched, s.Review, s.NotFound, s.Duplicates, s.NoLedger)
	if s.LedgerAmount != "" {
		fmt.Fprintf(w, "ledger amount: %s  matched amount: %s\n", s.LedgerAmount, s.MatchedAmount)
	}
	fmt.Fprintf(w, "documents: %d  low confidence: %d  unaccounted: %d\n",
		s.Documents, s.LowConfidence, s.Unaccounted)
}
