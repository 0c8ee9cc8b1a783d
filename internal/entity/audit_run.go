package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditRun is the persisted outcome of one audit job.
type AuditRun struct {
	ID           uuid.UUID       `json:"id"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	ArchiveName  string          `json:"archive_name"`
	LedgerName   string          `json:"ledger_name,omitempty"`
	ReportKey    *string         `json:"report_key,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Summary      json.RawMessage `json:"summary,omitempty"`
}

// DecodeSummary unmarshals the stored summary, if any.
func (r *AuditRun) DecodeSummary() (*Summary, error) {
	if len(r.Summary) == 0 {
		return nil, nil
	}
	var s Summary
	if err := json.Unmarshal(r.Summary, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
