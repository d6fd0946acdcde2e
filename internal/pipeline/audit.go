package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ginjaninja78/folio/internal/dedup"
	"github.com/ginjaninja78/folio/internal/mapper"
	"github.com/ginjaninja78/folio/internal/settlement"
	"github.com/ginjaninja78/folio/internal/transform"
	"github.com/ginjaninja78/folio/internal/validation"
	"github.com/google/uuid"
)

// Audit is the record of one import run. It is reported, never persisted.
type Audit struct {
	// RunID identifies the run in logs and reports.
	RunID string

	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool

	// Read is the number of rows received.
	Read int

	Mappings      []mapper.ColumnMapping
	Ignored       []string
	Shadowed      []string
	AccountFilled bool

	Excluded        []validation.Exclusion
	IntraDuplicates []dedup.Duplicate
	StoreDuplicates []dedup.Duplicate

	// Approved holds duplicates kept because the user approved them.
	Approved []dedup.Duplicate

	Merges     []transform.MergeEvent
	Transforms []transform.RuleEvent

	// Skipped lists transform rules and merge groups that did not apply.
	Skipped []string

	// AddedColumns lists the store columns created by this run.
	AddedColumns []string

	Settlement settlement.Stats

	// BackupPath is the pre-import copy of the database, if one was taken.
	BackupPath string

	// Persisted is the number of rows written.
	Persisted int
}

func newAudit(source string, dryRun bool) *Audit {
	return &Audit{
		RunID:     uuid.New().String(),
		Source:    source,
		StartedAt: time.Now(),
		DryRun:    dryRun,
	}
}

// Rejected is the number of rows dropped as duplicates.
func (a *Audit) Rejected() int {
	return len(a.IntraDuplicates) + len(a.StoreDuplicates)
}

// MergedAway is the net number of rows removed by merging.
func (a *Audit) MergedAway() int {
	n := 0
	for _, m := range a.Merges {
		n += len(m.Sources) - 1
	}
	return n
}

// Summary renders the row counts on one line.
func (a *Audit) Summary() string {
	return fmt.Sprintf("read %d, excluded %d, rejected %d, merged %d, imported %d",
		a.Read, len(a.Excluded), a.Rejected(), a.MergedAway(), a.Persisted)
}

// Log writes the audit trail with one line per event.
func (a *Audit) Log(log *slog.Logger) {
	for _, e := range a.Excluded {
		log.Info("EXCLUDE", "row", e.Index+1, "summary", e.Summary, "reasons", e.Reasons)
	}
	for _, d := range a.IntraDuplicates {
		log.Info("REJECT duplicate within file", "summary", d.Summary)
	}
	for _, d := range a.StoreDuplicates {
		log.Info("REJECT duplicate of stored row", "summary", d.Summary)
	}
	for _, d := range a.Approved {
		log.Info("KEEP approved duplicate", "summary", d.Summary)
	}
	for _, s := range a.Skipped {
		log.Warn("SKIP " + s)
	}
	for _, m := range a.Merges {
		log.Info(m.String())
	}
	for _, e := range a.Transforms {
		log.Info(e.String())
	}
	log.Info("DONE", "run", a.RunID, "source", a.Source, "summary", a.Summary(), "dry_run", a.DryRun)
}
