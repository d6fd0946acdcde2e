// =============================================================================
// folio - Import Pipeline
// =============================================================================
//
// This module orchestrates the import of one batch of broker transactions,
// from raw rows to rows appended to the store.
//
// IMPORT PIPELINE:
//   1. Map raw headers to canonical fields (fatal if essentials are missing)
//   2. Transform (when transforms.stage is pre_format)
//   3. Format and validate rows; invalid rows are excluded
//   4. Drop duplicates within the batch
//   5. Drop duplicates of stored rows
//   6. Transform (when transforms.stage is post_dedup)
//   7. Drop the duplicate-approval column
//   8. Calculate settlement dates
//   9. Plan the column layout, back up the database, then add new columns
//      and append the rows in one transaction
//
// Row-level problems shrink the batch and are recorded in the Audit. Only
// mapping failures and store failures are returned as errors.
//
// =============================================================================

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/folio/internal/config"
	"github.com/ginjaninja78/folio/internal/csvparser"
	"github.com/ginjaninja78/folio/internal/dedup"
	"github.com/ginjaninja78/folio/internal/logger"
	"github.com/ginjaninja78/folio/internal/mapper"
	"github.com/ginjaninja78/folio/internal/schema"
	"github.com/ginjaninja78/folio/internal/settlement"
	"github.com/ginjaninja78/folio/internal/store"
	"github.com/ginjaninja78/folio/internal/transform"
	"github.com/ginjaninja78/folio/internal/types"
	"github.com/ginjaninja78/folio/internal/validation"
	"github.com/ginjaninja78/folio/internal/xlsxparser"
	"github.com/ginjaninja78/folio/pkg/utils"
)

// Options configures one import.
type Options struct {
	// Account fills the Account column when the file has none.
	Account string

	// Sheet selects the worksheet of an Excel file.
	Sheet string

	// DryRun runs every stage but writes nothing.
	DryRun bool
}

// Pipeline imports batches into a store.
type Pipeline struct {
	cfg      *config.Config
	store    *store.Store
	engine   *transform.Engine
	settler  *settlement.Calculator
	approval dedup.Approval
	backup   *utils.BackupManager
	log      *slog.Logger
}

// New creates a pipeline.
//
// PARAMETERS:
//   - cfg: the loaded configuration.
//   - st: the open store.
//   - cal: the trading calendar; nil means weekday-only settlement.
//   - log: the logger; nil discards.
func New(cfg *config.Config, st *store.Store, cal settlement.Provider, log *slog.Logger) *Pipeline {
	log = logger.OrDiscard(log)
	p := &Pipeline{
		cfg:      cfg,
		store:    st,
		engine:   transform.New(cfg.Transforms, log),
		settler:  settlement.New(cal, settlement.OptionsFromConfig(cfg.Settlement), log),
		approval: dedup.ApprovalFromConfig(cfg),
		log:      log,
	}
	if cfg.Backup.IsEnabled() {
		p.backup = utils.NewBackupManager(cfg.Backup.Dir)
	}
	return p
}

// ReadFile reads a CSV or Excel export into a raw batch.
func ReadFile(path string, cfg *config.Config, sheet string) (*types.Batch, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return csvparser.Parse(path, cfg.CSVSettings)
	case ".xlsx", ".xlsm":
		if sheet == "" {
			sheet = cfg.Sheet
		}
		return xlsxparser.Parse(path, sheet)
	}
	return nil, fmt.Errorf("unsupported file type: %s", filepath.Base(path))
}

// ImportFile reads a file and imports it.
func (p *Pipeline) ImportFile(ctx context.Context, path string, opts Options) (int, *Audit, error) {
	batch, err := ReadFile(path, p.cfg, opts.Sheet)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p.Import(ctx, batch, opts)
}

// Import runs the pipeline on a raw batch.
//
// RETURNS:
//   - The number of rows persisted (0 on a dry run).
//   - The audit trail; it is returned even on error, describing the stages
//     that completed.
//   - An error for mapping or store failures.
func (p *Pipeline) Import(ctx context.Context, raw *types.Batch, opts Options) (int, *Audit, error) {
	audit := newAudit(raw.Source, opts.DryRun)
	audit.Read = raw.Len()
	table := p.cfg.Table

	p.log.Info("READ", "run", audit.RunID, "source", raw.Source, "rows", raw.Len())

	// =========================================================================
	// STEP 1: MAP HEADERS
	// =========================================================================

	mapped, err := mapper.Map(raw, mapper.OptionsFromConfig(p.cfg, opts.Account))
	if err != nil {
		return 0, audit, err
	}
	audit.Mappings = mapped.Mappings
	audit.Ignored = mapped.Ignored
	audit.Shadowed = mapped.Shadowed
	audit.AccountFilled = mapped.AccountFilled
	batch := mapped.Batch

	// =========================================================================
	// STEP 2: TRANSFORM (pre_format)
	// =========================================================================
	// Merge groups match broker vocabulary ("Withholding Tax"), which the
	// formatter would reject, so by default they run before formatting.

	if p.cfg.Transforms.Stage == config.StagePreFormat {
		batch = p.transform(batch, audit)
	}

	// =========================================================================
	// STEP 3: FORMAT AND VALIDATE
	// =========================================================================

	formatted := validation.Format(batch, validation.OptionsFromConfig(p.cfg))
	audit.Excluded = formatted.Excluded
	batch = formatted.Batch

	// =========================================================================
	// STEP 4-5: DROP DUPLICATES
	// =========================================================================

	intra := dedup.FilterIntra(batch, p.approval)
	audit.IntraDuplicates = intra.Rejected
	audit.Approved = append(audit.Approved, intra.Approved...)

	stored, err := p.store.Rows(ctx, table)
	if err != nil {
		p.log.Warn("stored rows unavailable, skipping duplicate check against the store", "error", err)
		stored = nil
	}
	inStore := dedup.FilterStore(intra.Batch, stored, p.approval)
	audit.StoreDuplicates = inStore.Rejected
	audit.Approved = append(audit.Approved, inStore.Approved...)
	batch = inStore.Batch

	// =========================================================================
	// STEP 6: TRANSFORM (post_dedup)
	// =========================================================================

	if p.cfg.Transforms.Stage == config.StagePostDedup {
		batch = p.transform(batch, audit)
	}

	// =========================================================================
	// STEP 7-8: STRIP APPROVAL COLUMN, SETTLE
	// =========================================================================

	p.approval.Strip(batch)
	batch, audit.Settlement = p.settler.Apply(ctx, batch)

	// =========================================================================
	// STEP 9: PERSIST
	// =========================================================================

	if batch.Len() == 0 {
		audit.FinishedAt = time.Now()
		audit.Log(p.log)
		return 0, audit, nil
	}

	if opts.DryRun {
		existing, err := p.store.Columns(ctx, table)
		if err != nil {
			return 0, audit, err
		}
		audit.AddedColumns = schema.NewPlan(existing, batch.Columns).Added
		audit.FinishedAt = time.Now()
		audit.Log(p.log)
		return 0, audit, nil
	}

	n, err := p.persist(ctx, table, batch, audit)
	if err != nil {
		return 0, audit, err
	}
	audit.Persisted = n
	audit.FinishedAt = time.Now()
	audit.Log(p.log)
	return n, audit, nil
}

// Settle runs the settlement calculator on its own.
func (p *Pipeline) Settle(ctx context.Context, batch *types.Batch) (*types.Batch, settlement.Stats) {
	return p.settler.Apply(ctx, batch)
}

func (p *Pipeline) transform(batch *types.Batch, audit *Audit) *types.Batch {
	if p.engine.Empty() {
		return batch
	}
	res := p.engine.Apply(batch)
	audit.Merges = append(audit.Merges, res.Merges...)
	audit.Transforms = append(audit.Transforms, res.Events...)
	audit.Skipped = append(audit.Skipped, res.Skipped...)
	return res.Batch
}

// persist evolves the schema and appends the batch in one transaction.
func (p *Pipeline) persist(ctx context.Context, table string, batch *types.Batch, audit *Audit) (int, error) {
	if err := p.backupStore(ctx, table, audit); err != nil {
		return 0, err
	}

	if err := p.store.EnsureTable(ctx, table); err != nil {
		return 0, err
	}
	existing, err := p.store.Columns(ctx, table)
	if err != nil {
		return 0, err
	}
	plan := schema.NewPlan(existing, batch.Columns)
	final := plan.Reindex(batch)

	tx, err := p.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := schema.Apply(ctx, tx, table, plan); err != nil {
		return 0, err
	}
	for _, c := range plan.Added {
		p.log.Info("ADD column", "table", table, "column", c)
	}

	n, err := tx.Append(ctx, table, final)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	audit.AddedColumns = plan.Added
	return n, nil
}

// backupStore copies a non-empty database before it is written.
func (p *Pipeline) backupStore(ctx context.Context, table string, audit *Audit) error {
	path, err := p.store.Backup(ctx, table, p.backup)
	if err != nil {
		return err
	}
	if path != "" {
		audit.BackupPath = path
		p.log.Info("BACKUP", "path", path)
	}
	return nil
}
