package core

// archive.go copies a provider table's contents into the historical schema
// before a new ingestion period overwrites it. Archiving is idempotent:
// re-running leaves previously archived rows untouched.

import (
	"context"
	"fmt"
	"time"
)

// Period identifies one monthly ingestion period.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Suffix renders the period as the archive table suffix: yyyy_mm.
func (p Period) Suffix() string {
	return fmt.Sprintf("%04d_%02d", p.Year, int(p.Month))
}

// ArchiveResult reports the outcome of an archive pass.
type ArchiveResult struct {
	SourceTable  string `json:"sourceTable"`
	ArchiveTable string `json:"archiveTable"`
	RowsCopied   int64  `json:"rowsCopied"`
}

// Archive copies the scope's provider table into the historical schema as
// {table}_{yyyy_mm}. The destination is created like-structured if absent;
// rows already present there are skipped, not overwritten.
func (s *Service) Archive(ctx context.Context, scope Scope, period Period) (ArchiveResult, error) {
	source := TableName(scope)
	dest := source + "_" + period.Suffix()
	result := ArchiveResult{SourceTable: source, ArchiveTable: dest}

	exists, err := tableExists(ctx, s.pool, "public", source)
	if err != nil {
		return result, storageError("check source table", err)
	}
	if !exists {
		return result, configErrorf("table %s does not exist", source)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, storageError("begin archive", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"CREATE SCHEMA IF NOT EXISTS "+quoteIdentifier(s.settings.ArchiveSchema)); err != nil {
		return result, storageError("create archive schema", err)
	}

	qualified := quoteQualified(s.settings.ArchiveSchema, dest)
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (LIKE %s INCLUDING ALL)",
		qualified, quoteIdentifier(source))
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return result, storageError("create archive table", err)
	}

	tag, err := tx.Exec(ctx, fmt.Sprintf(
		"INSERT INTO %s SELECT * FROM %s ON CONFLICT (id) DO NOTHING",
		qualified, quoteIdentifier(source)))
	if err != nil {
		return result, storageError("copy archive rows", err)
	}
	result.RowsCopied = tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return result, storageError("commit archive", err)
	}

	s.logger.Info("period archived",
		"source", source,
		"archive", dest,
		"rows_copied", result.RowsCopied,
	)
	return result, nil
}

// CheckPeriodStatus reports whether the scope's current-period table
// exists, how many rows it holds, and when it was last loaded. Callers use
// it to decide whether an archive-then-reset must precede a new period.
func (s *Service) CheckPeriodStatus(ctx context.Context, scope Scope) (PeriodStatus, error) {
	table := TableName(scope)
	status := PeriodStatus{Table: table}

	exists, err := tableExists(ctx, s.pool, "public", table)
	if err != nil {
		return status, storageError("check period table", err)
	}
	if !exists {
		return status, nil
	}
	status.Exists = true

	err = s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*), MAX(updated_at) FROM %s", quoteIdentifier(table)),
	).Scan(&status.RowCount, &status.LastLoadAt)
	if err != nil {
		return status, storageError("read period status", err)
	}
	return status, nil
}
