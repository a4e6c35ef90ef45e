package core

// ingest.go loads coerced rows into a scope's provider table. The whole
// load runs in one transaction; each row inserts under a savepoint so a
// bad row is recorded and skipped without poisoning the batch. Only a
// statement-level storage failure aborts the load.

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// LoadRows coerces and inserts rows into the provider table for the scope.
// Derived headers (SourceField set) read their raw value from another
// canonical column and apply their extraction pattern first.
func (s *Service) LoadRows(ctx context.Context, scope Scope, rows []RowMap) (LoadResult, error) {
	start := time.Now()
	table := TableName(scope)
	result := LoadResult{Table: table}

	cat, err := s.LoadCatalog(ctx, scope.SubPortfolioID, scope.Cycle)
	if err != nil {
		return result, err
	}
	if len(cat.Headers) == 0 {
		return result, configErrorf("no headers defined for sub-portfolio %d cycle %s", scope.SubPortfolioID, scope.Cycle)
	}

	extractors, err := compileExtractors(cat.Headers)
	if err != nil {
		return result, err
	}

	columns := make([]string, len(cat.Headers))
	for i, h := range cat.Headers {
		columns[i] = quoteIdentifier(h.Column())
	}
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(table), strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return result, storageError("begin load", err)
	}
	defer tx.Rollback(ctx)

	var rowErrors []RowError

	for i, row := range rows {
		line := i + 1

		args, rowErr := coerceRow(cat.Headers, extractors, row, line)
		if rowErr != nil {
			rowErrors = append(rowErrors, *rowErr)
			continue
		}

		savepoint := fmt.Sprintf("sp_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
			return result, storageError("create savepoint", err)
		}

		if _, err := tx.Exec(ctx, insertSQL, args...); err != nil {
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
				return result, storageError("rollback savepoint", rbErr)
			}
			rowErrors = append(rowErrors, RowError{
				Line:    line,
				Message: fmt.Sprintf("insert: %v", err),
			})
			continue
		}
		if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
			return result, storageError("release savepoint", err)
		}

		result.Inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		return result, storageError("commit load", err)
	}

	result.Failed = len(rowErrors)
	result.Errors, result.TotalErrors = capErrors(rowErrors, s.settings.MaxReportedErrors)
	result.Duration = time.Since(start)

	s.logger.Info("rows loaded",
		"table", table,
		"sub_portfolio", scope.SubPortfolioID,
		"cycle", scope.Cycle,
		"inserted", result.Inserted,
		"failed", result.Failed,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// coerceRow builds the insert arguments for one row, one value per header
// in catalog order. The first failure fails the row: a blank value in a
// required header, or a coercion error.
func coerceRow(headers []HeaderDefinition, extractors map[int64]*regexp.Regexp, row RowMap, line int) ([]any, *RowError) {
	args := make([]any, len(headers))
	for i, h := range headers {
		raw := row[h.Name]
		if h.SourceField != "" {
			raw = extractDerived(row[h.SourceField], extractors[h.ID])
		}

		if h.Required && strings.TrimSpace(rawString(raw)) == "" {
			return nil, &RowError{
				Line:    line,
				Field:   h.Name,
				Message: "required value is missing",
			}
		}

		value, err := CoerceValue(h, raw)
		if err != nil {
			return nil, &RowError{
				Line:    line,
				Field:   h.Name,
				Value:   rawString(raw),
				Message: err.Error(),
			}
		}
		args[i] = value
	}
	return args, nil
}

// compileExtractors compiles the extraction patterns of derived headers.
// A malformed pattern is a catalog configuration problem, not a row one.
func compileExtractors(headers []HeaderDefinition) (map[int64]*regexp.Regexp, error) {
	extractors := make(map[int64]*regexp.Regexp)
	for _, h := range headers {
		if h.SourceField == "" || h.ExtractPattern == "" {
			continue
		}
		re, err := regexp.Compile(h.ExtractPattern)
		if err != nil {
			return nil, configErrorf("header %q has an invalid extraction pattern: %v", h.Name, err)
		}
		extractors[h.ID] = re
	}
	return extractors, nil
}

// extractDerived applies a derived header's pattern to its source value.
// With a capture group the first group wins; otherwise the whole match.
// No pattern means the source value is copied as-is.
func extractDerived(raw any, re *regexp.Regexp) any {
	if re == nil {
		return raw
	}
	s := rawString(raw)
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	if len(m) > 1 && m[1] != "" {
		return m[1]
	}
	return m[0]
}
