package core

// schema.go turns catalog header definitions into physical DDL for the
// provider tables, and guards every schema mutation behind a zero-row
// check. Format overrides are validated against a fixed whitelist per
// semantic type before any DDL is built.

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Format override whitelists. Overrides arrive in the dialect the catalog
// administrators know; mapping to the storage dialect happens afterwards.
var (
	textOverrideRegex    = regexp.MustCompile(`(?i)^(VARCHAR\(\d+\)|TEXT|MEDIUMTEXT|LONGTEXT)$`)
	numberOverrideRegex  = regexp.MustCompile(`(?i)^(INT|INTEGER|TINYINT|SMALLINT|MEDIUMINT|BIGINT|DECIMAL\(\d+,\s*\d+\)|NUMERIC\(\d+,\s*\d+\)|FLOAT|DOUBLE)$`)
	dateOverrideRegex    = regexp.MustCompile(`(?i)^(DATE|DATETIME(\(\d+\))?|TIMESTAMP(\(\d+\))?)$`)
	datePatternIndicator = []string{"dd", "MM", "yyyy", "HH", "/", "-"}

	varcharRegex   = regexp.MustCompile(`(?i)^VARCHAR\((\d+)\)$`)
	decimalRegex   = regexp.MustCompile(`(?i)^(?:DECIMAL|NUMERIC)\((\d+),\s*(\d+)\)$`)
	precisionRegex = regexp.MustCompile(`\((\d+)\)$`)
)

// isDatePattern reports whether a Date override is a parse pattern rather
// than a physical type: it contains a date token or separator.
func isDatePattern(override string) bool {
	if override == "" || dateOverrideRegex.MatchString(override) {
		return false
	}
	for _, tok := range datePatternIndicator {
		if strings.Contains(override, tok) {
			return true
		}
	}
	return false
}

// ColumnType validates a format override against the whitelist for the
// semantic type and returns the physical PostgreSQL column type. A Date
// override that is a parse pattern leaves the physical type at DATE; the
// pattern is used only when parsing incoming text values.
func ColumnType(semantic SemanticType, override string) (string, error) {
	override = strings.TrimSpace(override)

	switch semantic {
	case TypeText:
		if override == "" {
			return "VARCHAR(255)", nil
		}
		if !textOverrideRegex.MatchString(override) {
			return "", &FormatOverrideError{Type: semantic, Override: override}
		}
		if m := varcharRegex.FindStringSubmatch(override); m != nil {
			return "VARCHAR(" + m[1] + ")", nil
		}
		// The longer MySQL-style text flavors all map to TEXT.
		return "TEXT", nil

	case TypeNumber:
		if override == "" {
			return "DECIMAL(18,2)", nil
		}
		if !numberOverrideRegex.MatchString(override) {
			return "", &FormatOverrideError{Type: semantic, Override: override}
		}
		if m := decimalRegex.FindStringSubmatch(override); m != nil {
			return fmt.Sprintf("DECIMAL(%s,%s)", m[1], m[2]), nil
		}
		switch strings.ToUpper(override) {
		case "TINYINT", "SMALLINT":
			return "SMALLINT", nil
		case "INT", "INTEGER", "MEDIUMINT":
			return "INTEGER", nil
		case "BIGINT":
			return "BIGINT", nil
		case "FLOAT":
			return "REAL", nil
		default: // DOUBLE
			return "DOUBLE PRECISION", nil
		}

	case TypeDate:
		if override == "" || isDatePattern(override) {
			return "DATE", nil
		}
		if !dateOverrideRegex.MatchString(override) {
			return "", &FormatOverrideError{Type: semantic, Override: override}
		}
		upper := strings.ToUpper(override)
		if upper == "DATE" {
			return "DATE", nil
		}
		// DATETIME[(n)] and TIMESTAMP[(n)] both land on TIMESTAMP.
		if m := precisionRegex.FindStringSubmatch(override); m != nil {
			return "TIMESTAMP(" + m[1] + ")", nil
		}
		return "TIMESTAMP", nil
	}

	return "", configErrorf("unknown semantic type %q", semantic)
}

// TableName derives the physical provider table name for a scope:
// {prefix}{tenant}_{portfolio}_{subPortfolio}, lowercased through the
// sanitizer. Only the initial cycle carries the prefix.
func TableName(scope Scope) string {
	return scope.Cycle.tablePrefix() + SanitizeIdentifier(
		scope.TenantCode+"_"+scope.PortfolioCode+"_"+scope.SubPortfolioCode)
}

// CreateTable provisions the provider table for the scope: one column per
// header definition plus the surrogate id and bookkeeping timestamps.
// Creation is idempotent; an existing table is left untouched.
func (s *Service) CreateTable(ctx context.Context, scope Scope, headers []HeaderDefinition) (string, error) {
	table := TableName(scope)

	cols := make([]string, 0, len(headers)+3)
	cols = append(cols, "id BIGSERIAL PRIMARY KEY")
	seen := map[string]bool{"id": true, "created_at": true, "updated_at": true}
	for _, h := range headers {
		col := h.Column()
		if col == "" || seen[col] {
			return "", configErrorf("header %q yields a duplicate or empty column name", h.Name)
		}
		seen[col] = true
		typ, err := ColumnType(h.Type, h.FormatOverride)
		if err != nil {
			return "", err
		}
		cols = append(cols, quoteIdentifier(col)+" "+typ)
	}
	cols = append(cols,
		"created_at TIMESTAMPTZ NOT NULL DEFAULT now()",
		"updated_at TIMESTAMPTZ NOT NULL DEFAULT now()",
	)

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		quoteIdentifier(table), strings.Join(cols, ", "))

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return "", storageError("create table", err)
	}

	s.logger.Info("provider table ready",
		"table", table,
		"sub_portfolio", scope.SubPortfolioID,
		"cycle", scope.Cycle,
		"columns", len(headers),
	)
	return table, nil
}

// AddColumn adds a header's column to an existing provider table. The
// table must exist and hold zero rows.
func (s *Service) AddColumn(ctx context.Context, scope Scope, header HeaderDefinition) error {
	typ, err := ColumnType(header.Type, header.FormatOverride)
	if err != nil {
		return err
	}

	table := TableName(scope)
	if err := s.requireEmptyTable(ctx, table); err != nil {
		return err
	}

	ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		quoteIdentifier(table), quoteIdentifier(header.Column()), typ)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return storageError("add column", err)
	}

	s.logger.Info("column added", "table", table, "column", header.Column())
	return nil
}

// DropColumn removes a header's column from the provider table, behind the
// same zero-row guard.
func (s *Service) DropColumn(ctx context.Context, scope Scope, header HeaderDefinition) error {
	table := TableName(scope)
	if err := s.requireEmptyTable(ctx, table); err != nil {
		return err
	}

	ddl := fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s",
		quoteIdentifier(table), quoteIdentifier(header.Column()))
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return storageError("drop column", err)
	}

	s.logger.Info("column dropped", "table", table, "column", header.Column())
	return nil
}

// DropTable removes the provider table, behind the zero-row guard.
func (s *Service) DropTable(ctx context.Context, scope Scope) error {
	table := TableName(scope)
	if err := s.requireEmptyTable(ctx, table); err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+quoteIdentifier(table)); err != nil {
		return storageError("drop table", err)
	}

	s.logger.Info("table dropped", "table", table)
	return nil
}

// requireEmptyTable enforces the schema guard: the table must exist and
// hold zero rows. This protects data, not concurrency; single-writer
// discipline per scope is the caller's responsibility.
func (s *Service) requireEmptyTable(ctx context.Context, table string) error {
	exists, err := tableExists(ctx, s.pool, "public", table)
	if err != nil {
		return storageError("check table", err)
	}
	if !exists {
		return configErrorf("table %s does not exist", table)
	}

	count, err := countTable(ctx, s.pool, quoteIdentifier(table))
	if err != nil {
		return storageError("count rows", err)
	}
	if count > 0 {
		return &SchemaGuardError{Table: table, Rows: count}
	}
	return nil
}
