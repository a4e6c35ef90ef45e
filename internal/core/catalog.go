package core

// catalog.go persists the header catalog: canonical header definitions,
// their aliases, and the ignored-column set, scoped to one (sub-portfolio,
// load cycle). Every mutation runs in a transaction and appends a history
// entry before committing. Duplicate names or aliases abort with a
// ConfigurationError and persist nothing.

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// LoadCatalog materializes the catalog for a scope. Unknown sub-portfolios
// are a configuration error.
func (s *Service) LoadCatalog(ctx context.Context, subPortfolioID int64, cycle LoadCycle) (*Catalog, error) {
	return loadCatalog(ctx, s.pool, subPortfolioID, cycle)
}

func loadCatalog(ctx context.Context, db DBTX, subPortfolioID int64, cycle LoadCycle) (*Catalog, error) {
	var exists bool
	err := db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM sub_portfolios WHERE id = $1)", subPortfolioID,
	).Scan(&exists)
	if err != nil {
		return nil, storageError("load catalog", err)
	}
	if !exists {
		return nil, configErrorf("unknown sub-portfolio %d", subPortfolioID)
	}

	cat := &Catalog{SubPortfolioID: subPortfolioID, Cycle: cycle}

	rows, err := db.Query(ctx, `
		SELECT id, name, semantic_type, COALESCE(format_override, ''),
		       COALESCE(display_label, ''), required,
		       COALESCE(source_field, ''), COALESCE(extract_pattern, '')
		FROM header_definitions
		WHERE sub_portfolio_id = $1 AND load_cycle = $2
		ORDER BY name`, subPortfolioID, string(cycle))
	if err != nil {
		return nil, storageError("load headers", err)
	}
	defer rows.Close()
	for rows.Next() {
		h := HeaderDefinition{SubPortfolioID: subPortfolioID, Cycle: cycle}
		var semantic string
		if err := rows.Scan(&h.ID, &h.Name, &semantic, &h.FormatOverride,
			&h.DisplayLabel, &h.Required, &h.SourceField, &h.ExtractPattern); err != nil {
			return nil, storageError("scan header", err)
		}
		h.Type = SemanticType(semantic)
		cat.Headers = append(cat.Headers, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("load headers", err)
	}
	rows.Close()

	rows, err = db.Query(ctx, `
		SELECT a.id, a.header_id, a.alias, a.principal
		FROM header_aliases a
		JOIN header_definitions d ON d.id = a.header_id
		WHERE d.sub_portfolio_id = $1 AND d.load_cycle = $2
		ORDER BY a.alias`, subPortfolioID, string(cycle))
	if err != nil {
		return nil, storageError("load aliases", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a HeaderAlias
		if err := rows.Scan(&a.ID, &a.HeaderID, &a.Alias, &a.Principal); err != nil {
			return nil, storageError("scan alias", err)
		}
		cat.Aliases = append(cat.Aliases, a)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("load aliases", err)
	}
	rows.Close()

	rows, err = db.Query(ctx, `
		SELECT column_name FROM ignored_columns
		WHERE sub_portfolio_id = $1 AND load_cycle = $2`, subPortfolioID, string(cycle))
	if err != nil {
		return nil, storageError("load ignored columns", err)
	}
	defer rows.Close()
	var ignored []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, storageError("scan ignored column", err)
		}
		ignored = append(ignored, col)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("load ignored columns", err)
	}

	cat.buildIndex(ignored)
	return cat, nil
}

// buildIndex precomputes the normalized alias lookup and ignored set.
// A header with N aliases occupies N+1 entries: its canonical name plus
// each alias.
func (c *Catalog) buildIndex(ignored []string) {
	c.lookup = make(map[string]int, len(c.Headers)+len(c.Aliases))
	byID := make(map[int64]int, len(c.Headers))
	for i, h := range c.Headers {
		byID[h.ID] = i
		c.lookup[NormalizeHeader(h.Name)] = i
	}
	for _, a := range c.Aliases {
		if i, ok := byID[a.HeaderID]; ok {
			c.lookup[NormalizeHeader(a.Alias)] = i
		}
	}
	c.ignored = make(map[string]string, len(ignored))
	for _, col := range ignored {
		c.ignored[NormalizeHeader(col)] = col
	}
}

// HeaderByName returns the header whose canonical name matches, using the
// matching normalization.
func (c *Catalog) HeaderByName(name string) (HeaderDefinition, bool) {
	i, ok := c.lookup[NormalizeHeader(name)]
	if !ok {
		return HeaderDefinition{}, false
	}
	return c.Headers[i], true
}

// headerForColumn returns the header whose sanitized canonical name equals
// the physical column name.
func (c *Catalog) headerForColumn(col string) (HeaderDefinition, bool) {
	for _, h := range c.Headers {
		if h.Column() == col {
			return h, true
		}
	}
	return HeaderDefinition{}, false
}

// hasAliasText reports whether text already exists in the scope as a
// canonical name or alias, case- and accent-insensitively.
func (c *Catalog) hasAliasText(text string) bool {
	_, ok := c.lookup[NormalizeHeader(text)]
	return ok
}

// AddAlias attaches a new alias to a header. The alias must be unique
// across all headers of the scope.
func (s *Service) AddAlias(ctx context.Context, subPortfolioID int64, cycle LoadCycle, headerID int64, alias, actor string) error {
	return s.inTx(ctx, "add alias", func(tx pgx.Tx) error {
		cat, err := loadCatalog(ctx, tx, subPortfolioID, cycle)
		if err != nil {
			return err
		}
		header, ok := cat.headerByID(headerID)
		if !ok {
			return configErrorf("unknown header %d", headerID)
		}
		if cat.hasAliasText(alias) {
			return configErrorf("alias %q already exists in this catalog", alias)
		}

		_, err = tx.Exec(ctx,
			"INSERT INTO header_aliases (header_id, alias, principal) VALUES ($1, $2, false)",
			headerID, alias)
		if err != nil {
			return storageError("insert alias", err)
		}

		return s.appendHistory(ctx, tx, HistoryEntry{
			SubPortfolioID: subPortfolioID,
			Cycle:          cycle,
			Action:         ActionAliasAdded,
			Actor:          actor,
			HeaderName:     header.Name,
			Alias:          alias,
		})
	})
}

// RemoveAlias detaches an alias from its header. The principal alias (the
// header's own canonical name) cannot be removed.
func (s *Service) RemoveAlias(ctx context.Context, subPortfolioID int64, cycle LoadCycle, alias, actor string) error {
	return s.inTx(ctx, "remove alias", func(tx pgx.Tx) error {
		var (
			aliasID    int64
			principal  bool
			headerName string
		)
		err := tx.QueryRow(ctx, `
			SELECT a.id, a.principal, d.name
			FROM header_aliases a
			JOIN header_definitions d ON d.id = a.header_id
			WHERE d.sub_portfolio_id = $1 AND d.load_cycle = $2 AND lower(a.alias) = lower($3)`,
			subPortfolioID, string(cycle), alias,
		).Scan(&aliasID, &principal, &headerName)
		if errors.Is(err, pgx.ErrNoRows) {
			return configErrorf("alias %q not found", alias)
		}
		if err != nil {
			return storageError("find alias", err)
		}
		if principal {
			return configErrorf("alias %q is the principal alias of %q and cannot be removed", alias, headerName)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM header_aliases WHERE id = $1", aliasID); err != nil {
			return storageError("delete alias", err)
		}

		return s.appendHistory(ctx, tx, HistoryEntry{
			SubPortfolioID: subPortfolioID,
			Cycle:          cycle,
			Action:         ActionAliasRemoved,
			Actor:          actor,
			HeaderName:     headerName,
			Alias:          alias,
		})
	})
}

// CreateHeader registers a new canonical header for a previously
// unrecognized column, together with its auto-generated principal alias.
// The format override is validated before anything is written.
func (s *Service) CreateHeader(ctx context.Context, header HeaderDefinition, actor string) (HeaderDefinition, error) {
	if _, err := ColumnType(header.Type, header.FormatOverride); err != nil {
		return HeaderDefinition{}, err
	}

	err := s.inTx(ctx, "create header", func(tx pgx.Tx) error {
		cat, err := loadCatalog(ctx, tx, header.SubPortfolioID, header.Cycle)
		if err != nil {
			return err
		}
		if cat.hasAliasText(header.Name) {
			return configErrorf("header %q already exists in this catalog", header.Name)
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO header_definitions
				(sub_portfolio_id, load_cycle, name, semantic_type, format_override,
				 display_label, required, source_field, extract_pattern)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, NULLIF($8, ''), NULLIF($9, ''))
			RETURNING id`,
			header.SubPortfolioID, string(header.Cycle), header.Name, string(header.Type),
			header.FormatOverride, header.DisplayLabel, header.Required,
			header.SourceField, header.ExtractPattern,
		).Scan(&header.ID)
		if err != nil {
			return storageError("insert header", err)
		}

		_, err = tx.Exec(ctx,
			"INSERT INTO header_aliases (header_id, alias, principal) VALUES ($1, $2, true)",
			header.ID, header.Name)
		if err != nil {
			return storageError("insert principal alias", err)
		}

		return s.appendHistory(ctx, tx, HistoryEntry{
			SubPortfolioID: header.SubPortfolioID,
			Cycle:          header.Cycle,
			Action:         ActionHeaderCreated,
			Actor:          actor,
			HeaderName:     header.Name,
			Alias:          header.Name,
		})
	})
	if err != nil {
		return HeaderDefinition{}, err
	}

	s.logger.Info("header created",
		"sub_portfolio", header.SubPortfolioID,
		"cycle", header.Cycle,
		"name", header.Name,
		"type", header.Type,
	)
	return header, nil
}

// IgnoreColumn adds a raw column name to the scope's ignored set so
// resolution drops it silently.
func (s *Service) IgnoreColumn(ctx context.Context, subPortfolioID int64, cycle LoadCycle, column, actor string) error {
	return s.inTx(ctx, "ignore column", func(tx pgx.Tx) error {
		cat, err := loadCatalog(ctx, tx, subPortfolioID, cycle)
		if err != nil {
			return err
		}
		if _, ok := cat.ignored[NormalizeHeader(column)]; ok {
			return configErrorf("column %q is already ignored", column)
		}

		_, err = tx.Exec(ctx,
			"INSERT INTO ignored_columns (sub_portfolio_id, load_cycle, column_name) VALUES ($1, $2, $3)",
			subPortfolioID, string(cycle), column)
		if err != nil {
			return storageError("insert ignored column", err)
		}

		return s.appendHistory(ctx, tx, HistoryEntry{
			SubPortfolioID: subPortfolioID,
			Cycle:          cycle,
			Action:         ActionColumnIgnored,
			Actor:          actor,
			Alias:          column,
		})
	})
}

// UnignoreColumn removes a raw column name from the ignored set.
func (s *Service) UnignoreColumn(ctx context.Context, subPortfolioID int64, cycle LoadCycle, column, actor string) error {
	return s.inTx(ctx, "unignore column", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM ignored_columns
			WHERE sub_portfolio_id = $1 AND load_cycle = $2 AND lower(column_name) = lower($3)`,
			subPortfolioID, string(cycle), column)
		if err != nil {
			return storageError("delete ignored column", err)
		}
		if tag.RowsAffected() == 0 {
			return configErrorf("column %q is not ignored", column)
		}

		return s.appendHistory(ctx, tx, HistoryEntry{
			SubPortfolioID: subPortfolioID,
			Cycle:          cycle,
			Action:         ActionColumnUnignored,
			Actor:          actor,
			Alias:          column,
		})
	})
}

// headerByID finds a header in the materialized catalog.
func (c *Catalog) headerByID(id int64) (HeaderDefinition, bool) {
	for _, h := range c.Headers {
		if h.ID == id {
			return h, true
		}
	}
	return HeaderDefinition{}, false
}

// inTx runs fn inside a transaction, rolling back on any error.
func (s *Service) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageError(op, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storageError(fmt.Sprintf("commit %s", op), err)
	}
	return nil
}
