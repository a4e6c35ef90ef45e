package core

// history.go persists the append-only catalog change history. Entries are
// written inside the same transaction as the mutation they record.

import (
	"context"

	"github.com/google/uuid"
)

// appendHistory inserts one change record. The id is assigned here so the
// entry is addressable before commit.
func (s *Service) appendHistory(ctx context.Context, db DBTX, entry HistoryEntry) error {
	entry.ID = uuid.New().String()

	_, err := db.Exec(ctx, `
		INSERT INTO catalog_history
			(id, sub_portfolio_id, load_cycle, action, actor, header_name, alias)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''))`,
		entry.ID, entry.SubPortfolioID, string(entry.Cycle), string(entry.Action),
		entry.Actor, entry.HeaderName, entry.Alias)
	if err != nil {
		return storageError("append history", err)
	}

	s.logger.Info("catalog changed",
		"sub_portfolio", entry.SubPortfolioID,
		"cycle", entry.Cycle,
		"action", entry.Action,
		"header", entry.HeaderName,
		"alias", entry.Alias,
		"actor", entry.Actor,
	)
	return nil
}

// ListHistory returns the most recent change entries for a scope, newest
// first, capped at limit.
func (s *Service) ListHistory(ctx context.Context, subPortfolioID int64, cycle LoadCycle, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, sub_portfolio_id, load_cycle, action,
		       COALESCE(actor, ''), COALESCE(header_name, ''), COALESCE(alias, ''),
		       created_at
		FROM catalog_history
		WHERE sub_portfolio_id = $1 AND load_cycle = $2
		ORDER BY created_at DESC
		LIMIT $3`, subPortfolioID, string(cycle), limit)
	if err != nil {
		return nil, storageError("list history", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var cycleStr, actionStr string
		if err := rows.Scan(&e.ID, &e.SubPortfolioID, &cycleStr, &actionStr,
			&e.Actor, &e.HeaderName, &e.Alias, &e.CreatedAt); err != nil {
			return nil, storageError("scan history entry", err)
		}
		e.Cycle = LoadCycle(cycleStr)
		e.Action = HistoryAction(actionStr)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list history", err)
	}
	return entries, nil
}
