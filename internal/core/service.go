package core

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Settings holds the tunable batch parameters. The chunk sizes exist to
// bound single-statement parameter counts, not for correctness, and the
// selective threshold mirrors the point where a huge key filter costs more
// than a full pass. Defaults preserve the historically tuned values.
type Settings struct {
	// LookupBatchSize caps keys per id-resolution lookup and ids per
	// contact delete statement.
	LookupBatchSize int
	// InsertBatchSize caps rows per multi-row insert or upsert statement.
	InsertBatchSize int
	// SelectiveSyncThreshold is the key-set size above which a selective
	// sync falls back to a full-scope pass.
	SelectiveSyncThreshold int
	// MaxReportedErrors caps the row-error list returned per operation.
	MaxReportedErrors int
	// ArchiveSchema is the historical namespace for period archives.
	ArchiveSchema string
}

// DefaultSettings returns the tuned defaults.
func DefaultSettings() Settings {
	return Settings{
		LookupBatchSize:        500,
		InsertBatchSize:        1000,
		SelectiveSyncThreshold: 10000,
		MaxReportedErrors:      MaxReportedErrors,
		ArchiveSchema:          "historico",
	}
}

// Service is the entry point for all engine operations. Each public call
// is synchronous and runs as one unit of work; catalog metadata is loaded
// once per call and never cached across calls.
type Service struct {
	pool     *pgxpool.Pool
	settings Settings
	logger   *slog.Logger
}

// NewService creates a Service. Zero-valued settings fields fall back to
// the defaults; a nil logger falls back to slog.Default.
func NewService(pool *pgxpool.Pool, settings Settings, logger *slog.Logger) *Service {
	def := DefaultSettings()
	if settings.LookupBatchSize <= 0 {
		settings.LookupBatchSize = def.LookupBatchSize
	}
	if settings.InsertBatchSize <= 0 {
		settings.InsertBatchSize = def.InsertBatchSize
	}
	if settings.SelectiveSyncThreshold <= 0 {
		settings.SelectiveSyncThreshold = def.SelectiveSyncThreshold
	}
	if settings.MaxReportedErrors <= 0 {
		settings.MaxReportedErrors = def.MaxReportedErrors
	}
	if settings.ArchiveSchema == "" {
		settings.ArchiveSchema = def.ArchiveSchema
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, settings: settings, logger: logger}
}

// LookupScope resolves a sub-portfolio id into the full tenant hierarchy
// slice, read through in one query. The hierarchy is stored as foreign-key
// ids only; names are denormalized here at the point of use.
func (s *Service) LookupScope(ctx context.Context, subPortfolioID int64, cycle LoadCycle) (Scope, error) {
	scope := Scope{SubPortfolioID: subPortfolioID, Cycle: cycle}

	err := s.pool.QueryRow(ctx, `
		SELECT t.id, t.code, t.name,
		       p.id, p.code, p.name,
		       sp.code, sp.name
		FROM sub_portfolios sp
		JOIN portfolios p ON p.id = sp.portfolio_id
		JOIN tenants t ON t.id = p.tenant_id
		WHERE sp.id = $1`, subPortfolioID,
	).Scan(
		&scope.TenantID, &scope.TenantCode, &scope.TenantName,
		&scope.PortfolioID, &scope.PortfolioCode, &scope.PortfolioName,
		&scope.SubPortfolioCode, &scope.SubPortfolioName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Scope{}, configErrorf("unknown sub-portfolio %d", subPortfolioID)
	}
	if err != nil {
		return Scope{}, storageError("lookup scope", err)
	}
	return scope, nil
}
