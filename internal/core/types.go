package core

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// SemanticType is the declared data type of a canonical header.
type SemanticType string

const (
	TypeText   SemanticType = "text"
	TypeNumber SemanticType = "number"
	TypeDate   SemanticType = "date"
)

// LoadCycle distinguishes the first full load of a period from the
// incremental daily delta loads that follow it.
type LoadCycle string

const (
	CycleInitial LoadCycle = "initial"
	CycleUpdate  LoadCycle = "update"
)

// tablePrefix returns the physical table name prefix for the cycle.
// Only the initial cycle carries one.
func (c LoadCycle) tablePrefix() string {
	if c == CycleInitial {
		return "ini_"
	}
	return ""
}

// ParseLoadCycle converts a string to a LoadCycle, case-insensitively.
func ParseLoadCycle(s string) (LoadCycle, bool) {
	switch LoadCycle(strings.ToLower(s)) {
	case CycleInitial:
		return CycleInitial, true
	case CycleUpdate:
		return CycleUpdate, true
	}
	return "", false
}

// HeaderDefinition is one canonical header of a (sub-portfolio, load cycle)
// catalog. Its sanitized name becomes a physical column of the provider
// table for that scope.
type HeaderDefinition struct {
	ID             int64
	SubPortfolioID int64
	Cycle          LoadCycle
	Name           string // canonical name, unique within the scope
	Type           SemanticType
	FormatOverride string // physical type override or date parse pattern
	DisplayLabel   string
	Required       bool
	// SourceField names another canonical header whose raw value this one
	// is derived from; ExtractPattern is the regexp applied to it.
	SourceField    string
	ExtractPattern string
}

// Column returns the physical column name for the header.
func (h HeaderDefinition) Column() string {
	return SanitizeIdentifier(h.Name)
}

// HeaderAlias is an alternate raw-file column name accepted for a header.
// The principal alias is the header's own canonical name and cannot be
// removed.
type HeaderAlias struct {
	ID        int64
	HeaderID  int64
	Alias     string
	Principal bool
}

// Catalog is the materialized header catalog for one (sub-portfolio, load
// cycle), loaded once per operation and never cached across calls.
type Catalog struct {
	SubPortfolioID int64
	Cycle          LoadCycle
	Headers        []HeaderDefinition
	Aliases        []HeaderAlias

	// lookup maps the normalized form of every canonical name and alias to
	// the index of its header in Headers. ignored holds the normalized
	// ignored-column set.
	lookup  map[string]int
	ignored map[string]string
}

// ResolutionResult classifies the incoming columns of a source file.
type ResolutionResult struct {
	// Resolved maps each recognized incoming column name to the canonical
	// header name it matched.
	Resolved map[string]string `json:"resolved"`
	// Unrecognized lists incoming columns that matched neither an alias nor
	// the ignored set, in input order.
	Unrecognized []string `json:"unrecognized"`
	// Ignored lists incoming columns dropped by the ignored-column set.
	Ignored []string `json:"ignored"`
	// MissingRequired lists required canonical headers that no incoming
	// column resolved to.
	MissingRequired []string `json:"missingRequired"`
}

// RowMap is one source row keyed by canonical header name. Values arrive
// from the file reader as strings, numbers, or times.
type RowMap map[string]any

// RowError is a row-scoped failure. It is accumulated into the operation
// result and never aborts the remaining rows.
type RowError struct {
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// LoadResult reports the outcome of a provider-table load.
type LoadResult struct {
	Table       string     `json:"table"`
	Inserted    int        `json:"inserted"`
	Failed      int        `json:"failed"`
	Errors      []RowError `json:"errors,omitempty"`
	TotalErrors int        `json:"totalErrors"`
	Duration    time.Duration
}

// SyncScope indicates whether a consolidation pass covered the whole
// provider table or a selected key set.
type SyncScope string

const (
	SyncFull      SyncScope = "full"
	SyncSelective SyncScope = "selective"
)

// SyncResult reports the outcome of a consolidation pass.
type SyncResult struct {
	Created     int        `json:"created"`
	Updated     int        `json:"updated"`
	RowsScanned int        `json:"rowsScanned"`
	Scope       SyncScope  `json:"scope"`
	Errors      []RowError `json:"errors,omitempty"`
	TotalErrors int        `json:"totalErrors"`
	Duration    time.Duration
}

// PeriodStatus describes the current-period provider table, used by callers
// to decide whether an archive-then-reset step must precede a new load.
type PeriodStatus struct {
	Table      string     `json:"table"`
	Exists     bool       `json:"exists"`
	RowCount   int64      `json:"rowCount"`
	LastLoadAt *time.Time `json:"lastLoadAt,omitempty"`
}

// Scope identifies the tenant hierarchy slice an operation targets, with
// the denormalized names consolidation copies onto customer records.
// Only ids are stored on child rows; names come from a read-through lookup.
type Scope struct {
	TenantID         int64
	TenantCode       string
	TenantName       string
	PortfolioID      int64
	PortfolioCode    string
	PortfolioName    string
	SubPortfolioID   int64
	SubPortfolioCode string
	SubPortfolioName string
	Cycle            LoadCycle
}

// ContactSubtype enumerates the fixed contact-method slots a customer row
// can carry. Each maps to category "phone" except email.
type ContactSubtype string

const (
	ContactPrimaryPhone    ContactSubtype = "primary_phone"
	ContactSecondaryPhone  ContactSubtype = "secondary_phone"
	ContactWorkPhone       ContactSubtype = "work_phone"
	ContactEmail           ContactSubtype = "email"
	ContactReferencePhone1 ContactSubtype = "reference_phone_1"
	ContactReferencePhone2 ContactSubtype = "reference_phone_2"
)

// ContactSubtypes lists all subtypes in their fixed order.
var ContactSubtypes = []ContactSubtype{
	ContactPrimaryPhone,
	ContactSecondaryPhone,
	ContactWorkPhone,
	ContactEmail,
	ContactReferencePhone1,
	ContactReferencePhone2,
}

// Category returns the contact category for the subtype.
func (s ContactSubtype) Category() string {
	if s == ContactEmail {
		return "email"
	}
	return "phone"
}

// contactSourceHeaders maps each subtype to the canonical header its value
// is read from on a consolidated source row.
var contactSourceHeaders = map[ContactSubtype]string{
	ContactPrimaryPhone:    "telefono_principal",
	ContactSecondaryPhone:  "telefono_secundario",
	ContactWorkPhone:       "telefono_laboral",
	ContactEmail:           "email",
	ContactReferencePhone1: "telefono_referencia1",
	ContactReferencePhone2: "telefono_referencia2",
}

// HistoryAction is the kind of catalog mutation a history entry records.
type HistoryAction string

const (
	ActionAliasAdded      HistoryAction = "alias_added"
	ActionAliasRemoved    HistoryAction = "alias_removed"
	ActionHeaderCreated   HistoryAction = "header_created"
	ActionColumnIgnored   HistoryAction = "column_ignored"
	ActionColumnUnignored HistoryAction = "column_unignored"
)

// HistoryEntry is one append-only catalog change record.
type HistoryEntry struct {
	ID             string        `json:"id"`
	SubPortfolioID int64         `json:"subPortfolioId"`
	Cycle          LoadCycle     `json:"cycle"`
	Action         HistoryAction `json:"action"`
	Actor          string        `json:"actor,omitempty"`
	HeaderName     string        `json:"headerName,omitempty"`
	Alias          string        `json:"alias,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}
