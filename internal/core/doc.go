// Package core provides the dynamic schema and consolidation engine for
// provider portfolio ingestion.
//
// This package contains all domain logic independent of any transport layer.
// It can be used by web handlers, CLI tools, or tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Header Catalog: per sub-portfolio and load cycle, a persisted set of
//     canonical header definitions with aliases and an ignored-column set.
//     Incoming file columns are resolved against it via [Catalog.Resolve].
//   - Schema Manager: provisions and evolves the physical provider tables
//     whose column set is derived from the catalog at runtime.
//   - Row Ingestor: coerces raw row values to their declared semantic type
//     and loads them into the provider table, collecting per-row errors
//     without aborting the batch.
//   - Consolidation: re-maps provider rows to canonical customer fields,
//     batch-upserts the tenant's customer store, and replaces each
//     customer's contact-method rows in one delete/insert pass.
//   - Period Archiver: copies a provider table into the historical schema
//     before a new ingestion period overwrites it.
//
// # Error Handling
//
// Operation-level failures (unknown scope, duplicate alias, schema guard,
// bad format override, storage fault) abort the whole call and roll back.
// Row-level failures never do: they are accumulated as [RowError] values in
// the operation result alongside the partial success counts, and long lists
// are capped for reporting.
//
// # Change History
//
// Every catalog mutation (alias added or removed, header created, column
// ignored or unignored) appends an entry to the catalog history inside the
// same transaction as the mutation itself.
package core
