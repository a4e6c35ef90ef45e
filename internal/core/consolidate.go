package core

// consolidate.go merges provider-table rows into the tenant's canonical
// customer store. Existing customers are loaded once into an in-memory map
// keyed by identification code, source rows are merged in (last write wins
// for in-batch duplicates), customers are batch-upserted on the identity
// key, and each affected customer's contact-method rows are fully replaced
// in a chunked delete/insert pass.

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Canonical headers consolidation understands beyond the identity column.
const (
	headerExternalCode = "codigo_cliente"
	headerFullName     = "nombre"
	headerBirthDate    = "fecha_nacimiento"
	headerAddress      = "direccion"
	headerDistrict     = "distrito"
	headerProvince     = "provincia"
	headerDepartment   = "departamento"
	headerDebtAmount   = "deuda"
	headerOverdueDays  = "dias_atraso"
	headerCurrency     = "moneda"
)

// CustomerRecord is one canonical customer row under construction during a
// sync pass. Contacts carries the full replacement set for the fan-out.
type CustomerRecord struct {
	ID                 int64
	IdentificationCode string
	ExternalCode       pgtype.Text
	FullName           pgtype.Text
	BirthDate          pgtype.Date
	Address            pgtype.Text
	District           pgtype.Text
	Province           pgtype.Text
	Department         pgtype.Text
	DebtAmount         pgtype.Numeric
	OverdueDays        pgtype.Numeric
	Currency           pgtype.Text
	Contacts           map[ContactSubtype]string

	existing bool
	touched  bool
}

// SyncRequest describes one consolidation pass. Rows are the provider-table
// rows keyed by physical column name; Keys optionally restricts the pass to
// specific identification codes.
type SyncRequest struct {
	Scope          Scope
	IdentityColumn string
	Rows           []map[string]any
	Keys           []string
}

// Sync consolidates provider rows into the canonical customer store.
// A non-empty key set runs a selective pass unless it exceeds the
// configured threshold, in which case the full scope is processed: a very
// large filter predicate costs more than scanning everything.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (SyncResult, error) {
	start := time.Now()
	result := SyncResult{Scope: SyncFull}

	if req.IdentityColumn == "" {
		return result, configErrorf("identity column is required")
	}

	cat, err := s.LoadCatalog(ctx, req.Scope.SubPortfolioID, req.Scope.Cycle)
	if err != nil {
		return result, err
	}
	if _, ok := cat.HeaderByName(req.IdentityColumn); !ok {
		return result, configErrorf("identity column %q is not a header of this catalog", req.IdentityColumn)
	}

	rows := req.Rows
	if selective(req.Keys, s.settings.SelectiveSyncThreshold) {
		result.Scope = SyncSelective
		rows = filterByIdentity(rows, cat, req.IdentityColumn, req.Keys)
	}
	result.RowsScanned = len(rows)

	// Load the tenant's existing customers once; one map lookup per source
	// row instead of one existence query per row.
	records, err := s.loadCustomers(ctx, req.Scope.TenantID)
	if err != nil {
		return result, err
	}

	var rowErrors []RowError
	for i, raw := range rows {
		line := i + 1
		canonical := remapColumns(cat, raw)

		identity := strings.TrimSpace(rawString(canonical[req.IdentityColumn]))
		if identity == "" {
			rowErrors = append(rowErrors, RowError{
				Line:    line,
				Field:   req.IdentityColumn,
				Message: "identity key is missing or blank",
			})
			continue
		}

		rec, ok := records[identity]
		if !ok {
			rec = &CustomerRecord{IdentificationCode: identity}
			records[identity] = rec
		}
		if errs := rec.merge(canonical, line); len(errs) > 0 {
			rowErrors = append(rowErrors, errs...)
		}
		rec.touched = true
	}

	touched := make([]*CustomerRecord, 0, len(records))
	for _, rec := range records {
		if rec.touched {
			touched = append(touched, rec)
		}
	}

	if len(touched) > 0 {
		if err := s.persistCustomers(ctx, req.Scope, touched); err != nil {
			return result, err
		}
	}

	for _, rec := range touched {
		if rec.existing {
			result.Updated++
		} else {
			result.Created++
		}
	}
	result.Errors, result.TotalErrors = capErrors(rowErrors, s.settings.MaxReportedErrors)
	result.Duration = time.Since(start)

	s.logger.Info("consolidation finished",
		"tenant", req.Scope.TenantID,
		"sub_portfolio", req.Scope.SubPortfolioID,
		"cycle", req.Scope.Cycle,
		"scope", result.Scope,
		"rows_scanned", result.RowsScanned,
		"created", result.Created,
		"updated", result.Updated,
		"row_errors", result.TotalErrors,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// SyncTable reads every row of the scope's provider table and consolidates
// it. Keys, when present, restrict the pass as in Sync.
func (s *Service) SyncTable(ctx context.Context, scope Scope, identityColumn string, keys []string) (SyncResult, error) {
	rows, err := s.readProviderRows(ctx, TableName(scope))
	if err != nil {
		return SyncResult{Scope: SyncFull}, err
	}
	return s.Sync(ctx, SyncRequest{
		Scope:          scope,
		IdentityColumn: identityColumn,
		Rows:           rows,
		Keys:           keys,
	})
}

// selective reports whether a key set should restrict the pass.
func selective(keys []string, threshold int) bool {
	return len(keys) > 0 && len(keys) <= threshold
}

// filterByIdentity keeps only rows whose identity value is in the key set.
func filterByIdentity(rows []map[string]any, cat *Catalog, identityColumn string, keys []string) []map[string]any {
	keySet := make(map[string]bool, len(keys))
	for _, k := range keys {
		keySet[strings.TrimSpace(k)] = true
	}

	var kept []map[string]any
	for _, raw := range rows {
		canonical := remapColumns(cat, raw)
		if keySet[strings.TrimSpace(rawString(canonical[identityColumn]))] {
			kept = append(kept, raw)
		}
	}
	return kept
}

// remapColumns converts a provider-table row keyed by physical column into
// a row keyed by canonical header name.
func remapColumns(cat *Catalog, raw map[string]any) RowMap {
	out := make(RowMap, len(raw))
	for col, value := range raw {
		if h, ok := cat.headerForColumn(col); ok {
			out[h.Name] = value
		}
	}
	return out
}

// merge folds a canonical source row into the record. Non-blank values
// overwrite; blanks leave the field alone. Contact slots are overwritten
// per subtype so the latest row defines the replacement set.
func (r *CustomerRecord) merge(row RowMap, line int) []RowError {
	var errs []RowError

	setText := func(header string, dst *pgtype.Text) {
		if v := strings.TrimSpace(rawString(row[header])); v != "" {
			*dst = pgtype.Text{String: v, Valid: true}
		}
	}

	setText(headerExternalCode, &r.ExternalCode)
	setText(headerFullName, &r.FullName)
	setText(headerAddress, &r.Address)
	setText(headerDistrict, &r.District)
	setText(headerProvince, &r.Province)
	setText(headerDepartment, &r.Department)
	setText(headerCurrency, &r.Currency)

	if raw, ok := row[headerBirthDate]; ok && strings.TrimSpace(rawString(raw)) != "" {
		d, err := CoerceDate(raw, "")
		if err != nil {
			errs = append(errs, RowError{Line: line, Field: headerBirthDate, Value: rawString(raw), Message: err.Error()})
		} else {
			r.BirthDate = d
		}
	}
	if raw, ok := row[headerDebtAmount]; ok && strings.TrimSpace(rawString(raw)) != "" {
		n, err := CoerceNumber(raw)
		if err != nil {
			errs = append(errs, RowError{Line: line, Field: headerDebtAmount, Value: rawString(raw), Message: err.Error()})
		} else {
			r.DebtAmount = n
		}
	}
	// Overdue days land in an integer column; a fractional source value is
	// a row error here, not a batch-wide upsert failure later.
	if raw, ok := row[headerOverdueDays]; ok && strings.TrimSpace(rawString(raw)) != "" {
		n, err := coerceWholeNumber(raw)
		if err != nil {
			errs = append(errs, RowError{Line: line, Field: headerOverdueDays, Value: rawString(raw), Message: err.Error()})
		} else {
			r.OverdueDays = n
		}
	}

	if r.Contacts == nil {
		r.Contacts = make(map[ContactSubtype]string, len(ContactSubtypes))
	}
	for _, subtype := range ContactSubtypes {
		if v := strings.TrimSpace(rawString(row[contactSourceHeaders[subtype]])); v != "" {
			r.Contacts[subtype] = v
		}
	}

	return errs
}

// loadCustomers returns the tenant's customer store keyed by
// identification code.
func (s *Service) loadCustomers(ctx context.Context, tenantID int64) (map[string]*CustomerRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, identification_code, external_code, full_name, birth_date,
		       address, district, province, department,
		       debt_amount, overdue_days, currency
		FROM customers
		WHERE tenant_id = $1 AND deleted_at IS NULL`, tenantID)
	if err != nil {
		return nil, storageError("load customers", err)
	}
	defer rows.Close()

	records := make(map[string]*CustomerRecord)
	for rows.Next() {
		rec := &CustomerRecord{existing: true}
		if err := rows.Scan(
			&rec.ID, &rec.IdentificationCode, &rec.ExternalCode, &rec.FullName,
			&rec.BirthDate, &rec.Address, &rec.District, &rec.Province,
			&rec.Department, &rec.DebtAmount, &rec.OverdueDays, &rec.Currency,
		); err != nil {
			return nil, storageError("scan customer", err)
		}
		records[rec.IdentificationCode] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("load customers", err)
	}
	return records, nil
}

// persistCustomers writes the touched records in one transaction: chunked
// multi-row upsert on (tenant_id, identification_code), chunked id
// resolution, then the contact fan-out.
func (s *Service) persistCustomers(ctx context.Context, scope Scope, records []*CustomerRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageError("begin sync", err)
	}
	defer tx.Rollback(ctx)

	for _, chunk := range chunkRecords(records, s.settings.InsertBatchSize) {
		if err := upsertCustomerChunk(ctx, tx, scope, chunk); err != nil {
			return err
		}
	}

	ids, err := resolveCustomerIDs(ctx, tx, scope.TenantID, records, s.settings.LookupBatchSize)
	if err != nil {
		return err
	}
	for _, rec := range records {
		rec.ID = ids[rec.IdentificationCode]
	}

	if err := s.replaceContacts(ctx, tx, records); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storageError("commit sync", err)
	}
	return nil
}

// customerColumns is the column order used by the upsert statement.
var customerColumns = []string{
	"tenant_id", "identification_code", "external_code",
	"tenant_name", "portfolio_id", "portfolio_name",
	"sub_portfolio_id", "sub_portfolio_name",
	"full_name", "birth_date", "address", "district", "province", "department",
	"debt_amount", "overdue_days", "currency",
}

// upsertCustomerChunk issues one multi-row INSERT ... ON CONFLICT DO UPDATE
// for a chunk of records. Insert-or-update on the identity key replaces a
// per-row existence check.
func upsertCustomerChunk(ctx context.Context, tx DBTX, scope Scope, records []*CustomerRecord) error {
	width := len(customerColumns)
	values := make([]string, len(records))
	args := make([]any, 0, len(records)*width)

	for i, rec := range records {
		placeholders := make([]string, width)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", i*width+j+1)
		}
		values[i] = "(" + strings.Join(placeholders, ", ") + ")"
		args = append(args,
			scope.TenantID, rec.IdentificationCode, rec.ExternalCode,
			scope.TenantName, scope.PortfolioID, scope.PortfolioName,
			scope.SubPortfolioID, scope.SubPortfolioName,
			rec.FullName, rec.BirthDate, rec.Address, rec.District,
			rec.Province, rec.Department,
			rec.DebtAmount, rec.OverdueDays, rec.Currency,
		)
	}

	sql := fmt.Sprintf(`
		INSERT INTO customers (%s) VALUES %s
		ON CONFLICT (tenant_id, identification_code) DO UPDATE SET
			external_code = EXCLUDED.external_code,
			tenant_name = EXCLUDED.tenant_name,
			portfolio_id = EXCLUDED.portfolio_id,
			portfolio_name = EXCLUDED.portfolio_name,
			sub_portfolio_id = EXCLUDED.sub_portfolio_id,
			sub_portfolio_name = EXCLUDED.sub_portfolio_name,
			full_name = EXCLUDED.full_name,
			birth_date = EXCLUDED.birth_date,
			address = EXCLUDED.address,
			district = EXCLUDED.district,
			province = EXCLUDED.province,
			department = EXCLUDED.department,
			debt_amount = EXCLUDED.debt_amount,
			overdue_days = EXCLUDED.overdue_days,
			currency = EXCLUDED.currency,
			updated_at = now()`,
		strings.Join(customerColumns, ", "), strings.Join(values, ", "))

	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return storageError("upsert customers", err)
	}
	return nil
}

// resolveCustomerIDs maps identification codes to their database-assigned
// ids, in chunks that bound statement size.
func resolveCustomerIDs(ctx context.Context, tx DBTX, tenantID int64, records []*CustomerRecord, chunkSize int) (map[string]int64, error) {
	codes := make([]string, len(records))
	for i, rec := range records {
		codes[i] = rec.IdentificationCode
	}

	ids := make(map[string]int64, len(codes))
	for _, chunk := range chunkStrings(codes, chunkSize) {
		rows, err := tx.Query(ctx, `
			SELECT identification_code, id FROM customers
			WHERE tenant_id = $1 AND identification_code = ANY($2)`,
			tenantID, chunk)
		if err != nil {
			return nil, storageError("resolve customer ids", err)
		}
		for rows.Next() {
			var code string
			var id int64
			if err := rows.Scan(&code, &id); err != nil {
				rows.Close()
				return nil, storageError("scan customer id", err)
			}
			ids[code] = id
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, storageError("resolve customer ids", err)
		}
		rows.Close()
	}
	return ids, nil
}

// replaceContacts deletes every contact row of the affected customers and
// re-inserts the current set. Full replacement avoids partial-update
// ambiguity at the cost of rewriting unchanged rows.
func (s *Service) replaceContacts(ctx context.Context, tx DBTX, records []*CustomerRecord) error {
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		if rec.ID > 0 {
			ids = append(ids, rec.ID)
		}
	}

	for _, chunk := range chunkInt64s(ids, s.settings.LookupBatchSize) {
		if _, err := tx.Exec(ctx,
			"DELETE FROM contact_methods WHERE customer_id = ANY($1)", chunk); err != nil {
			return storageError("delete contacts", err)
		}
	}

	type contactRow struct {
		customerID int64
		subtype    ContactSubtype
		value      string
	}
	var inserts []contactRow
	for _, rec := range records {
		if rec.ID == 0 {
			continue
		}
		for _, subtype := range ContactSubtypes {
			if v := rec.Contacts[subtype]; v != "" {
				inserts = append(inserts, contactRow{rec.ID, subtype, v})
			}
		}
	}

	for start := 0; start < len(inserts); start += s.settings.InsertBatchSize {
		end := start + s.settings.InsertBatchSize
		if end > len(inserts) {
			end = len(inserts)
		}
		chunk := inserts[start:end]

		values := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*4)
		for i, c := range chunk {
			values[i] = fmt.Sprintf("($%d, $%d, $%d, $%d)", i*4+1, i*4+2, i*4+3, i*4+4)
			args = append(args, c.customerID, string(c.subtype), c.subtype.Category(), c.value)
		}
		sql := "INSERT INTO contact_methods (customer_id, subtype, category, value) VALUES " +
			strings.Join(values, ", ")
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return storageError("insert contacts", err)
		}
	}
	return nil
}

// chunkRecords splits records into chunks of at most size elements.
func chunkRecords(records []*CustomerRecord, size int) [][]*CustomerRecord {
	if size <= 0 || len(records) <= size {
		if len(records) == 0 {
			return nil
		}
		return [][]*CustomerRecord{records}
	}
	chunks := make([][]*CustomerRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// readProviderRows reads every row of a provider table as generic maps
// keyed by physical column name.
func (s *Service) readProviderRows(ctx context.Context, table string) ([]map[string]any, error) {
	rows, err := s.pool.Query(ctx, "SELECT * FROM "+quoteIdentifier(table))
	if err != nil {
		return nil, storageError("read provider table", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, storageError("read provider row", err)
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[f.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("read provider table", err)
	}
	return out, nil
}
