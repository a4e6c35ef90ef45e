package core

import (
	"strings"
	"testing"
)

func consolidationCatalog() *Catalog {
	headers := []HeaderDefinition{
		{ID: 1, Name: "documento", Type: TypeText, Required: true},
		{ID: 2, Name: "nombre", Type: TypeText},
		{ID: 3, Name: "deuda", Type: TypeNumber},
		{ID: 4, Name: "telefono_principal", Type: TypeText},
		{ID: 5, Name: "email", Type: TypeText},
	}
	aliases := make([]HeaderAlias, len(headers))
	for i, h := range headers {
		aliases[i] = HeaderAlias{ID: int64(i + 1), HeaderID: h.ID, Alias: h.Name, Principal: true}
	}
	return newTestCatalog(headers, aliases, nil)
}

// ----------------------------------------------------------------------------
// merge Tests
// ----------------------------------------------------------------------------

func TestMergeLastWriteWins(t *testing.T) {
	rec := &CustomerRecord{IdentificationCode: "A1"}

	rec.merge(RowMap{
		"nombre":             "Ana Quispe",
		"telefono_principal": "999111222",
	}, 1)
	rec.merge(RowMap{
		"nombre":             "Ana Quispe Mamani",
		"telefono_principal": "999333444",
	}, 2)

	if rec.FullName.String != "Ana Quispe Mamani" {
		t.Errorf("FullName = %q, want the second row's value", rec.FullName.String)
	}
	if rec.Contacts[ContactPrimaryPhone] != "999333444" {
		t.Errorf("primary phone = %q, want the second row's value", rec.Contacts[ContactPrimaryPhone])
	}
}

func TestMergeBlankDoesNotOverwrite(t *testing.T) {
	rec := &CustomerRecord{IdentificationCode: "A1"}

	rec.merge(RowMap{"nombre": "Ana Quispe", "direccion": "Av. Brasil 100"}, 1)
	rec.merge(RowMap{"nombre": "", "direccion": "   "}, 2)

	if rec.FullName.String != "Ana Quispe" {
		t.Errorf("FullName = %q, blank must not overwrite", rec.FullName.String)
	}
	if rec.Address.String != "Av. Brasil 100" {
		t.Errorf("Address = %q, blank must not overwrite", rec.Address.String)
	}
}

func TestMergeBadValuesAreRowErrors(t *testing.T) {
	rec := &CustomerRecord{IdentificationCode: "A1"}

	errs := rec.merge(RowMap{
		"nombre":           "Ana",
		"deuda":            "not a number",
		"fecha_nacimiento": "never",
	}, 3)

	if len(errs) != 2 {
		t.Fatalf("merge returned %d errors, want 2: %v", len(errs), errs)
	}
	for _, e := range errs {
		if e.Line != 3 {
			t.Errorf("error line = %d, want 3", e.Line)
		}
	}
	if rec.FullName.String != "Ana" {
		t.Errorf("good fields must still merge, FullName = %q", rec.FullName.String)
	}
}

func TestMergeOverdueDaysMustBeWhole(t *testing.T) {
	rec := &CustomerRecord{IdentificationCode: "A1"}

	errs := rec.merge(RowMap{"nombre": "Ana", "dias_atraso": "12.5"}, 4)
	if len(errs) != 1 {
		t.Fatalf("merge returned %d errors, want 1: %v", len(errs), errs)
	}
	if errs[0].Field != "dias_atraso" {
		t.Errorf("error field = %q, want dias_atraso", errs[0].Field)
	}
	if rec.OverdueDays.Valid {
		t.Error("fractional overdue days must not be stored")
	}
	if rec.FullName.String != "Ana" {
		t.Errorf("good fields must still merge, FullName = %q", rec.FullName.String)
	}

	// A zero fractional part is normalized, not rejected.
	if errs := rec.merge(RowMap{"dias_atraso": "12.0"}, 5); len(errs) != 0 {
		t.Fatalf("merge of 12.0 returned errors: %v", errs)
	}
	if !rec.OverdueDays.Valid || rec.OverdueDays.Int.Int64() != 12 || rec.OverdueDays.Exp != 0 {
		t.Errorf("OverdueDays = %+v, want integral 12", rec.OverdueDays)
	}
}

func TestMergeContactSet(t *testing.T) {
	rec := &CustomerRecord{IdentificationCode: "A1"}

	rec.merge(RowMap{
		"telefono_principal":   "999111222",
		"telefono_laboral":     " 014567890 ",
		"email":                "ana@example.com",
		"telefono_referencia1": "",
	}, 1)

	if len(rec.Contacts) != 3 {
		t.Fatalf("Contacts = %v, want exactly the 3 non-empty subtypes", rec.Contacts)
	}
	if rec.Contacts[ContactWorkPhone] != "014567890" {
		t.Errorf("work phone = %q, want trimmed value", rec.Contacts[ContactWorkPhone])
	}
	if ContactEmail.Category() != "email" {
		t.Errorf("email category = %q, want email", ContactEmail.Category())
	}
	if ContactWorkPhone.Category() != "phone" {
		t.Errorf("work phone category = %q, want phone", ContactWorkPhone.Category())
	}
}

// ----------------------------------------------------------------------------
// Selective Sync Tests
// ----------------------------------------------------------------------------

func TestSelectiveThreshold(t *testing.T) {
	threshold := 10000

	small := make([]string, 10)
	if !selective(small, threshold) {
		t.Error("small key set must run selectively")
	}

	atLimit := make([]string, threshold)
	if !selective(atLimit, threshold) {
		t.Error("key set at the threshold must still run selectively")
	}

	over := make([]string, threshold+1)
	if selective(over, threshold) {
		t.Error("key set above the threshold must fall back to a full pass")
	}

	if selective(nil, threshold) {
		t.Error("empty key set means full scope, not selective")
	}
}

func TestFilterByIdentity(t *testing.T) {
	cat := consolidationCatalog()
	rows := []map[string]any{
		{"documento": "A1", "nombre": "Ana"},
		{"documento": "B2", "nombre": "Bertha"},
		{"documento": "C3", "nombre": "Carlos"},
	}

	kept := filterByIdentity(rows, cat, "documento", []string{"A1", "C3"})

	if len(kept) != 2 {
		t.Fatalf("kept %d rows, want 2", len(kept))
	}
	for _, row := range kept {
		doc := row["documento"].(string)
		if doc != "A1" && doc != "C3" {
			t.Errorf("unexpected row kept: %v", row)
		}
	}
}

// ----------------------------------------------------------------------------
// remapColumns Tests
// ----------------------------------------------------------------------------

func TestRemapColumns(t *testing.T) {
	cat := consolidationCatalog()

	row := map[string]any{
		"documento":  "A1",
		"nombre":     "Ana",
		"id":         int64(10), // bookkeeping columns drop out
		"created_at": "2024-01-01",
	}

	canonical := remapColumns(cat, row)

	if len(canonical) != 2 {
		t.Fatalf("remapColumns = %v, want only catalog columns", canonical)
	}
	if canonical["documento"] != "A1" || canonical["nombre"] != "Ana" {
		t.Errorf("remapColumns = %v", canonical)
	}
}

// ----------------------------------------------------------------------------
// Chunking Tests
// ----------------------------------------------------------------------------

func TestChunkStrings(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		size      int
		wantSizes []int
	}{
		{name: "empty", count: 0, size: 500, wantSizes: nil},
		{name: "under one chunk", count: 3, size: 500, wantSizes: []int{3}},
		{name: "exact multiple", count: 1000, size: 500, wantSizes: []int{500, 500}},
		{name: "remainder", count: 1001, size: 500, wantSizes: []int{500, 500, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := make([]string, tt.count)
			chunks := chunkStrings(keys, tt.size)
			if len(chunks) != len(tt.wantSizes) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tt.wantSizes))
			}
			for i, chunk := range chunks {
				if len(chunk) != tt.wantSizes[i] {
					t.Errorf("chunk %d has %d keys, want %d", i, len(chunk), tt.wantSizes[i])
				}
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Upsert SQL shape
// ----------------------------------------------------------------------------

func TestCustomerColumnsMatchUpsert(t *testing.T) {
	// The upsert binds args positionally; the column list and the argument
	// append order in upsertCustomerChunk must stay in lockstep.
	want := 17
	if len(customerColumns) != want {
		t.Fatalf("customerColumns has %d entries, want %d", len(customerColumns), want)
	}
	joined := strings.Join(customerColumns, ",")
	for _, col := range []string{"tenant_id", "identification_code", "debt_amount", "currency"} {
		if !strings.Contains(joined, col) {
			t.Errorf("customerColumns missing %s", col)
		}
	}
}
