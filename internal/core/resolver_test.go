package core

import (
	"reflect"
	"testing"
)

// newTestCatalog builds an in-memory catalog the way loadCatalog would,
// without a database behind it.
func newTestCatalog(headers []HeaderDefinition, aliases []HeaderAlias, ignored []string) *Catalog {
	cat := &Catalog{
		SubPortfolioID: 7,
		Cycle:          CycleInitial,
		Headers:        headers,
		Aliases:        aliases,
	}
	cat.buildIndex(ignored)
	return cat
}

// ----------------------------------------------------------------------------
// Resolve Tests
// ----------------------------------------------------------------------------

func TestResolveAliasMatch(t *testing.T) {
	cat := newTestCatalog(
		[]HeaderDefinition{
			{ID: 1, Name: "documento", Type: TypeText, Required: true},
		},
		[]HeaderAlias{
			{ID: 1, HeaderID: 1, Alias: "documento", Principal: true},
			{ID: 2, HeaderID: 1, Alias: "DNI"},
		},
		nil,
	)

	result := cat.Resolve([]string{"DNI", "nombre"})

	wantResolved := map[string]string{"DNI": "documento"}
	if !reflect.DeepEqual(result.Resolved, wantResolved) {
		t.Errorf("Resolved = %v, want %v", result.Resolved, wantResolved)
	}
	if !reflect.DeepEqual(result.Unrecognized, []string{"nombre"}) {
		t.Errorf("Unrecognized = %v, want [nombre]", result.Unrecognized)
	}
	if len(result.MissingRequired) != 0 {
		t.Errorf("MissingRequired = %v, want empty", result.MissingRequired)
	}
}

func TestResolveMissingRequired(t *testing.T) {
	cat := newTestCatalog(
		[]HeaderDefinition{
			{ID: 1, Name: "documento", Type: TypeText, Required: true},
			{ID: 2, Name: "nombre", Type: TypeText},
		},
		[]HeaderAlias{
			{ID: 1, HeaderID: 1, Alias: "documento", Principal: true},
			{ID: 2, HeaderID: 2, Alias: "nombre", Principal: true},
		},
		nil,
	)

	result := cat.Resolve([]string{"nombre"})

	if !reflect.DeepEqual(result.MissingRequired, []string{"documento"}) {
		t.Errorf("MissingRequired = %v, want [documento]", result.MissingRequired)
	}
}

func TestResolveIgnoredColumns(t *testing.T) {
	cat := newTestCatalog(
		[]HeaderDefinition{
			{ID: 1, Name: "documento", Type: TypeText},
		},
		[]HeaderAlias{
			{ID: 1, HeaderID: 1, Alias: "documento", Principal: true},
		},
		[]string{"Observaciones"},
	)

	result := cat.Resolve([]string{"documento", "observaciones", "extra"})

	if !reflect.DeepEqual(result.Ignored, []string{"observaciones"}) {
		t.Errorf("Ignored = %v, want [observaciones]", result.Ignored)
	}
	if !reflect.DeepEqual(result.Unrecognized, []string{"extra"}) {
		t.Errorf("Unrecognized = %v, want [extra]", result.Unrecognized)
	}
	if _, ok := result.Resolved["observaciones"]; ok {
		t.Error("ignored column must not appear in Resolved")
	}
}

// Two incoming names normalizing to one alias both resolve; the result map
// is keyed by incoming name so there is no collision.
func TestResolveDuplicateIncoming(t *testing.T) {
	cat := newTestCatalog(
		[]HeaderDefinition{
			{ID: 1, Name: "telefono", Type: TypeText},
		},
		[]HeaderAlias{
			{ID: 1, HeaderID: 1, Alias: "telefono", Principal: true},
		},
		nil,
	)

	result := cat.Resolve([]string{"Teléfono", "TELEFONO"})

	if len(result.Resolved) != 2 {
		t.Fatalf("Resolved = %v, want both spellings resolved", result.Resolved)
	}
	for _, incoming := range []string{"Teléfono", "TELEFONO"} {
		if result.Resolved[incoming] != "telefono" {
			t.Errorf("Resolved[%q] = %q, want telefono", incoming, result.Resolved[incoming])
		}
	}
}

// Resolution is read-only: the same input against the same catalog yields
// the same classification twice.
func TestResolveDeterministic(t *testing.T) {
	cat := newTestCatalog(
		[]HeaderDefinition{
			{ID: 1, Name: "documento", Type: TypeText, Required: true},
			{ID: 2, Name: "deuda", Type: TypeNumber},
		},
		[]HeaderAlias{
			{ID: 1, HeaderID: 1, Alias: "documento", Principal: true},
			{ID: 2, HeaderID: 1, Alias: "nro doc"},
			{ID: 3, HeaderID: 2, Alias: "deuda", Principal: true},
		},
		[]string{"fila"},
	)

	incoming := []string{"Nro Doc", "deuda", "fila", "sorpresa"}
	first := cat.Resolve(incoming)
	second := cat.Resolve(incoming)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Resolve not stable:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

// ----------------------------------------------------------------------------
// RemapRow Tests
// ----------------------------------------------------------------------------

func TestRemapRow(t *testing.T) {
	resolution := ResolutionResult{
		Resolved: map[string]string{
			"DNI":    "documento",
			"Nombre": "nombre",
		},
	}

	raw := map[string]any{
		"DNI":    "12345678",
		"Nombre": "Ana Quispe",
		"Basura": "x",
	}

	got := RemapRow(raw, resolution)

	want := RowMap{"documento": "12345678", "nombre": "Ana Quispe"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RemapRow = %v, want %v", got, want)
	}
}
