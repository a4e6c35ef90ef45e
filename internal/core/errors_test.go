package core

import (
	"fmt"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	configErr := fmt.Errorf("load: %w", configErrorf("unknown sub-portfolio %d", 7))
	if !IsConfigurationError(configErr) {
		t.Error("wrapped ConfigurationError not detected")
	}
	if IsSchemaGuardError(configErr) {
		t.Error("ConfigurationError misclassified as SchemaGuardError")
	}

	guardErr := fmt.Errorf("alter: %w", &SchemaGuardError{Table: "bco1_consumo_lima", Rows: 12})
	if !IsSchemaGuardError(guardErr) {
		t.Error("wrapped SchemaGuardError not detected")
	}

	overrideErr := &FormatOverrideError{Type: TypeNumber, Override: "VARCHAR(50)"}
	if !IsFormatOverrideError(fmt.Errorf("create: %w", overrideErr)) {
		t.Error("wrapped FormatOverrideError not detected")
	}
}

func TestCapErrors(t *testing.T) {
	errs := make([]RowError, 120)
	for i := range errs {
		errs[i] = RowError{Line: i + 1, Message: "bad"}
	}

	capped, total := capErrors(errs, 50)
	if len(capped) != 50 {
		t.Errorf("capped to %d entries, want 50", len(capped))
	}
	if total != 120 {
		t.Errorf("total = %d, want 120", total)
	}

	few := errs[:10]
	capped, total = capErrors(few, 50)
	if len(capped) != 10 || total != 10 {
		t.Errorf("short lists must pass through: len=%d total=%d", len(capped), total)
	}
}
