package core

import (
	"testing"
)

// ----------------------------------------------------------------------------
// ColumnType Tests
// ----------------------------------------------------------------------------

func TestColumnType(t *testing.T) {
	tests := []struct {
		name     string
		semantic SemanticType
		override string
		want     string
		wantErr  bool
	}{
		// Text
		{
			name:     "text default",
			semantic: TypeText,
			want:     "VARCHAR(255)",
		},
		{
			name:     "text varchar override",
			semantic: TypeText,
			override: "VARCHAR(50)",
			want:     "VARCHAR(50)",
		},
		{
			name:     "text long flavors map to TEXT",
			semantic: TypeText,
			override: "MEDIUMTEXT",
			want:     "TEXT",
		},
		{
			name:     "text override case-insensitive",
			semantic: TypeText,
			override: "longtext",
			want:     "TEXT",
		},
		{
			name:     "text rejects numeric override",
			semantic: TypeText,
			override: "DECIMAL(10,2)",
			wantErr:  true,
		},

		// Number
		{
			name:     "number default",
			semantic: TypeNumber,
			want:     "DECIMAL(18,2)",
		},
		{
			name:     "number decimal override",
			semantic: TypeNumber,
			override: "DECIMAL(10,4)",
			want:     "DECIMAL(10,4)",
		},
		{
			name:     "number tinyint maps to smallint",
			semantic: TypeNumber,
			override: "TINYINT",
			want:     "SMALLINT",
		},
		{
			name:     "number int",
			semantic: TypeNumber,
			override: "INT",
			want:     "INTEGER",
		},
		{
			name:     "number bigint",
			semantic: TypeNumber,
			override: "BIGINT",
			want:     "BIGINT",
		},
		{
			name:     "number double maps to double precision",
			semantic: TypeNumber,
			override: "DOUBLE",
			want:     "DOUBLE PRECISION",
		},
		{
			name:     "number rejects varchar override",
			semantic: TypeNumber,
			override: "VARCHAR(50)",
			wantErr:  true,
		},

		// Date
		{
			name:     "date default",
			semantic: TypeDate,
			want:     "DATE",
		},
		{
			name:     "date datetime maps to timestamp",
			semantic: TypeDate,
			override: "DATETIME",
			want:     "TIMESTAMP",
		},
		{
			name:     "date timestamp with precision",
			semantic: TypeDate,
			override: "TIMESTAMP(3)",
			want:     "TIMESTAMP(3)",
		},
		{
			name:     "date pattern keeps DATE",
			semantic: TypeDate,
			override: "dd/MM/yyyy",
			want:     "DATE",
		},
		{
			name:     "dashed pattern keeps DATE",
			semantic: TypeDate,
			override: "yyyy-MM-dd HH:mm",
			want:     "DATE",
		},
		{
			name:     "date rejects other overrides",
			semantic: TypeDate,
			override: "VARCHAR(20)",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ColumnType(tt.semantic, tt.override)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ColumnType(%s, %q) = %q, want FormatOverrideError", tt.semantic, tt.override, got)
				}
				if !IsFormatOverrideError(err) {
					t.Errorf("ColumnType(%s, %q) error = %v, want FormatOverrideError", tt.semantic, tt.override, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ColumnType(%s, %q) unexpected error: %v", tt.semantic, tt.override, err)
			}
			if got != tt.want {
				t.Errorf("ColumnType(%s, %q) = %q, want %q", tt.semantic, tt.override, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// isDatePattern Tests
// ----------------------------------------------------------------------------

func TestIsDatePattern(t *testing.T) {
	tests := []struct {
		override string
		want     bool
	}{
		{"dd/MM/yyyy", true},
		{"yyyy-MM-dd", true},
		{"HH:mm", true},
		{"DATE", false},
		{"DATETIME", false},
		{"TIMESTAMP(6)", false},
		{"", false},
		{"VARCHAR(20)", false},
	}

	for _, tt := range tests {
		t.Run(tt.override, func(t *testing.T) {
			if got := isDatePattern(tt.override); got != tt.want {
				t.Errorf("isDatePattern(%q) = %v, want %v", tt.override, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// TableName Tests
// ----------------------------------------------------------------------------

func TestTableName(t *testing.T) {
	tests := []struct {
		name  string
		scope Scope
		want  string
	}{
		{
			name: "initial cycle carries prefix",
			scope: Scope{
				TenantCode:       "BCO1",
				PortfolioCode:    "CONSUMO",
				SubPortfolioCode: "LIMA",
				Cycle:            CycleInitial,
			},
			want: "ini_bco1_consumo_lima",
		},
		{
			name: "update cycle has no prefix",
			scope: Scope{
				TenantCode:       "BCO1",
				PortfolioCode:    "CONSUMO",
				SubPortfolioCode: "LIMA",
				Cycle:            CycleUpdate,
			},
			want: "bco1_consumo_lima",
		},
		{
			name: "codes are sanitized",
			scope: Scope{
				TenantCode:       "Banco Ñuñoa",
				PortfolioCode:    "TC-2024",
				SubPortfolioCode: "zona sur",
				Cycle:            CycleUpdate,
			},
			want: "banco_nunoa_tc_2024_zona_sur",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TableName(tt.scope); got != tt.want {
				t.Errorf("TableName() = %q, want %q", got, tt.want)
			}
		})
	}
}
