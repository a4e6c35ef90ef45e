package core

import (
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// CoerceNumber Tests
// ----------------------------------------------------------------------------

func TestCoerceNumber(t *testing.T) {
	tests := []struct {
		name      string
		input     any
		wantErr   bool
		wantNull  bool
		wantValue string
	}{
		{
			name:      "plain integer",
			input:     "123",
			wantValue: "123",
		},
		{
			name:      "decimal",
			input:     "123.45",
			wantValue: "123.45",
		},
		{
			name:      "negative",
			input:     "-456.7",
			wantValue: "-456.7",
		},
		{
			name:      "thousands separators",
			input:     "1,234,567.89",
			wantValue: "1234567.89",
		},
		{
			name:      "dollar sign",
			input:     "$1,234.56",
			wantValue: "1234.56",
		},
		{
			name:      "sol prefix",
			input:     "S/ 850.00",
			wantValue: "850.00",
		},
		{
			name:      "accounting negative",
			input:     "(123.45)",
			wantValue: "-123.45",
		},
		{
			name:     "blank is null",
			input:    "   ",
			wantNull: true,
		},
		{
			name:     "nil is null",
			input:    nil,
			wantNull: true,
		},
		{
			name:    "letters fail",
			input:   "abc",
			wantErr: true,
		},
		{
			name:    "mixed fails",
			input:   "12a4",
			wantErr: true,
		},
		{
			name:      "float64 from reader",
			input:     float64(42.5),
			wantValue: "42.5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CoerceNumber(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CoerceNumber(%v) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("CoerceNumber(%v) unexpected error: %v", tt.input, err)
			}
			if tt.wantNull {
				if got.Valid {
					t.Errorf("CoerceNumber(%v) = %v, want NULL", tt.input, got)
				}
				return
			}
			if !got.Valid {
				t.Fatalf("CoerceNumber(%v) returned NULL, want %s", tt.input, tt.wantValue)
			}
			val, err := got.Value()
			if err != nil {
				t.Fatalf("Value() error: %v", err)
			}
			if val.(string) != tt.wantValue {
				t.Errorf("CoerceNumber(%v) = %v, want %s", tt.input, val, tt.wantValue)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// coerceWholeNumber Tests
// ----------------------------------------------------------------------------

func TestCoerceWholeNumber(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		wantErr  bool
		wantNull bool
		want     int64
	}{
		{
			name:  "plain integer",
			input: "12",
			want:  12,
		},
		{
			name:  "zero fraction normalized",
			input: "12.0",
			want:  12,
		},
		{
			name:  "long zero fraction",
			input: "45.000",
			want:  45,
		},
		{
			name:  "negative integer",
			input: "-3",
			want:  -3,
		},
		{
			name:  "thousands separators",
			input: "1,200",
			want:  1200,
		},
		{
			name:    "fractional rejected",
			input:   "12.5",
			wantErr: true,
		},
		{
			name:    "small fraction rejected",
			input:   "12.001",
			wantErr: true,
		},
		{
			name:     "blank is null",
			input:    "   ",
			wantNull: true,
		},
		{
			name:    "letters fail",
			input:   "abc",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceWholeNumber(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("coerceWholeNumber(%v) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("coerceWholeNumber(%v) unexpected error: %v", tt.input, err)
			}
			if tt.wantNull {
				if got.Valid {
					t.Errorf("coerceWholeNumber(%v) = %v, want NULL", tt.input, got)
				}
				return
			}
			if !got.Valid {
				t.Fatalf("coerceWholeNumber(%v) returned NULL, want %d", tt.input, tt.want)
			}
			if got.Int.Int64() != tt.want || got.Exp != 0 {
				t.Errorf("coerceWholeNumber(%v) = %v exp %d, want integral %d", tt.input, got.Int, got.Exp, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// CoerceDate Tests
// ----------------------------------------------------------------------------

func TestCoerceDate(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		pattern string
		wantErr bool
		want    string // yyyy-mm-dd, empty for NULL
	}{
		{
			name:    "pattern exact",
			input:   "25/12/2023",
			pattern: "dd/MM/yyyy",
			want:    "2023-12-25",
		},
		{
			name:    "pattern tolerates single digits",
			input:   "5/3/2023",
			pattern: "dd/MM/yyyy",
			want:    "2023-03-05",
		},
		{
			name:    "dashed pattern",
			input:   "05-03-2023",
			pattern: "dd-MM-yyyy",
			want:    "2023-03-05",
		},
		{
			name:  "fallback iso",
			input: "2023-03-05",
			want:  "2023-03-05",
		},
		{
			name:  "fallback day first",
			input: "5/3/2023",
			want:  "2023-03-05",
		},
		{
			name:  "typed time passes through",
			input: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			want:  "2024-07-01",
		},
		{
			name:  "blank is null",
			input: "",
			want:  "",
		},
		{
			name:    "garbage fails",
			input:   "not a date",
			pattern: "dd/MM/yyyy",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CoerceDate(tt.input, tt.pattern)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CoerceDate(%v, %q) expected error", tt.input, tt.pattern)
				}
				return
			}
			if err != nil {
				t.Fatalf("CoerceDate(%v, %q) unexpected error: %v", tt.input, tt.pattern, err)
			}
			if tt.want == "" {
				if got.Valid {
					t.Errorf("CoerceDate(%v) = %v, want NULL", tt.input, got.Time)
				}
				return
			}
			if !got.Valid {
				t.Fatalf("CoerceDate(%v, %q) returned NULL, want %s", tt.input, tt.pattern, tt.want)
			}
			if s := got.Time.Format("2006-01-02"); s != tt.want {
				t.Errorf("CoerceDate(%v, %q) = %s, want %s", tt.input, tt.pattern, s, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// patternLayouts Tests
// ----------------------------------------------------------------------------

func TestPatternLayouts(t *testing.T) {
	tests := []struct {
		pattern string
		want    []string
	}{
		{"dd/MM/yyyy", []string{"2/1/2006", "02/01/2006"}},
		{"yyyy-MM-dd", []string{"2006-1-2", "2006-01-02"}},
		{"dd/MM/yyyy HH:mm:ss", []string{"2/1/2006 15:4:5", "02/01/2006 15:04:05"}},
		{"yyyy", []string{"2006"}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got := patternLayouts(tt.pattern)
			if len(got) != len(tt.want) {
				t.Fatalf("patternLayouts(%q) = %v, want %v", tt.pattern, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("patternLayouts(%q)[%d] = %q, want %q", tt.pattern, i, got[i], tt.want[i])
				}
			}
		})
	}
}
