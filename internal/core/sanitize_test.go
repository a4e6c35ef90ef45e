package core

import (
	"regexp"
	"strings"
	"testing"
)

// ----------------------------------------------------------------------------
// SanitizeIdentifier Tests
// ----------------------------------------------------------------------------

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "already clean",
			input: "documento",
			want:  "documento",
		},
		{
			name:  "uppercase folded",
			input: "DOCUMENTO",
			want:  "documento",
		},
		{
			name:  "accented vowels folded",
			input: "Teléfono Móvil",
			want:  "telefono_movil",
		},
		{
			name:  "enye folded",
			input: "Año de Nacimiento",
			want:  "ano_de_nacimiento",
		},
		{
			name:  "symbol run collapses to one underscore",
			input: "deuda  ($ - soles)",
			want:  "deuda_soles",
		},
		{
			name:  "leading and trailing junk trimmed",
			input: "  __nombre__  ",
			want:  "nombre",
		},
		{
			name:  "digits kept",
			input: "telefono 2",
			want:  "telefono_2",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "only symbols",
			input: "***",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeIdentifier(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeIdentifier(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeIdentifierProperties checks the output shape and idempotence
// over a grab bag of raw header texts.
func TestSanitizeIdentifierProperties(t *testing.T) {
	shape := regexp.MustCompile(`^[a-z0-9_]*$`)

	inputs := []string{
		"documento", "DNI", "Teléfono #1", "Año", "  deuda total (S/.)  ",
		"nombre__completo", "ÑANDÚ", "fecha de nacimiento", "e-mail", "__",
		"código de cliente", "días atraso %", "1234", "a", "",
	}

	for _, input := range inputs {
		got := SanitizeIdentifier(input)

		if !shape.MatchString(got) {
			t.Errorf("SanitizeIdentifier(%q) = %q: contains invalid characters", input, got)
		}
		if strings.HasPrefix(got, "_") || strings.HasSuffix(got, "_") {
			t.Errorf("SanitizeIdentifier(%q) = %q: leading or trailing underscore", input, got)
		}
		if strings.Contains(got, "__") {
			t.Errorf("SanitizeIdentifier(%q) = %q: doubled underscore", input, got)
		}
		if again := SanitizeIdentifier(got); again != got {
			t.Errorf("SanitizeIdentifier not idempotent for %q: %q -> %q", input, got, again)
		}
	}
}

// ----------------------------------------------------------------------------
// NormalizeHeader Tests
// ----------------------------------------------------------------------------

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "case and accents folded",
			input: "TELÉFONO",
			want:  "telefono",
		},
		{
			name:  "whitespace stripped",
			input: "fecha de nacimiento",
			want:  "fechadenacimiento",
		},
		{
			name:  "kept symbols survive",
			input: "tel. #1",
			want:  "tel.#1",
		},
		{
			name:  "percent and slash kept",
			input: "deuda % S/",
			want:  "deuda%s/",
		},
		{
			name:  "parens stripped",
			input: "monto (total)",
			want:  "montototal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeHeader(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := NormalizeHeader(got); again != got {
				t.Errorf("NormalizeHeader not idempotent for %q: %q -> %q", tt.input, got, again)
			}
		})
	}
}
