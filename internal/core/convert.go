package core

// convert.go coerces raw source values to their declared semantic type.
//
// Provider files are messy: currency symbols and thousands separators in
// numbers, accounting-style negatives, a different date pattern per
// provider, single-digit day and month components. Coercion failures are
// row-scoped: they become RowError values, never operation aborts.

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates a cleaned-up numeric string: integers, decimals,
// and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// fallbackDateLayouts are tried when a header carries no parse pattern.
var fallbackDateLayouts = []string{
	"2/1/2006", "02/01/2006", "2-1-2006", "02-01-2006",
	"2006-01-02", "2006/01/02", "2.1.2006",
	"20060102",
}

// patternLayouts converts a provider date pattern (dd/MM/yyyy style tokens)
// into Go time layouts. The first layout is the strict zero-padded form;
// when the pattern has paddable components a second, tolerant layout
// accepting 1-digit day and month is added.
func patternLayouts(pattern string) []string {
	strict := strings.NewReplacer(
		"yyyy", "2006", "yy", "06",
		"dd", "02", "MM", "01",
		"HH", "15", "mm", "04", "ss", "05",
	).Replace(pattern)

	loose := strings.NewReplacer(
		"yyyy", "2006", "yy", "06",
		"dd", "2", "MM", "1",
		"HH", "15", "mm", "4", "ss", "5",
	).Replace(pattern)

	if loose == strict {
		return []string{strict}
	}
	return []string{loose, strict}
}

// CoerceText converts a raw value to pgtype.Text. Empty and
// whitespace-only values become SQL NULL.
func CoerceText(raw any) pgtype.Text {
	s := strings.TrimSpace(rawString(raw))
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// CoerceNumber converts a raw value to pgtype.Numeric, tolerating currency
// symbols, thousands separators, and accounting-format negatives. A blank
// value is NULL; anything else unparsable is an error.
func CoerceNumber(raw any) (pgtype.Numeric, error) {
	if n, ok := raw.(pgtype.Numeric); ok {
		return n, nil
	}

	s := strings.TrimSpace(rawString(raw))
	if s == "" {
		return pgtype.Numeric{}, nil
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "S/", "") // sol
	s = strings.ReplaceAll(s, "€", "") // euro
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{}, fmt.Errorf("invalid number %q", rawString(raw))
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("invalid number %q", rawString(raw))
	}
	return n, nil
}

// coerceWholeNumber converts a raw value to an integral pgtype.Numeric for
// integer-typed destinations. A zero fractional part is normalized away
// ("12.0" becomes 12); a non-zero one is an error rather than a silent
// truncation.
func coerceWholeNumber(raw any) (pgtype.Numeric, error) {
	n, err := CoerceNumber(raw)
	if err != nil || !n.Valid || n.Exp >= 0 {
		return n, err
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-n.Exp)), nil)
	quo, rem := new(big.Int).QuoRem(n.Int, scale, new(big.Int))
	if rem.Sign() != 0 {
		return pgtype.Numeric{}, fmt.Errorf("invalid whole number %q", rawString(raw))
	}
	return pgtype.Numeric{Int: quo, Valid: true}, nil
}

// CoerceDate converts a raw value to pgtype.Date using the header's parse
// pattern when one is configured, falling back to the common layout list.
// Already-typed time values pass through.
func CoerceDate(raw any, pattern string) (pgtype.Date, error) {
	if t, ok := raw.(time.Time); ok {
		return pgtype.Date{Time: t, Valid: true}, nil
	}

	s := strings.TrimSpace(rawString(raw))
	if s == "" {
		return pgtype.Date{}, nil
	}

	var layouts []string
	if pattern != "" {
		layouts = patternLayouts(pattern)
	}
	layouts = append(layouts, fallbackDateLayouts...)

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Date{Time: t, Valid: true}, nil
		}
	}
	return pgtype.Date{}, fmt.Errorf("invalid date %q", s)
}

// CoerceValue coerces a raw value for a header according to its semantic
// type, returning a driver-ready value or a row-scoped error.
func CoerceValue(def HeaderDefinition, raw any) (any, error) {
	switch def.Type {
	case TypeNumber:
		return CoerceNumber(raw)
	case TypeDate:
		return CoerceDate(raw, datePattern(def))
	default:
		return CoerceText(raw), nil
	}
}

// datePattern returns the header's date parse pattern, if its format
// override is a pattern rather than a physical type.
func datePattern(def HeaderDefinition) string {
	if def.Type == TypeDate && isDatePattern(def.FormatOverride) {
		return def.FormatOverride
	}
	return ""
}

// rawString renders a raw file value as a string for parsing. The file
// reader hands back strings, numbers, and times.
func rawString(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case time.Time:
		return v.Format("2006-01-02")
	case pgtype.Text:
		if !v.Valid {
			return ""
		}
		return v.String
	case pgtype.Numeric:
		if !v.Valid {
			return ""
		}
		if val, err := v.Value(); err == nil {
			if s, ok := val.(string); ok {
				return s
			}
		}
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
