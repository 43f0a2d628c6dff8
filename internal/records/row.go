// Package records projects the remote spreadsheet rows into typed records.
//
// A Row is whatever the remote service returned for one spreadsheet line:
// values may be strings, JSON numbers, booleans or missing entirely. Every
// accessor is total and degrades to a zero value instead of failing.
package records

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is a single field-keyed record as returned by the remote service.
type Row map[string]any

// String returns the field as text, or "" when missing.
func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case decimal.Decimal:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// First returns the first non-empty text among keys.
func (r Row) First(keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(r.String(k)); s != "" {
			return s
		}
	}
	return ""
}

// Int reads the leading integer of the field, so "12 pcs" is 12 and "abc" is 0.
func (r Row) Int(key string) int {
	switch t := r[key].(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	}
	return leadingInt(r.String(key))
}

// Decimal reads a numeric field; anything unparsable is zero.
func (r Row) Decimal(key string) decimal.Decimal {
	s := strings.TrimSpace(r.String(key))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Has reports whether the field is present and not null.
func (r Row) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Time parses the field as a timestamp; unknown layouts yield the zero time.
func (r Row) Time(key string) time.Time {
	s := strings.TrimSpace(r.String(key))
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
