// Package dump reads the source catalog's raw MySQL export: a tuple parser
// for bulk INSERT statements and a Backend that answers every lookup with a
// full file scan.
package dump

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	insertTableRe = regexp.MustCompile("^INSERT INTO\\s+`(\\w+)`")
	valuesRe      = regexp.MustCompile(`(?i)VALUES\s+`)
)

// Row is one parsed tuple. Values are nil, int64, float64, or string.
type Row []any

// IsNull reports whether column i is NULL or out of range.
func (r Row) IsNull(i int) bool {
	return i >= len(r) || r[i] == nil
}

// Int returns column i as an integer.
func (r Row) Int(i int) (int64, bool) {
	if i >= len(r) {
		return 0, false
	}
	n, ok := r[i].(int64)
	return n, ok
}

// String returns column i as text.
func (r Row) String(i int) (string, bool) {
	if i >= len(r) {
		return "", false
	}
	s, ok := r[i].(string)
	return s, ok
}

// IntPtr returns column i as a nullable integer.
func (r Row) IntPtr(i int) *int64 {
	if n, ok := r.Int(i); ok {
		return &n
	}
	return nil
}

// StringPtr returns column i as nullable text.
func (r Row) StringPtr(i int) *string {
	if s, ok := r.String(i); ok {
		return &s
	}
	return nil
}

// DetectTable returns the table an INSERT INTO line targets, or "" when the
// line is not a recognizable insert statement.
func DetectTable(line string) string {
	m := insertTableRe.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseTuples parses the VALUES tail of one bulk-insert statement into row
// tuples. It is a single left-to-right scan with three states (normal,
// in-string, escape-pending): a quote toggles string mode only when not
// preceded by an unconsumed escape; a comma outside string mode ends the
// current field; a closing parenthesis outside string mode ends the tuple.
//
// Malformed input yields a best-effort partial result — completed tuples are
// returned, an unterminated trailing tuple is dropped — so one bad statement
// never aborts the containing scan.
func ParseTuples(line string) []Row {
	loc := valuesRe.FindStringIndex(line)
	if loc == nil {
		return nil
	}

	data := strings.TrimRight(line[loc[1]:], " \t\r\n")
	data = strings.TrimSuffix(data, ";")
	data = strings.TrimRight(data, " \t")

	var rows []Row
	i := 0
	for i < len(data) {
		if data[i] != '(' {
			i++
			continue
		}
		i++

		var row Row
		var field strings.Builder
		inString := false
		escapePending := false

	tuple:
		for i < len(data) {
			ch := data[i]
			i++

			switch {
			case escapePending:
				field.WriteByte(ch)
				escapePending = false
			case ch == '\\' && inString:
				field.WriteByte(ch)
				escapePending = true
			case ch == '\'':
				inString = !inString
				field.WriteByte(ch)
			case inString:
				field.WriteByte(ch)
			case ch == ',':
				row = append(row, parseValue(field.String()))
				field.Reset()
			case ch == ')':
				row = append(row, parseValue(field.String()))
				rows = append(rows, row)
				break tuple
			default:
				field.WriteByte(ch)
			}
		}
	}

	return rows
}

// parseValue types one raw field: NULL, quoted text (unescaped), integer, or
// float (distinguished by a decimal point). Numeric literals with leftover
// non-numeric text fall back to the original text unchanged.
func parseValue(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "NULL" {
		return nil
	}
	if len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") {
		return unescape(s[1 : len(s)-1])
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// unescape resolves the export format's string escapes. The replacement
// order matches the source format's own loader and must not change.
func unescape(inner string) string {
	inner = strings.ReplaceAll(inner, `\'`, "'")
	inner = strings.ReplaceAll(inner, `\\`, `\`)
	inner = strings.ReplaceAll(inner, `\n`, "\n")
	inner = strings.ReplaceAll(inner, `\r`, "\r")
	inner = strings.ReplaceAll(inner, `\t`, "\t")
	return inner
}
