package ledger

import (
	"strings"

	"github.com/tablestakes/tracker/internal/domain"
)

// Row is one data row of a ledger export, keyed by column header.
type Row map[string]string

// Parse converts a raw ledger export into rows. The first line is the header
// row; every following non-blank line becomes one Row.
//
// Field splitting respects quoted segments: a double quote toggles in-quotes
// mode (and is dropped from the value), and only unquoted commas split fields.
// Doubled quotes inside a field are not unescaped; ledger exports never
// produce them. Headers and values are trimmed. Rows shorter than the header
// are padded with empty strings; extra trailing values are dropped.
//
// Empty-input policy is strict: input that trims to nothing, or that has no
// data row after the header, fails with EMPTY_INPUT. Semantic validation of
// column names and numeric content is the analyzer's job.
func Parse(raw string) ([]Row, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, domain.ErrEmptyInput()
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return nil, domain.ErrEmptyInput()
	}

	headers := make([]string, 0, 8)
	for _, h := range strings.Split(lines[0], ",") {
		headers = append(headers, strings.TrimSpace(strings.ReplaceAll(h, `"`, "")))
	}

	rows := make([]Row, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}

		values := splitFields(line)

		row := make(Row, len(headers))
		for i, header := range headers {
			if i < len(values) {
				row[header] = values[i]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, domain.ErrEmptyInput()
	}
	return rows, nil
}

// splitFields splits one data line on unquoted commas, trimming each field.
func splitFields(line string) []string {
	var values []string
	var current strings.Builder
	inQuotes := false

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			values = append(values, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	values = append(values, strings.TrimSpace(current.String()))

	return values
}
