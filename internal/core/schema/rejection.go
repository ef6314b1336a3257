package schema

import (
	"errors"
	"regexp"
	"strings"

	"github.com/rl1809/pos-checkout/internal/core/domain"
)

var missingColumnPatterns = []*regexp.Regexp{
	// MySQL 1054
	regexp.MustCompile(`Unknown column '([^']+)'`),
	// Postgres 42703
	regexp.MustCompile(`column "([^"]+)"(?: of relation "[^"]+")? does not exist`),
	// REST gateways in front of Postgres (schema cache miss)
	regexp.MustCompile(`Could not find the '([^']+)' column`),
}

// ParseMissingColumns extracts column names from a store rejection message.
func ParseMissingColumns(msg string) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, re := range missingColumnPatterns {
		for _, m := range re.FindAllStringSubmatch(msg, -1) {
			col := m[1]
			if i := strings.LastIndexByte(col, '.'); i >= 0 {
				col = col[i+1:]
			}
			if col != "" && !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
	}
	return cols
}

// MissingColumns reports the columns an error says do not exist.
func MissingColumns(err error) ([]string, bool) {
	if err == nil {
		return nil, false
	}
	var ce *domain.ColumnError
	if errors.As(err, &ce) && len(ce.Columns) > 0 {
		return ce.Columns, true
	}
	cols := ParseMissingColumns(err.Error())
	return cols, len(cols) > 0
}

// OnlyOptional reports whether none of cols is a required order column.
func OnlyOptional(cols []string) bool {
	for _, c := range cols {
		if domain.IsRequiredOrderColumn(c) {
			return false
		}
	}
	return true
}
