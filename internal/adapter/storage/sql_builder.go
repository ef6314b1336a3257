package storage

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rl1809/pos-checkout/internal/port"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect captures the differences between MySQL and Postgres statements.
type dialect struct {
	quote       func(ident string) string
	placeholder func(n int) string
}

var (
	mysqlDialect = dialect{
		quote:       func(s string) string { return "`" + s + "`" },
		placeholder: func(int) string { return "?" },
	}
	postgresDialect = dialect{
		quote:       func(s string) string { return `"` + s + `"` },
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	}
)

func checkIdentifiers(idents ...string) error {
	for _, id := range idents {
		if !identifierPattern.MatchString(id) {
			return fmt.Errorf("invalid identifier %q", id)
		}
	}
	return nil
}

// columnUnion returns the sorted set of columns across rows.
func columnUnion(rows []port.Record) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func sortedFilterKeys(filter map[string]any) []string {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d dialect) buildInsert(table string, rows []port.Record) (string, []any, error) {
	cols := columnUnion(rows)
	if err := checkIdentifiers(append([]string{table}, cols...)...); err != nil {
		return "", nil, err
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.quote(c)
	}

	var b strings.Builder
	args := make([]any, 0, len(cols)*len(rows))
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", d.quote(table), strings.Join(quoted, ", "))
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		ph := make([]string, len(cols))
		for j, c := range cols {
			args = append(args, r[c])
			ph[j] = d.placeholder(len(args))
		}
		b.WriteString("(" + strings.Join(ph, ", ") + ")")
	}
	return b.String(), args, nil
}

func (d dialect) buildWhere(filter map[string]any, args []any) (string, []any, error) {
	if len(filter) == 0 {
		return "", args, nil
	}
	keys := sortedFilterKeys(filter)
	if err := checkIdentifiers(keys...); err != nil {
		return "", nil, err
	}
	conds := make([]string, len(keys))
	for i, k := range keys {
		args = append(args, filter[k])
		conds[i] = fmt.Sprintf("%s = %s", d.quote(k), d.placeholder(len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func (d dialect) buildSelect(table string, q port.Query) (string, []any, error) {
	if err := checkIdentifiers(table); err != nil {
		return "", nil, err
	}
	where, args, err := d.buildWhere(q.Filter, nil)
	if err != nil {
		return "", nil, err
	}

	stmt := "SELECT * FROM " + d.quote(table) + where
	if q.OrderBy != "" {
		if err := checkIdentifiers(q.OrderBy); err != nil {
			return "", nil, err
		}
		stmt += " ORDER BY " + d.quote(q.OrderBy)
		if q.Descending {
			stmt += " DESC"
		}
	}
	if q.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	return stmt, args, nil
}

func (d dialect) buildUpdate(table string, filter map[string]any, values port.Record) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, fmt.Errorf("update %s: no values", table)
	}
	cols := columnUnion([]port.Record{values})
	if err := checkIdentifiers(append([]string{table}, cols...)...); err != nil {
		return "", nil, err
	}

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(filter))
	for i, c := range cols {
		args = append(args, values[c])
		sets[i] = fmt.Sprintf("%s = %s", d.quote(c), d.placeholder(len(args)))
	}
	where, args, err := d.buildWhere(filter, args)
	if err != nil {
		return "", nil, err
	}
	return "UPDATE " + d.quote(table) + " SET " + strings.Join(sets, ", ") + where, args, nil
}
