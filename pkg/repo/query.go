// Package repo contains small SQL building helpers shared by the pgx
// repositories. They compose plain strings; placeholders are always
// positional ($1, $2, ...).
package repo

import (
	"fmt"
	"strings"
)

// Join concatenates non-empty query fragments with single spaces.
func Join(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// JoinWhere renders a WHERE clause AND-ing all conditions, or an empty
// string when there are none.
func JoinWhere(conditions ...string) string {
	if len(conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conditions, " AND ")
}

// Insert builds an INSERT statement for the given fields with sequential
// placeholders, optionally returning columns.
func Insert(table string, fields []string, returning ...string) string {
	placeholders := make([]string, len(fields))
	for i := range fields {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(fields, ", "),
		strings.Join(placeholders, ", "),
	)
	if len(returning) > 0 {
		q += " RETURNING " + strings.Join(returning, ", ")
	}
	return q
}

// Update builds an UPDATE statement assigning sequential placeholders to the
// given fields. The where fragment, if any, is appended as-is and may use
// placeholders past len(fields).
func Update(table string, fields []string, where ...string) string {
	assignments := make([]string, len(fields))
	for i, f := range fields {
		assignments[i] = fmt.Sprintf("%s = $%d", f, i+1)
	}
	q := fmt.Sprintf("UPDATE %s SET %s", table, strings.Join(assignments, ", "))
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return q
}

// Exists wraps a base query in SELECT EXISTS.
func Exists(base string) string {
	return fmt.Sprintf("SELECT EXISTS (%s)", base)
}

// FormatLimitOffset renders LIMIT/OFFSET fragments, omitting non-positive
// values.
func FormatLimitOffset(limit, offset int) string {
	if limit > 0 && offset > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	}
	if limit > 0 {
		return fmt.Sprintf("LIMIT %d", limit)
	}
	if offset > 0 {
		return fmt.Sprintf("OFFSET %d", offset)
	}
	return ""
}

// BatchInsertQueryN extends an "INSERT INTO t (...) VALUES" prefix with one
// placeholder tuple per row and returns the flattened argument list.
func BatchInsertQueryN(prefix string, rows [][]interface{}) (string, []interface{}) {
	if len(rows) == 0 {
		return prefix, nil
	}
	width := len(rows[0])
	tuples := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*width)
	n := 1
	for _, row := range rows {
		placeholders := make([]string, len(row))
		for i, v := range row {
			placeholders[i] = fmt.Sprintf("$%d", n)
			args = append(args, v)
			n++
		}
		tuples = append(tuples, "("+strings.Join(placeholders, ", ")+")")
	}
	return prefix + " " + strings.Join(tuples, ", "), args
}
