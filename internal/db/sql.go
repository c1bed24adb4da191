package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// InsertSQL builds a parameterized INSERT for table. With conflictKeys set,
// rows that collide on them are updated with the remaining columns.
func InsertSQL(table string, columns, conflictKeys []string) string {
	params := make([]string, len(columns))
	for i := range columns {
		params[i] = "$" + strconv.Itoa(i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		SanitizeTable(table), quoteAndJoin(columns), strings.Join(params, ", "))
	if len(conflictKeys) == 0 {
		return q
	}

	conflict := make(map[string]bool, len(conflictKeys))
	for _, k := range conflictKeys {
		conflict[k] = true
	}
	var sets []string
	for _, col := range columns {
		if conflict[col] {
			continue
		}
		id := pgx.Identifier{col}.Sanitize()
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", id, id))
	}
	if len(sets) == 0 {
		return q + fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", quoteAndJoin(conflictKeys))
	}
	return q + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", quoteAndJoin(conflictKeys), strings.Join(sets, ", "))
}

// SanitizeTable quotes a plain or schema-qualified table name.
func SanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
