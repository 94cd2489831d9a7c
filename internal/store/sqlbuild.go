package store

import (
	"fmt"
	"strings"

	"devicehub-api/internal/models"
)

// where accumulates AND-ed conditions and their positional arguments.
type where struct {
	clauses []string
	args    []any
}

// arg registers v and returns its placeholder.
func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// buildOrderBy builds a safe ORDER BY clause from parsed sort keys using a
// whitelist of columns. fallback is used when no key maps to a column.
func buildOrderBy(keys []models.SortKey, allowed map[string]string, fallback string) string {
	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		col, ok := allowed[k.Field]
		if !ok {
			continue
		}
		if k.Desc {
			clauses = append(clauses, col+" DESC")
		} else {
			clauses = append(clauses, col+" ASC")
		}
	}
	if len(clauses) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func limitOffset(p models.PageRequest) string {
	return fmt.Sprintf(" LIMIT %d OFFSET %d", p.Limit, p.Offset)
}
