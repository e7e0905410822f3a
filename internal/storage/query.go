package storage

import (
	"strings"

	"fintrack/internal/core"
)

// predicates accumulates parameterized WHERE clauses.
type predicates struct {
	clauses []string
	args    []any
}

func (p *predicates) add(clause string, args ...any) {
	p.clauses = append(p.clauses, clause)
	p.args = append(p.args, args...)
}

func (p *predicates) sql() string {
	if len(p.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.clauses, " AND ")
}

// orderBy renders an ORDER BY clause from whitelisted columns, falling back
// when ordering is empty. tiebreak keeps pagination stable.
func orderBy(ordering core.Ordering, columns map[string]string, fallback core.Ordering, tiebreak string) string {
	if len(ordering) == 0 {
		ordering = fallback
	}
	parts := make([]string, 0, len(ordering)+1)
	for _, f := range ordering {
		col, ok := columns[f.Key]
		if !ok {
			continue
		}
		if f.Desc {
			parts = append(parts, col+" DESC")
		} else {
			parts = append(parts, col+" ASC")
		}
	}
	parts = append(parts, tiebreak)
	return " ORDER BY " + strings.Join(parts, ", ")
}

func limitOffset(p core.PageRequest) (string, []any) {
	return " LIMIT ? OFFSET ?", []any{p.Size, p.Offset()}
}
