package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

func NewInsertBuilder() *sqlbuilder.InsertBuilder {
	return sqlbuilder.PostgreSQL.NewInsertBuilder()
}

func NewUpdateBuilder() *sqlbuilder.UpdateBuilder {
	return sqlbuilder.PostgreSQL.NewUpdateBuilder()
}

func NewDeleteBuilder() *sqlbuilder.DeleteBuilder {
	return sqlbuilder.PostgreSQL.NewDeleteBuilder()
}

func NewSelectBuilder() *sqlbuilder.SelectBuilder {
	return sqlbuilder.PostgreSQL.NewSelectBuilder()
}

// Excluded references the proposed row of an ON CONFLICT clause.
func Excluded(column string) string {
	return fmt.Sprintf("EXCLUDED.%s", column)
}

// Greatest keeps the larger of the stored and proposed values.
func Greatest(table, column string) string {
	return fmt.Sprintf("GREATEST(%s.%s, EXCLUDED.%s)", table, column, column)
}

// Preserve takes the proposed value unless it is NULL.
func Preserve(table, column string) string {
	return fmt.Sprintf("COALESCE(EXCLUDED.%s, %s.%s)", column, table, column)
}

// Conflict renders an ON CONFLICT ... DO UPDATE clause appended to a built insert.
type Conflict struct {
	Table   string
	Columns []string
	// Set maps column to the SQL expression assigned on conflict.
	Set []Assignment
	// Where guards the update; empty means unconditional.
	Where string
}

type Assignment struct {
	Column string
	Expr   string
}

func Set(column, expr string) Assignment {
	return Assignment{Column: column, Expr: expr}
}

// Overwrite assigns EXCLUDED.column for each column.
func Overwrite(columns ...string) []Assignment {
	out := make([]Assignment, 0, len(columns))
	for _, c := range columns {
		out = append(out, Set(c, Excluded(c)))
	}
	return out
}

func (c Conflict) Clause() string {
	if len(c.Set) == 0 {
		return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(c.Columns, ", "))
	}

	sets := make([]string, 0, len(c.Set))
	for _, a := range c.Set {
		sets = append(sets, fmt.Sprintf("%s = %s", a.Column, a.Expr))
	}

	clause := fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(c.Columns, ", "), strings.Join(sets, ", "))
	if c.Where != "" {
		clause += " WHERE " + c.Where
	}
	return clause
}

// NotOlder guards an upsert so a stored row is only overwritten by a proposal
// whose column value is at least as recent.
func NotOlder(table, column string) string {
	return fmt.Sprintf("(%s.%s IS NULL OR EXCLUDED.%s >= %s.%s)", table, column, column, table, column)
}
