package caseload

import (
	"fmt"
	"strings"
)

// Dialect holds the engine specific SQL text used by the composer. All of it
// is fixed, developer authored text.
type Dialect interface {
	Name() string
	// Placeholder renders the n-th (1-based) bound parameter.
	Placeholder(n int) string
	// AgeExpr derives integer age in years from year_of_birth,
	// month_of_birth and date_of_birth, or NULL when any is missing.
	AgeExpr() string
	// DecimalExpr casts the leading numeric prefix of expr to a fixed
	// precision decimal. Text without one casts to 0.
	DecimalExpr(expr string) string
	// Paginate renders the trailing offset/limit clause.
	Paginate(offset, limit string) string
}

// Postgres renders PostgreSQL text with $n placeholders.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) AgeExpr() string {
	return `CASE WHEN NULLIF(year_of_birth, '') IS NULL OR NULLIF(month_of_birth, '') IS NULL OR NULLIF(date_of_birth, '') IS NULL THEN NULL ` +
		`ELSE CAST(EXTRACT(YEAR FROM CURRENT_DATE) AS INTEGER) - CAST(year_of_birth AS INTEGER) ` +
		`- CASE WHEN TO_CHAR(CURRENT_DATE, 'MM-DD') < LPAD(month_of_birth, 2, '0') || '-' || LPAD(date_of_birth, 2, '0') THEN 1 ELSE 0 END END`
}

func (Postgres) DecimalExpr(expr string) string {
	return fmt.Sprintf(`COALESCE(CAST(substring(CAST(%s AS TEXT) from '^\s*([+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+))') AS DECIMAL(10,4)), 0)`, expr)
}

func (Postgres) Paginate(offset, limit string) string {
	return fmt.Sprintf("OFFSET %s LIMIT %s", offset, limit)
}

// SQLite renders SQLite text with ?n placeholders.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Placeholder(n int) string { return fmt.Sprintf("?%d", n) }

func (SQLite) AgeExpr() string {
	return `CASE WHEN NULLIF(year_of_birth, '') IS NULL OR NULLIF(month_of_birth, '') IS NULL OR NULLIF(date_of_birth, '') IS NULL THEN NULL ` +
		`ELSE CAST(strftime('%Y', 'now') AS INTEGER) - CAST(year_of_birth AS INTEGER) ` +
		`- (strftime('%m-%d', 'now') < printf('%02d-%02d', CAST(month_of_birth AS INTEGER), CAST(date_of_birth AS INTEGER))) END`
}

func (SQLite) DecimalExpr(expr string) string {
	return fmt.Sprintf("CAST(%s AS DECIMAL(10,4))", expr)
}

func (SQLite) Paginate(offset, limit string) string {
	return fmt.Sprintf("LIMIT %s, %s", offset, limit)
}

// DialectByName maps a configured driver name to its dialect.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	}
	return nil, fmt.Errorf("unsupported sql dialect %q", name)
}
