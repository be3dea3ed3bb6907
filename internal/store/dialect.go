package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect names the database/sql driver a DB was opened with and the SQL
// flavour its queries are rendered in.
type Dialect string

const (
	DialectPostgres Dialect = "pgx"
	DialectSQLite   Dialect = "sqlite"
)

// DetectDialect resolves the driver to use for dsn. An explicit driver wins;
// otherwise postgres URLs select pgx and everything else is treated as a
// SQLite path.
func DetectDialect(driver, dsn string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "":
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case lower == "":
		return "", fmt.Errorf("%w: empty database url", ErrUnknownDriver)
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, nil
	case strings.Contains(lower, "host=") && strings.Contains(lower, "dbname="):
		return DialectPostgres, nil
	default:
		return DialectSQLite, nil
	}
}

// sqliteDSN strips the sqlite:// scheme accepted in DATABASE_URL.
func sqliteDSN(dsn string) string {
	return strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "sqlite:")
}

// rebind rewrites ? placeholders into the dialect's positional form.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] != '?' {
			b.WriteByte(query[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// jsonText selects a JSON column as text.
func (d Dialect) jsonText(column string) string {
	if d == DialectPostgres {
		return column + "::text"
	}
	return column
}

// jsonParam is the placeholder for a JSON document bound as a string.
func (d Dialect) jsonParam() string {
	if d == DialectPostgres {
		return "CAST(? AS jsonb)"
	}
	return "?"
}

// jsonField extracts a top-level string member of a JSON column.
func (d Dialect) jsonField(column, key string) string {
	if d == DialectPostgres {
		return fmt.Sprintf("%s->>'%s'", column, key)
	}
	return fmt.Sprintf("json_extract(%s, '$.%s')", column, key)
}

// jsonArrayHas tests whether the string array member key of a JSON column
// contains the bound value.
func (d Dialect) jsonArrayHas(column, key string) string {
	if d == DialectPostgres {
		return fmt.Sprintf("jsonb_exists(%s->'%s', ?)", column, key)
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(%s, '$.%s') WHERE value = ?)", column, key)
}

// forUpdate is the row lock appended to reads made inside a write
// transaction. SQLite serialises writers, so it needs none.
func (d Dialect) forUpdate() string {
	if d == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}
