package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"unicode"

	_ "modernc.org/sqlite"
)

// WriteSQLite writes each table into a fresh SQLite database at path
func WriteSQLite(ctx context.Context, path string, tables []Table) error {
	_ = os.Remove(path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite database %q: %w", path, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for n, t := range tables {
		if err := writeSQLiteTable(ctx, tx, sqlIdent(t.Name, fmt.Sprintf("table_%d", n+1)), t); err != nil {
			return fmt.Errorf("write table %q: %w", t.Name, err)
		}
	}
	return tx.Commit()
}

func writeSQLiteTable(ctx context.Context, tx *sql.Tx, name string, t Table) error {
	cols := make([]string, len(t.Columns))
	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = fmt.Sprintf("%q", sqlIdent(c.Name, fmt.Sprintf("col_%d", i+1)))
		defs[i] = cols[i] + " " + sqliteType(c.Kind)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q`, name)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE %q (%s)`, name, strings.Join(defs, ","))); err != nil {
		return err
	}

	ph := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`, name, strings.Join(cols, ","), ph))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range t.Rows {
		args := make([]any, len(cols))
		for i := range cols {
			if i < len(row) {
				args[i] = sqliteValue(row[i])
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

func sqliteType(k Kind) string {
	switch k {
	case KindDecimal:
		return "REAL"
	case KindInteger:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func sqliteValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return t
	}
}

// sqlIdent folds a display name to snake_case; fallback is used when nothing is left
func sqlIdent(name, fallback string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return fallback
	}
	return out
}
