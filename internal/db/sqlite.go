package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS catalog_snapshots (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		payload    TEXT NOT NULL
	)
`

// sqliteBusyTimeoutMillis es lo que espera un escritor antes de devolver SQLITE_BUSY.
const sqliteBusyTimeoutMillis = 5000

// sqliteDSN agrega los pragmas al DSN para que el driver los aplique en
// cada conexión del pool, no solo en la primera.
func sqliteDSN(path string) string {
	pragmas := []string{fmt.Sprintf("_pragma=busy_timeout(%d)", sqliteBusyTimeoutMillis)}
	if path != ":memory:" {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(pragmas, "&")
}

// OpenSQLite abre (o crea) el archivo SQLite y aplica el esquema.
// Use ":memory:" para una base en memoria.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if path == ":memory:" {
		// Cada conexion nueva veria una base vacia.
		db.SetMaxOpenConns(1)
	}
	if err := MigrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// MigrateSQLite crea la tabla de snapshots si no existe.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
