package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// sqliteColumns maps sheet columns to table columns, in sheet order.
var sqliteColumns = []string{
	"requested_at",
	"applicant",
	"title",
	"author",
	"publisher",
	"unit_price",
	"quantity",
	"source_url",
	"total_price",
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS applications (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	requested_at TEXT NOT NULL DEFAULT '',
	applicant    TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL DEFAULT '',
	author       TEXT NOT NULL DEFAULT '',
	publisher    TEXT NOT NULL DEFAULT '',
	unit_price   TEXT NOT NULL DEFAULT '',
	quantity     TEXT NOT NULL DEFAULT '',
	source_url   TEXT NOT NULL DEFAULT '',
	total_price  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_applications_applicant ON applications(applicant);
`

// SQLite keeps the ledger in a table. Sheet row order is insertion order.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database at dsn and creates the table if needed.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite ledger: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite ledger: exec %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteMigration); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ledger: migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (l *SQLite) AppendRow(ctx context.Context, values []string) error {
	if err := checkWidth(values); err != nil {
		return err
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO applications (requested_at, applicant, title, author, publisher, unit_price, quantity, source_url, total_price)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite ledger: insert: %w", err)
	}
	return nil
}

func (l *SQLite) UpdateCell(ctx context.Context, row, col int, value string) error {
	if row <= HeaderRow || col < 1 || col > len(sqliteColumns) {
		return fmt.Errorf("%w: row %d col %d", ErrRowOutOfRange, row, col)
	}

	var id int64
	err := l.db.QueryRowContext(ctx,
		`SELECT id FROM applications ORDER BY id LIMIT 1 OFFSET ?`,
		row-HeaderRow-1,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: row %d col %d", ErrRowOutOfRange, row, col)
	}
	if err != nil {
		return fmt.Errorf("sqlite ledger: locate row %d: %w", row, err)
	}

	// column names come from sqliteColumns, never from input
	query := fmt.Sprintf(`UPDATE applications SET %s = ? WHERE id = ?`, sqliteColumns[col-1])
	if _, err := l.db.ExecContext(ctx, query, value, id); err != nil {
		return fmt.Errorf("sqlite ledger: update row %d col %d: %w", row, col, err)
	}
	return nil
}

func (l *SQLite) ReadAllRecords(ctx context.Context) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT requested_at, applicant, title, author, publisher, unit_price, quantity, source_url, total_price
		 FROM applications ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite ledger: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		values := make([]string, len(sqliteColumns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlite ledger: scan: %w", err)
		}
		out = append(out, ToRecord(values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite ledger: iterate: %w", err)
	}
	return out, nil
}

func (l *SQLite) Close() error {
	return l.db.Close()
}
