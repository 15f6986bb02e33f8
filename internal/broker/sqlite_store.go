// internal/broker/sqlite_store.go
// Default single-instance registration store, backed by the pure-Go
// modernc.org/sqlite driver (no cgo), over database/sql.
package broker

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS registrations (
    username    TEXT PRIMARY KEY,
    installId   TEXT NOT NULL,
    firstSeenAt INTEGER NOT NULL,
    lastSeenAt  INTEGER NOT NULL
);`

// SQLiteStore is the default Store implementation for a single broker
// instance.
type SQLiteStore struct {
    db *sql.DB
}

// OpenSQLite opens (creating if necessary) the sqlite database at path and
// ensures the registrations table exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
    db, err := sql.Open("sqlite", path)
    if err != nil {
        return nil, err
    }
    db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time
    if _, err := db.Exec(sqliteSchema); err != nil {
        db.Close()
        return nil, err
    }
    return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, username string) (*Registration, error) {
    row := s.db.QueryRowContext(ctx,
        `SELECT username, installId, firstSeenAt, lastSeenAt FROM registrations WHERE username = ?`, username)

    var reg Registration
    var first, last int64
    if err := row.Scan(&reg.Username, &reg.InstallID, &first, &last); err != nil {
        if err == sql.ErrNoRows {
            return nil, ErrNotFound
        }
        return nil, err
    }
    reg.FirstSeenAt = time.Unix(first, 0).UTC()
    reg.LastSeenAt = time.Unix(last, 0).UTC()
    return &reg, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, reg Registration) error {
    _, err := s.db.ExecContext(ctx, `
        INSERT INTO registrations (username, installId, firstSeenAt, lastSeenAt)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(username) DO UPDATE SET
            installId = excluded.installId,
            lastSeenAt = excluded.lastSeenAt
    `, reg.Username, reg.InstallID, reg.FirstSeenAt.Unix(), reg.LastSeenAt.Unix())
    return err
}

func (s *SQLiteStore) ReclaimOlderThan(ctx context.Context, cutoff time.Time, excluded map[string]struct{}) (int, error) {
    rows, err := s.db.QueryContext(ctx, `SELECT username FROM registrations WHERE lastSeenAt < ?`, cutoff.Unix())
    if err != nil {
        return 0, err
    }
    var candidates []string
    for rows.Next() {
        var u string
        if err := rows.Scan(&u); err != nil {
            rows.Close()
            return 0, err
        }
        if _, skip := excluded[u]; !skip {
            candidates = append(candidates, u)
        }
    }
    rows.Close()

    removed := 0
    for _, u := range candidates {
        if _, err := s.db.ExecContext(ctx, `DELETE FROM registrations WHERE username = ?`, u); err != nil {
            return removed, err
        }
        removed++
    }
    return removed, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
