// Package history keeps a SQLite ledger of successful compilations so that
// changes in the generated crontab can be traced over time. It uses
// modernc.org/sqlite (pure Go, no CGO) in WAL mode.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5000

// Entry is one recorded compilation.
type Entry struct {
	ID int64
	At time.Time

	// Output is the rendered form, "cron" or "yaml".
	Output   string
	Schedule string

	// Digest is the SHA-256 of the rendered output.
	Digest string

	Jobs    int
	Lines   int
	Merged  int
	Records int

	// Changed reports whether Digest differs from the previous entry with
	// the same Output and Schedule. The first entry is always changed.
	Changed bool
}

// Store is a compilation ledger backed by one SQLite database.
type Store struct {
	db *sql.DB
}

// Digest returns the hex SHA-256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Open opens or creates the ledger at path. The parent directory is created
// when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("history: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}

	// SQLite handles one writer at a time; limit pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: set busy_timeout: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores e and returns it with ID and Changed filled in. A zero At
// is set to the current time.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	e.At = e.At.UTC()

	var prev string
	err := s.db.QueryRowContext(ctx, `
		SELECT digest FROM compilations
		WHERE output = ? AND schedule = ?
		ORDER BY id DESC
		LIMIT 1`,
		e.Output, e.Schedule,
	).Scan(&prev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		e.Changed = true
	case err != nil:
		return Entry{}, fmt.Errorf("history: read previous digest: %w", err)
	default:
		e.Changed = prev != e.Digest
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO compilations (at, output, schedule, digest, jobs, lines, merged, records, changed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.At.Format(time.RFC3339Nano), e.Output, e.Schedule, e.Digest,
		e.Jobs, e.Lines, e.Merged, e.Records, boolToInt(e.Changed),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("history: insert: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return Entry{}, fmt.Errorf("history: insert id: %w", err)
	}
	return e, nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at, output, schedule, digest, jobs, lines, merged, records, changed
		FROM compilations
		ORDER BY id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			at      string
			changed int
		)
		if err := rows.Scan(&e.ID, &at, &e.Output, &e.Schedule, &e.Digest,
			&e.Jobs, &e.Lines, &e.Merged, &e.Records, &changed); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("history: entry %d: bad timestamp %q: %w", e.ID, at, err)
		}
		e.Changed = changed != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent rows: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
