package ingest

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// FailedPayload is a fetched document that could not be transformed or
// written, persisted so the run can move on and the payload can be
// replayed later without refetching.
type FailedPayload struct {
	ID       string
	Stage    string
	DateCode string
	Meeting  int
	Race     int
	Class    FailureClass
	Reason   string
	Body     []byte
	SavedAt  time.Time
}

// FallbackStore keeps failed payloads in a local SQLite database next to
// the process, so they survive even when Postgres is the thing failing.
type FallbackStore struct {
	db *sql.DB
}

// OpenFallback opens (creating if needed) the fallback database at path
// and configures WAL mode.
func OpenFallback(path string) (*FallbackStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "fallback: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "fallback: exec %s", pragma)
		}
	}
	if _, err := db.Exec(fallbackMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "fallback: migrate")
	}
	return &FallbackStore{db: db}, nil
}

const fallbackMigration = `
CREATE TABLE IF NOT EXISTS failed_payload (
	id         TEXT PRIMARY KEY,
	stage      TEXT NOT NULL,
	date_code  TEXT NOT NULL,
	meeting    INTEGER NOT NULL,
	race       INTEGER NOT NULL,
	class      TEXT NOT NULL,
	reason     TEXT NOT NULL,
	body       BLOB NOT NULL,
	saved_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (stage, date_code, meeting, race)
);

CREATE INDEX IF NOT EXISTS idx_failed_payload_stage ON failed_payload(stage);
CREATE INDEX IF NOT EXISTS idx_failed_payload_date_code ON failed_payload(date_code);
`

func (s *FallbackStore) Close() error {
	return s.db.Close()
}

// Save records a failed payload. A second failure for the same unit
// replaces the first; only the latest attempt is worth replaying.
func (s *FallbackStore) Save(ctx context.Context, p FailedPayload) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failed_payload (id, stage, date_code, meeting, race, class, reason, body, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (stage, date_code, meeting, race) DO UPDATE SET
			id = excluded.id,
			class = excluded.class,
			reason = excluded.reason,
			body = excluded.body,
			saved_at = excluded.saved_at`,
		id, p.Stage, p.DateCode, p.Meeting, p.Race, string(p.Class), p.Reason, p.Body, now,
	)
	if err != nil {
		return "", eris.Wrapf(err, "fallback: save %s %s R%dC%d", p.Stage, p.DateCode, p.Meeting, p.Race)
	}
	return id, nil
}

// FallbackFilter narrows List to a stage and/or date code.
type FallbackFilter struct {
	Stage    string
	DateCode string
}

// List returns stored payloads matching the filter, oldest first, without
// bodies. Use Get to load a body for replay.
func (s *FallbackStore) List(ctx context.Context, filter FallbackFilter) ([]FailedPayload, error) {
	query := `SELECT id, stage, date_code, meeting, race, class, reason, saved_at
		FROM failed_payload WHERE 1=1`
	var args []any

	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, filter.Stage)
	}
	if filter.DateCode != "" {
		query += ` AND date_code = ?`
		args = append(args, filter.DateCode)
	}
	query += ` ORDER BY saved_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "fallback: list")
	}
	defer rows.Close()

	var out []FailedPayload
	for rows.Next() {
		var p FailedPayload
		var class string
		if err := rows.Scan(&p.ID, &p.Stage, &p.DateCode, &p.Meeting, &p.Race, &class, &p.Reason, &p.SavedAt); err != nil {
			return nil, eris.Wrap(err, "fallback: scan")
		}
		p.Class = FailureClass(class)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "fallback: list iterate")
}

// Get loads one stored payload, body included.
func (s *FallbackStore) Get(ctx context.Context, id string) (*FailedPayload, error) {
	var p FailedPayload
	var class string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, stage, date_code, meeting, race, class, reason, body, saved_at
		 FROM failed_payload WHERE id = ?`, id,
	).Scan(&p.ID, &p.Stage, &p.DateCode, &p.Meeting, &p.Race, &class, &p.Reason, &p.Body, &p.SavedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "fallback: get %s", id)
	}
	p.Class = FailureClass(class)
	return &p, nil
}

// Delete removes a payload after a successful replay.
func (s *FallbackStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM failed_payload WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "fallback: delete %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "fallback: rows affected")
	}
	if n == 0 {
		return eris.Errorf("fallback: payload %s not found", id)
	}
	return nil
}
