package ingest

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/mathis-dumont/horse-racing-prediction/internal/db"
)

// RunLog records each stage execution in ingest_log so operators can see
// what has been loaded for a given day without reading process logs.
type RunLog struct {
	q db.Querier
}

func NewRunLog(q db.Querier) *RunLog {
	return &RunLog{q: q}
}

// Start inserts a running entry and returns its id.
func (l *RunLog) Start(ctx context.Context, date DateCode, stage string) (string, error) {
	id := uuid.New().String()
	_, err := l.q.Exec(ctx,
		`INSERT INTO ingest_log (id, date_code, stage, status, started_at)
		 VALUES ($1, $2, $3, 'running', $4)`,
		id, date.String(), stage, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "runlog: start %s %s", stage, date)
	}
	return id, nil
}

// Complete marks the entry done and stores the stage counters.
func (l *RunLog) Complete(ctx context.Context, id string, sum StageSummary) error {
	status := "done"
	if sum.RacesFailed > 0 {
		status = "partial"
	}
	_, err := l.q.Exec(ctx,
		`UPDATE ingest_log SET status = $1, races_done = $2, races_failed = $3,
			races_empty = $4, rows_inserted = $5, rows_skipped = $6, finished_at = $7
		 WHERE id = $8`,
		status, sum.RacesDone, sum.RacesFailed, sum.RacesEmpty,
		sum.RowsInserted, sum.RowsSkipped, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "runlog: complete %s", id)
}

// Fail marks the entry failed with the terminal error.
func (l *RunLog) Fail(ctx context.Context, id string, cause error) error {
	_, err := l.q.Exec(ctx,
		`UPDATE ingest_log SET status = 'failed', error = $1, finished_at = $2 WHERE id = $3`,
		eris.ToString(cause, false), time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "runlog: fail %s", id)
}

// RunEntry is one ingest_log row as shown by the status command.
type RunEntry struct {
	ID           string
	DateCode     string
	Stage        string
	Status       string
	RacesDone    int
	RacesFailed  int
	RacesEmpty   int
	RowsInserted int64
	RowsSkipped  int64
	Error        *string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Recent returns the latest entries, optionally filtered by date code.
func (l *RunLog) Recent(ctx context.Context, date string, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, date_code, stage, status, races_done, races_failed, races_empty,
			rows_inserted, rows_skipped, error, started_at, finished_at
		FROM ingest_log`
	var args []any
	if date != "" {
		query += ` WHERE date_code = $1`
		args = append(args, date)
	}
	query += ` ORDER BY started_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := l.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: recent")
	}
	defer rows.Close()

	var out []RunEntry
	for rows.Next() {
		var e RunEntry
		if err := rows.Scan(&e.ID, &e.DateCode, &e.Stage, &e.Status,
			&e.RacesDone, &e.RacesFailed, &e.RacesEmpty,
			&e.RowsInserted, &e.RowsSkipped, &e.Error,
			&e.StartedAt, &e.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "runlog: scan")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "runlog: iterate")
}
