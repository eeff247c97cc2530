package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// InsertIgnore performs one multi-row INSERT ... ON CONFLICT DO NOTHING and
// returns how many rows were actually inserted. Rows already present under
// the conflict keys are silently skipped, which is what makes re-runs
// idempotent without a pre-check query per row.
func InsertIgnore(ctx context.Context, q Querier, table string, columns, conflictKeys []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, eris.New("db: insert: no columns specified")
	}
	if len(conflictKeys) == 0 {
		return 0, eris.New("db: insert: no conflict keys specified")
	}

	args := make([]any, 0, len(rows)*len(columns))
	valueTuples := make([]string, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, eris.Errorf("db: insert: row %d has %d values, want %d", i, len(row), len(columns))
		}
		placeholders := make([]string, len(columns))
		for j := range columns {
			placeholders[j] = fmt.Sprintf("$%d", i*len(columns)+j+1)
		}
		valueTuples = append(valueTuples, "("+strings.Join(placeholders, ", ")+")")
		args = append(args, row...)
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO NOTHING",
		sanitizeTable(table),
		quoteAndJoin(columns),
		strings.Join(valueTuples, ", "),
		quoteAndJoin(conflictKeys),
	)

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "db: insert into %s", table)
	}
	return tag.RowsAffected(), nil
}

// ResolveID inserts a row keyed by a unique natural key and returns its
// surrogate id, whether the row was freshly inserted or already existed.
// The insert-then-select shape means a concurrent creator wins harmlessly:
// the ON CONFLICT insert no-ops and the follow-up select adopts the
// existing id.
func ResolveID(ctx context.Context, q Querier, insertSQL, selectSQL string, insertArgs, selectArgs []any) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, insertSQL, insertArgs...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrap(err, "db: resolve insert")
	}

	if err := q.QueryRow(ctx, selectSQL, selectArgs...).Scan(&id); err != nil {
		return 0, eris.Wrap(err, "db: resolve select")
	}
	return id, nil
}

// sanitizeTable handles schema-qualified table names like "racing.horse".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
