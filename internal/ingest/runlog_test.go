package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLog_StartComplete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO ingest_log").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE ingest_log SET status").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	log := NewRunLog(mock)
	date, err := ParseDateCode("05112025")
	require.NoError(t, err)

	id, err := log.Start(context.Background(), date, "participants")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	err = log.Complete(context.Background(), id, StageSummary{Stage: "participants", RacesDone: 5})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_Fail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO ingest_log").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE ingest_log SET status = 'failed'").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	log := NewRunLog(mock)
	date, err := ParseDateCode("05112025")
	require.NoError(t, err)

	id, err := log.Start(context.Background(), date, "program")
	require.NoError(t, err)
	require.NoError(t, log.Fail(context.Background(), id, eris.New("fetch blew up")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLog_Recent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{
		"id", "date_code", "stage", "status", "races_done", "races_failed",
		"races_empty", "rows_inserted", "rows_skipped", "error", "started_at", "finished_at",
	}).AddRow("abc", "05112025", "program", "done", 8, 0, 0, int64(8), int64(0), (*string)(nil), time.Now().UTC(), (*time.Time)(nil))

	mock.ExpectQuery("SELECT id, date_code, stage, status").
		WithArgs("05112025", 10).
		WillReturnRows(rows)

	log := NewRunLog(mock)
	entries, err := log.Recent(context.Background(), "05112025", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "program", entries[0].Stage)
	assert.Equal(t, "done", entries[0].Status)
	assert.Nil(t, entries[0].FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
