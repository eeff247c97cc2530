package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageNames(stages []StageProcessor) []string {
	var names []string
	for _, s := range stages {
		names = append(names, s.Name())
	}
	return names
}

func TestStagesFor(t *testing.T) {
	all, err := StagesFor("all")
	require.NoError(t, err)
	assert.Equal(t, []string{"program", "participants", "performances", "reports"}, stageNames(all))

	// Any downstream selection implies its program prerequisite.
	participants, err := StagesFor("participants")
	require.NoError(t, err)
	assert.Equal(t, []string{"program", "participants"}, stageNames(participants))

	program, err := StagesFor("PROGRAM")
	require.NoError(t, err)
	assert.Equal(t, []string{"program"}, stageNames(program))

	_, err = StagesFor("bogus")
	assert.Error(t, err)
}

func TestOrchestrator_ProgramFailureGatesDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Run log entry for the program stage only: downstream stages are
	// never attempted, so no list-races query, no further log entries.
	mock.ExpectExec("INSERT INTO ingest_log").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE ingest_log SET status = 'failed'").WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	env := testEnv(t, mock, srv.URL)
	date, err := ParseDateCode("05112025")
	require.NoError(t, err)

	orch := NewOrchestrator(env)
	reports, err := orch.Run(context.Background(), []DateCode{date}, TypeAll)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "05112025")

	require.Len(t, reports, 1)
	assert.Error(t, reports[0].FatalErr)
	require.Len(t, reports[0].Summaries, 1)
	assert.Equal(t, "program", reports[0].Summaries[0].Stage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestrator_SingleDateProgramOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleProgramme))
	}))
	defer srv.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO ingest_log").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectProgramWrite(mock)
	mock.ExpectExec("UPDATE ingest_log SET status").WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	env := testEnv(t, mock, srv.URL)
	date, err := ParseDateCode("05112025")
	require.NoError(t, err)

	orch := NewOrchestrator(env)
	reports, err := orch.Run(context.Background(), []DateCode{date}, TypeProgram)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Nil(t, reports[0].FatalErr)
	require.Len(t, reports[0].Summaries, 1)
	assert.Equal(t, 1, reports[0].Summaries[0].RacesDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrchestrator_UnknownType(t *testing.T) {
	orch := NewOrchestrator(&Env{})
	_, err := orch.Run(context.Background(), nil, "everything")
	assert.Error(t, err)
}
