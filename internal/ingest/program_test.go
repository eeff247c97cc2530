package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathis-dumont/horse-racing-prediction/internal/fetcher"
)

func testClient(baseURL string) *fetcher.Client {
	return fetcher.New(fetcher.Options{
		BaseURL:     baseURL,
		MaxAttempts: 1,
		RatePerSec:  1000,
		RateBurst:   1000,
	})
}

func testEnv(t *testing.T, mock pgxmock.PgxPoolIface, baseURL string) *Env {
	t.Helper()
	return &Env{
		Pool:     mock,
		Client:   testClient(baseURL),
		Fallback: openTestFallback(t),
		Workers:  2,
	}
}

func expectProgramWrite(mock pgxmock.PgxPoolIface) {
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO daily_program").
		WillReturnRows(pgxmock.NewRows([]string{"program_id"}).AddRow(int64(1)))
	mock.ExpectQuery("INSERT INTO race_meeting").
		WillReturnRows(pgxmock.NewRows([]string{"meeting_id"}).AddRow(int64(10)))
	mock.ExpectExec(`INSERT INTO "race"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
}

func TestProgramStage_Run(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(sampleProgramme))
	}))
	defer srv.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	expectProgramWrite(mock)

	date, err := ParseDateCode("05112025")
	require.NoError(t, err)

	sum, err := ProgramStage{}.Run(context.Background(), testEnv(t, mock, srv.URL), date)
	require.NoError(t, err)

	assert.Equal(t, "/1/programme/05112025", gotPath)
	// The sample day has two races but only one is trot.
	assert.Equal(t, 1, sum.RacesDone)
	assert.EqualValues(t, 1, sum.RowsInserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramStage_Run_NoProgramPublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	date, err := ParseDateCode("05112025")
	require.NoError(t, err)

	sum, err := ProgramStage{}.Run(context.Background(), testEnv(t, mock, srv.URL), date)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.RacesDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgramStage_Run_TransformFailureSavesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected": true}`))
	}))
	defer srv.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	env := testEnv(t, mock, srv.URL)
	date, err := ParseDateCode("05112025")
	require.NoError(t, err)

	_, err = ProgramStage{}.Run(context.Background(), env, date)
	require.Error(t, err)
	assert.Equal(t, FailureTransform, classifyFailure(err))

	// The raw body is stored for replay after a shape fix.
	saved, listErr := env.Fallback.List(context.Background(), FallbackFilter{Stage: "program"})
	require.NoError(t, listErr)
	require.Len(t, saved, 1)
	assert.Equal(t, "05112025", saved[0].DateCode)
}

func TestProgramStage_Run_FetchFailureIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	date, err := ParseDateCode("05112025")
	require.NoError(t, err)

	_, err = ProgramStage{}.Run(context.Background(), testEnv(t, mock, srv.URL), date)
	require.Error(t, err)
	// Nothing was written: no DB expectations were set.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRaceRow(t *testing.T) {
	duration := int64(202500)
	distance := int64(2700)
	row := raceRow(10, coursePayload{
		NumOrdre:     4,
		Statut:       "ARRIVEE_DEFINITIVE_COMPLETE",
		TypePiste:    "CENDREE",
		Discipline:   "ATTELE",
		Distance:     &distance,
		Penetrometre: &penetrometrePayload{ValeurMesure: "3,4", Intitule: str("SOUPLE")},
		DureeCourse:  &duration,
	})

	require.Len(t, row, len(raceTable.Columns))
	assert.EqualValues(t, 10, row[0])
	assert.Equal(t, 4, row[1])
	assert.Equal(t, "ATTELE", *row[2].(*string))
	assert.Equal(t, "C", *row[5].(*string))
	assert.InDelta(t, 3.4, *row[7].(*float64), 1e-9)
	assert.InDelta(t, 202.5, *row[11].(*float64), 1e-9)
}

func TestRaceRow_MissingSubObjects(t *testing.T) {
	row := raceRow(10, coursePayload{NumOrdre: 1, Discipline: "MONTE"})
	require.Len(t, row, len(raceTable.Columns))
	// No penetrometer reading maps to nils, never zeroes.
	assert.Nil(t, row[6])
	assert.Nil(t, row[7])
}
