package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mathis-dumont/horse-racing-prediction/internal/db"
)

// ProgramStage loads the day's calendar: the program row, its meetings,
// and the trot races. Every other stage keys off the races it commits, so
// its failure aborts the whole date. The graph is written in one
// transaction; a date is either fully present or absent.
type ProgramStage struct{}

func (ProgramStage) Name() string { return "program" }

func (ProgramStage) Run(ctx context.Context, env *Env, date DateCode) (StageSummary, error) {
	summary := StageSummary{Stage: "program"}
	log := zap.L().With(zap.String("stage", "program"), zap.Stringer("date", date))

	res, err := env.Client.Get(ctx, env.Client.ProgramURL(date.String()))
	if err != nil {
		return summary, eris.Wrapf(err, "program: fetch %s", date)
	}
	if res.Empty {
		log.Info("no program published for date")
		return summary, nil
	}

	races, result, err := writeProgram(ctx, env, date, res.Body)
	if err != nil {
		saveFallback(ctx, env, "program", date, 0, 0, classifyFailure(err), err, res.Body)
		return summary, err
	}

	summary.RacesDone = races
	summary.RowsInserted = result.Inserted
	summary.RowsSkipped = result.Skipped
	log.Info("program committed",
		zap.Int("trot_races", races),
		zap.Int64("inserted", result.Inserted),
	)
	return summary, nil
}

// writeProgram transforms one programme document and commits the full
// program/meeting/race graph in a single transaction. Shared with
// replay, which supplies the body from the fallback store.
func writeProgram(ctx context.Context, env *Env, date DateCode, body []byte) (int, UnitResult, error) {
	programme, err := parseProgrammeDoc(body)
	if err != nil {
		return 0, UnitResult{}, &TransformError{Err: err}
	}

	tx, err := env.Pool.Begin(ctx)
	if err != nil {
		return 0, UnitResult{}, &StoreError{Err: err}
	}
	defer tx.Rollback(ctx)

	programID, err := db.ResolveID(ctx, tx,
		"INSERT INTO daily_program (program_date) VALUES ($1) ON CONFLICT (program_date) DO NOTHING RETURNING program_id",
		"SELECT program_id FROM daily_program WHERE program_date = $1",
		[]any{date.Date()}, []any{date.Date()},
	)
	if err != nil {
		return 0, UnitResult{}, &StoreError{Err: eris.Wrapf(err, "program: resolve program %s", date)}
	}

	var raceRows [][]any
	for _, meeting := range programme.Reunions {
		meetingID, err := resolveMeeting(ctx, tx, programID, meeting)
		if err != nil {
			return 0, UnitResult{}, &StoreError{Err: eris.Wrapf(err, "program: resolve meeting R%d", meeting.NumOfficiel)}
		}
		for _, course := range meeting.Courses {
			if !isTrotDiscipline(course.Discipline) {
				continue
			}
			raceRows = append(raceRows, raceRow(meetingID, course))
		}
	}

	result, err := NewBatchWriter(tx).WriteUnit(ctx, raceTable, raceRows)
	if err != nil {
		return 0, UnitResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, UnitResult{}, &StoreError{Err: err}
	}
	return len(raceRows), result, nil
}

func resolveMeeting(ctx context.Context, q db.Querier, programID int64, m meetingPayload) (int64, error) {
	meetingType := TruncatePtr("meeting_type", m.Nature, 50)
	var racetrack, wind *string
	var temperature *float64
	if m.Hippodrome != nil {
		racetrack = TruncatePtr("racetrack_code", m.Hippodrome.Code, 10)
	}
	if m.Meteo != nil {
		temperature = m.Meteo.Temperature
		wind = m.Meteo.DirectionVent
	}
	return db.ResolveID(ctx, q,
		`INSERT INTO race_meeting (program_id, meeting_number, meeting_type, racetrack_code, weather_temperature, weather_wind)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (program_id, meeting_number) DO NOTHING RETURNING meeting_id`,
		"SELECT meeting_id FROM race_meeting WHERE program_id = $1 AND meeting_number = $2",
		[]any{programID, m.NumOfficiel, meetingType, racetrack, temperature, wind},
		[]any{programID, m.NumOfficiel},
	)
}

// raceRow flattens one course payload into the race column order.
func raceRow(meetingID int64, c coursePayload) []any {
	var terrain *string
	var penetrometer *float64
	if c.Penetrometre != nil {
		terrain = c.Penetrometre.Intitule
		penetrometer = ParseLocaleFloat(c.Penetrometre.ValeurMesure)
	}
	return []any{
		meetingID,
		c.NumOrdre,
		TruncatePtr("discipline", c.Discipline, 20),
		c.CategorieParticularite,
		c.Distance,
		mapCode(trackCodes, "track_type", c.TypePiste, 10),
		terrain,
		penetrometer,
		c.NombreDeclaresPartants,
		c.Conditions,
		mapCode(statusCodes, "race_status", c.Statut, 10),
		MillisToSeconds(c.DureeCourse),
		TruncatePtr("race_status_category", c.CategorieStatut, 50),
	}
}

// saveFallback persists a payload that could not be processed. Fallback
// storage is best-effort: a save failure is logged, never propagated, so
// it cannot turn a recoverable unit failure into something worse.
func saveFallback(ctx context.Context, env *Env, stage string, date DateCode, meeting, race int, class FailureClass, cause error, body []byte) {
	if env.Fallback == nil {
		return
	}
	id, err := env.Fallback.Save(ctx, FailedPayload{
		Stage:    stage,
		DateCode: date.String(),
		Meeting:  meeting,
		Race:     race,
		Class:    class,
		Reason:   cause.Error(),
		Body:     body,
	})
	if err != nil {
		zap.L().Warn("fallback save failed",
			zap.String("stage", stage),
			zap.Stringer("date", date),
			zap.Error(err),
		)
		return
	}
	zap.L().Info("payload saved for replay",
		zap.String("stage", stage),
		zap.Stringer("date", date),
		zap.Int("meeting", meeting),
		zap.Int("race", race),
		zap.String("payload_id", id),
	)
}
