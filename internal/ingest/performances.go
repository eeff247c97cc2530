package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// PerformancesStage loads each runner's past results from the detailed
// performances feed. One document covers every runner in a race, each
// with its list of past races; the stage flattens that into
// horse_race_history rows, trot entries only.
type PerformancesStage struct{}

func (PerformancesStage) Name() string { return "performances" }

func (PerformancesStage) Run(ctx context.Context, env *Env, date DateCode) (StageSummary, error) {
	resolver := NewResolver(env.Pool)
	if err := resolver.Preload(ctx); err != nil {
		return StageSummary{Stage: "performances"}, err
	}

	races, err := listRaces(ctx, env.Pool, date)
	if err != nil {
		return StageSummary{Stage: "performances"}, eris.Wrapf(err, "performances: list races %s", date)
	}

	summary := runUnits(ctx, "performances", env.Workers, races, func(ctx context.Context, u *unit) (UnitResult, bool, error) {
		res, err := env.Client.Get(ctx, env.Client.PerformancesURL(date.String(), u.ref.Meeting, u.ref.Race))
		if err != nil {
			return UnitResult{}, false, err
		}
		if res.Empty {
			return UnitResult{}, true, nil
		}

		result, err := writePerformances(ctx, env, resolver, res.Body)
		if err != nil {
			saveFallback(ctx, env, "performances", date, u.ref.Meeting, u.ref.Race, classifyFailure(err), err, res.Body)
			return UnitResult{}, false, err
		}
		return result, result.Inserted+result.Skipped == 0, nil
	})
	return summary, nil
}

// writePerformances transforms one performances document into history
// rows and writes them. Shared with replay.
func writePerformances(ctx context.Context, env *Env, resolver *Resolver, body []byte) (UnitResult, error) {
	runners, err := parsePerformancesDoc(body)
	if err != nil {
		return UnitResult{}, &TransformError{Err: err}
	}

	var rows [][]any
	for _, runner := range runners {
		name := runner.name()
		if NormalizeName(name) == "" {
			continue
		}
		// Past-only horses get a bare row; sex and birth year arrive
		// if the horse ever starts in an ingested race.
		horseID, err := resolver.HorseID(ctx, HorseInfo{Name: name})
		if err != nil {
			return UnitResult{}, &StoreError{Err: err}
		}

		for _, past := range runner.CoursesCourues {
			if row := historyRow(horseID, past); row != nil {
				rows = append(rows, row)
			}
		}
	}

	return NewBatchWriter(env.Pool).WriteUnit(ctx, historyTable, rows)
}

// historyRow flattens one past race into the horse_race_history column
// order. Non-trot entries and entries without a date or distance are
// dropped: both are part of the natural key, and a NULL in the key would
// let the same entry insert again on every re-run.
func historyRow(horseID int64, past pastRacePayload) []any {
	if !isTrotDiscipline(past.Discipline) {
		return nil
	}
	raceDate := UnixMillisToDate(past.Date)
	if raceDate == nil {
		zap.L().Debug("past race without date dropped", zap.Int64("horse_id", horseID))
		return nil
	}
	if past.Distance == nil {
		zap.L().Debug("past race without distance dropped", zap.Int64("horse_id", horseID))
		return nil
	}

	var finishPlace *int64
	var finishStatus *string
	var jockeyWeight *float64
	var draw *int64
	var redKM *float64
	var distTraveled *int64

	for i := range past.Participants {
		p := &past.Participants[i]
		if !p.ItsHim {
			continue
		}
		finishPlace, finishStatus = p.placeInfo()
		jockeyWeight = p.PoidsJockey
		draw = p.Corde
		redKM = ParseLocaleFloat(p.ReductionKilometrique)
		distTraveled = p.DistanceParcourue
		break
	}

	var status *string
	if finishStatus != nil {
		status = TruncatePtr("finish_status", *finishStatus, 30)
	}

	return []any{
		horseID,
		*raceDate,
		TruncatePtr("discipline", past.Discipline, 20),
		past.Distance,
		past.Allocation,
		MillisToSeconds(past.TempsDuPremier),
		finishPlace,
		status,
		jockeyWeight,
		draw,
		redKM,
		distTraveled,
	}
}
