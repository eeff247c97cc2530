package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mathis-dumont/horse-racing-prediction/internal/db"
)

// ReplaySummary reports one replay pass over the fallback store.
type ReplaySummary struct {
	Replayed int
	Failed   int
}

func (s ReplaySummary) String() string {
	return fmt.Sprintf("replayed=%d failed=%d", s.Replayed, s.Failed)
}

// Replay re-processes stored failed payloads through the same transform
// and write paths the stages use, without touching the network. Payloads
// that now load cleanly are deleted; the rest stay for the next pass.
// Typical use: a payload-shape fix ships, then replay drains the backlog.
func Replay(ctx context.Context, env *Env, filter FallbackFilter) (ReplaySummary, error) {
	var summary ReplaySummary

	payloads, err := env.Fallback.List(ctx, filter)
	if err != nil {
		return summary, err
	}
	if len(payloads) == 0 {
		zap.L().Info("no stored payloads to replay")
		return summary, nil
	}

	resolver := NewResolver(env.Pool)
	if err := resolver.Preload(ctx); err != nil {
		return summary, err
	}

	for _, meta := range payloads {
		if ctx.Err() != nil {
			return summary, eris.Wrap(ctx.Err(), "replay interrupted")
		}

		log := zap.L().With(
			zap.String("stage", meta.Stage),
			zap.String("date", meta.DateCode),
			zap.Int("meeting", meta.Meeting),
			zap.Int("race", meta.Race),
		)

		if err := replayOne(ctx, env, resolver, meta.ID); err != nil {
			summary.Failed++
			log.Error("replay failed", zap.Error(err))
			continue
		}
		if err := env.Fallback.Delete(ctx, meta.ID); err != nil {
			return summary, err
		}
		summary.Replayed++
		log.Info("payload replayed")
	}
	return summary, nil
}

func replayOne(ctx context.Context, env *Env, resolver *Resolver, id string) error {
	p, err := env.Fallback.Get(ctx, id)
	if err != nil {
		return err
	}
	date, err := ParseDateCode(p.DateCode)
	if err != nil {
		return eris.Wrapf(err, "replay: payload %s has invalid date code", id)
	}

	switch p.Stage {
	case TypeProgram:
		_, _, err = writeProgram(ctx, env, date, p.Body)
		return err
	case TypeParticipants:
		raceID, err := lookupRaceID(ctx, env.Pool, date, p.Meeting, p.Race)
		if err != nil {
			return err
		}
		_, err = writeParticipants(ctx, env, resolver, date, raceRef{RaceID: raceID, Meeting: p.Meeting, Race: p.Race}, p.Body)
		return err
	case TypePerformances:
		_, err = writePerformances(ctx, env, resolver, p.Body)
		return err
	case TypeReports:
		raceID, err := lookupRaceID(ctx, env.Pool, date, p.Meeting, p.Race)
		if err != nil {
			return err
		}
		_, err = writeReports(ctx, env, raceID, p.Body)
		return err
	default:
		return eris.Errorf("replay: unknown stage %q", p.Stage)
	}
}

// lookupRaceID finds the committed race a stored payload belongs to. A
// missing race means the program stage for that date has to run first.
func lookupRaceID(ctx context.Context, pool db.Pool, date DateCode, meeting, race int) (int64, error) {
	var raceID int64
	err := pool.QueryRow(ctx, `
		SELECT r.race_id
		FROM race r
		JOIN race_meeting rm ON r.meeting_id = rm.meeting_id
		JOIN daily_program dp ON rm.program_id = dp.program_id
		WHERE dp.program_date = $1 AND rm.meeting_number = $2 AND r.race_number = $3`,
		date.Date(), meeting, race,
	).Scan(&raceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Errorf("replay: race R%dC%d not loaded for %s, run the program stage first", meeting, race, date)
	}
	if err != nil {
		return 0, eris.Wrap(err, "replay: lookup race")
	}
	return raceID, nil
}
