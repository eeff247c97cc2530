package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mathis-dumont/horse-racing-prediction/internal/db"
	"github.com/mathis-dumont/horse-racing-prediction/internal/fetcher"
	"github.com/mathis-dumont/horse-racing-prediction/internal/resilience"
)

// Env carries the collaborators shared by every stage in one pipeline run.
type Env struct {
	Pool     db.Pool
	Client   *fetcher.Client
	Fallback *FallbackStore
	// Workers bounds simultaneous in-flight races per stage.
	Workers int
}

// StageProcessor is the contract shared by the four stages. Program is
// load-bearing: its failure aborts the date. The other stages isolate
// race-level failures in the summary and never return an error for them.
type StageProcessor interface {
	Name() string
	Run(ctx context.Context, env *Env, date DateCode) (StageSummary, error)
}

// UnitState tracks a race unit through its lifecycle.
type UnitState int

const (
	UnitPending UnitState = iota
	UnitFetching
	UnitTransforming
	UnitWriting
	UnitDone
	UnitFailed
)

func (s UnitState) String() string {
	switch s {
	case UnitPending:
		return "pending"
	case UnitFetching:
		return "fetching"
	case UnitTransforming:
		return "transforming"
	case UnitWriting:
		return "writing"
	case UnitDone:
		return "done"
	case UnitFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureClass buckets unit failures for the terminal summary, so an
// operator can tell a flaky network from a payload-shape regression.
type FailureClass string

const (
	FailureTransient   FailureClass = "transient"
	FailureRateLimited FailureClass = "rate_limited"
	FailureTransform   FailureClass = "transform"
	FailureStore       FailureClass = "store"
)

// UnitFailure identifies a failed race and why, sufficient to drive a
// targeted re-run.
type UnitFailure struct {
	Meeting int
	Race    int
	Class   FailureClass
	Reason  string
}

// UnitResult reports the rows written for one race unit.
type UnitResult struct {
	Inserted int64
	Skipped  int64
}

// StageSummary is the per-stage part of the terminal summary. Empty counts
// races whose source document had no content; they are done, not failed.
type StageSummary struct {
	Stage        string
	RacesDone    int
	RacesFailed  int
	RacesEmpty   int
	RowsInserted int64
	RowsSkipped  int64
	Failures     []UnitFailure
}

func (s StageSummary) String() string {
	return fmt.Sprintf("%s: done=%d failed=%d empty=%d rows_inserted=%d rows_skipped=%d",
		s.Stage, s.RacesDone, s.RacesFailed, s.RacesEmpty, s.RowsInserted, s.RowsSkipped)
}

// TransformError marks a payload whose shape could not be turned into rows.
// The unit's raw payload goes to the fallback store and the unit is not
// retried automatically.
type TransformError struct {
	Err error
}

func (e *TransformError) Error() string { return e.Err.Error() }

func (e *TransformError) Unwrap() error { return e.Err }

// StoreError marks a write failure outside the expected
// unique-constraint-skip path.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

func classifyFailure(err error) FailureClass {
	var te *TransformError
	var se *StoreError
	switch {
	case resilience.IsRateLimited(err):
		return FailureRateLimited
	case errors.As(err, &te):
		return FailureTransform
	case errors.As(err, &se):
		return FailureStore
	case resilience.IsTransient(err):
		return FailureTransient
	default:
		return FailureTransform
	}
}

// raceRef locates one committed race for a date.
type raceRef struct {
	RaceID  int64
	Meeting int
	Race    int
}

// listRaces returns the trot races already committed by the Program stage
// for the date, in meeting/race order.
func listRaces(ctx context.Context, pool db.Pool, date DateCode) ([]raceRef, error) {
	rows, err := pool.Query(ctx, `
		SELECT r.race_id, rm.meeting_number, r.race_number
		FROM race r
		JOIN race_meeting rm ON r.meeting_id = rm.meeting_id
		JOIN daily_program dp ON rm.program_id = dp.program_id
		WHERE dp.program_date = $1
		  AND r.discipline IN ($2, $3)
		ORDER BY rm.meeting_number, r.race_number`,
		date.Date(), disciplineHarness, disciplineMounted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var races []raceRef
	for rows.Next() {
		var ref raceRef
		if err := rows.Scan(&ref.RaceID, &ref.Meeting, &ref.Race); err != nil {
			return nil, err
		}
		races = append(races, ref)
	}
	return races, rows.Err()
}

// unit is one race moving through the stage state machine.
type unit struct {
	ref   raceRef
	state UnitState
	log   *zap.Logger
}

func newUnit(stage string, ref raceRef) *unit {
	return &unit{
		ref: ref,
		log: zap.L().With(
			zap.String("stage", stage),
			zap.Int("meeting", ref.Meeting),
			zap.Int("race", ref.Race),
		),
	}
}

func (u *unit) advance(s UnitState) {
	u.state = s
	u.log.Debug("unit state", zap.Stringer("state", s))
}

// unitFunc processes one race. empty=true means the source had no content
// for the unit, a valid outcome counted as done with zero rows.
type unitFunc func(ctx context.Context, u *unit) (res UnitResult, empty bool, err error)

// runUnits fans races out over a bounded worker pool. Race-level failures
// are recorded in the summary and never abort sibling units; completion
// order is non-deterministic but each unit's final state is deterministic
// for its input.
func runUnits(ctx context.Context, stage string, workers int, races []raceRef, fn unitFunc) StageSummary {
	summary := StageSummary{Stage: stage}
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, ref := range races {
		g.Go(func() error {
			u := newUnit(stage, ref)
			u.advance(UnitFetching)
			res, empty, err := fn(gctx, u)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				u.advance(UnitFailed)
				summary.RacesFailed++
				summary.Failures = append(summary.Failures, UnitFailure{
					Meeting: ref.Meeting,
					Race:    ref.Race,
					Class:   classifyFailure(err),
					Reason:  err.Error(),
				})
				u.log.Error("unit failed", zap.Error(err))
				return nil // isolation: a failed race never aborts siblings
			}

			u.advance(UnitDone)
			summary.RacesDone++
			if empty {
				summary.RacesEmpty++
			}
			summary.RowsInserted += res.Inserted
			summary.RowsSkipped += res.Skipped
			return nil
		})
	}

	_ = g.Wait()
	return summary
}
