package ingest

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/mathis-dumont/horse-racing-prediction/internal/db"
)

// ReportsStage loads the final betting returns for each trot race: one
// race_bet row per offered bet type, one bet_report row per winning
// combination under it. Monetary fields arrive in cents and are stored
// in euros.
type ReportsStage struct{}

func (ReportsStage) Name() string { return "reports" }

func (ReportsStage) Run(ctx context.Context, env *Env, date DateCode) (StageSummary, error) {
	races, err := listRaces(ctx, env.Pool, date)
	if err != nil {
		return StageSummary{Stage: "reports"}, eris.Wrapf(err, "reports: list races %s", date)
	}

	summary := runUnits(ctx, "reports", env.Workers, races, func(ctx context.Context, u *unit) (UnitResult, bool, error) {
		res, err := env.Client.Get(ctx, env.Client.ReportsURL(date.String(), u.ref.Meeting, u.ref.Race))
		if err != nil {
			return UnitResult{}, false, err
		}
		if res.Empty {
			return UnitResult{}, true, nil
		}

		result, err := writeReports(ctx, env, u.ref.RaceID, res.Body)
		if err != nil {
			saveFallback(ctx, env, "reports", date, u.ref.Meeting, u.ref.Race, classifyFailure(err), err, res.Body)
			return UnitResult{}, false, err
		}
		return result, result.Inserted+result.Skipped == 0, nil
	})
	return summary, nil
}

// writeReports transforms one returns document and writes it in a single
// transaction: bets resolved one by one for their ids, reports batched
// under them. Shared with replay.
func writeReports(ctx context.Context, env *Env, raceID int64, body []byte) (UnitResult, error) {
	bets, err := parseRapportsDoc(body)
	if err != nil {
		return UnitResult{}, &TransformError{Err: err}
	}
	if len(bets) == 0 {
		return UnitResult{}, nil
	}

	tx, err := env.Pool.Begin(ctx)
	if err != nil {
		return UnitResult{}, &StoreError{Err: err}
	}
	defer tx.Rollback(ctx)

	var reportRows [][]any
	for _, bet := range bets {
		betType := mapCode(betTypeCodes, "bet_type", bet.TypePari, 10)
		if betType == nil {
			continue
		}
		betID, err := db.ResolveID(ctx, tx,
			`INSERT INTO race_bet (race_id, bet_type, bet_family, base_stake, is_refunded)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (race_id, bet_type) DO NOTHING RETURNING bet_id`,
			"SELECT bet_id FROM race_bet WHERE race_id = $1 AND bet_type = $2",
			[]any{raceID, *betType, bet.FamillePari, CentsToEuros(bet.MiseBase), bet.Rembourse},
			[]any{raceID, *betType},
		)
		if err != nil {
			return UnitResult{}, &StoreError{Err: eris.Wrapf(err, "reports: resolve bet %s", *betType)}
		}

		for _, r := range bet.Rapports {
			reportRows = append(reportRows, []any{
				betID,
				TruncateString("combination", r.Combinaison, 100),
				CentsToEuros(r.Dividende),
				CentsToEuros(r.DividendePourUnEuro),
				r.NombreGagnants,
			})
		}
	}

	result, err := NewBatchWriter(tx).WriteUnit(ctx, betReportTable, reportRows)
	if err != nil {
		return UnitResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return UnitResult{}, &StoreError{Err: err}
	}
	return result, nil
}
