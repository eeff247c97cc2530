package ingest

import (
	"context"

	"github.com/mathis-dumont/horse-racing-prediction/internal/db"
)

// TableSpec names a target table, its insert columns, and the uniqueness
// key that makes re-insertion a no-op.
type TableSpec struct {
	Table        string
	Columns      []string
	ConflictKeys []string
}

var (
	raceTable = TableSpec{
		Table: "race",
		Columns: []string{
			"meeting_id", "race_number", "discipline", "race_category",
			"distance_m", "track_type", "terrain_label", "penetrometer",
			"declared_runners_count", "conditions_text", "race_status",
			"race_duration_s", "race_status_category",
		},
		ConflictKeys: []string{"meeting_id", "race_number"},
	}

	participantTable = TableSpec{
		Table: "race_participant",
		Columns: []string{
			"race_id", "horse_id", "pmu_number", "age", "sex",
			"trainer_id", "driver_jockey_id", "shoeing_id", "incident_id",
			"career_races_count", "career_winnings", "reference_odds",
			"live_odds", "raw_performance_string", "trainer_advice",
			"finish_rank", "time_achieved_s", "reduction_km",
		},
		ConflictKeys: []string{"race_id", "pmu_number"},
	}

	historyTable = TableSpec{
		Table: "horse_race_history",
		Columns: []string{
			"horse_id", "race_date", "discipline", "distance_m",
			"prize_money", "first_place_time_s", "finish_place",
			"finish_status", "jockey_weight", "draw_number",
			"reduction_km", "distance_traveled_m",
		},
		ConflictKeys: []string{"horse_id", "race_date", "discipline", "distance_m"},
	}

	betReportTable = TableSpec{
		Table: "bet_report",
		Columns: []string{
			"bet_id", "combination", "dividend", "dividend_per_1e",
			"winners_count",
		},
		ConflictKeys: []string{"bet_id", "combination"},
	}
)

// BatchWriter turns the per-race row sets produced by the stages into one
// multi-row statement each. Against a remote store this is the difference
// between one round-trip per race and one per history row.
type BatchWriter struct {
	q db.Querier
}

// NewBatchWriter creates a writer over the given query surface (pool or
// transaction).
func NewBatchWriter(q db.Querier) *BatchWriter {
	return &BatchWriter{q: q}
}

// WriteUnit inserts all rows for one race unit in a single statement.
// Rows already present are skipped by the conflict key, never an error.
func (w *BatchWriter) WriteUnit(ctx context.Context, spec TableSpec, rows [][]any) (UnitResult, error) {
	inserted, err := db.InsertIgnore(ctx, w.q, spec.Table, spec.Columns, spec.ConflictKeys, rows)
	if err != nil {
		return UnitResult{}, &StoreError{Err: err}
	}
	return UnitResult{
		Inserted: inserted,
		Skipped:  int64(len(rows)) - inserted,
	}, nil
}
