package ingest

import (
	"context"

	"github.com/rotisserie/eris"
)

// ParticipantsStage loads the runner sheet for every trot race committed
// by the program stage: one race_participant row per runner, with horses,
// trainers, drivers, and lookup codes resolved to their entity rows.
type ParticipantsStage struct{}

func (ParticipantsStage) Name() string { return "participants" }

func (ParticipantsStage) Run(ctx context.Context, env *Env, date DateCode) (StageSummary, error) {
	resolver := NewResolver(env.Pool)
	if err := resolver.Preload(ctx); err != nil {
		return StageSummary{Stage: "participants"}, err
	}

	races, err := listRaces(ctx, env.Pool, date)
	if err != nil {
		return StageSummary{Stage: "participants"}, eris.Wrapf(err, "participants: list races %s", date)
	}

	summary := runUnits(ctx, "participants", env.Workers, races, func(ctx context.Context, u *unit) (UnitResult, bool, error) {
		res, err := env.Client.Get(ctx, env.Client.ParticipantsURL(date.String(), u.ref.Meeting, u.ref.Race))
		if err != nil {
			return UnitResult{}, false, err
		}
		if res.Empty {
			return UnitResult{}, true, nil
		}

		result, err := writeParticipants(ctx, env, resolver, date, u.ref, res.Body)
		if err != nil {
			saveFallback(ctx, env, "participants", date, u.ref.Meeting, u.ref.Race, classifyFailure(err), err, res.Body)
			return UnitResult{}, false, err
		}
		return result, result.Inserted+result.Skipped == 0, nil
	})
	return summary, nil
}

// writeParticipants transforms one participants document into rows and
// writes them. Shared with replay, which supplies the body from the
// fallback store instead of the network.
func writeParticipants(ctx context.Context, env *Env, resolver *Resolver, date DateCode, ref raceRef, body []byte) (UnitResult, error) {
	participants, err := parseParticipantsDoc(body)
	if err != nil {
		return UnitResult{}, &TransformError{Err: err}
	}

	var rows [][]any
	for _, p := range participants {
		row, err := participantRow(ctx, resolver, date, ref.RaceID, p)
		if err != nil {
			return UnitResult{}, err
		}
		if row != nil {
			rows = append(rows, row)
		}
	}

	return NewBatchWriter(env.Pool).WriteUnit(ctx, participantTable, rows)
}

// participantRow resolves the runner's entities and flattens the payload
// into the race_participant column order. A runner without a horse name
// cannot be keyed and is dropped with a nil row.
func participantRow(ctx context.Context, resolver *Resolver, date DateCode, raceID int64, p participantPayload) ([]any, error) {
	if NormalizeName(p.Nom) == "" {
		return nil, nil
	}

	sex := FirstLetterUpper(p.Sexe)
	var birthYear *int64
	if p.Age != nil {
		// Age is relative to the program date, not to the wall clock;
		// backfilling an old season must not shift birth years.
		y := int64(date.Date().Year()) - *p.Age
		birthYear = &y
	}

	horseID, err := resolver.HorseID(ctx, HorseInfo{Name: p.Nom, Sex: sex, BirthYear: birthYear})
	if err != nil {
		return nil, &StoreError{Err: err}
	}

	trainerID, err := optionalActor(ctx, resolver, p.Entraineur)
	if err != nil {
		return nil, &StoreError{Err: err}
	}
	driverID, err := optionalActor(ctx, resolver, p.Driver)
	if err != nil {
		return nil, &StoreError{Err: err}
	}

	var shoeingID, incidentID *int64
	if code := mapCode(shoeingCodes, "shoeing_code", p.Deferre, 10); code != nil {
		id, err := resolver.ShoeingID(ctx, *code)
		if err != nil {
			return nil, &StoreError{Err: err}
		}
		shoeingID = &id
	}
	if code := mapCode(incidentCodes, "incident_code", p.Incident, 20); code != nil {
		id, err := resolver.IncidentID(ctx, *code)
		if err != nil {
			return nil, &StoreError{Err: err}
		}
		incidentID = &id
	}

	var refOdds, liveOdds *float64
	if p.DernierRapportReference != nil {
		refOdds = p.DernierRapportReference.Rapport
	}
	if p.DernierRapportDirect != nil {
		liveOdds = p.DernierRapportDirect.Rapport
	}
	var winnings *float64
	if p.GainsParticipant != nil {
		winnings = CentsToEuros(p.GainsParticipant.GainsCarriere)
	}

	return []any{
		raceID,
		horseID,
		p.NumPmu,
		p.Age,
		sex,
		trainerID,
		driverID,
		shoeingID,
		incidentID,
		p.NombreCourses,
		winnings,
		refOdds,
		liveOdds,
		p.Musique,
		p.AvisEntraineur,
		p.OrdreArrivee,
		MillisToSeconds(p.TempsObtenu),
		ParseLocaleFloat(p.ReductionKilometrique),
	}, nil
}

// optionalActor resolves an actor name, mapping the empty name to NULL.
func optionalActor(ctx context.Context, resolver *Resolver, name string) (*int64, error) {
	if NormalizeName(name) == "" {
		return nil, nil
	}
	id, err := resolver.ActorID(ctx, name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
