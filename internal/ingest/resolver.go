package ingest

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mathis-dumont/horse-racing-prediction/internal/db"
)

// Resolver maps natural keys (horse name, actor name, lookup codes) to
// surrogate ids for one pipeline run. It is owned by the stage execution
// context and shared by its workers; the single mutex serializes the miss
// path so concurrent workers resolving the same unseen key converge on one
// row without leaning on the store's uniqueness constraint.
type Resolver struct {
	pool db.Pool

	mu        sync.Mutex
	horses    map[string]int64
	actors    map[string]int64
	shoeings  map[string]int64
	incidents map[string]int64
}

// HorseInfo carries the attributes stored when a horse is first seen.
// They are immutable afterwards.
type HorseInfo struct {
	Name      string
	Sex       *string
	BirthYear *int64
}

// NewResolver creates an empty resolver backed by the pool.
func NewResolver(pool db.Pool) *Resolver {
	return &Resolver{
		pool:      pool,
		horses:    make(map[string]int64),
		actors:    make(map[string]int64),
		shoeings:  make(map[string]int64),
		incidents: make(map[string]int64),
	}
}

// Preload warms the caches from the store. Horse and actor tables run to
// hundreds of thousands of rows after a few years of history; loading them
// once beats a lookup query per runner.
func (r *Resolver) Preload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, load := range []struct {
		sql   string
		cache map[string]int64
	}{
		{"SELECT horse_name, horse_id FROM horse", r.horses},
		{"SELECT actor_name, actor_id FROM racing_actor", r.actors},
		{"SELECT code, shoeing_id FROM lookup_shoeing", r.shoeings},
		{"SELECT code, incident_id FROM lookup_incident", r.incidents},
	} {
		if err := r.preloadOne(ctx, load.sql, load.cache); err != nil {
			return err
		}
	}

	zap.L().Info("resolver caches loaded",
		zap.Int("horses", len(r.horses)),
		zap.Int("actors", len(r.actors)),
		zap.Int("shoeings", len(r.shoeings)),
		zap.Int("incidents", len(r.incidents)),
	)
	return nil
}

func (r *Resolver) preloadOne(ctx context.Context, sql string, cache map[string]int64) error {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return eris.Wrap(err, "resolver: preload")
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var id int64
		if err := rows.Scan(&key, &id); err != nil {
			return eris.Wrap(err, "resolver: preload scan")
		}
		cache[key] = id
	}
	return eris.Wrap(rows.Err(), "resolver: preload rows")
}

// HorseID resolves or creates a horse by name.
func (r *Resolver) HorseID(ctx context.Context, info HorseInfo) (int64, error) {
	name := NormalizeName(info.Name)
	if name == "" {
		return 0, eris.New("resolver: empty horse name")
	}
	return r.resolve(ctx, r.horses, name,
		"INSERT INTO horse (horse_name, sex, birth_year) VALUES ($1, $2, $3) ON CONFLICT (horse_name) DO NOTHING RETURNING horse_id",
		"SELECT horse_id FROM horse WHERE horse_name = $1",
		[]any{name, info.Sex, info.BirthYear},
	)
}

// ActorID resolves or creates a trainer/driver/jockey by name.
func (r *Resolver) ActorID(ctx context.Context, name string) (int64, error) {
	clean := TruncateString("actor_name", NormalizeName(name), 100)
	if clean == "" {
		return 0, eris.New("resolver: empty actor name")
	}
	return r.resolve(ctx, r.actors, clean,
		"INSERT INTO racing_actor (actor_name) VALUES ($1) ON CONFLICT (actor_name) DO NOTHING RETURNING actor_id",
		"SELECT actor_id FROM racing_actor WHERE actor_name = $1",
		[]any{clean},
	)
}

// ShoeingID resolves or creates a shoeing lookup code.
func (r *Resolver) ShoeingID(ctx context.Context, code string) (int64, error) {
	if code == "" {
		return 0, eris.New("resolver: empty shoeing code")
	}
	return r.resolve(ctx, r.shoeings, code,
		"INSERT INTO lookup_shoeing (code) VALUES ($1) ON CONFLICT (code) DO NOTHING RETURNING shoeing_id",
		"SELECT shoeing_id FROM lookup_shoeing WHERE code = $1",
		[]any{code},
	)
}

// IncidentID resolves or creates an incident lookup code.
func (r *Resolver) IncidentID(ctx context.Context, code string) (int64, error) {
	if code == "" {
		return 0, eris.New("resolver: empty incident code")
	}
	return r.resolve(ctx, r.incidents, code,
		"INSERT INTO lookup_incident (code) VALUES ($1) ON CONFLICT (code) DO NOTHING RETURNING incident_id",
		"SELECT incident_id FROM lookup_incident WHERE code = $1",
		[]any{code},
	)
}

// resolve is the cache hit/miss core. The lock is held across the miss
// path on purpose: two workers racing on the same new key must not both
// reach the store.
func (r *Resolver) resolve(ctx context.Context, cache map[string]int64, key, insertSQL, selectSQL string, insertArgs []any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := cache[key]; ok {
		return id, nil
	}

	id, err := db.ResolveID(ctx, r.pool, insertSQL, selectSQL, insertArgs, []any{key})
	if err != nil {
		return 0, eris.Wrapf(err, "resolver: resolve %q", key)
	}
	cache[key] = id
	return id, nil
}
