package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mathis-dumont/horse-racing-prediction/internal/fetcher"
	"github.com/mathis-dumont/horse-racing-prediction/internal/ingest"
)

// storePool creates the pgx connection pool. Pool size follows the worker
// count so concurrent race units never starve on connections.
func storePool(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("no database_url configured (set store.database_url or PMUETL_STORE_DATABASE_URL)")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse database_url")
	}
	poolCfg.MaxConns = cfg.Store.MaxConns
	if int(poolCfg.MaxConns) < cfg.Ingest.Workers+1 {
		poolCfg.MaxConns = int32(cfg.Ingest.Workers + 1)
	}
	poolCfg.MinConns = cfg.Store.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ping database")
	}
	return pool, nil
}

// buildEnv assembles the stage execution environment from configuration.
// The returned cleanup closes the pool and the fallback store.
func buildEnv(ctx context.Context) (*ingest.Env, func(), error) {
	pool, err := storePool(ctx)
	if err != nil {
		return nil, nil, err
	}

	fallback, err := ingest.OpenFallback(cfg.Fallback.Path)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	client := fetcher.New(fetcher.Options{
		BaseURL:     cfg.Source.BaseURL,
		UserAgent:   cfg.Source.UserAgent,
		Referer:     cfg.Source.Referer,
		Origin:      cfg.Source.Origin,
		Timeout:     cfg.Source.Timeout,
		MinDelay:    cfg.Source.MinDelay,
		MaxDelay:    cfg.Source.MaxDelay,
		MaxAttempts: cfg.Source.MaxAttempts,
		RatePerSec:  cfg.Source.RatePerSec,
		RateBurst:   cfg.Source.RateBurst,
	})

	env := &ingest.Env{
		Pool:     pool,
		Client:   client,
		Fallback: fallback,
		Workers:  cfg.Ingest.Workers,
	}
	cleanup := func() {
		fallback.Close()
		pool.Close()
	}
	return env, cleanup, nil
}
