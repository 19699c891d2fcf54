package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	maxConnectRetries    = 5
	connectRetryInterval = 2 * time.Second
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	path  TEXT PRIMARY KEY,
	value JSONB NOT NULL
)`

// Postgres stores the path tree in a single kv table. Single-key
// transactions take a per-path advisory lock so read-modify-write cycles
// serialize even when the row does not exist yet; batches run in one
// database transaction.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects with bounded retries and ensures the kv table.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= maxConnectRetries; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				break
			} else {
				pool.Close()
				pool = nil
				err = pingErr
			}
		}

		log.Warn().Err(err).Int("attempt", attempt).Int("max", maxConnectRetries).
			Msg("database connection attempt failed")
		if attempt < maxConnectRetries {
			time.Sleep(connectRetryInterval)
		}
	}
	if pool == nil {
		return nil, fmt.Errorf("database connection failed after %d attempts: %w", maxConnectRetries, err)
	}

	if _, err := pool.Exec(ctx, kvSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure kv table: %w", err)
	}

	log.Info().Msg("database connected")
	return &Postgres{pool: pool}, nil
}

// Pool exposes the underlying pool for metrics gauges.
func (s *Postgres) Pool() *pgxpool.Pool { return s.pool }

func (s *Postgres) Get(ctx context.Context, path string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv WHERE path = $1`, path).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Postgres) Set(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO kv (path, value) VALUES ($1, $2)
		ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value`,
		path, data)
	return err
}

func (s *Postgres) Txn(ctx context.Context, path string, fn TxnFunc) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// hashtext lock serializes concurrent writers on this path even when
	// the row does not exist yet, so FOR UPDATE has nothing to miss.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, path); err != nil {
		return err
	}

	var cur []byte
	err = tx.QueryRow(ctx, `SELECT value FROM kv WHERE path = $1`, path).Scan(&cur)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	next, err := fn(cur)
	if errors.Is(err, ErrUnchanged) {
		return tx.Commit(ctx)
	}
	if err != nil {
		return err
	}

	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO kv (path, value) VALUES ($1, $2)
		ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value`,
		path, data); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Postgres) Update(ctx context.Context, changes map[string]any) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Deletions first, then sets: a batch may delete a slot and write a
	// fresh descendant of the same slot in one go.
	for path, value := range changes {
		if value != nil {
			continue
		}
		// starts_with, not LIKE: sanitized keys are full of '_', which
		// LIKE would treat as a wildcard.
		if _, err := tx.Exec(ctx,
			`DELETE FROM kv WHERE path = $1 OR starts_with(path, $1 || '/')`, path); err != nil {
			return err
		}
	}
	for path, value := range changes {
		if value == nil {
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO kv (path, value) VALUES ($1, $2)
			ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value`,
			path, data); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Postgres) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT path, value FROM kv WHERE starts_with(path, $1 || '/')`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var path string
		var value []byte
		if err := rows.Scan(&path, &value); err != nil {
			return nil, err
		}
		out[path] = value
	}
	return out, rows.Err()
}

func (s *Postgres) Backend() string                { return "postgres" }
func (s *Postgres) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
