// Package store persists DecisionRecords and LearnedModel snapshots,
// grounded on cryptofunk's internal/db/db.go pgxpool wiring and
// internal/strategy/version.go's semver-based schema versioning,
// generalized from strategy-config migrations to decision-record/model
// schema checks.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/solarb/engine/internal/arb"
)

// Pool is the subset of *pgxpool.Pool the store needs; satisfied by both
// the real pool and pgxmock in unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SchemaVersion is the store's own on-disk schema version, independent of
// DecisionRecord.SchemaVersion (the payload's internal shape version).
var SchemaVersion = semver.MustParse("1.0.0")

// Store owns the decision-record durable tail and the current
// LearnedModel snapshot.
type Store struct {
	pool Pool
	log  zerolog.Logger
}

func New(pool Pool, log zerolog.Logger) *Store {
	return &Store{pool: pool, log: log}
}

// Migrate creates the schema if it does not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS decision_records (
			id BIGSERIAL PRIMARY KEY,
			candidate_id TEXT NOT NULL,
			schema_version INT NOT NULL,
			recorded_at_ms BIGINT NOT NULL,
			payload BYTEA NOT NULL
		);
		CREATE TABLE IF NOT EXISTS learned_models (
			id BIGSERIAL PRIMARY KEY,
			schema_version INT NOT NULL,
			last_updated_ms BIGINT NOT NULL,
			payload BYTEA NOT NULL
		);
		CREATE TABLE IF NOT EXISTS audit_logs (
			id UUID PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			event_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			bot_id TEXT,
			remote_addr TEXT,
			resource TEXT,
			action TEXT NOT NULL,
			success BOOLEAN NOT NULL,
			error_message TEXT,
			metadata JSONB,
			duration_ms BIGINT
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate store schema: %w", err)
	}
	return nil
}

// AppendDecisionRecord durably persists one record to the ring buffer's
// tail. The in-memory ring buffer itself lives in internal/learning; this
// is the write-through for durability across restarts.
func (s *Store) AppendDecisionRecord(ctx context.Context, rec arb.DecisionRecord) error {
	payload, err := msgpack.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode decision record: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO decision_records (candidate_id, schema_version, recorded_at_ms, payload) VALUES ($1, $2, $3, $4)`,
		rec.Candidate.ID, rec.SchemaVersion, rec.RecordedAt.Milliseconds(), payload)
	if err != nil {
		return fmt.Errorf("insert decision record: %w", err)
	}
	return nil
}

// SaveModel persists the current LearnedModel snapshot.
func (s *Store) SaveModel(ctx context.Context, model arb.LearnedModel, now time.Duration) error {
	payload, err := msgpack.Marshal(model)
	if err != nil {
		return fmt.Errorf("encode learned model: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO learned_models (schema_version, last_updated_ms, payload) VALUES ($1, $2, $3)`,
		model.SchemaVersion, now.Milliseconds(), payload)
	if err != nil {
		return fmt.Errorf("insert learned model: %w", err)
	}
	return nil
}

// LoadLatestModel returns the most recently persisted LearnedModel, or
// ok=false if none exists yet (a fresh deployment).
func (s *Store) LoadLatestModel(ctx context.Context) (model arb.LearnedModel, ok bool, err error) {
	row := s.pool.QueryRow(ctx, `SELECT payload FROM learned_models ORDER BY id DESC LIMIT 1`)
	var payload []byte
	if scanErr := row.Scan(&payload); scanErr != nil {
		if scanErr == pgx.ErrNoRows {
			return arb.LearnedModel{}, false, nil
		}
		return arb.LearnedModel{}, false, fmt.Errorf("query latest learned model: %w", scanErr)
	}
	if unmarshalErr := msgpack.Unmarshal(payload, &model); unmarshalErr != nil {
		return arb.LearnedModel{}, false, fmt.Errorf("decode learned model: %w", unmarshalErr)
	}
	if model.SchemaVersion != arb.CurrentSchemaVersion {
		s.log.Warn().Int("stored_version", model.SchemaVersion).Int("current_version", arb.CurrentSchemaVersion).Msg("loaded learned model has a stale schema version")
	}
	return model, true, nil
}

// CountRecordsSince returns the number of decision records recorded at or
// after sinceMs (milliseconds, as AppendDecisionRecord stores
// DecisionRecord.RecordedAt).
func (s *Store) CountRecordsSince(ctx context.Context, sinceMs int64) (int64, error) {
	row := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM decision_records WHERE recorded_at_ms >= $1`, sinceMs)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count decision records: %w", err)
	}
	return count, nil
}

// NewPool builds a pgxpool.Pool with the same tuning cryptofunk's
// internal/db.New uses.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
