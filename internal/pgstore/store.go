// Package pgstore is the events table persistence layer: a bounded
// pgxpool with idempotent migration and the small set of statements the
// fence engine and clipper need.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a bounded pgxpool.Pool. The fence engine opens it with
// MinConns=1/MaxConns=5; the recorder/clipper side, which only touches
// the thumbnail column occasionally, uses MaxConns=3.
type Store struct {
	pool *pgxpool.Pool
}

// Config describes how to reach Postgres and size the pool.
type Config struct {
	// URL, if set, is used as-is (overrides Host/Port/... below).
	URL      string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	MinConns int32
	MaxConns int32
}

func (c Config) dsn() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Name)
}

// Open creates the pool and verifies connectivity with a Ping bounded
// by a 30 s timeout.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the events table if absent.
func (s *Store) Migrate(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		camera_id TEXT NOT NULL,
		class_name TEXT NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		thumbnail TEXT,
		score DOUBLE PRECISION
	)`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate events table: %w", err)
	}
	const idx = `CREATE INDEX IF NOT EXISTS idx_events_camera_ts ON events(camera_id, ts DESC)`
	if _, err := s.pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("migrate events index: %w", err)
	}
	return nil
}

// Event is one row of the events table.
type Event struct {
	ID        string
	CameraID  string
	ClassName string
	Timestamp time.Time
	Thumbnail *string
	Score     *float64
}

// InsertEvent inserts a new event row, doing nothing if id already
// exists, so a re-delivered event payload produces at most one row.
func (s *Store) InsertEvent(ctx context.Context, e Event) error {
	const q = `INSERT INTO events (id, camera_id, class_name, ts, thumbnail, score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, q, e.ID, e.CameraID, e.ClassName, e.Timestamp, e.Thumbnail, e.Score)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

// UpdateThumbnail sets events.thumbnail for the given event id. Called
// by the clipper once a clip file has been materialized.
func (s *Store) UpdateThumbnail(ctx context.Context, eventID, thumbnail string) error {
	const q = `UPDATE events SET thumbnail = $1 WHERE id = $2`
	_, err := s.pool.Exec(ctx, q, thumbnail, eventID)
	if err != nil {
		return fmt.Errorf("update thumbnail for %s: %w", eventID, err)
	}
	return nil
}

// GetEvent retrieves one event by id, returning (nil, nil) if absent.
func (s *Store) GetEvent(ctx context.Context, id string) (*Event, error) {
	const q = `SELECT id, camera_id, class_name, ts, thumbnail, score FROM events WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, id)

	var e Event
	if err := row.Scan(&e.ID, &e.CameraID, &e.ClassName, &e.Timestamp, &e.Thumbnail, &e.Score); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return &e, nil
}
