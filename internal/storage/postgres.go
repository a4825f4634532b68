// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver for migrations
	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/recommend"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// PostgresOptions configures the PostgreSQL backend.
type PostgresOptions struct {
	// DSN is a libpq-style connection string or postgres:// URL.
	DSN string

	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32

	// MigrateOnStart applies pending migrations before the pool opens.
	MigrateOnStart bool
}

// Postgres is the production SQL backend. Recommendation replacement runs
// in a single transaction per user.
type Postgres struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

type pgTrackRow struct {
	ID        int64     `db:"id"`
	Status    string    `db:"status"`
	Genre     string    `db:"genre"`
	Embedding []float64 `db:"embedding"`
}

type pgRecRow struct {
	UserID     int64     `db:"user_id"`
	Rank       int       `db:"rank"`
	TrackID    int64     `db:"track_id"`
	Score      float64   `db:"score"`
	ComputedAt time.Time `db:"computed_at"`
}

// RunMigrations applies the embedded schema migrations to the database at
// dsn. An up-to-date schema is not an error.
func RunMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer func() { _ = db.Close() }() //nolint:errcheck // migration result takes precedence

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	src, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// NewPostgres opens a connection pool, optionally migrating first.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewPostgres(ctx context.Context, opts PostgresOptions, logger zerolog.Logger) (*Postgres, error) {
	if opts.DSN == "" {
		return nil, errors.New("postgres dsn is required")
	}
	logger = logger.With().Str("component", "storage").Str("backend", BackendPostgres).Logger()

	if opts.MigrateOnStart {
		if err := RunMigrations(opts.DSN); err != nil {
			return nil, err
		}
		logger.Info().Msg("postgres migrations applied")
	}

	cfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	p := &Postgres{pool: pool, logger: logger}
	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return p, nil
}

// Name implements Backend.
func (p *Postgres) Name() string { return BackendPostgres }

// Ping implements Backend.
func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.pool.Ping(ctx)
}

// Close implements Backend.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// ListTracks implements recommend.CatalogStore.
func (p *Postgres) ListTracks(ctx context.Context, filter recommend.TrackFilter) ([]recommend.Track, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if filter.Status != nil {
		rows, err = p.pool.Query(ctx,
			`SELECT id, status, genre, embedding FROM tracks WHERE status = $1 ORDER BY id`, string(*filter.Status))
	} else {
		rows, err = p.pool.Query(ctx, `SELECT id, status, genre, embedding FROM tracks ORDER BY id`)
	}
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[pgTrackRow])
	if err != nil {
		return nil, fmt.Errorf("scan tracks: %w", err)
	}

	tracks := make([]recommend.Track, len(records))
	for i, r := range records {
		tracks[i] = recommend.Track{
			ID:        r.ID,
			Status:    recommend.ApprovalStatus(r.Status),
			Genre:     r.Genre,
			Embedding: decodeEmbedding(r.Embedding),
		}
	}
	return tracks, nil
}

// LikedTrackIDs implements recommend.InteractionStore.
func (p *Postgres) LikedTrackIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := p.pool.Query(ctx, `SELECT track_id FROM likes WHERE user_id = $1 ORDER BY track_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("liked tracks: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan liked tracks: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// ListUserIDs implements recommend.InteractionStore.
func (p *Postgres) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT user_id FROM likes
		UNION SELECT user_id FROM preferences
		UNION SELECT user_id FROM recommendations
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// DeclaredPreferences implements recommend.PreferenceStore.
func (p *Postgres) DeclaredPreferences(ctx context.Context, userID int64) (*recommend.DeclaredPreferences, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM preferences WHERE user_id = $1`, userID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("declared preferences: %w", err)
	}

	var prefs recommend.DeclaredPreferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return &prefs, nil
}

// SaveFeatureVector implements recommend.VectorWriter.
func (p *Postgres) SaveFeatureVector(ctx context.Context, trackID int64, v recommend.AudioVector) error {
	if err := v.Validate(); err != nil {
		return err
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO tracks (id, status, embedding) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding`,
		trackID, string(recommend.StatusPending), v.Values())
	if err != nil {
		return fmt.Errorf("save feature vector: %w", err)
	}
	return nil
}

// ReplaceRecommendations implements recommend.RecommendationStore.
func (p *Postgres) ReplaceRecommendations(ctx context.Context, userID int64, recs []recommend.Recommendation) error {
	if err := recommend.ValidateRecommendations(userID, recs); err != nil {
		return fmt.Errorf("invalid recommendation set: %w", err)
	}

	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM recommendations WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("delete recommendations: %w", err)
		}
		if len(recs) == 0 {
			return nil
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"recommendations"},
			[]string{"user_id", "rank", "track_id", "score", "computed_at"},
			pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
				r := recs[i]
				return []any{userID, r.Rank, r.TrackID, r.Score, r.ComputedAt}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("insert recommendations: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace recommendations for user %d: %w", userID, err)
	}
	return nil
}

// GetRecommendations implements recommend.RecommendationStore.
func (p *Postgres) GetRecommendations(ctx context.Context, userID int64, limit int) ([]recommend.Recommendation, error) {
	query := `SELECT user_id, rank, track_id, score, computed_at FROM recommendations WHERE user_id = $1 ORDER BY rank`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get recommendations: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[pgRecRow])
	if err != nil {
		return nil, fmt.Errorf("scan recommendations: %w", err)
	}

	recs := make([]recommend.Recommendation, len(records))
	for i, r := range records {
		recs[i] = recommend.Recommendation{
			UserID:     r.UserID,
			TrackID:    r.TrackID,
			Rank:       r.Rank,
			Score:      r.Score,
			ComputedAt: r.ComputedAt.UTC(),
		}
	}
	return recs, nil
}

// UpsertTrack implements Seeder.
//
//nolint:gocritic // hugeParam: track passed by value for interface symmetry
func (p *Postgres) UpsertTrack(ctx context.Context, t recommend.Track) error {
	if err := validateStatus(t.Status); err != nil {
		return err
	}
	if t.Embedding != nil {
		if err := t.Embedding.Validate(); err != nil {
			return err
		}
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO tracks (id, status, genre, embedding) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			genre = EXCLUDED.genre,
			embedding = COALESCE(EXCLUDED.embedding, tracks.embedding)`,
		t.ID, string(t.Status), t.Genre, embeddingValues(t.Embedding))
	if err != nil {
		return fmt.Errorf("upsert track: %w", err)
	}
	return nil
}

// AddLike implements Seeder.
func (p *Postgres) AddLike(ctx context.Context, userID, trackID int64) error {
	if _, err := p.pool.Exec(ctx,
		`INSERT INTO likes (user_id, track_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, trackID); err != nil {
		return fmt.Errorf("add like: %w", err)
	}
	return nil
}

// SetPreferences implements Seeder.
func (p *Postgres) SetPreferences(ctx context.Context, userID int64, prefs *recommend.DeclaredPreferences) error {
	if prefs == nil {
		if _, err := p.pool.Exec(ctx, `DELETE FROM preferences WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear preferences: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, `
		INSERT INTO preferences (user_id, data) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data`, userID, data); err != nil {
		return fmt.Errorf("set preferences: %w", err)
	}
	return nil
}

var _ Backend = (*Postgres)(nil)
