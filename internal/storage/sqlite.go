// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/tomtom215/resonance/internal/recommend"
)

// SQLiteOptions configures the SQLite backend.
type SQLiteOptions struct {
	// DSN is a modernc.org/sqlite data source, e.g. "file:/data/resonance.db"
	// or ":memory:".
	DSN string
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tracks (
	id        INTEGER PRIMARY KEY,
	status    TEXT    NOT NULL,
	genre     TEXT    NOT NULL DEFAULT '',
	embedding TEXT
);
CREATE INDEX IF NOT EXISTS idx_tracks_status ON tracks (status);

CREATE TABLE IF NOT EXISTS likes (
	user_id  INTEGER NOT NULL,
	track_id INTEGER NOT NULL,
	PRIMARY KEY (user_id, track_id)
);

CREATE TABLE IF NOT EXISTS preferences (
	user_id INTEGER PRIMARY KEY,
	data    TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS recommendations (
	user_id     INTEGER NOT NULL,
	rank        INTEGER NOT NULL,
	track_id    INTEGER NOT NULL,
	score       REAL    NOT NULL,
	computed_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, rank)
);
`

// SQLite is a single-file SQL backend built on sqlx and the pure-Go
// modernc.org/sqlite driver. Recommendation replacement runs in one
// transaction.
type SQLite struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

type sqliteTrackRow struct {
	ID        int64          `db:"id"`
	Status    string         `db:"status"`
	Genre     string         `db:"genre"`
	Embedding sql.NullString `db:"embedding"`
}

type sqliteRecRow struct {
	UserID     int64   `db:"user_id"`
	Rank       int     `db:"rank"`
	TrackID    int64   `db:"track_id"`
	Score      float64 `db:"score"`
	ComputedAt int64   `db:"computed_at"`
}

// NewSQLite connects to the database and applies the schema.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSQLite(ctx context.Context, opts SQLiteOptions, logger zerolog.Logger) (*SQLite, error) {
	if opts.DSN == "" {
		return nil, errors.New("sqlite dsn is required")
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	// SQLite has a single writer; one connection also keeps ":memory:"
	// databases from splitting across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close() //nolint:errcheck // error path
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close() //nolint:errcheck // error path
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &SQLite{
		db:     db,
		logger: logger.With().Str("component", "storage").Str("backend", BackendSQLite).Logger(),
	}, nil
}

// Name implements Backend.
func (s *SQLite) Name() string { return BackendSQLite }

// Ping implements Backend.
func (s *SQLite) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close implements Backend.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ListTracks implements recommend.CatalogStore.
func (s *SQLite) ListTracks(ctx context.Context, filter recommend.TrackFilter) ([]recommend.Track, error) {
	var rows []sqliteTrackRow
	var err error
	if filter.Status != nil {
		err = s.db.SelectContext(ctx, &rows,
			`SELECT id, status, genre, embedding FROM tracks WHERE status = ? ORDER BY id`, string(*filter.Status))
	} else {
		err = s.db.SelectContext(ctx, &rows,
			`SELECT id, status, genre, embedding FROM tracks ORDER BY id`)
	}
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}

	tracks := make([]recommend.Track, 0, len(rows))
	for _, r := range rows {
		t := recommend.Track{ID: r.ID, Status: recommend.ApprovalStatus(r.Status), Genre: r.Genre}
		if r.Embedding.Valid {
			var values []float64
			if err := json.Unmarshal([]byte(r.Embedding.String), &values); err != nil {
				s.logger.Warn().Int64("track_id", r.ID).Err(err).Msg("undecodable embedding ignored")
			} else {
				t.Embedding = decodeEmbedding(values)
			}
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// LikedTrackIDs implements recommend.InteractionStore.
func (s *SQLite) LikedTrackIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT track_id FROM likes WHERE user_id = ? ORDER BY track_id`, userID); err != nil {
		return nil, fmt.Errorf("liked tracks: %w", err)
	}
	return ids, nil
}

// ListUserIDs implements recommend.InteractionStore.
func (s *SQLite) ListUserIDs(ctx context.Context) ([]int64, error) {
	ids := []int64{}
	if err := s.db.SelectContext(ctx, &ids, `
		SELECT user_id FROM likes
		UNION SELECT user_id FROM preferences
		UNION SELECT user_id FROM recommendations
		ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

// DeclaredPreferences implements recommend.PreferenceStore.
func (s *SQLite) DeclaredPreferences(ctx context.Context, userID int64) (*recommend.DeclaredPreferences, error) {
	var data string
	err := s.db.GetContext(ctx, &data, `SELECT data FROM preferences WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("declared preferences: %w", err)
	}

	var p recommend.DeclaredPreferences
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	return &p, nil
}

// SaveFeatureVector implements recommend.VectorWriter.
func (s *SQLite) SaveFeatureVector(ctx context.Context, trackID int64, v recommend.AudioVector) error {
	if err := v.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(v.Values())
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tracks (id, status, embedding) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET embedding = excluded.embedding`,
		trackID, string(recommend.StatusPending), string(data))
	if err != nil {
		return fmt.Errorf("save feature vector: %w", err)
	}
	return nil
}

// ReplaceRecommendations implements recommend.RecommendationStore.
func (s *SQLite) ReplaceRecommendations(ctx context.Context, userID int64, recs []recommend.Recommendation) (err error) {
	if err := recommend.ValidateRecommendations(userID, recs); err != nil {
		return fmt.Errorf("invalid recommendation set: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // original error takes precedence
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM recommendations WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete recommendations: %w", err)
	}

	if len(recs) > 0 {
		rows := make([]sqliteRecRow, len(recs))
		for i, r := range recs {
			rows[i] = sqliteRecRow{
				UserID:     userID,
				Rank:       r.Rank,
				TrackID:    r.TrackID,
				Score:      r.Score,
				ComputedAt: r.ComputedAt.UnixNano(),
			}
		}
		if _, err = tx.NamedExecContext(ctx, `
			INSERT INTO recommendations (user_id, rank, track_id, score, computed_at)
			VALUES (:user_id, :rank, :track_id, :score, :computed_at)`, rows); err != nil {
			return fmt.Errorf("insert recommendations: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit recommendations: %w", err)
	}
	return nil
}

// GetRecommendations implements recommend.RecommendationStore.
func (s *SQLite) GetRecommendations(ctx context.Context, userID int64, limit int) ([]recommend.Recommendation, error) {
	var rows []sqliteRecRow
	query := `SELECT user_id, rank, track_id, score, computed_at FROM recommendations WHERE user_id = ? ORDER BY rank`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get recommendations: %w", err)
	}

	recs := make([]recommend.Recommendation, len(rows))
	for i, r := range rows {
		recs[i] = recommend.Recommendation{
			UserID:     r.UserID,
			TrackID:    r.TrackID,
			Rank:       r.Rank,
			Score:      r.Score,
			ComputedAt: time.Unix(0, r.ComputedAt).UTC(),
		}
	}
	return recs, nil
}

// UpsertTrack implements Seeder.
//
//nolint:gocritic // hugeParam: track passed by value for interface symmetry
func (s *SQLite) UpsertTrack(ctx context.Context, t recommend.Track) error {
	if err := validateStatus(t.Status); err != nil {
		return err
	}

	var embedding sql.NullString
	if t.Embedding != nil {
		if err := t.Embedding.Validate(); err != nil {
			return err
		}
		data, err := json.Marshal(t.Embedding.Values())
		if err != nil {
			return err
		}
		embedding = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracks (id, status, genre, embedding) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			genre = excluded.genre,
			embedding = COALESCE(excluded.embedding, tracks.embedding)`,
		t.ID, string(t.Status), t.Genre, embedding)
	if err != nil {
		return fmt.Errorf("upsert track: %w", err)
	}
	return nil
}

// AddLike implements Seeder.
func (s *SQLite) AddLike(ctx context.Context, userID, trackID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO likes (user_id, track_id) VALUES (?, ?)`, userID, trackID); err != nil {
		return fmt.Errorf("add like: %w", err)
	}
	return nil
}

// SetPreferences implements Seeder.
func (s *SQLite) SetPreferences(ctx context.Context, userID int64, p *recommend.DeclaredPreferences) error {
	if p == nil {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clear preferences: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, data) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET data = excluded.data`, userID, string(data)); err != nil {
		return fmt.Errorf("set preferences: %w", err)
	}
	return nil
}

var _ Backend = (*SQLite)(nil)
