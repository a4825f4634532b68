// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/resonance/internal/recommend"
)

// BadgerOptions configures the Badger backend.
type BadgerOptions struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in memory.
	InMemory bool

	// SyncWrites flushes every commit to disk.
	SyncWrites bool
}

// Key layout. Ids are stored with the sign bit flipped and zero-padded to the
// width of the largest uint64, so lexical order matches numeric order for
// negative ids too.
const (
	badgerTrackPrefix = "track/"
	badgerLikePrefix  = "like/"
	badgerPrefPrefix  = "pref/"
	badgerRecPrefix   = "rec/"
	badgerIDWidth     = 20
)

const badgerSignBit = uint64(1) << 63

func badgerID(id int64) string {
	return fmt.Sprintf("%0*d", badgerIDWidth, uint64(id)^badgerSignBit)
}

func badgerTrackKey(id int64) []byte { return []byte(badgerTrackPrefix + badgerID(id)) }
func badgerPrefKey(user int64) []byte { return []byte(badgerPrefPrefix + badgerID(user)) }
func badgerLikeKey(user, track int64) []byte {
	return []byte(badgerLikePrefix + badgerID(user) + "/" + badgerID(track))
}
func badgerUserLikePrefix(user int64) []byte { return []byte(badgerLikePrefix + badgerID(user) + "/") }
func badgerUserRecPrefix(user int64) []byte  { return []byte(badgerRecPrefix + badgerID(user) + "/") }
func badgerRecKey(user int64, rank int) []byte {
	return []byte(fmt.Sprintf("%s%s/%06d", badgerRecPrefix, badgerID(user), rank))
}

// parseBadgerID reads the id that starts at offset in key.
func parseBadgerID(key []byte, offset int) (int64, error) {
	if len(key) < offset+badgerIDWidth {
		return 0, fmt.Errorf("malformed key %q", key)
	}
	u, err := strconv.ParseUint(string(key[offset:offset+badgerIDWidth]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed key %q: %w", key, err)
	}
	return int64(u ^ badgerSignBit), nil
}

type badgerTrack struct {
	Status    string    `json:"status"`
	Genre     string    `json:"genre,omitempty"`
	Embedding []float64 `json:"embedding,omitempty"`
}

type badgerRec struct {
	TrackID    int64     `json:"track_id"`
	Score      float64   `json:"score"`
	ComputedAt time.Time `json:"computed_at"`
}

// Badger is an embedded key-value backend. A user's recommendation set is
// replaced inside a single read-write transaction.
type Badger struct {
	db     *badger.DB
	logger zerolog.Logger
}

// NewBadger opens (or creates) a Badger database.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBadger(opts BadgerOptions, logger zerolog.Logger) (*Badger, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("badger path is required unless in_memory is set")
	}

	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.SyncWrites = opts.SyncWrites
	bopts.ValueLogFileSize = 64 << 20
	// Reduce logging verbosity
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	return &Badger{
		db:     db,
		logger: logger.With().Str("component", "storage").Str("backend", BackendBadger).Logger(),
	}, nil
}

// Name implements Backend.
func (b *Badger) Name() string { return BackendBadger }

// Ping implements Backend.
func (b *Badger) Ping(context.Context) error {
	if b.db.IsClosed() {
		return errors.New("badger db is closed")
	}
	return nil
}

// Close implements Backend.
func (b *Badger) Close() error {
	return b.db.Close()
}

// ListTracks implements recommend.CatalogStore.
func (b *Badger) ListTracks(_ context.Context, filter recommend.TrackFilter) ([]recommend.Track, error) {
	var tracks []recommend.Track

	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(badgerTrackPrefix), PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id, err := parseBadgerID(item.Key(), len(badgerTrackPrefix))
			if err != nil {
				return err
			}

			var bt badgerTrack
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &bt) }); err != nil {
				return fmt.Errorf("decode track %d: %w", id, err)
			}

			t := recommend.Track{
				ID:        id,
				Status:    recommend.ApprovalStatus(bt.Status),
				Genre:     bt.Genre,
				Embedding: decodeEmbedding(bt.Embedding),
			}
			if filter.Matches(&t) {
				tracks = append(tracks, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}

	if tracks == nil {
		tracks = []recommend.Track{}
	}
	return tracks, nil
}

// LikedTrackIDs implements recommend.InteractionStore.
func (b *Badger) LikedTrackIDs(_ context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	prefix := badgerUserLikePrefix(userID)

	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			id, err := parseBadgerID(it.Item().Key(), len(prefix))
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("liked tracks: %w", err)
	}
	return ids, nil
}

// ListUserIDs implements recommend.InteractionStore.
func (b *Badger) ListUserIDs(_ context.Context) ([]int64, error) {
	users := make(map[int64]struct{})

	err := b.db.View(func(txn *badger.Txn) error {
		for _, prefix := range []string{badgerLikePrefix, badgerPrefPrefix, badgerRecPrefix} {
			if err := b.collectUsers(txn, prefix, users); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return sortedIDs(users), nil
}

func (b *Badger) collectUsers(txn *badger.Txn, prefix string, users map[int64]struct{}) error {
	it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix)})
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		id, err := parseBadgerID(it.Item().Key(), len(prefix))
		if err != nil {
			return err
		}
		users[id] = struct{}{}
	}
	return nil
}

// DeclaredPreferences implements recommend.PreferenceStore.
func (b *Badger) DeclaredPreferences(_ context.Context, userID int64) (*recommend.DeclaredPreferences, error) {
	var prefs *recommend.DeclaredPreferences

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerPrefKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var p recommend.DeclaredPreferences
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &p) }); err != nil {
			return err
		}
		prefs = &p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("declared preferences: %w", err)
	}
	return prefs, nil
}

// SaveFeatureVector implements recommend.VectorWriter.
func (b *Badger) SaveFeatureVector(_ context.Context, trackID int64, v recommend.AudioVector) error {
	if err := v.Validate(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		bt, err := b.getTrack(txn, trackID)
		if err != nil {
			return err
		}
		if bt == nil {
			bt = &badgerTrack{Status: string(recommend.StatusPending)}
		}
		bt.Embedding = v.Values()
		return b.putTrack(txn, trackID, bt)
	})
}

// ReplaceRecommendations implements recommend.RecommendationStore.
func (b *Badger) ReplaceRecommendations(_ context.Context, userID int64, recs []recommend.Recommendation) error {
	if err := recommend.ValidateRecommendations(userID, recs); err != nil {
		return fmt.Errorf("invalid recommendation set: %w", err)
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		prefix := badgerUserRecPrefix(userID)

		var stale [][]byte
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		for _, r := range recs {
			data, err := json.Marshal(badgerRec{TrackID: r.TrackID, Score: r.Score, ComputedAt: r.ComputedAt})
			if err != nil {
				return err
			}
			if err := txn.Set(badgerRecKey(userID, r.Rank), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace recommendations: %w", err)
	}
	return nil
}

// GetRecommendations implements recommend.RecommendationStore.
func (b *Badger) GetRecommendations(_ context.Context, userID int64, limit int) ([]recommend.Recommendation, error) {
	recs := []recommend.Recommendation{}
	prefix := badgerUserRecPrefix(userID)

	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 16})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if limit > 0 && len(recs) >= limit {
				break
			}
			item := it.Item()
			rank, err := strconv.Atoi(string(item.Key()[len(prefix):]))
			if err != nil {
				return fmt.Errorf("malformed key %q", item.Key())
			}
			var br badgerRec
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &br) }); err != nil {
				return err
			}
			recs = append(recs, recommend.Recommendation{
				UserID:     userID,
				TrackID:    br.TrackID,
				Rank:       rank,
				Score:      br.Score,
				ComputedAt: br.ComputedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get recommendations: %w", err)
	}
	return recs, nil
}

// UpsertTrack implements Seeder.
//
//nolint:gocritic // hugeParam: track passed by value for interface symmetry
func (b *Badger) UpsertTrack(_ context.Context, t recommend.Track) error {
	if err := validateStatus(t.Status); err != nil {
		return err
	}
	if t.Embedding != nil {
		if err := t.Embedding.Validate(); err != nil {
			return err
		}
	}

	return b.db.Update(func(txn *badger.Txn) error {
		bt, err := b.getTrack(txn, t.ID)
		if err != nil {
			return err
		}
		if bt == nil {
			bt = &badgerTrack{}
		}
		bt.Status = string(t.Status)
		bt.Genre = t.Genre
		if t.Embedding != nil {
			bt.Embedding = t.Embedding.Values()
		}
		return b.putTrack(txn, t.ID, bt)
	})
}

// AddLike implements Seeder.
func (b *Badger) AddLike(_ context.Context, userID, trackID int64) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerLikeKey(userID, trackID), nil)
	})
}

// SetPreferences implements Seeder.
func (b *Badger) SetPreferences(_ context.Context, userID int64, p *recommend.DeclaredPreferences) error {
	return b.db.Update(func(txn *badger.Txn) error {
		if p == nil {
			return txn.Delete(badgerPrefKey(userID))
		}
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return txn.Set(badgerPrefKey(userID), data)
	})
}

func (b *Badger) getTrack(txn *badger.Txn, id int64) (*badgerTrack, error) {
	item, err := txn.Get(badgerTrackKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var bt badgerTrack
	if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &bt) }); err != nil {
		return nil, fmt.Errorf("decode track %d: %w", id, err)
	}
	return &bt, nil
}

func (b *Badger) putTrack(txn *badger.Txn, id int64, bt *badgerTrack) error {
	data, err := json.Marshal(bt)
	if err != nil {
		return err
	}
	return txn.Set(badgerTrackKey(id), data)
}

var _ Backend = (*Badger)(nil)
