// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tomtom215/resonance/internal/recommend"
)

// snapshotFormatVersion is bumped when MemoryState changes incompatibly.
const snapshotFormatVersion = 1

// TrackRecord is the serialized form of a catalog entry.
type TrackRecord struct {
	ID        int64
	Status    string
	Genre     string
	Embedding []float64
}

// MemoryState is the full contents of a Memory backend.
type MemoryState struct {
	Tracks          []TrackRecord
	Likes           map[int64][]int64
	Preferences     map[int64]recommend.DeclaredPreferences
	Recommendations map[int64][]recommend.Recommendation
}

// SnapshotMetadata describes a stored snapshot.
type SnapshotMetadata struct {
	// Version is the snapshot format version.
	Version int `json:"version"`

	// SavedAt is when the snapshot was written.
	SavedAt time.Time `json:"saved_at"`

	// Tracks is the number of catalog entries.
	Tracks int `json:"tracks"`

	// Users is the number of users with likes, preferences or recommendations.
	Users int `json:"users"`

	// Checksum is the SHA-256 checksum of the uncompressed state.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed state size in bytes.
	SizeBytes int64 `json:"size_bytes"`
}

// snapshotEnvelope is the on-disk format.
type snapshotEnvelope struct {
	Metadata       SnapshotMetadata
	CompressedData []byte
}

// SnapshotFile persists MemoryState as gzip-compressed gob with a checksum.
// Writes go to a temporary file that is renamed into place.
type SnapshotFile struct {
	path string
	mu   sync.Mutex
}

// NewSnapshotFile returns a SnapshotFile for path.
func NewSnapshotFile(path string) *SnapshotFile {
	return &SnapshotFile{path: path}
}

// Path returns the snapshot location.
func (s *SnapshotFile) Path() string { return s.path }

// IsSnapshotMissing reports whether err means no snapshot has been written.
func IsSnapshotMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func countUsers(state *MemoryState) int {
	users := make(map[int64]struct{})
	for id := range state.Likes {
		users[id] = struct{}{}
	}
	for id := range state.Preferences {
		users[id] = struct{}{}
	}
	for id := range state.Recommendations {
		users[id] = struct{}{}
	}
	return len(users)
}

// Save writes state and returns the metadata recorded with it.
func (s *SnapshotFile) Save(ctx context.Context, state *MemoryState) (*SnapshotMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	rawData := buf.Bytes()

	hash := sha256.Sum256(rawData)

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(rawData); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	meta := SnapshotMetadata{
		Version:   snapshotFormatVersion,
		SavedAt:   time.Now().UTC(),
		Tracks:    len(state.Tracks),
		Users:     countUsers(state),
		Checksum:  hex.EncodeToString(hash[:]),
		SizeBytes: int64(compressed.Len()),
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create snapshot directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*")
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() //nolint:errcheck // no-op after a successful rename

	if err := gob.NewEncoder(tmp).Encode(snapshotEnvelope{Metadata: meta, CompressedData: compressed.Bytes()}); err != nil {
		_ = tmp.Close() //nolint:errcheck // write error takes precedence
		return nil, fmt.Errorf("write snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close snapshot file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return nil, fmt.Errorf("install snapshot file: %w", err)
	}

	return &meta, nil
}

// Load reads and verifies the snapshot. A missing file yields an error for
// which IsSnapshotMissing is true.
func (s *SnapshotFile) Load(ctx context.Context) (*MemoryState, *SnapshotMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // error on close after read is not actionable

	var env snapshotEnvelope
	if err := gob.NewDecoder(f).Decode(&env); err != nil {
		return nil, nil, fmt.Errorf("read snapshot file: %w", err)
	}
	if env.Metadata.Version != snapshotFormatVersion {
		return nil, nil, fmt.Errorf("unsupported snapshot version %d", env.Metadata.Version)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(env.CompressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // error on gzip close after read is not actionable

	rawData, err := io.ReadAll(gzr)
	if err != nil {
		return nil, nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(rawData)
	if checksum := hex.EncodeToString(hash[:]); checksum != env.Metadata.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", env.Metadata.Checksum, checksum)
	}

	var state MemoryState
	if err := gob.NewDecoder(bytes.NewReader(rawData)).Decode(&state); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}

	return &state, &env.Metadata, nil
}
