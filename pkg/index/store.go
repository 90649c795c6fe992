// Package index is the Index Store (spec component D): durable storage for
// track metadata and fingerprint hashes, backed by SQLite via
// mattn/go-sqlite3 in WAL mode so ingest writers and identify readers don't
// block one another.
package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/shoresong/audioid/pkg/audioerr"
	"github.com/shoresong/audioid/pkg/fingerprint"
)

// Track is the metadata row for one ingested recording.
type Track struct {
	ID               string
	Title            string
	Artist           string
	DurationFrames   int
	CreatedAt        time.Time
	FingerprintCount int
}

// Stats summarizes the store's current contents.
type Stats struct {
	TrackCount       int
	FingerprintCount int
	Bytes            int64
}

const schema = `
CREATE TABLE IF NOT EXISTS tracks (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	artist TEXT NOT NULL,
	duration_frames INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	fingerprint_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS fingerprints (
	hash INTEGER NOT NULL,
	anchor_time INTEGER NOT NULL,
	track_id TEXT NOT NULL REFERENCES tracks(id)
);

CREATE INDEX IF NOT EXISTS idx_fingerprints_hash ON fingerprints(hash, track_id, anchor_time);
`

// Store is the Index Store contract: create/delete tracks, batch-insert
// fingerprints, and look hashes up by exact match.
type Store struct {
	db *sql.DB
}

// Open creates (or attaches to) a SQLite database at path, enables WAL mode
// for the single-writer/multi-reader concurrency model, and ensures schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on", path))
	if err != nil {
		return nil, audioerr.Storage("open index database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, audioerr.Storage("apply index schema", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTrack inserts the metadata row for a new track. trackID must be
// unique; the caller (the Engine) generates it.
func (s *Store) CreateTrack(ctx context.Context, trackID, title, artist string, durationFrames int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tracks (id, title, artist, duration_frames, created_at, fingerprint_count) VALUES (?, ?, ?, ?, ?, 0)`,
		trackID, title, artist, durationFrames, time.Now().Unix(),
	)
	if err != nil {
		return audioerr.Storage("create track", err)
	}
	return nil
}

// InsertFingerprints writes every fingerprint for trackID inside one
// transaction, so a failure midway leaves no partial fingerprint set (the
// atomic-ingest invariant). batchSize sets how many rows are written
// between checks for cancellation.
func (s *Store) InsertFingerprints(ctx context.Context, trackID string, fps []fingerprint.Fingerprint, batchSize int) error {
	if len(fps) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = len(fps)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		if ctx.Err() != nil {
			return audioerr.Cancelled("insert fingerprints", ctx.Err())
		}
		return audioerr.Storage("begin fingerprint insert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO fingerprints (hash, anchor_time, track_id) VALUES (?, ?, ?)`)
	if err != nil {
		return audioerr.Storage("prepare fingerprint insert", err)
	}
	defer stmt.Close()

	for i, fp := range fps {
		if i > 0 && i%batchSize == 0 {
			select {
			case <-ctx.Done():
				return audioerr.Cancelled("insert fingerprints", ctx.Err())
			default:
			}
		}
		if _, err := stmt.ExecContext(ctx, fp.Hash, fp.AnchorTime, trackID); err != nil {
			if ctx.Err() != nil {
				return audioerr.Cancelled("insert fingerprints", ctx.Err())
			}
			return audioerr.Storage("insert fingerprint", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE tracks SET fingerprint_count = ? WHERE id = ?`, len(fps), trackID); err != nil {
		return audioerr.Storage("update fingerprint count", err)
	}

	if err := tx.Commit(); err != nil {
		return audioerr.Storage("commit fingerprint insert", err)
	}
	return nil
}

// DeleteTrack removes a track and its fingerprints. Deleting an unknown
// trackID is a no-op success (idempotent delete).
func (s *Store) DeleteTrack(ctx context.Context, trackID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return audioerr.Storage("begin delete track", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fingerprints WHERE track_id = ?`, trackID); err != nil {
		return audioerr.Storage("delete fingerprints", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, trackID); err != nil {
		return audioerr.Storage("delete track", err)
	}
	if err := tx.Commit(); err != nil {
		return audioerr.Storage("commit delete track", err)
	}
	return nil
}

// HashMatch is one (track, anchor_time) row returned for a queried hash.
type HashMatch struct {
	TrackID    string
	AnchorTime int
}

// Lookup returns every (track_id, anchor_time) pair stored under hash.
func (s *Store) Lookup(ctx context.Context, hash uint32) ([]HashMatch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT track_id, anchor_time FROM fingerprints WHERE hash = ?`, hash)
	if err != nil {
		return nil, audioerr.Storage("lookup hash", err)
	}
	defer rows.Close()
	return scanMatches(rows)
}

// LookupMany batches Lookup across many hashes in a single query, which
// the Matcher uses so a clip's whole fingerprint set costs one round trip.
func (s *Store) LookupMany(ctx context.Context, hashes []uint32) (map[uint32][]HashMatch, error) {
	result := make(map[uint32][]HashMatch, len(hashes))
	if len(hashes) == 0 {
		return result, nil
	}

	placeholders := make([]byte, 0, len(hashes)*2)
	args := make([]any, len(hashes))
	for i, h := range hashes {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = h
	}

	query := fmt.Sprintf(`SELECT hash, track_id, anchor_time FROM fingerprints WHERE hash IN (%s)`, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, audioerr.Storage("lookup hashes", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash uint32
		var m HashMatch
		if err := rows.Scan(&hash, &m.TrackID, &m.AnchorTime); err != nil {
			return nil, audioerr.Storage("scan hash match", err)
		}
		result[hash] = append(result[hash], m)
	}
	if err := rows.Err(); err != nil {
		return nil, audioerr.Storage("iterate hash matches", err)
	}
	return result, nil
}

// GetTrack returns metadata for trackID, or an ErrStorage-wrapped
// sql.ErrNoRows if it doesn't exist.
func (s *Store) GetTrack(ctx context.Context, trackID string) (*Track, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, artist, duration_frames, created_at, fingerprint_count FROM tracks WHERE id = ?`, trackID)

	var t Track
	var createdAt int64
	if err := row.Scan(&t.ID, &t.Title, &t.Artist, &t.DurationFrames, &createdAt, &t.FingerprintCount); err != nil {
		return nil, audioerr.Storage("get track", err)
	}
	t.CreatedAt = time.Unix(createdAt, 0)
	return &t, nil
}

// ListTracks returns every track's metadata.
func (s *Store) ListTracks(ctx context.Context) ([]Track, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, artist, duration_frames, created_at, fingerprint_count FROM tracks ORDER BY created_at`)
	if err != nil {
		return nil, audioerr.Storage("list tracks", err)
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		var t Track
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.DurationFrames, &createdAt, &t.FingerprintCount); err != nil {
			return nil, audioerr.Storage("scan track", err)
		}
		t.CreatedAt = time.Unix(createdAt, 0)
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// Stats reports aggregate counts across the store, including the database
// file's on-disk size (page_count * page_size).
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&st.TrackCount); err != nil {
		return Stats{}, audioerr.Storage("count tracks", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fingerprints`).Scan(&st.FingerprintCount); err != nil {
		return Stats{}, audioerr.Storage("count fingerprints", err)
	}
	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return Stats{}, audioerr.Storage("read page count", err)
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return Stats{}, audioerr.Storage("read page size", err)
	}
	st.Bytes = pageCount * pageSize
	return st, nil
}

// Optimize runs SQLite's incremental optimizer, recommended after large
// ingest batches to keep the hash index's query plan fresh.
func (s *Store) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA optimize`); err != nil {
		return audioerr.Storage("optimize index", err)
	}
	return nil
}

func scanMatches(rows *sql.Rows) ([]HashMatch, error) {
	var matches []HashMatch
	for rows.Next() {
		var m HashMatch
		if err := rows.Scan(&m.TrackID, &m.AnchorTime); err != nil {
			return nil, audioerr.Storage("scan hash match", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
