// recorder persists training frames so runs can be replayed after the fact.
// The original motivation is the render-and-record flow of vision agents:
// every recorded step's composite frame is written durably, keyed by run,
// episode and step, and a playback command reads them back in order.
package recorder

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"framestack/frames"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNoRun is returned by frame operations before BeginRun establishes one.
var ErrNoRun = errors.New("recorder: no active run")

// RunInfo summarizes one recorded run.
type RunInfo struct {
	ID         string
	Note       string
	CreatedAt  time.Time
	FrameCount int64
	Bytes      int64
}

// Store is a sqlite-backed frame archive. Safe for concurrent use; the
// estimator writes while a replay command may read.
type Store struct {
	path string

	mu    sync.RWMutex
	db    *sql.DB
	runID string
}

// NewStore returns an unopened store; call Init before use.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Init opens the database and creates the schema. Idempotent.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("recorder: sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			note TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS run_frames (
			run_id TEXT NOT NULL REFERENCES runs(id),
			episode INTEGER NOT NULL,
			step INTEGER NOT NULL,
			rows INTEGER NOT NULL,
			cols INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, episode, step)
		);
	`)
	return err
}

// BeginRun registers a new run and makes it the target of subsequent
// SaveFrame calls, returning the run id.
func (s *Store) BeginRun(ctx context.Context, note string) (string, error) {
	db, err := s.getDB()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx,
		`INSERT INTO runs (id, note, created_at) VALUES (?, ?, ?)`,
		id, note, time.Now().Unix())
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.runID = id
	s.mu.Unlock()
	return id, nil
}

// SaveFrame persists one frame of the active run. Saving the same
// (episode, step) twice overwrites, so re-recorded episodes stay consistent.
func (s *Store) SaveFrame(ctx context.Context, episode, step int, f *frames.Frame) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	s.mu.RLock()
	runID := s.runID
	s.mu.RUnlock()
	if runID == "" {
		return ErrNoRun
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO run_frames (run_id, episode, step, rows, cols, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, episode, step) DO UPDATE SET
			rows = excluded.rows,
			cols = excluded.cols,
			payload = excluded.payload
	`, runID, episode, step, f.Rows(), f.Cols(), encodeFrame(f))
	return err
}

// Frames returns the recorded frames of one episode in step order.
func (s *Store) Frames(ctx context.Context, runID string, episode int) ([]*frames.Frame, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT rows, cols, payload FROM run_frames
		WHERE run_id = ? AND episode = ?
		ORDER BY step
	`, runID, episode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*frames.Frame
	for rows.Next() {
		var r, c int
		var payload []byte
		if err := rows.Scan(&r, &c, &payload); err != nil {
			return nil, err
		}
		f, err := decodeFrame(r, c, payload)
		if err != nil {
			return nil, fmt.Errorf("decode frame for run %s episode %d: %w", runID, episode, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Episodes returns the episode numbers recorded for a run, in order.
func (s *Store) Episodes(ctx context.Context, runID string) ([]int, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT episode FROM run_frames WHERE run_id = ? ORDER BY episode
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var ep int
		if err := rows.Scan(&ep); err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// Runs lists all recorded runs, newest first, with frame counts and sizes.
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT r.id, r.note, r.created_at,
			COUNT(f.payload), COALESCE(SUM(LENGTH(f.payload)), 0)
		FROM runs r
		LEFT JOIN run_frames f ON f.run_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var createdUnix int64
		if err := rows.Scan(&info.ID, &info.Note, &createdUnix, &info.FrameCount, &info.Bytes); err != nil {
			return nil, err
		}
		info.CreatedAt = time.Unix(createdUnix, 0)
		out = append(out, info)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("recorder: store not initialized")
	}
	return s.db, nil
}

// Frames are stored as little-endian float64 payloads beside their shape.
func encodeFrame(f *frames.Frame) []byte {
	data := f.Data()
	payload := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(payload[i*8:], math.Float64bits(v))
	}
	return payload
}

func decodeFrame(rows, cols int, payload []byte) (*frames.Frame, error) {
	if len(payload) != 8*rows*cols {
		return nil, fmt.Errorf("payload length %d does not match %dx%d", len(payload), rows, cols)
	}
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(payload[i*8:]))
	}
	return frames.New(rows, cols, data)
}
