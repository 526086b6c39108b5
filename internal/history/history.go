// Package history is an append-only transcript store that de-dups by
// end_abs > last_committed_end + epsilon. It opens a modernc.org/sqlite
// database through database/sql and adapts a read-side query pattern to
// writes, using the same driver.
package history

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sumerc/voxpipe/internal/diarize"
)

// Segment is the on-disk shape of a committed history segment.
type Segment struct {
	ID        int64
	Timestamp float64
	SpeakerID int
	Text      string
	StartAbs  float64
	EndAbs    float64
}

// Store is an append-only sqlite-backed transcript sink.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	last float64 // last_committed_end, monotonic
	hasLast bool
	epsilon float64
}

// Open opens (creating if needed) the sqlite database at path. An empty
// path opens an in-memory database, so a caller can default to a
// well-known on-disk path while still allowing an override.
func Open(path string, dedupEpsilonSec float64) (*Store, error) {
	// An empty path opens a private in-memory database, uniquely named
	// per Store so concurrent Stores (as in tests) never share state.
	dsn := fmt.Sprintf("file:voxpipe-%s?mode=memory&cache=shared", uuid.NewString())
	if path != "" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if path == "" {
		// A fresh connection against mode=memory sees an empty database
		// unless every connection is pinned to the same one.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS segments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts REAL NOT NULL,
			speaker_id INTEGER NOT NULL,
			text TEXT NOT NULL,
			start_abs REAL NOT NULL,
			end_abs REAL NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}

	s := &Store{db: db, epsilon: dedupEpsilonSec}
	row := db.QueryRow(`SELECT end_abs FROM segments ORDER BY id DESC LIMIT 1`)
	var lastEnd float64
	if err := row.Scan(&lastEnd); err == nil {
		s.last = lastEnd
		s.hasLast = true
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Append inserts newly committed segments. It de-dups per segment: only segments with end_abs > last_committed_end +
// epsilon are inserted, and last_committed_end only ever advances.
// Returns the segments actually inserted, for callers (e.g. the
// observability surface) that need to know which ones survived de-dup.
func (s *Store) Append(ts float64, segs []diarize.HistorySegment) ([]Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var inserted []Segment
	for _, seg := range segs {
		if s.hasLast && seg.EndAbs <= s.last+s.epsilon {
			continue
		}
		res, err := s.db.Exec(
			`INSERT INTO segments (ts, speaker_id, text, start_abs, end_abs) VALUES (?, ?, ?, ?, ?)`,
			ts, seg.SpeakerID, seg.Text, seg.StartAbs, seg.EndAbs,
		)
		if err != nil {
			return inserted, fmt.Errorf("history: insert: %w", err)
		}
		id, _ := res.LastInsertId()
		inserted = append(inserted, Segment{
			ID: id, Timestamp: ts, SpeakerID: seg.SpeakerID, Text: seg.Text,
			StartAbs: seg.StartAbs, EndAbs: seg.EndAbs,
		})
		s.last = seg.EndAbs
		s.hasLast = true
	}
	return inserted, nil
}

// LastCommittedEnd returns the monotonic watermark used for de-dup.
func (s *Store) LastCommittedEnd() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// All returns every committed segment in append order, for tests and
// the observability surface's transcript replay.
func (s *Store) All() ([]Segment, error) {
	rows, err := s.db.Query(`SELECT id, ts, speaker_id, text, start_abs, end_abs FROM segments ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Segment
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(&seg.ID, &seg.Timestamp, &seg.SpeakerID, &seg.Text, &seg.StartAbs, &seg.EndAbs); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// Count returns the number of committed segments, for SessionEnd logging.
func (s *Store) Count() int {
	row := s.db.QueryRow(`SELECT COUNT(*) FROM segments`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0
	}
	return n
}
