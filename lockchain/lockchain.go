// lockchain.go — tamper-evident receipt persistence
//
// Receipts land in a SQLite table where every row's link hash covers the
// previous row's link hash plus this row's serialized payload.  Rewriting,
// dropping, or reordering any historical receipt breaks every link after
// it, so Verify catches tampering with a single forward walk.
//
// The chain head survives restarts: opening an existing store resumes from
// the last persisted link rather than starting a fresh chain.

package lockchain

import (
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/crypto/blake2b"

	"main/debug"
	"main/types"
)

// ErrChainBroken reports a verification failure at a specific row.
var ErrChainBroken = errors.New("lockchain: link hash mismatch")

const schema = `
CREATE TABLE IF NOT EXISTS receipts (
	seq          INTEGER PRIMARY KEY,
	receipt_id   INTEGER NOT NULL,
	run_id       TEXT    NOT NULL,
	ticks        INTEGER NOT NULL,
	lanes        INTEGER NOT NULL,
	flags        INTEGER NOT NULL,
	span         BLOB    NOT NULL,
	quick_hash   INTEGER NOT NULL,
	content_hash BLOB    NOT NULL,
	ts_ms        INTEGER NOT NULL,
	payload      BLOB    NOT NULL,
	prev_hash    BLOB    NOT NULL,
	link_hash    BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS receipts_quick ON receipts(quick_hash);
`

// payload is the canonical serialized form covered by the link hash.  Field
// order is fixed by the struct; sonnet emits keys in declaration order.
type payload struct {
	ID          uint64 `json:"id"`
	Ticks       uint64 `json:"ticks"`
	Lanes       uint32 `json:"lanes"`
	Flags       uint32 `json:"flags"`
	Span        string `json:"span"`
	QuickHash   uint64 `json:"quick_hash"`
	ContentHash string `json:"content_hash"`
	UnixMs      int64  `json:"ts_ms"`
}

// Store is a receipt sink backed by a hash-chained SQLite table.  Persist is
// serialized internally; the async emitter is its only hot caller.
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	runID   string
	prev    [32]byte
	seq     uint64
	dropped atomic.Uint64
}

// Open creates or resumes a chain at path.  ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("lockchain: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("lockchain: schema: %w", err)
	}
	s := &Store{db: db, runID: uuid.NewString()}

	// Resume the chain head from the last persisted row, if any.
	var seq uint64
	var link []byte
	row := db.QueryRow(`SELECT seq, link_hash FROM receipts ORDER BY seq DESC LIMIT 1`)
	switch err := row.Scan(&seq, &link); {
	case err == sql.ErrNoRows:
	case err != nil:
		db.Close()
		return nil, fmt.Errorf("lockchain: resume: %w", err)
	default:
		s.seq = seq
		copy(s.prev[:], link)
	}
	return s, nil
}

// Persist appends one receipt to the chain.  Serialization failures are
// impossible for the fixed payload shape, so the only error source is the
// database, and a failed insert leaves the in-memory head untouched.
func (s *Store) Persist(e types.ReceiptEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, _ := sonnet.Marshal(payload{
		ID:          e.ID,
		Ticks:       e.Ticks,
		Lanes:       e.Lanes,
		Flags:       e.Flags,
		Span:        hex.EncodeToString(e.Span[:]),
		QuickHash:   e.QuickHash,
		ContentHash: hex.EncodeToString(e.ContentHash[:]),
		UnixMs:      e.UnixMs,
	})
	link := chainLink(&s.prev, body)

	_, err := s.db.Exec(
		`INSERT INTO receipts
		 (seq, receipt_id, run_id, ticks, lanes, flags, span, quick_hash, content_hash, ts_ms, payload, prev_hash, link_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.seq+1, e.ID, s.runID, e.Ticks, e.Lanes, e.Flags, e.Span[:],
		int64(e.QuickHash), e.ContentHash[:], e.UnixMs, body, s.prev[:], link[:],
	)
	if err != nil {
		// A lost receipt must not break the chain, but it must not be
		// invisible either: the head stays put and the loss is counted.
		s.dropped.Add(1)
		debug.DropError("lockchain: persist", err)
		return
	}
	s.seq++
	s.prev = link
}

// Dropped reports how many receipts failed to persist since Open.
func (s *Store) Dropped() uint64 { return s.dropped.Load() }

// Count returns the number of chained receipts.
func (s *Store) Count() (uint64, error) {
	var n uint64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM receipts`).Scan(&n)
	return n, err
}

// Verify walks the full chain, recomputing every link from its predecessor
// and stored payload.  The first mismatch is reported with its sequence.
func (s *Store) Verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT seq, payload, prev_hash, link_hash FROM receipts ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("lockchain: verify: %w", err)
	}
	defer rows.Close()

	var prev [32]byte
	for rows.Next() {
		var seq uint64
		var body, storedPrev, storedLink []byte
		if err := rows.Scan(&seq, &body, &storedPrev, &storedLink); err != nil {
			return fmt.Errorf("lockchain: verify scan: %w", err)
		}
		if string(storedPrev) != string(prev[:]) {
			return fmt.Errorf("%w: seq %d (prev)", ErrChainBroken, seq)
		}
		link := chainLink(&prev, body)
		if string(storedLink) != string(link[:]) {
			return fmt.Errorf("%w: seq %d", ErrChainBroken, seq)
		}
		prev = link
	}
	return rows.Err()
}

// Close flushes and releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func chainLink(prev *[32]byte, body []byte) [32]byte {
	h, _ := blake2b.New256(nil)
	h.Write(prev[:])
	h.Write(body)
	var out [32]byte
	h.Sum(out[:0])
	return out
}
