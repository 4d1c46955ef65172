// Package locallog keeps viewing logs in the local slot store for users who
// have not signed in. Records share one JSON array slot with the web client.
package locallog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/hoshidori/hoshidori/internal/storage"
)

// ErrCorrupt marks a slot that exists but does not hold a record array.
var ErrCorrupt = errors.New("local log slot is corrupt")

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// AccessTokens reports the current access token; "" means guest.
type AccessTokens interface {
	AccessToken() string
}

// Store is the local log store. It is safe for concurrent use within one
// process.
type Store struct {
	kv     storage.KV
	tokens AccessTokens
	clock  Clock
	logger *slog.Logger

	mu     sync.Mutex
	lastID int64
}

func New(kv storage.KV, tokens AccessTokens) *Store {
	return NewWithClock(kv, tokens, realClock{})
}

func NewWithClock(kv storage.KV, tokens AccessTokens, clock Clock) *Store {
	return &Store{
		kv:     kv,
		tokens: tokens,
		clock:  clock,
		logger: slog.Default(),
	}
}

// IsGuest reports whether no access token is held.
func (s *Store) IsGuest() bool {
	return s.tokens.AccessToken() == ""
}

// List returns every record, newest first. A missing, unreadable or
// corrupt slot yields an empty list.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

// Get returns the record with the given id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.readAll() {
		if string(r.ID) == id {
			return r, true
		}
	}
	return Record{}, false
}

// Create normalizes p and stores it at the front of the list.
func (s *Store) Create(p Payload) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.readAll()
	now := s.clock.Now()
	rec := normalize(p, now, func() ID { return s.nextID(now, records) })
	records = append([]Record{rec}, records...)
	if err := s.writeAll(records); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Update merges p over the record with the given id. The record's id is
// never changed and updated_at is always set to now. A nil record with a nil
// error means no record has that id.
func (s *Store) Update(id string, p Payload) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.readAll()
	idx := -1
	for i, r := range records {
		if string(r.ID) == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}

	existing := records[idx]
	merged := existing.payload().overlay(p)
	merged.ID = ptr(existing.ID)

	now := s.clock.Now()
	rec := normalize(merged, now, func() ID { return existing.ID })
	rec.UpdatedAt = now.UTC().Format(timeLayout)

	records[idx] = rec
	if err := s.writeAll(records); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes the record with the given id. Deleting an unknown id is a
// no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.readAll()
	kept := records[:0]
	for _, r := range records {
		if string(r.ID) != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return s.writeAll(kept)
}

// DeleteMany removes every record whose id is in ids with a single write.
func (s *Store) DeleteMany(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.readAll()
	kept := records[:0]
	for _, r := range records {
		if !drop[string(r.ID)] {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return s.writeAll(kept)
}

func (s *Store) readAll() []Record {
	records, err := s.load()
	if err != nil {
		s.logger.Warn("local logs unreadable, treating as empty", "error", err)
		return []Record{}
	}
	return records
}

func (s *Store) load() ([]Record, error) {
	raw, ok, err := s.kv.GetItem(storage.KeyLocalLogs)
	if err != nil {
		return nil, fmt.Errorf("reading local logs: %w", err)
	}
	if !ok || raw == "" {
		return []Record{}, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	records := make([]Record, 0, len(elems))
	for i, elem := range elems {
		var r Record
		if err := json.Unmarshal(elem, &r); err != nil {
			s.logger.Warn("skipping unreadable local log", "index", i, "error", err)
			continue
		}
		if !hasJSON(r.Work) {
			r.Work = nil
		}
		records = append(records, r)
	}
	return records, nil
}

func (s *Store) writeAll(records []Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding local logs: %w", err)
	}
	if err := s.kv.SetItem(storage.KeyLocalLogs, string(data)); err != nil {
		return fmt.Errorf("writing local logs: %w", err)
	}
	return nil
}

// nextID returns a millisecond timestamp id that is strictly greater than the
// last id issued by this store and unused by records.
func (s *Store) nextID(now time.Time, records []Record) ID {
	used := make(map[int64]bool, len(records))
	for _, r := range records {
		if n, ok := r.ID.Int64(); ok {
			used[n] = true
		}
	}
	n := now.UnixMilli()
	if n <= s.lastID {
		n = s.lastID + 1
	}
	for used[n] {
		n++
	}
	s.lastID = n
	return ID(strconv.FormatInt(n, 10))
}
