// Package history persists one RunSummary per attack invocation to an
// embedded bbolt database, so `culverin history list|show` can inspect
// past runs without re-parsing raw result streams. Grounded on the
// teacher's internal/storage/bolt_store.go bucket-per-collection layout,
// generalized from its ephemeral per-session file (deleted on Close) into
// a single durable database at a caller-supplied path.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"culverin/internal/attack"
	"culverin/internal/metrics"
)

const runsBucket = "runs"

// RunSummary is the derived record stored per attack: the attack's name,
// rate and duration, and the final Metrics snapshot. It never stores raw
// Results — that would be replay/recording, an explicit Non-goal.
type RunSummary struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Name      string        `json:"name"`
	Rate      float64       `json:"rate_per_second"`
	Duration  time.Duration `json:"duration"`
	Metrics   metrics.Metrics `json:"metrics"`
}

// FromAttack builds a RunSummary from a completed attack's Config and its
// final Metrics snapshot.
func FromAttack(id string, at time.Time, cfg attack.Config, m metrics.Metrics) RunSummary {
	return RunSummary{
		ID:        id,
		Timestamp: at,
		Name:      cfg.Name,
		Rate:      cfg.Rate.PerSecond(),
		Duration:  cfg.Duration,
		Metrics:   m,
	}
}

// Store is a bbolt-backed collection of RunSummary records keyed by ID.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("history: opening %q: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: initializing bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error { return s.db.Close() }

// Save writes one RunSummary, overwriting any existing record with the
// same ID.
func (s *Store) Save(r RunSummary) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("history: encoding run summary: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Put([]byte(r.ID), data)
	})
}

// List returns every stored RunSummary, most recently timestamped first.
func (s *Store) List() ([]RunSummary, error) {
	var out []RunSummary
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var r RunSummary
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("history: decoding run %q: %w", k, err)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// Get returns the RunSummary stored under id.
func (s *Store) Get(id string) (*RunSummary, error) {
	var r RunSummary
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(runsBucket)).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &r)
	})
	if err != nil {
		return nil, fmt.Errorf("history: reading run %q: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("history: no run with id %q", id)
	}
	return &r, nil
}
