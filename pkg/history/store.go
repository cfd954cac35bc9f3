// Package history keeps past test runs in a bbolt file so a run can be
// compared with the previous one.
package history

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

var runsBucket = []byte("runs")

// Verdict values stored in a Record.
const (
	VerdictPass  = "pass"
	VerdictFail  = "fail"
	VerdictError = "error"
)

// Record is the stored outcome of one run of a suite.
type Record struct {
	Seq       int               `msgpack:"seq" json:"seq"`
	Suite     string            `msgpack:"suite" json:"suite"`
	StartedAt time.Time         `msgpack:"started_at" json:"started_at"`
	Duration  time.Duration     `msgpack:"duration" json:"duration"`
	Checker   string            `msgpack:"checker,omitempty" json:"checker,omitempty"`
	Total     int               `msgpack:"total" json:"total"`
	Passed    int               `msgpack:"passed" json:"passed"`
	Failed    int               `msgpack:"failed" json:"failed"`
	Errored   int               `msgpack:"errored" json:"errored"`
	Verdicts  map[string]string `msgpack:"verdicts" json:"verdicts"`
}

// Failing returns the sorted IDs of cases that did not pass.
func (r Record) Failing() []string {
	var ids []string
	for id, v := range r.Verdicts {
		if v != VerdictPass {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Delta lists cases whose outcome flipped between two runs. Cases absent
// from either run are not reported.
type Delta struct {
	NewlyFailing []string `json:"newly_failing,omitempty"`
	NewlyPassing []string `json:"newly_passing,omitempty"`
}

// Empty reports whether nothing changed.
func (d Delta) Empty() bool {
	return len(d.NewlyFailing) == 0 && len(d.NewlyPassing) == 0
}

// Diff compares the current run against the previous one.
func Diff(prev, cur Record) Delta {
	var d Delta
	for id, now := range cur.Verdicts {
		before, ok := prev.Verdicts[id]
		if !ok {
			continue
		}
		switch {
		case before == VerdictPass && now != VerdictPass:
			d.NewlyFailing = append(d.NewlyFailing, id)
		case before != VerdictPass && now == VerdictPass:
			d.NewlyPassing = append(d.NewlyPassing, id)
		}
	}
	sort.Strings(d.NewlyFailing)
	sort.Strings(d.NewlyPassing)
	return d
}

// Store is a bbolt-backed run history. Each suite has its own bucket keyed
// by a big-endian sequence number.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the history file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Append stores rec under the next sequence number of its suite and returns
// it with Seq set.
func (s *Store) Append(rec Record) (Record, error) {
	if rec.Suite == "" {
		return Record{}, errors.New("history: record has no suite")
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(runsBucket).CreateBucketIfNotExists([]byte(rec.Suite))
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", rec.Suite, err)
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		n, err := safecast.Conv[int](seq)
		if err != nil {
			return fmt.Errorf("sequence %d: %w", seq, err)
		}
		rec.Seq = n

		data, err := msgpack.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		return b.Put(key(seq), data)
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Last returns the newest record of suite. ok is false when the suite has
// no history.
func (s *Store) Last(suite string) (rec Record, ok bool, err error) {
	recs, err := s.List(suite, 1)
	if err != nil || len(recs) == 0 {
		return Record{}, false, err
	}
	return recs[0], true, nil
}

// List returns up to limit records of suite, newest first. A limit of zero
// or less returns every record.
func (s *Store) List(suite string, limit int) ([]Record, error) {
	var out []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(runsBucket).Bucket([]byte(suite))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec Record
			if err := msgpack.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal run %d of %s: %w", binary.BigEndian.Uint64(k), suite, err)
			}
			out = append(out, rec)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Suites returns the names of all suites with history, sorted.
func (s *Store) Suites() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).ForEachBucket(func(k []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Prune keeps the newest keep records of suite and deletes the rest. It
// returns the number of deleted records.
func (s *Store) Prune(suite string, keep int) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(runsBucket).Bucket([]byte(suite))
		if b == nil {
			return nil
		}
		var stale [][]byte
		seen := 0
		c := b.Cursor()
		for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
			seen++
			if seen > keep {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func key(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
