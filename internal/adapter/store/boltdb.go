package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"filehash/internal/domain"
)

var ErrNotFound = errors.New("store: not found")

var (
	bucketBuilds   = []byte("builds")
	bucketRewrites = []byte("rewrites")
	bucketMeta     = []byte("meta")
)

// BoltStore persists build snapshots and the rewrite cache in a bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketBuilds, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

// SaveSnapshot stores s under its ID. IDs sort chronologically.
func (s *BoltStore) SaveSnapshot(snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBuilds).Put([]byte(snap.ID), data)
	})
}

func (s *BoltStore) GetSnapshot(id string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketBuilds).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: snapshot %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &snap)
	})
	return snap, err
}

func (s *BoltStore) LatestSnapshots(n int) ([]domain.Snapshot, error) {
	var snaps []domain.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketBuilds).Cursor()
		for k, v := c.Last(); k != nil && (n <= 0 || len(snaps) < n); k, v = c.Prev() {
			var snap domain.Snapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				continue
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	return snaps, err
}

// PruneSnapshots keeps the newest keep snapshots.
func (s *BoltStore) PruneSnapshots(keep int) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBuilds)
		c := b.Cursor()
		seen := 0
		var stale [][]byte
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
			removed++
		}
		return nil
	})
	return removed, err
}

func (s *BoltStore) GetRewrite(key string) (string, bool, error) {
	var code string
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRewrites)
		if b == nil {
			return nil
		}
		if data := b.Get([]byte(key)); data != nil {
			code = string(data)
			found = true
		}
		return nil
	})
	return code, found, err
}

func (s *BoltStore) PutRewrite(key, code string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketRewrites)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(code))
	})
}

// RewriteCount returns the number of cached rewrites.
func (s *BoltStore) RewriteCount() (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketRewrites); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	return n, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
