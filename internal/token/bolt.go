package token

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketTokens = []byte("tokens")
	keyCurrent   = []byte("current")
)

// BoltStore keeps the credential pair in a local bbolt file so a restart does
// not force a fresh login.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the token database at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open token db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketTokens)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create token bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get() (Pair, error) {
	var pair Pair
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTokens).Get(keyCurrent)
		if data == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("failed to unmarshal token pair: %w", err)
		}
		return nil
	})
	if err != nil {
		return Pair{}, err
	}
	return pair, nil
}

func (s *BoltStore) SetPair(p Pair) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal token pair: %w", err)
		}
		return tx.Bucket(bucketTokens).Put(keyCurrent, data)
	})
}

// SetAccess replaces the access token inside a single transaction so the
// stored refresh token is preserved.
func (s *BoltStore) SetAccess(access string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketTokens)
		data := bucket.Get(keyCurrent)
		if data == nil {
			return ErrNotFound
		}
		var pair Pair
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("failed to unmarshal token pair: %w", err)
		}
		pair.Access = access
		updated, err := json.Marshal(pair)
		if err != nil {
			return fmt.Errorf("failed to marshal token pair: %w", err)
		}
		return bucket.Put(keyCurrent, updated)
	})
}

func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTokens).Delete(keyCurrent)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
