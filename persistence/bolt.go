package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/wfunc/treasurerace/models"
)

var bucketMatches = []byte("matches")

// BoltStore keeps match results in a local bbolt file, keyed by match id.
type BoltStore struct {
	bolt *bbolt.DB
}

// NewBoltStore opens or creates the file and ensures the bucket exists.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketMatches)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}
	return &BoltStore{bolt: db}, nil
}

func (s *BoltStore) SaveMatchResult(ctx context.Context, result *models.MatchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("boltstore: encode match %s: %w", result.MatchID, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMatches).Put([]byte(result.MatchID), data)
	})
}

func (s *BoltStore) LoadMatchResult(ctx context.Context, matchID string) (*models.MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result *models.MatchResult
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMatches).Get([]byte(matchID))
		if data == nil {
			return ErrRecordNotFound
		}
		result = &models.MatchResult{}
		return json.Unmarshal(data, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close closes the underlying bbolt database.
func (s *BoltStore) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}
