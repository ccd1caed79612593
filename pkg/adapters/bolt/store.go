package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paisatax/taxgraph/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

var sessionsBucket = []byte("sessions")

// Store implements ports.StateStore on a single bbolt file.
// Sessions live in one bucket as JSON values keyed by session key.
type Store struct {
	filename string
	db       *bolt.DB
}

// Open opens (or creates) the database file and ensures the bucket exists.
func Open(filename string) (*Store, error) {
	opts := &bolt.Options{
		Timeout: time.Second,
	}
	db, err := bolt.Open(filename, 0o644, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store %s: %w", filename, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create sessions bucket: %w", err)
	}
	return &Store{filename: filename, db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save persists the session.
func (s *Store) Save(ctx context.Context, key string, session *domain.Session) error {
	if key == "" {
		return fmt.Errorf("session key cannot be empty")
	}
	js, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(key), js)
	})
}

// Load retrieves the session.
func (s *Store) Load(ctx context.Context, key string) (*domain.Session, error) {
	var session *domain.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(sessionsBucket).Get([]byte(key))
		if bs == nil {
			return domain.ErrSessionNotFound
		}
		// bs is only valid inside the transaction; Unmarshal copies.
		var loaded domain.Session
		if err := json.Unmarshal(bs, &loaded); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		session = &loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(key))
	})
}

// List returns stored session keys in byte order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	keys := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(sessionsBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return keys, nil
}
