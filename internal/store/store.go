package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mmcdole/rolo/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket and key names
var (
	bucketSession   = []byte("session")
	keyAccessToken  = []byte("access_token")
	keyRefreshToken = []byte("refresh_token")
)

// TokenStore implements domain.TokenStore using BoltDB.
type TokenStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory copy

	// In-memory copy; the only storage in memory-only mode
	mem    domain.Session
	loaded bool
}

var _ domain.TokenStore = (*TokenStore)(nil)

// NewTokenStore opens (or creates) the token database at path.
// An empty path keeps the tokens in memory only.
func NewTokenStore(path string) (*TokenStore, error) {
	if path == "" {
		// Memory-only mode (no persistence)
		return &TokenStore{loaded: true}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &TokenStore{db: db}, nil
}

func (s *TokenStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Load returns the stored session. A store holding only one of the two
// tokens is reported as empty.
func (s *TokenStore) Load() (domain.Session, bool, error) {
	s.mu.RLock()
	if s.loaded {
		sess := s.mem
		s.mu.RUnlock()
		return sess, sess.Complete(), nil
	}
	s.mu.RUnlock()

	var sess domain.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return nil
		}
		// Values are only valid for the life of the transaction
		sess.AccessToken = string(b.Get(keyAccessToken))
		sess.RefreshToken = string(b.Get(keyRefreshToken))
		return nil
	})
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("failed to read session: %w", err)
	}

	if !sess.Complete() {
		sess = domain.Session{}
	}

	// Promote to memory
	s.mu.Lock()
	s.mem = sess
	s.loaded = true
	s.mu.Unlock()

	return sess, sess.Complete(), nil
}

// Save writes both tokens in one transaction
func (s *TokenStore) Save(sess domain.Session) error {
	if !sess.Complete() {
		return fmt.Errorf("refusing to store partial session")
	}

	s.mu.Lock()
	s.mem = sess
	s.loaded = true
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if err := b.Put(keyAccessToken, []byte(sess.AccessToken)); err != nil {
			return err
		}
		return b.Put(keyRefreshToken, []byte(sess.RefreshToken))
	})
}

// Clear removes both tokens in one transaction
func (s *TokenStore) Clear() error {
	s.mu.Lock()
	s.mem = domain.Session{}
	s.loaded = true
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return nil
		}
		if err := b.Delete(keyAccessToken); err != nil {
			return err
		}
		return b.Delete(keyRefreshToken)
	})
}
