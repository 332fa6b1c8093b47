// Package localstore reads the user's local tool list from a bbolt file.
// The registry treats this store as read-only input: entries are written
// by the editor that owns the file, never written back by the core.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/jin-never/logicworld-sub001/internal/domain"
)

var bucketUserTools = []byte("user_tools")

var ErrStoreClosed = errors.New("local tool store is closed")

type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	path   string
	logger *zap.Logger
	closed bool
}

// Open opens (creating if absent) the local tool store at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("local store path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure local store dir: %w", err)
	}
	options := &bolt.Options{Timeout: time.Second}
	db, err := bolt.Open(trimmed, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketUserTools)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure local store schema: %w", err)
	}
	return &Store{db: db, path: trimmed, logger: logger.Named("localstore")}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Tools returns every decodable local tool. Malformed entries are logged
// and skipped so one corrupt record cannot hide the rest.
func (s *Store) Tools() ([]domain.Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var tools []domain.Tool
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketUserTools)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(key, value []byte) error {
			var tool domain.Tool
			if err := json.Unmarshal(value, &tool); err != nil {
				s.logger.Warn("skip malformed local tool", zap.ByteString("key", key), zap.Error(err))
				return nil
			}
			if tool.ID == "" {
				tool.ID = string(key)
			}
			tools = append(tools, tool)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read local tools: %w", err)
	}
	return tools, nil
}

// Put stores a tool entry. It exists for the editor that maintains the
// file (and for test seeding); the registry itself never calls it.
func (s *Store) Put(tool domain.Tool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if strings.TrimSpace(tool.ID) == "" {
		return fmt.Errorf("tool id is required")
	}
	raw, err := json.Marshal(tool)
	if err != nil {
		return fmt.Errorf("encode local tool: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUserTools).Put([]byte(tool.ID), raw)
	})
}
