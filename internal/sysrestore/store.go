// Package sysrestore keeps backups of host files and host settings changed
// during installation, so that uninstallation can put them back.
package sysrestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned when no backup exists for a file or key.
var ErrNotFound = errors.New("sysrestore: not found")

const (
	dbName      = "sysrestore.db"
	filesDir    = "files"
	openTimeout = 5 * time.Second
)

var (
	bucketFiles = []byte("files")
	bucketState = []byte("state")
)

// Store is the backup database of one host. Files holds file backups,
// State holds module settings.
type Store struct {
	db    *bolt.DB
	Files *FileStore
	State *StateStore
}

// Open opens (creating if needed) the store in dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, filesDir), 0o700); err != nil {
		return nil, fmt.Errorf("sysrestore: create %s: %w", dir, err)
	}
	db, err := bolt.Open(filepath.Join(dir, dbName), 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("sysrestore: open database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketFiles, bucketState} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sysrestore: initialize buckets: %w", err)
	}
	return &Store{
		db:    db,
		Files: &FileStore{db: db, dir: filepath.Join(dir, filesDir)},
		State: &StateStore{db: db},
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
