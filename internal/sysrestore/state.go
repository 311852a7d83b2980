package sysrestore

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// StateStore records settings per module, e.g. ("network", "hostname").
type StateStore struct {
	db *bolt.DB
}

// BackupState stores value under module/key, keeping an earlier value if
// one is already recorded.
func (s *StateStore) BackupState(module, key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket(bucketState).CreateBucketIfNotExists([]byte(module))
		if err != nil {
			return err
		}
		if b.Get([]byte(key)) != nil {
			return nil
		}
		return b.Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("sysrestore: backup state %s/%s: %w", module, key, err)
	}
	return nil
}

// GetState returns the value stored under module/key, or ErrNotFound.
func (s *StateStore) GetState(module, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState).Bucket([]byte(module))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		value = string(v)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: state %s/%s", err, module, key)
	}
	return value, nil
}

// DeleteState removes module/key. Removing a missing key is not an error.
func (s *StateStore) DeleteState(module, key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketState).Bucket([]byte(module))
		if b == nil {
			return nil
		}
		if err := b.Delete([]byte(key)); err != nil {
			return err
		}
		if k, _ := b.Cursor().First(); k == nil {
			return tx.Bucket(bucketState).DeleteBucket([]byte(module))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sysrestore: delete state %s/%s: %w", module, key, err)
	}
	return nil
}

// RestoreState returns the value of module/key and forgets it.
func (s *StateStore) RestoreState(module, key string) (string, error) {
	value, err := s.GetState(module, key)
	if err != nil {
		return "", err
	}
	return value, s.DeleteState(module, key)
}

// HasState reports whether anything is recorded for module.
func (s *StateStore) HasState(module string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucketState).Bucket([]byte(module)) != nil
		return nil
	})
	return found, err
}
