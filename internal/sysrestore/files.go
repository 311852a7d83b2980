package sysrestore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	bolt "go.etcd.io/bbolt"

	"github.com/plexsphere/platctl/internal/fsutil"
)

// fileEntry is the index record of one backed-up file.
type fileEntry struct {
	Name string      `json:"name"`
	Mode fs.FileMode `json:"mode"`
	UID  int         `json:"uid"`
	GID  int         `json:"gid"`
}

// FileStore copies files aside before they are modified.
type FileStore struct {
	db  *bolt.DB
	dir string
}

// BackupFile saves a copy of path. A missing path is not backed up and is
// not an error; a path that already has a backup keeps the older copy.
func (f *FileStore) BackupFile(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("sysrestore: backup %s: path must be absolute", path)
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sysrestore: backup %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("sysrestore: backup %s: not a regular file", path)
	}
	if ok, err := f.HasFile(path); err != nil || ok {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("sysrestore: backup %s: %w", path, err)
	}
	entry := fileEntry{Name: backupName(path), Mode: info.Mode().Perm()}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		entry.UID, entry.GID = int(st.Uid), int(st.Gid)
	}
	if err := fsutil.WriteFileAtomic(f.dir, entry.Name, data, 0o600); err != nil {
		return fmt.Errorf("sysrestore: backup %s: %w", path, err)
	}
	return f.put(path, entry)
}

// HasFile reports whether path has a backup.
func (f *FileStore) HasFile(path string) (bool, error) {
	_, err := f.get(path)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// RestoreFile writes the backup of path back to newPath (path itself when
// newPath is empty) with its original mode and owner, and drops the
// backup. It returns ErrNotFound when path has no backup.
func (f *FileStore) RestoreFile(path, newPath string) error {
	entry, err := f.get(path)
	if err != nil {
		return err
	}
	if newPath == "" {
		newPath = path
	}
	backup := filepath.Join(f.dir, entry.Name)
	data, err := os.ReadFile(backup)
	if err != nil {
		return fmt.Errorf("sysrestore: restore %s: %w", path, err)
	}
	if err := fsutil.WritePathAtomic(newPath, data, entry.Mode); err != nil {
		return fmt.Errorf("sysrestore: restore %s: %w", path, err)
	}
	if err := os.Chmod(newPath, entry.Mode); err != nil {
		return fmt.Errorf("sysrestore: restore %s: %w", path, err)
	}
	if err := os.Lchown(newPath, entry.UID, entry.GID); err != nil {
		return fmt.Errorf("sysrestore: restore %s: %w", path, err)
	}
	return f.drop(path, backup)
}

// UntrackFile forgets the backup of path without restoring it. It returns
// ErrNotFound when path has no backup.
func (f *FileStore) UntrackFile(path string) error {
	entry, err := f.get(path)
	if err != nil {
		return err
	}
	return f.drop(path, filepath.Join(f.dir, entry.Name))
}

// Files returns the backed-up paths.
func (f *FileStore) Files() ([]string, error) {
	var paths []string
	err := f.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, _ []byte) error {
			paths = append(paths, string(k))
			return nil
		})
	})
	return paths, err
}

func (f *FileStore) get(path string) (fileEntry, error) {
	var entry fileEntry
	err := f.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketFiles).Get([]byte(path))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &entry)
	})
	if errors.Is(err, ErrNotFound) {
		return entry, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return entry, fmt.Errorf("sysrestore: read index entry %s: %w", path, err)
	}
	return entry, nil
}

func (f *FileStore) put(path string, entry fileEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("sysrestore: encode entry: %w", err)
	}
	err = f.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFiles).Put([]byte(path), data)
	})
	if err != nil {
		return fmt.Errorf("sysrestore: index %s: %w", path, err)
	}
	return nil
}

func (f *FileStore) drop(path, backup string) error {
	err := f.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFiles).Delete([]byte(path))
	})
	if err != nil {
		return fmt.Errorf("sysrestore: untrack %s: %w", path, err)
	}
	if err := os.Remove(backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("sysrestore: remove backup of %s: %w", path, err)
	}
	return nil
}

// backupName derives a stable file name for the backup of path.
func backupName(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8]) + "-" + filepath.Base(path)
}
