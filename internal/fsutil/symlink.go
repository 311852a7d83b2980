package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// ReplaceSymlink points link at target. A temporary link is created next to
// link and renamed over it, so link is never observed missing or half-made.
func ReplaceSymlink(target, link string) error {
	dir := filepath.Dir(link)
	tmp := filepath.Join(dir, ".tmp-"+filepath.Base(link))

	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Symlink(target, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, link); err != nil {
		os.Remove(tmp)
		return err
	}
	return syncDir(dir)
}

// SameFile reports whether a and b resolve to the same file. A missing b
// is not an error: it simply is not the same file.
func SameFile(a, b string) (bool, error) {
	fa, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	fb, err := os.Stat(b)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return os.SameFile(fa, fb), nil
}
