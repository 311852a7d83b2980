package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/plexsphere/platctl/internal/fsutil"
)

// serviceList records the units started by installer tooling, so that they
// can be stopped again in order. The file holds a JSON array of unit names.
type serviceList struct {
	path string

	mu sync.Mutex
}

func newServiceList(path string) *serviceList {
	return &serviceList{path: path}
}

// Add appends unit unless it is already listed.
func (l *serviceList) Add(unit string) error {
	return l.update(func(units []string) []string {
		if slices.Contains(units, unit) {
			return units
		}
		return append(units, unit)
	})
}

// Remove drops unit from the list.
func (l *serviceList) Remove(unit string) error {
	return l.update(func(units []string) []string {
		return slices.DeleteFunc(units, func(u string) bool { return u == unit })
	})
}

// Units returns the listed units in the order they were added.
func (l *serviceList) Units() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *serviceList) update(fn func([]string) []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	units, err := l.read()
	if err != nil {
		return err
	}
	data, err := json.Marshal(fn(units))
	if err != nil {
		return fmt.Errorf("services: encode service list: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("services: create service list dir: %w", err)
	}
	if err := fsutil.WritePathAtomic(l.path, data, 0o644); err != nil {
		return fmt.Errorf("services: write service list: %w", err)
	}
	return nil
}

func (l *serviceList) read() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("services: read service list: %w", err)
	}
	if len(data) == 0 {
		return []string{}, nil
	}
	var units []string
	if err := json.Unmarshal(data, &units); err != nil {
		return nil, fmt.Errorf("services: parse service list %s: %w", l.path, err)
	}
	return units, nil
}
