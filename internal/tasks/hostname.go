package tasks

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/plexsphere/platctl/internal/fsutil"
	"github.com/plexsphere/platctl/internal/sysrestore"
)

const (
	stateModuleNetwork = "network"
	stateKeyHostname   = "hostname"
)

// BackupAndReplaceHostname sets the host name to hostname, both for the
// running kernel and in /etc/hostname. The previous name is recorded in
// state and the previous /etc/hostname in files. Failing to set the
// running host name is logged; the persistent name is still written.
func (t *Tasks) BackupAndReplaceHostname(ctx context.Context, files FileStore, state StateStore, hostname string) error {
	oldHostname, err := t.hostname()
	if err != nil {
		t.logger.Warn("failed to read current hostname", "error", err)
	}
	if _, err := t.run.Run(ctx, []string{t.paths.BinHostname, hostname}); err != nil {
		t.logger.Error("failed to set this machine hostname", "hostname", hostname, "error", err)
	}

	path := t.paths.EtcHostname
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if name := firstEntry(data); name != "" {
			oldHostname = name
		}
		if err := files.BackupFile(path); err != nil {
			return fmt.Errorf("tasks: backup %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("tasks: read %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("tasks: create %s: %w", filepath.Dir(path), err)
	}
	if err := fsutil.WritePathAtomic(path, []byte(hostname+"\n"), 0o644); err != nil {
		return fmt.Errorf("tasks: write %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("tasks: chmod %s: %w", path, err)
	}
	if t.isRoot() {
		if err := os.Chown(path, 0, 0); err != nil {
			return fmt.Errorf("tasks: chown %s: %w", path, err)
		}
	}
	if err := t.RestoreContext(path); err != nil {
		return err
	}

	if err := state.BackupState(stateModuleNetwork, stateKeyHostname, oldHostname); err != nil {
		return fmt.Errorf("tasks: record old hostname: %w", err)
	}
	t.logger.Info("hostname replaced", "hostname", hostname, "previous", oldHostname)
	return nil
}

// RestoreNetworkConfiguration undoes BackupAndReplaceHostname. A backed-up
// /etc/sysconfig/network is restored next to its original location, since
// the file is no longer read by the system. If no host name file had been
// configured before, the one written at install time is removed.
func (t *Tasks) RestoreNetworkConfiguration(files FileStore, state StateStore) error {
	oldHostname, err := state.GetState(stateModuleNetwork, stateKeyHostname)
	if err != nil && !errors.Is(err, sysrestore.ErrNotFound) {
		return fmt.Errorf("tasks: read old hostname: %w", err)
	}
	configured := false

	restore := func(path, newPath string) error {
		ok, err := files.HasFile(path)
		if err != nil || !ok {
			return err
		}
		if err := files.RestoreFile(path, newPath); err != nil {
			return fmt.Errorf("tasks: restore %s: %w", path, err)
		}
		configured = true
		return nil
	}

	if err := restore(t.paths.SysconfigNetwork, t.paths.SysconfigNetworkIPABk); err != nil {
		return err
	}
	if configured {
		t.logger.Info("deprecated configuration file restored",
			"path", t.paths.SysconfigNetwork, "restored_to", t.paths.SysconfigNetworkIPABk)
	}
	if err := restore(t.paths.EtcHostname, ""); err != nil {
		return err
	}

	if !configured && oldHostname != "" {
		if err := os.Remove(t.paths.EtcHostname); err != nil && !errors.Is(err, fs.ErrNotExist) {
			t.logger.Warn("failed to remove hostname file", "path", t.paths.EtcHostname, "error", err)
		}
	}
	return nil
}

// firstEntry returns the first line of data that is neither blank nor a
// comment.
func firstEntry(data []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}
