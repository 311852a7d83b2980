// Package systemd drives the systemd init system, either through the
// systemctl control program or over D-Bus.
package systemd

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/util"
)

// Controller abstracts systemd unit management for testability.
// Every method addresses a concrete unit name (already resolved and
// instantiated by the caller).
type Controller interface {
	// Start, Stop, Restart and ReloadOrRestart run the corresponding job.
	// capture controls whether the control program's output is captured.
	Start(ctx context.Context, unit string, capture bool) error
	Stop(ctx context.Context, unit string, capture bool) error
	Restart(ctx context.Context, unit string, capture bool) error
	ReloadOrRestart(ctx context.Context, unit string, capture bool) error

	// Enable and Disable toggle boot-time activation.
	Enable(ctx context.Context, unit string) error
	Disable(ctx context.Context, unit string) error

	// Mask and Unmask prevent or allow any activation of the unit.
	Mask(ctx context.Context, unit string) error
	Unmask(ctx context.Context, unit string) error

	// DaemonReload reloads unit files from disk.
	DaemonReload(ctx context.Context) error

	// ActiveState returns the unit's ActiveState ("active", "inactive",
	// "activating", "failed", ...). A stopped unit is not an error.
	ActiveState(ctx context.Context, unit string) (string, error)

	// IsEnabled reports whether the unit is enabled for boot.
	IsEnabled(ctx context.Context, unit string) (bool, error)

	// IsMasked reports whether the unit file is masked.
	IsMasked(ctx context.Context, unit string) (bool, error)

	// IsInstalled reports whether a unit file for unit exists.
	IsInstalled(ctx context.Context, unit string) (bool, error)

	// Show returns the unit's current status without side effects.
	Show(ctx context.Context, unit string) (UnitStatus, error)
}

// Active states reported by systemd.
const (
	StateActive       = "active"
	StateInactive     = "inactive"
	StateActivating   = "activating"
	StateDeactivating = "deactivating"
	StateReloading    = "reloading"
	StateFailed       = "failed"
)

// UnitStatus is a snapshot of a unit's state.
type UnitStatus struct {
	Unit          string `json:"unit"`
	Description   string `json:"description,omitempty"`
	LoadState     string `json:"load_state"`
	ActiveState   string `json:"active_state"`
	SubState      string `json:"sub_state"`
	UnitFileState string `json:"unit_file_state,omitempty"`
	MainPID       int    `json:"main_pid,omitempty"`
}

// Running reports whether the unit is active.
func (s UnitStatus) Running() bool {
	return s.ActiveState == StateActive
}

// Transitional reports whether the unit is on its way to a settled state.
func Transitional(state string) bool {
	return state == StateActivating || state == StateReloading || state == StateDeactivating
}

// String renders the status in systemctl's "active (running)" style.
func (s UnitStatus) String() string {
	if s.SubState == "" {
		return s.ActiveState
	}
	return fmt.Sprintf("%s (%s)", s.ActiveState, s.SubState)
}

// IsRunning reports whether systemd is the local init system.
func IsRunning() bool {
	return util.IsRunningSystemd()
}

// CommandError is returned when the control program exits non-zero.
type CommandError struct {
	Verb     string
	Unit     string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Error returns the formatted error string.
func (e *CommandError) Error() string {
	target := e.Verb
	if e.Unit != "" {
		target += " " + e.Unit
	}
	msg := fmt.Sprintf("systemd: systemctl %s: exit status %d", target, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// JobError is returned by the D-Bus backend when a job finishes with a
// result other than "done".
type JobError struct {
	Verb   string
	Unit   string
	Result string
}

// Error returns the formatted error string.
func (e *JobError) Error() string {
	return fmt.Sprintf("systemd: %s %s: job %s", e.Verb, e.Unit, e.Result)
}
