package systemd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreos/go-systemd/v22/dbus"
)

// jobMode is the mode passed to systemd for every queued job.
const jobMode = "replace"

// jobResultDone indicates successful execution of a job.
const jobResultDone = "done"

// enabledStates are the UnitFileState values "systemctl is-enabled" treats
// as enabled.
var enabledStates = map[string]bool{
	"enabled":         true,
	"enabled-runtime": true,
	"static":          true,
	"indirect":        true,
	"generated":       true,
	"alias":           true,
}

// DBusAPI is the subset of *dbus.Conn used by the D-Bus backend.
type DBusAPI interface {
	Close()
	StartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	ReloadOrRestartUnitContext(ctx context.Context, name, mode string, ch chan<- string) (int, error)
	EnableUnitFilesContext(ctx context.Context, files []string, runtime, force bool) (bool, []dbus.EnableUnitFileChange, error)
	DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]dbus.DisableUnitFileChange, error)
	MaskUnitFilesContext(ctx context.Context, files []string, runtime, force bool) ([]dbus.MaskUnitFileChange, error)
	UnmaskUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]dbus.UnmaskUnitFileChange, error)
	ReloadContext(ctx context.Context) error
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]interface{}, error)
	GetServicePropertyContext(ctx context.Context, service, propertyName string) (*dbus.Property, error)
	ListUnitFilesByPatternsContext(ctx context.Context, states, patterns []string) ([]dbus.UnitFile, error)
}

// DBusAPIFactory opens a connection to the system manager.
type DBusAPIFactory = func(ctx context.Context) (DBusAPI, error)

// NewDBusAPI connects to the system instance of systemd.
func NewDBusAPI(ctx context.Context) (DBusAPI, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// DBus implements Controller over the systemd D-Bus API. A connection is
// opened per call, so a DBus value holds no connection state.
type DBus struct {
	newConn DBusAPIFactory
	logger  *slog.Logger
}

// NewDBus returns a D-Bus backed Controller.
func NewDBus(newConn DBusAPIFactory, logger *slog.Logger) *DBus {
	return &DBus{
		newConn: newConn,
		logger:  logger.With("component", "systemd", "backend", "dbus"),
	}
}

type jobFunc func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

func (c *DBus) Start(ctx context.Context, unit string, _ bool) error {
	return c.job(ctx, "start", unit, func(conn DBusAPI) jobFunc { return conn.StartUnitContext })
}

func (c *DBus) Stop(ctx context.Context, unit string, _ bool) error {
	return c.job(ctx, "stop", unit, func(conn DBusAPI) jobFunc { return conn.StopUnitContext })
}

func (c *DBus) Restart(ctx context.Context, unit string, _ bool) error {
	return c.job(ctx, "restart", unit, func(conn DBusAPI) jobFunc { return conn.RestartUnitContext })
}

func (c *DBus) ReloadOrRestart(ctx context.Context, unit string, _ bool) error {
	return c.job(ctx, "reload-or-restart", unit, func(conn DBusAPI) jobFunc { return conn.ReloadOrRestartUnitContext })
}

func (c *DBus) Enable(ctx context.Context, unit string) error {
	return c.withConn(ctx, "enable", unit, func(conn DBusAPI) error {
		if _, _, err := conn.EnableUnitFilesContext(ctx, []string{unit}, false, true); err != nil {
			return err
		}
		return conn.ReloadContext(ctx)
	})
}

func (c *DBus) Disable(ctx context.Context, unit string) error {
	return c.withConn(ctx, "disable", unit, func(conn DBusAPI) error {
		if _, err := conn.DisableUnitFilesContext(ctx, []string{unit}, false); err != nil {
			return err
		}
		return conn.ReloadContext(ctx)
	})
}

func (c *DBus) Mask(ctx context.Context, unit string) error {
	return c.withConn(ctx, "mask", unit, func(conn DBusAPI) error {
		_, err := conn.MaskUnitFilesContext(ctx, []string{unit}, false, true)
		return err
	})
}

func (c *DBus) Unmask(ctx context.Context, unit string) error {
	return c.withConn(ctx, "unmask", unit, func(conn DBusAPI) error {
		_, err := conn.UnmaskUnitFilesContext(ctx, []string{unit}, false)
		return err
	})
}

func (c *DBus) DaemonReload(ctx context.Context) error {
	return c.withConn(ctx, "daemon-reload", "", func(conn DBusAPI) error {
		return conn.ReloadContext(ctx)
	})
}

func (c *DBus) ActiveState(ctx context.Context, unit string) (string, error) {
	st, err := c.Show(ctx, unit)
	if err != nil {
		return "", err
	}
	if st.ActiveState == "" {
		return StateInactive, nil
	}
	return st.ActiveState, nil
}

func (c *DBus) IsEnabled(ctx context.Context, unit string) (bool, error) {
	st, err := c.Show(ctx, unit)
	if err != nil {
		return false, err
	}
	return enabledStates[st.UnitFileState], nil
}

func (c *DBus) IsMasked(ctx context.Context, unit string) (bool, error) {
	st, err := c.Show(ctx, unit)
	if err != nil {
		return false, err
	}
	return st.UnitFileState == "masked" || st.LoadState == "masked", nil
}

func (c *DBus) IsInstalled(ctx context.Context, unit string) (bool, error) {
	var found bool
	err := c.withConn(ctx, "list-unit-files", unit, func(conn DBusAPI) error {
		files, err := conn.ListUnitFilesByPatternsContext(ctx, nil, []string{unit})
		if err != nil {
			return err
		}
		found = len(files) > 0
		return nil
	})
	return found, err
}

func (c *DBus) Show(ctx context.Context, unit string) (UnitStatus, error) {
	st := UnitStatus{Unit: unit}
	err := c.withConn(ctx, "show", unit, func(conn DBusAPI) error {
		props, err := conn.GetUnitPropertiesContext(ctx, unit)
		if err != nil {
			return err
		}
		st = statusFromProperties(unit, props)
		if strings.HasSuffix(st.Unit, ".service") {
			st.MainPID = c.mainPID(ctx, conn, st.Unit)
		}
		return nil
	})
	return st, err
}

// mainPID reads the service's MainPID, which lives on the Service
// interface rather than the Unit one. 0 means no main process.
func (c *DBus) mainPID(ctx context.Context, conn DBusAPI, unit string) int {
	prop, err := conn.GetServicePropertyContext(ctx, unit, "MainPID")
	if err != nil {
		c.logger.Debug("MainPID unavailable", "unit", unit, "error", err)
		return 0
	}
	pid, _ := prop.Value.Value().(uint32)
	return int(pid)
}

func statusFromProperties(unit string, props map[string]interface{}) UnitStatus {
	str := func(key string) string {
		s, _ := props[key].(string)
		return s
	}
	st := UnitStatus{
		Unit:          unit,
		Description:   str("Description"),
		LoadState:     str("LoadState"),
		ActiveState:   str("ActiveState"),
		SubState:      str("SubState"),
		UnitFileState: str("UnitFileState"),
	}
	if id := str("Id"); id != "" {
		st.Unit = id
	}
	return st
}

func (c *DBus) job(ctx context.Context, verb, unit string, pick func(DBusAPI) jobFunc) error {
	return c.withConn(ctx, verb, unit, func(conn DBusAPI) error {
		ch := make(chan string, 1)
		if _, err := pick(conn)(ctx, unit, jobMode, ch); err != nil {
			return err
		}
		select {
		case result := <-ch:
			if result != jobResultDone {
				return &JobError{Verb: verb, Unit: unit, Result: result}
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (c *DBus) withConn(ctx context.Context, verb, unit string, fn func(DBusAPI) error) error {
	conn, err := c.newConn(ctx)
	if err != nil {
		return fmt.Errorf("systemd: connect to dbus: %w", err)
	}
	defer conn.Close()

	c.logger.Debug("dbus call", "verb", verb, "unit", unit)
	if err := fn(conn); err != nil {
		var jobErr *JobError
		if errors.As(err, &jobErr) {
			return err
		}
		return fmt.Errorf("systemd: %s %s: %w", verb, unit, err)
	}
	return nil
}
