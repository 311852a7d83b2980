package systemd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/plexsphere/platctl/internal/runner"
)

// showProperties are the properties queried by Show.
var showProperties = []string{
	"Id", "Description", "LoadState", "ActiveState", "SubState", "UnitFileState", "MainPID",
}

// Systemctl implements Controller by running the systemctl binary.
type Systemctl struct {
	path   string
	run    runner.Runner
	logger *slog.Logger
}

// NewSystemctl returns a Controller that calls the systemctl binary at path.
func NewSystemctl(path string, run runner.Runner, logger *slog.Logger) *Systemctl {
	return &Systemctl{
		path:   path,
		run:    run,
		logger: logger.With("component", "systemd"),
	}
}

func (c *Systemctl) Start(ctx context.Context, unit string, capture bool) error {
	return c.job(ctx, "start", unit, capture)
}

func (c *Systemctl) Stop(ctx context.Context, unit string, capture bool) error {
	return c.job(ctx, "stop", unit, capture)
}

func (c *Systemctl) Restart(ctx context.Context, unit string, capture bool) error {
	return c.job(ctx, "restart", unit, capture)
}

func (c *Systemctl) ReloadOrRestart(ctx context.Context, unit string, capture bool) error {
	return c.job(ctx, "reload-or-restart", unit, capture)
}

func (c *Systemctl) Enable(ctx context.Context, unit string) error {
	return c.job(ctx, "enable", unit, true)
}

func (c *Systemctl) Disable(ctx context.Context, unit string) error {
	return c.job(ctx, "disable", unit, true)
}

func (c *Systemctl) Mask(ctx context.Context, unit string) error {
	return c.job(ctx, "mask", unit, true)
}

func (c *Systemctl) Unmask(ctx context.Context, unit string) error {
	return c.job(ctx, "unmask", unit, true)
}

func (c *Systemctl) DaemonReload(ctx context.Context) error {
	_, err := c.systemctl(ctx, "daemon-reload", "", true, false)
	return err
}

// ActiveState runs "systemctl is-active". is-active exits non-zero for any
// state other than active, so the state is read from stdout instead.
func (c *Systemctl) ActiveState(ctx context.Context, unit string) (string, error) {
	res, err := c.systemctl(ctx, "is-active", unit, true, true)
	if err != nil {
		return "", err
	}
	state := strings.TrimSpace(res.Stdout)
	if state == "" {
		if res.ExitCode == 0 {
			return StateActive, nil
		}
		return StateInactive, nil
	}
	return state, nil
}

func (c *Systemctl) IsEnabled(ctx context.Context, unit string) (bool, error) {
	res, err := c.systemctl(ctx, "is-enabled", unit, true, true)
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

func (c *Systemctl) IsMasked(ctx context.Context, unit string) (bool, error) {
	res, err := c.systemctl(ctx, "is-enabled", unit, true, true)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(res.Stdout) == "masked", nil
}

// IsInstalled looks unit up in "systemctl list-unit-files --full".
func (c *Systemctl) IsInstalled(ctx context.Context, unit string) (bool, error) {
	res, err := c.run.Run(ctx, []string{c.path, "list-unit-files", "--full", "--no-legend", "--no-pager"})
	if err != nil {
		return false, c.commandError("list-unit-files", "", err)
	}
	scanner := bufio.NewScanner(strings.NewReader(res.Stdout))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 && fields[0] == unit {
			return true, nil
		}
	}
	return false, nil
}

// Show parses "systemctl show --property=..." output.
func (c *Systemctl) Show(ctx context.Context, unit string) (UnitStatus, error) {
	args := []string{c.path, "show", unit, "--property=" + strings.Join(showProperties, ",")}
	res, err := c.run.Run(ctx, args)
	if err != nil {
		return UnitStatus{Unit: unit}, c.commandError("show", unit, err)
	}
	return parseShow(unit, res.Stdout), nil
}

func parseShow(unit, output string) UnitStatus {
	st := UnitStatus{Unit: unit}
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		switch key {
		case "Id":
			if value != "" {
				st.Unit = value
			}
		case "Description":
			st.Description = value
		case "LoadState":
			st.LoadState = value
		case "ActiveState":
			st.ActiveState = value
		case "SubState":
			st.SubState = value
		case "UnitFileState":
			st.UnitFileState = value
		case "MainPID":
			if pid, err := strconv.Atoi(value); err == nil {
				st.MainPID = pid
			}
		}
	}
	return st
}

func (c *Systemctl) job(ctx context.Context, verb, unit string, capture bool) error {
	_, err := c.systemctl(ctx, verb, unit, capture, false)
	return err
}

func (c *Systemctl) systemctl(ctx context.Context, verb, unit string, capture, allowFailure bool) (*runner.Result, error) {
	args := []string{c.path, verb}
	if unit != "" {
		args = append(args, unit)
	}
	opts := []runner.Option{runner.Capture(capture)}
	if allowFailure {
		opts = append(opts, runner.AllowFailure())
	}
	c.logger.Debug("systemctl", "verb", verb, "unit", unit)
	res, err := c.run.Run(ctx, args, opts...)
	if err != nil {
		return nil, c.commandError(verb, unit, err)
	}
	return res, nil
}

func (c *Systemctl) commandError(verb, unit string, err error) error {
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{
			Verb:     verb,
			Unit:     unit,
			ExitCode: exitErr.ExitCode,
			Stdout:   exitErr.Stdout,
			Stderr:   exitErr.Stderr,
		}
	}
	return fmt.Errorf("systemd: systemctl %s %s: %w", verb, unit, err)
}
