package systemd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/plexsphere/platctl/internal/runner"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mock Runner ---

type mockRunner struct {
	calls    [][]string
	settings []runner.Settings
	// respond returns the result for argv; a non-zero exit code is turned
	// into *runner.ExitError unless the call allowed failure.
	respond func(args []string) runner.Result
	err     error
}

func (m *mockRunner) Run(_ context.Context, args []string, opts ...runner.Option) (*runner.Result, error) {
	m.calls = append(m.calls, args)
	set := runner.Apply(opts...)
	m.settings = append(m.settings, set)
	if m.err != nil {
		return nil, m.err
	}
	var res runner.Result
	if m.respond != nil {
		res = m.respond(args)
	}
	if res.ExitCode != 0 && !set.AllowFailure {
		return &res, &runner.ExitError{Args: args, Result: res}
	}
	return &res, nil
}

func newTestSystemctl(m *mockRunner) *Systemctl {
	return NewSystemctl("/usr/bin/systemctl", m, discardLogger())
}

func TestSystemctl_Verbs(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		call func(c *Systemctl) error
		want []string
	}{
		{"start", func(c *Systemctl) error { return c.Start(ctx, "apache2.service", true) }, []string{"/usr/bin/systemctl", "start", "apache2.service"}},
		{"stop", func(c *Systemctl) error { return c.Stop(ctx, "apache2.service", true) }, []string{"/usr/bin/systemctl", "stop", "apache2.service"}},
		{"restart", func(c *Systemctl) error { return c.Restart(ctx, "dirsrv@EXAMPLE.service", false) }, []string{"/usr/bin/systemctl", "restart", "dirsrv@EXAMPLE.service"}},
		{"reload-or-restart", func(c *Systemctl) error { return c.ReloadOrRestart(ctx, "named.service", true) }, []string{"/usr/bin/systemctl", "reload-or-restart", "named.service"}},
		{"enable", func(c *Systemctl) error { return c.Enable(ctx, "sssd.service") }, []string{"/usr/bin/systemctl", "enable", "sssd.service"}},
		{"disable", func(c *Systemctl) error { return c.Disable(ctx, "sssd.service") }, []string{"/usr/bin/systemctl", "disable", "sssd.service"}},
		{"mask", func(c *Systemctl) error { return c.Mask(ctx, "ntpd.service") }, []string{"/usr/bin/systemctl", "mask", "ntpd.service"}},
		{"unmask", func(c *Systemctl) error { return c.Unmask(ctx, "ntpd.service") }, []string{"/usr/bin/systemctl", "unmask", "ntpd.service"}},
		{"daemon-reload", func(c *Systemctl) error { return c.DaemonReload(ctx) }, []string{"/usr/bin/systemctl", "daemon-reload"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockRunner{}
			if err := tt.call(newTestSystemctl(m)); err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if len(m.calls) != 1 {
				t.Fatalf("calls = %d, want 1", len(m.calls))
			}
			if !reflect.DeepEqual(m.calls[0], tt.want) {
				t.Errorf("argv = %v, want %v", m.calls[0], tt.want)
			}
			if tt.name == "restart" && m.settings[0].Capture {
				t.Error("restart was called with capture=false, runner got capture on")
			}
		})
	}
}

func TestSystemctl_CommandError(t *testing.T) {
	m := &mockRunner{respond: func([]string) runner.Result {
		return runner.Result{ExitCode: 1, Stdout: "", Stderr: "Job for apache2.service failed."}
	}}
	err := newTestSystemctl(m).Start(context.Background(), "apache2.service", true)

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("error = %v, want *CommandError", err)
	}
	if cmdErr.Verb != "start" || cmdErr.Unit != "apache2.service" || cmdErr.ExitCode != 1 {
		t.Errorf("CommandError = %+v", cmdErr)
	}
	if !strings.Contains(cmdErr.Error(), "Job for apache2.service failed.") {
		t.Errorf("Error() = %q, should carry stderr", cmdErr.Error())
	}
}

func TestSystemctl_StartFailureIsWrapped(t *testing.T) {
	m := &mockRunner{err: errors.New("exec: not found")}
	err := newTestSystemctl(m).Stop(context.Background(), "x.service", true)
	if err == nil {
		t.Fatal("expected error")
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		t.Error("a failure to run systemctl is not a CommandError")
	}
}

func TestSystemctl_ActiveState(t *testing.T) {
	tests := []struct {
		stdout string
		code   int
		want   string
	}{
		{"active\n", 0, StateActive},
		{"inactive\n", 3, StateInactive},
		{"activating\n", 3, StateActivating},
		{"failed\n", 3, StateFailed},
		{"", 0, StateActive},
		{"", 3, StateInactive},
	}
	for _, tt := range tests {
		m := &mockRunner{respond: func([]string) runner.Result {
			return runner.Result{Stdout: tt.stdout, ExitCode: tt.code}
		}}
		got, err := newTestSystemctl(m).ActiveState(context.Background(), "sssd.service")
		if err != nil {
			t.Fatalf("ActiveState(%q): %v", tt.stdout, err)
		}
		if got != tt.want {
			t.Errorf("ActiveState(%q, %d) = %q, want %q", tt.stdout, tt.code, got, tt.want)
		}
		if m.calls[0][1] != "is-active" {
			t.Errorf("verb = %q, want is-active", m.calls[0][1])
		}
	}
}

func TestSystemctl_IsEnabledAndMasked(t *testing.T) {
	m := &mockRunner{respond: func([]string) runner.Result {
		return runner.Result{Stdout: "masked\n", ExitCode: 1}
	}}
	c := newTestSystemctl(m)
	enabled, err := c.IsEnabled(context.Background(), "ntpd.service")
	if err != nil || enabled {
		t.Errorf("IsEnabled = %v, %v; want false, nil", enabled, err)
	}
	masked, err := c.IsMasked(context.Background(), "ntpd.service")
	if err != nil || !masked {
		t.Errorf("IsMasked = %v, %v; want true, nil", masked, err)
	}
}

func TestSystemctl_IsInstalled(t *testing.T) {
	m := &mockRunner{respond: func([]string) runner.Result {
		return runner.Result{Stdout: "apache2.service enabled enabled\ndirsrv@.service indirect disabled\n"}
	}}
	c := newTestSystemctl(m)
	for unit, want := range map[string]bool{
		"apache2.service": true,
		"dirsrv@.service": true,
		"dirsrv.service":  false,
	} {
		got, err := c.IsInstalled(context.Background(), unit)
		if err != nil {
			t.Fatalf("IsInstalled(%q): %v", unit, err)
		}
		if got != want {
			t.Errorf("IsInstalled(%q) = %v, want %v", unit, got, want)
		}
	}
}

func TestSystemctl_Show(t *testing.T) {
	m := &mockRunner{respond: func([]string) runner.Result {
		return runner.Result{Stdout: "Id=apache2.service\nDescription=The Apache Webserver\nLoadState=loaded\n" +
			"ActiveState=active\nSubState=running\nUnitFileState=enabled\nMainPID=4242\n"}
	}}
	st, err := newTestSystemctl(m).Show(context.Background(), "apache2.service")
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	want := UnitStatus{
		Unit:          "apache2.service",
		Description:   "The Apache Webserver",
		LoadState:     "loaded",
		ActiveState:   "active",
		SubState:      "running",
		UnitFileState: "enabled",
		MainPID:       4242,
	}
	if st != want {
		t.Errorf("Show = %+v, want %+v", st, want)
	}
	if !st.Running() || st.String() != "active (running)" {
		t.Errorf("Running/String = %v/%q", st.Running(), st.String())
	}
	if !strings.HasPrefix(m.calls[0][3], "--property=") {
		t.Errorf("argv = %v, want --property flag", m.calls[0])
	}
}

func TestTransitional(t *testing.T) {
	for state, want := range map[string]bool{
		StateActivating: true, StateReloading: true, StateDeactivating: true,
		StateActive: false, StateFailed: false, StateInactive: false,
	} {
		if got := Transitional(state); got != want {
			t.Errorf("Transitional(%q) = %v, want %v", state, got, want)
		}
	}
}
