package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/platctl/internal/config"
	"github.com/plexsphere/platctl/internal/paths"
	"github.com/plexsphere/platctl/internal/runner"
	"github.com/plexsphere/platctl/internal/systemd"
)

// --- Fakes ---

type fakeRunner struct {
	calls   [][]string
	respond func(args []string) runner.Result
}

func (f *fakeRunner) Run(_ context.Context, args []string, opts ...runner.Option) (*runner.Result, error) {
	f.calls = append(f.calls, args)
	var res runner.Result
	if f.respond != nil {
		res = f.respond(args)
	}
	if res.ExitCode != 0 && !runner.Apply(opts...).AllowFailure {
		return &res, &runner.ExitError{Args: args, Result: res}
	}
	return &res, nil
}

type fakeController struct {
	calls  []string
	masked bool
}

func (f *fakeController) record(verb, unit string) error {
	f.calls = append(f.calls, verb+" "+unit)
	return nil
}

func (f *fakeController) Start(_ context.Context, unit string, _ bool) error {
	return f.record("start", unit)
}

func (f *fakeController) Stop(_ context.Context, unit string, _ bool) error {
	return f.record("stop", unit)
}

func (f *fakeController) Restart(_ context.Context, unit string, _ bool) error {
	return f.record("restart", unit)
}

func (f *fakeController) ReloadOrRestart(_ context.Context, unit string, _ bool) error {
	return f.record("reload-or-restart", unit)
}

func (f *fakeController) Enable(_ context.Context, unit string) error {
	return f.record("enable", unit)
}

func (f *fakeController) Disable(_ context.Context, unit string) error {
	return f.record("disable", unit)
}

func (f *fakeController) Mask(_ context.Context, unit string) error {
	return f.record("mask", unit)
}

func (f *fakeController) Unmask(_ context.Context, unit string) error {
	return f.record("unmask", unit)
}

func (f *fakeController) DaemonReload(context.Context) error {
	return f.record("daemon-reload", "")
}

func (f *fakeController) ActiveState(context.Context, string) (string, error) {
	return systemd.StateActive, nil
}

func (f *fakeController) IsEnabled(context.Context, string) (bool, error)   { return true, nil }
func (f *fakeController) IsMasked(context.Context, string) (bool, error)    { return f.masked, nil }
func (f *fakeController) IsInstalled(context.Context, string) (bool, error) { return true, nil }

func (f *fakeController) Show(_ context.Context, unit string) (systemd.UnitStatus, error) {
	return systemd.UnitStatus{Unit: unit, LoadState: "loaded", ActiveState: systemd.StateActive, SubState: "running", MainPID: 42}, nil
}

// setup points the CLI at a scratch tree and the given fakes.
func setup(t *testing.T, ctrl *fakeController, run *fakeRunner) paths.Paths {
	t.Helper()
	dir := t.TempDir()
	p := paths.OpenSUSE().Rooted(dir)
	data, err := yaml.Marshal(&config.Config{LogLevel: "error", Paths: p})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "platctl.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	oldRunner, oldController := newRunner, newController
	t.Cleanup(func() {
		newRunner, newController = oldRunner, oldController
		cfgFile = config.DefaultPath
	})
	newRunner = func(*slog.Logger) runner.Runner { return run }
	newController = func(*config.Config, runner.Runner, *slog.Logger) systemd.Controller { return ctrl }

	cfgFile = path
	logLevel, backend = "", ""
	serviceInstance, serviceNoWait, serviceJSON = "", false, false
	servicesShowStatus = false
	hostnameStopServices = nil
	unitsLong = false
	caTrustNickname, caTrustMode = "", "trusted"
	return p
}

func execute(args ...string) (string, error) {
	if args == nil {
		args = []string{}
	}
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCommand_Help(t *testing.T) {
	output, _ := execute()
	if !strings.Contains(output, "platctl") {
		t.Errorf("help output should contain 'platctl', got: %s", output)
	}
	for _, sub := range []string{"service", "services", "units", "hostname", "ca-trust", "container"} {
		if !strings.Contains(output, sub) {
			t.Errorf("help output should list %q, got: %s", sub, output)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2026-01-01")

	output, _ := execute("--version")
	for _, want := range []string{"1.2.3", "abc123", "2026-01-01"} {
		if !strings.Contains(output, want) {
			t.Errorf("version output should contain %q, got: %s", want, output)
		}
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	setup(t, &fakeController{}, &fakeRunner{})
	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := loadConfig(); err == nil {
		t.Fatal("an explicitly named missing config file should fail")
	}
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	setup(t, &fakeController{}, &fakeRunner{})
	logLevel, backend = "debug", "dbus"
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.Backend != config.BackendDBus {
		t.Errorf("LogLevel/Backend = %q/%q", cfg.LogLevel, cfg.Backend)
	}

	backend = "upstart"
	if _, err := loadConfig(); err == nil {
		t.Error("invalid backend override should fail validation")
	}
}
