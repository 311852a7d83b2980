package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/clock"
)

func TestCertmonger_NoOp(t *testing.T) {
	env := newTestEnv(t, nil)
	svc := env.make(t, "certmonger")
	ctx := context.Background()

	ops := map[string]func() error{
		"start":             func() error { return svc.Start(ctx, "") },
		"stop":              func() error { return svc.Stop(ctx, "") },
		"restart":           func() error { return svc.Restart(ctx, "inst") },
		"reload-or-restart": func() error { return svc.ReloadOrRestart(ctx, "") },
		"enable":            func() error { return svc.Enable(ctx, "") },
		"disable":           func() error { return svc.Disable(ctx, "") },
		"mask":              func() error { return svc.Mask(ctx, "") },
		"unmask":            func() error { return svc.Unmask(ctx, "") },
		"is-running":        func() error { _, err := svc.IsRunning(ctx, ""); return err },
		"is-enabled":        func() error { _, err := svc.IsEnabled(ctx, ""); return err },
		"is-installed":      func() error { _, err := svc.IsInstalled(ctx); return err },
		"status":            func() error { _, err := svc.Status(ctx, ""); return err },
	}
	for name, op := range ops {
		if err := op(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if calls := env.ctrl.Calls(); len(calls) != 0 {
		t.Errorf("no-op service invoked the init system: %v", calls)
	}
	if svc.UnitName() != "there-is-no-certmonger" {
		t.Errorf("UnitName = %q", svc.UnitName())
	}
}

func TestIPA_EnableThenRestart(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.make(t, "ipa").Enable(context.Background(), ""); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	calls := env.ctrl.Calls()
	if len(calls) < 2 || calls[0] != "enable ipa.service" || calls[1] != "restart ipa.service" {
		t.Errorf("calls = %v, want enable then restart", calls)
	}
	if n := env.ctrl.count("restart"); n != 1 {
		t.Errorf("restart called %d times, want 1", n)
	}
}

func TestIPA_EnableFailureSkipsRestart(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ctrl.errs = map[string]error{"enable": errors.New("access denied")}
	if err := env.make(t, "ipa").Enable(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
	if n := env.ctrl.count("restart"); n != 0 {
		t.Errorf("restart called %d times after failed enable", n)
	}
}

func TestSSH_ConfigDir(t *testing.T) {
	env := newTestEnv(t, nil)
	if got := env.make(t, "sshd").ConfigDir(""); got != env.paths.SSHConfigDir {
		t.Errorf("ConfigDir = %q, want %q", got, env.paths.SSHConfigDir)
	}
}

func TestNamedAndODS_Identity(t *testing.T) {
	env := newTestEnv(t, nil)
	named := env.make(t, "named")
	if named.UserName() != "named" || named.GroupName() != "named" {
		t.Errorf("named user/group = %q/%q", named.UserName(), named.GroupName())
	}
	if named.PackageName() != "bind" || named.BinaryPath() != env.paths.NamedPKCS11 {
		t.Errorf("named package/binary = %q/%q", named.PackageName(), named.BinaryPath())
	}
	for _, name := range []string{"ods-enforcerd", "ods_enforcerd"} {
		ods := env.make(t, name)
		if ods.UserName() != "ods" || ods.GroupName() != "ods" {
			t.Errorf("%s user/group = %q/%q", name, ods.UserName(), ods.GroupName())
		}
	}
	if plain := env.make(t, "httpd"); plain.UserName() != "" || plain.PackageName() != "" {
		t.Error("plain services have no fixed identity")
	}
}

// --- CA readiness polling ---

func TestCA_RunningOnFirstCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	start := env.clock.Now()

	if err := env.make(t, "pki-tomcatd").Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := env.ca.Calls(); n != 1 {
		t.Errorf("status checks = %d, want 1", n)
	}
	if elapsed := env.clock.Now().Sub(start); elapsed >= env.factory.deps.PollInterval {
		t.Errorf("waited %v, want less than one poll interval", elapsed)
	}
}

func TestCA_TransientStatusCheckErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ca.answers = []statusAnswer{
		{err: errConnRefused},
		{err: errConnRefused},
		{status: "running"},
	}
	if err := env.make(t, "pki_tomcatd").Start(context.Background(), ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := env.ca.Calls(); n != 3 {
		t.Errorf("status checks = %d, want 3 (two retries)", n)
	}
	if n := env.clock.Sleeps(); n != 2 {
		t.Errorf("slept %d times, want 2", n)
	}
}

func TestCA_DidNotStart(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) { d.StartupTimeout = 2 * time.Second })
	env.ca.answers = []statusAnswer{{status: "starting"}}
	start := env.clock.Now()

	err := env.make(t, "pki-tomcatd").Restart(context.Background(), "")
	var didNotStart *DidNotStartError
	if !errors.As(err, &didNotStart) {
		t.Fatalf("error = %v, want *DidNotStartError", err)
	}
	if didNotStart.Timeout != 2*time.Second || didNotStart.LastStatus != "starting" {
		t.Errorf("DidNotStartError = %+v", didNotStart)
	}
	if err.Error() != "services: CA did not start in 2s" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = false")
	}
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Error("DidNotStartError should also be a *TimeoutError")
	}
	if elapsed := env.clock.Now().Sub(start); elapsed != 2*time.Second {
		t.Errorf("waited %v, want 2s", elapsed)
	}
	if n := env.ca.Calls(); n != 3 {
		t.Errorf("status checks = %d, want 3", n)
	}
}

func TestCA_DidNotStartRealClock(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Clock = clock.WallClock
		d.StartupTimeout = 200 * time.Millisecond
		d.PollInterval = 50 * time.Millisecond
	})
	env.ca.answers = []statusAnswer{{err: errConnRefused}}

	start := time.Now()
	err := env.make(t, "pki-cad").Start(context.Background(), "")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want a timeout", err)
	}
	if elapsed < 150*time.Millisecond {
		t.Errorf("gave up after %v, before the timeout", elapsed)
	}
	if elapsed > 5*time.Second {
		t.Errorf("gave up after %v, long after the timeout", elapsed)
	}
}

func TestCA_Cancelled(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Clock = clock.WallClock
		d.StartupTimeout = time.Minute
		d.PollInterval = 10 * time.Millisecond
	})
	env.ca.answers = []statusAnswer{{status: "starting"}}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := env.make(t, "pki-tomcatd").Start(ctx, "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("cancellation must not be reported as a startup timeout")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("cancellation took %v", time.Since(start))
	}
}

func TestCA_NoWaitSkipsStatusCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.make(t, "pki-tomcatd").Start(context.Background(), "", NoWait()); err != nil {
		t.Fatal(err)
	}
	if n := env.ca.Calls(); n != 0 {
		t.Errorf("status checks = %d, want 0", n)
	}
}

func TestCA_StatusURL(t *testing.T) {
	env := newTestEnv(t, nil)
	svc := env.make(t, "pki-tomcatd")

	if err := svc.Start(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if got, want := env.ca.urls[0], "https://ipa.example.com:8443/ca/admin/ca/getStatus"; got != want {
		t.Errorf("url without proxy = %q, want %q", got, want)
	}

	for _, p := range []string{env.paths.HTTPDIPAConf, env.paths.HTTPDIPAPKIProxyConf} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.Restart(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if got, want := env.ca.urls[1], "https://ipa.example.com:443/ca/admin/ca/getStatus"; got != want {
		t.Errorf("url with proxy = %q, want %q", got, want)
	}
}

// --- Directory server instance link repair ---

type dirsrvTree struct {
	override string
	packaged string
	link     string
}

func newDirsrvTree(t *testing.T, env *testEnv, withOverride bool) dirsrvTree {
	t.Helper()
	tree := dirsrvTree{
		override: filepath.Join(env.paths.EtcSystemdSystemDir, "dirsrv@.service"),
		packaged: filepath.Join(env.paths.LibSystemdSystemDir, "dirsrv@.service"),
		link:     filepath.Join(env.paths.EtcSystemdSystemDir, "dirsrv.target.wants", "dirsrv@EXAMPLE.service"),
	}
	for _, dir := range []string{filepath.Dir(tree.packaged), filepath.Dir(tree.link)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(tree.packaged, []byte("[Unit]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if withOverride {
		if err := os.WriteFile(tree.override, []byte("[Unit]\n# local\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return tree
}

func TestDirectory_RestartRepairsLink(t *testing.T) {
	env := newTestEnv(t, nil)
	tree := newDirsrvTree(t, env, true)
	if err := os.Symlink(tree.packaged, tree.link); err != nil {
		t.Fatal(err)
	}
	svc := env.make(t, "dirsrv")

	if err := svc.Restart(context.Background(), "EXAMPLE"); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if target, _ := os.Readlink(tree.link); target != tree.override {
		t.Fatalf("link target = %q, want %q", target, tree.override)
	}
	first, err := os.Lstat(tree.link)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Restart(context.Background(), "EXAMPLE"); err != nil {
		t.Fatalf("second Restart: %v", err)
	}
	second, err := os.Lstat(tree.link)
	if err != nil {
		t.Fatal(err)
	}
	if !os.SameFile(first, second) {
		t.Error("second restart replaced a link that was already correct")
	}
	if n := env.ctrl.count("restart dirsrv@EXAMPLE.service"); n != 2 {
		t.Errorf("restarts = %d, want 2", n)
	}
	if n := env.ctrl.count("daemon-reload"); n != 0 {
		t.Errorf("daemon-reload called %d times, want 0", n)
	}
}

func TestDirectory_RestartCreatesMissingLink(t *testing.T) {
	env := newTestEnv(t, nil)
	tree := newDirsrvTree(t, env, true)

	if err := env.make(t, "dirsrv").Restart(context.Background(), "EXAMPLE"); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if target, _ := os.Readlink(tree.link); target != tree.override {
		t.Errorf("link target = %q, want %q", target, tree.override)
	}
}

func TestDirectory_RestartEnablesWithoutOverride(t *testing.T) {
	env := newTestEnv(t, nil)
	tree := newDirsrvTree(t, env, false)

	if err := env.make(t, "dirsrv").Restart(context.Background(), "EXAMPLE"); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if target, _ := os.Readlink(tree.link); target != tree.packaged {
		t.Errorf("link target = %q, want packaged unit %q", target, tree.packaged)
	}
	calls := env.ctrl.Calls()
	if len(calls) < 2 || calls[0] != "daemon-reload" || calls[1] != "restart dirsrv@EXAMPLE.service" {
		t.Errorf("calls = %v, want daemon-reload then restart", calls)
	}
}

func TestDirectory_RestartWithoutInstance(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.make(t, "dirsrv").Restart(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(env.paths.EtcSystemdSystemDir, "dirsrv.target.wants")); !os.IsNotExist(err) {
		t.Error("restart without an instance must not touch activation links")
	}
}
