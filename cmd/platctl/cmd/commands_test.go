package cmd

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io/fs"
	"math/big"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/plexsphere/platctl/internal/runner"
)

func TestUnitsCommand(t *testing.T) {
	setup(t, &fakeController{}, &fakeRunner{})
	output, err := execute("units", "httpd", "pki_tomcatd", "custom")
	if err != nil {
		t.Fatalf("units: %v", err)
	}
	for _, want := range []string{
		"httpd\tapache2.service\n",
		"pki_tomcatd\tpki-tomcatd@pki-tomcat.service\n",
		"custom\tcustom.service\n",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestServicesCommand(t *testing.T) {
	setup(t, &fakeController{}, &fakeRunner{})
	output, err := execute("services")
	if err != nil {
		t.Fatalf("services: %v", err)
	}
	if !strings.Contains(output, "apache2.service") || !strings.Contains(output, "certmonger") {
		t.Errorf("output = %s", output)
	}
}

func TestServiceStart(t *testing.T) {
	ctrl := &fakeController{}
	setup(t, ctrl, &fakeRunner{})
	if _, err := execute("service", "start", "httpd"); err != nil {
		t.Fatalf("service start: %v", err)
	}
	if !slices.Equal(ctrl.calls, []string{"start apache2.service"}) {
		t.Errorf("calls = %v", ctrl.calls)
	}
}

func TestServiceRestart_NoWait(t *testing.T) {
	ctrl := &fakeController{}
	setup(t, ctrl, &fakeRunner{})
	if _, err := execute("service", "restart", "named", "--no-wait"); err != nil {
		t.Fatalf("service restart: %v", err)
	}
	if !slices.Equal(ctrl.calls, []string{"restart named.service"}) {
		t.Errorf("calls = %v", ctrl.calls)
	}
}

func TestServiceStart_UnknownName(t *testing.T) {
	setup(t, &fakeController{}, &fakeRunner{})
	if _, err := execute("service", "start", "no such service"); err == nil {
		t.Fatal("expected error for an invalid service name")
	}
}

func TestServiceStatus_JSON(t *testing.T) {
	setup(t, &fakeController{}, &fakeRunner{})
	output, err := execute("service", "status", "sssd", "--json")
	if err != nil {
		t.Fatalf("service status: %v", err)
	}
	var got struct {
		Service string `json:"service"`
		Enabled bool   `json:"enabled"`
		Status  struct {
			Unit    string `json:"unit"`
			MainPID int    `json:"main_pid"`
		} `json:"status"`
	}
	if err := json.Unmarshal([]byte(output), &got); err != nil {
		t.Fatalf("decode %q: %v", output, err)
	}
	if got.Service != "sssd" || !got.Enabled || got.Status.Unit != "sssd.service" || got.Status.MainPID != 42 {
		t.Errorf("status = %+v", got)
	}
}

func TestUnitsCommand_Long(t *testing.T) {
	setup(t, &fakeController{}, &fakeRunner{})
	output, err := execute("units", "--long", "dirsrv", "pki-cad", "httpd", "custom")
	if err != nil {
		t.Fatalf("units: %v", err)
	}
	for _, want := range []string{
		"dirsrv\tdirsrv@.service\ttemplate\tmapped\n",
		"pki-cad\tpki-cad@pki-ca.service\tinstance\tmapped\n",
		"httpd\tapache2.service\tplain\tmapped\n",
		"custom\tcustom.service\tplain\tderived\n",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestServiceStatus_Masked(t *testing.T) {
	setup(t, &fakeController{masked: true}, &fakeRunner{})
	output, err := execute("service", "status", "ntpd")
	if err != nil {
		t.Fatalf("service status: %v", err)
	}
	if !strings.Contains(output, "Masked:  true") || !strings.Contains(output, "PID:     42") {
		t.Errorf("output = %q", output)
	}
}

func TestServicesDisableTimeSync(t *testing.T) {
	ctrl := &fakeController{}
	setup(t, ctrl, &fakeRunner{})
	output, err := execute("services", "disable-time-sync")
	if err != nil {
		t.Fatalf("services disable-time-sync: %v", err)
	}
	if output != "ntpd\n" {
		t.Errorf("output = %q, want ntpd", output)
	}
	if !slices.Equal(ctrl.calls, []string{"stop ntpd.service", "disable ntpd.service"}) {
		t.Errorf("calls = %v", ctrl.calls)
	}
}

func TestHostnameSet_StopsServices(t *testing.T) {
	ctrl := &fakeController{}
	p := setup(t, ctrl, &fakeRunner{})
	if _, err := execute("hostname", "set", "ipa.example.test", "--stop", "sssd,httpd"); err != nil {
		t.Fatalf("hostname set: %v", err)
	}
	want := []string{"stop sssd.service", "stop apache2.service", "start apache2.service", "start sssd.service"}
	if !slices.Equal(ctrl.calls, want) {
		t.Errorf("calls = %v, want %v", ctrl.calls, want)
	}
	if data, err := os.ReadFile(p.EtcHostname); err != nil || string(data) != "ipa.example.test\n" {
		t.Errorf("hostname file = %q, %v", data, err)
	}
}

func TestContainerCommand(t *testing.T) {
	run := &fakeRunner{respond: func([]string) runner.Result { return runner.Result{Stdout: "lxc\n"} }}
	setup(t, &fakeController{}, run)
	output, err := execute("container")
	if err != nil {
		t.Fatalf("container: %v", err)
	}
	if output != "lxc\n" {
		t.Errorf("output = %q", output)
	}
}

func TestHostnameSetAndRestore(t *testing.T) {
	run := &fakeRunner{}
	p := setup(t, &fakeController{}, run)

	if _, err := execute("hostname", "set", "ipa.example.test"); err != nil {
		t.Fatalf("hostname set: %v", err)
	}
	data, err := os.ReadFile(p.EtcHostname)
	if err != nil || string(data) != "ipa.example.test\n" {
		t.Fatalf("hostname file = %q, %v", data, err)
	}
	if len(run.calls) != 1 || run.calls[0][0] != p.BinHostname {
		t.Errorf("runner calls = %v", run.calls)
	}

	if _, err := execute("hostname", "restore"); err != nil {
		t.Fatalf("hostname restore: %v", err)
	}
	if _, err := os.Stat(p.EtcHostname); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("hostname file should be removed, stat err = %v", err)
	}
}

func writeTestCA(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(7),
		Subject:               pkix.Name{CommonName: "Test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCATrustInstallAndRemove(t *testing.T) {
	run := &fakeRunner{}
	p := setup(t, &fakeController{}, run)

	if _, err := execute("ca-trust", "install", writeTestCA(t)); err != nil {
		t.Fatalf("ca-trust install: %v", err)
	}
	data, err := os.ReadFile(p.IPAP11Kit)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `label: "Test%20CA"`) || !strings.Contains(string(data), "trusted: true") {
		t.Errorf("p11-kit file:\n%s", data)
	}

	if _, err := execute("ca-trust", "remove"); err != nil {
		t.Fatalf("ca-trust remove: %v", err)
	}
	if _, err := os.Stat(p.IPAP11Kit); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("p11-kit file should be removed, stat err = %v", err)
	}
	reloads := 0
	for _, c := range run.calls {
		if c[0] == p.UpdateCATrust {
			reloads++
		}
	}
	if reloads != 2 {
		t.Errorf("trust store reloaded %d times, want 2", reloads)
	}
}

func TestCATrustInstall_InvalidTrust(t *testing.T) {
	setup(t, &fakeController{}, &fakeRunner{})
	if _, err := execute("ca-trust", "install", "--trust", "maybe", writeTestCA(t)); err == nil {
		t.Fatal("expected error for invalid trust flag")
	}
}
