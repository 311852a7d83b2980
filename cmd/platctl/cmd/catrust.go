package cmd

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plexsphere/platctl/internal/tasks"
)

var (
	caTrustNickname string
	caTrustMode     string
)

var caTrustCmd = &cobra.Command{
	Use:   "ca-trust",
	Short: "Manage the CA certificates in the system-wide trust store",
}

var caTrustInstallCmd = &cobra.Command{
	Use:   "install <pem-file>...",
	Short: "Replace the installed CA certificates with those in the given files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCATrustInstall,
}

var caTrustRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the installed CA certificates",
	Args:  cobra.NoArgs,
	RunE:  runCATrustRemove,
}

var caTrustReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Regenerate the system-wide trust database",
	Args:  cobra.NoArgs,
	RunE:  runCATrustReload,
}

func init() {
	caTrustInstallCmd.Flags().StringVar(&caTrustNickname, "nickname", "", "label for the certificates (default: subject common name)")
	caTrustInstallCmd.Flags().StringVar(&caTrustMode, "trust", "trusted", "trust flag: trusted, distrusted or unknown")
	caTrustCmd.AddCommand(caTrustInstallCmd)
	caTrustCmd.AddCommand(caTrustRemoveCmd)
	caTrustCmd.AddCommand(caTrustReloadCmd)
	rootCmd.AddCommand(caTrustCmd)
}

func parseTrust(s string) (tasks.Trust, error) {
	switch s {
	case "trusted":
		return tasks.Trusted, nil
	case "distrusted":
		return tasks.Distrusted, nil
	case "unknown":
		return tasks.TrustUnknown, nil
	}
	return 0, fmt.Errorf("invalid trust %q (must be trusted, distrusted or unknown)", s)
}

// readCACerts decodes every certificate in the PEM files.
func readCACerts(files []string, nickname string, trust tasks.Trust) ([]tasks.CACert, error) {
	var certs []tasks.CACert
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		for {
			var block *pem.Block
			block, data = pem.Decode(data)
			if block == nil {
				break
			}
			if block.Type != "CERTIFICATE" {
				continue
			}
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", file, err)
			}
			name := nickname
			if name == "" {
				name = cert.Subject.CommonName
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			}
			certs = append(certs, tasks.CACert{Cert: tasks.FromX509(cert), Nickname: name, Trust: trust})
		}
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificates found in %s", strings.Join(files, ", "))
	}
	return certs, nil
}

func runCATrustInstall(cmd *cobra.Command, args []string) error {
	trust, err := parseTrust(caTrustMode)
	if err != nil {
		return fmt.Errorf("platctl ca-trust install: %w", err)
	}
	certs, err := readCACerts(args, caTrustNickname, trust)
	if err != nil {
		return fmt.Errorf("platctl ca-trust install: %w", err)
	}
	env, err := newEnvironment()
	if err != nil {
		return fmt.Errorf("platctl ca-trust install: %w", err)
	}
	ctx, stop := signalContext(cmd)
	defer stop()
	if err := env.tasks.InsertCACertsIntoSystemwideCAStore(ctx, certs); err != nil {
		return fmt.Errorf("platctl ca-trust install: %w", err)
	}
	return nil
}

func runCATrustRemove(cmd *cobra.Command, _ []string) error {
	env, err := newEnvironment()
	if err != nil {
		return fmt.Errorf("platctl ca-trust remove: %w", err)
	}
	ctx, stop := signalContext(cmd)
	defer stop()
	if err := env.tasks.RemoveCACertsFromSystemwideCAStore(ctx); err != nil {
		return fmt.Errorf("platctl ca-trust remove: %w", err)
	}
	return nil
}

func runCATrustReload(cmd *cobra.Command, _ []string) error {
	env, err := newEnvironment()
	if err != nil {
		return fmt.Errorf("platctl ca-trust reload: %w", err)
	}
	ctx, stop := signalContext(cmd)
	defer stop()
	if err := env.tasks.ReloadSystemwideCAStore(ctx); err != nil {
		return fmt.Errorf("platctl ca-trust reload: %w", err)
	}
	return nil
}
