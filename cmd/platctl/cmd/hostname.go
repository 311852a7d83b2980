package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/platctl/internal/services"
	"github.com/plexsphere/platctl/internal/sysrestore"
)

var hostnameStopServices []string

var hostnameCmd = &cobra.Command{
	Use:   "hostname",
	Short: "Change or restore the host name",
}

var hostnameSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Set the host name, keeping a backup of the previous one",
	Args:  cobra.ExactArgs(1),
	RunE:  runHostnameSet,
}

var hostnameRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the host name configuration saved by set",
	Args:  cobra.NoArgs,
	RunE:  runHostnameRestore,
}

func init() {
	hostnameSetCmd.Flags().StringSliceVar(&hostnameStopServices, "stop", nil,
		"service to keep stopped while the name changes; started again afterwards if it was running")
	hostnameCmd.AddCommand(hostnameSetCmd)
	hostnameCmd.AddCommand(hostnameRestoreCmd)
	rootCmd.AddCommand(hostnameCmd)
}

func runHostnameSet(cmd *cobra.Command, args []string) error {
	env, err := newEnvironment()
	if err != nil {
		return fmt.Errorf("platctl hostname set: %w", err)
	}
	store, err := sysrestore.Open(env.cfg.Paths.SysrestoreDir)
	if err != nil {
		return fmt.Errorf("platctl hostname set: %w", err)
	}
	defer store.Close()

	ctx, stop := signalContext(cmd)
	defer stop()
	replace := func() error {
		return env.tasks.BackupAndReplaceHostname(ctx, store.Files, store.State, args[0])
	}
	for i := len(hostnameStopServices) - 1; i >= 0; i-- {
		svc, err := env.known.Get(hostnameStopServices[i])
		if err != nil {
			return fmt.Errorf("platctl hostname set: %w", err)
		}
		inner := replace
		replace = func() error { return services.WithStopped(ctx, svc, "", inner) }
	}
	if err := replace(); err != nil {
		return fmt.Errorf("platctl hostname set: %w", err)
	}
	return nil
}

func runHostnameRestore(_ *cobra.Command, _ []string) error {
	env, err := newEnvironment()
	if err != nil {
		return fmt.Errorf("platctl hostname restore: %w", err)
	}
	store, err := sysrestore.Open(env.cfg.Paths.SysrestoreDir)
	if err != nil {
		return fmt.Errorf("platctl hostname restore: %w", err)
	}
	defer store.Close()

	if err := env.tasks.RestoreNetworkConfiguration(store.Files, store.State); err != nil {
		return fmt.Errorf("platctl hostname restore: %w", err)
	}
	return nil
}
