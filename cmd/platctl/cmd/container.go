package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var containerCmd = &cobra.Command{
	Use:   "container",
	Short: "Print the container technology the host runs in",
	Long:  "Print the container technology reported by systemd-detect-virt, or \"none\".",
	Args:  cobra.NoArgs,
	RunE:  runContainer,
}

func init() {
	rootCmd.AddCommand(containerCmd)
}

func runContainer(cmd *cobra.Command, _ []string) error {
	env, err := newEnvironment()
	if err != nil {
		return fmt.Errorf("platctl container: %w", err)
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	name, err := env.tasks.DetectContainer(ctx)
	if err != nil {
		return fmt.Errorf("platctl container: %w", err)
	}
	if name == "" {
		name = "none"
	}
	fmt.Fprintln(cmd.OutOrStdout(), name)
	return nil
}
