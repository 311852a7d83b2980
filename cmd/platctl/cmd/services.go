package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var servicesShowStatus bool

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the well-known platform services",
	Long:  "List every well-known service with the unit it is managed through.",
	Args:  cobra.NoArgs,
	RunE:  runServices,
}

var servicesTimeSyncCmd = &cobra.Command{
	Use:   "disable-time-sync",
	Short: "Stop and disable conflicting time synchronization services",
	Args:  cobra.NoArgs,
	RunE:  runServicesTimeSync,
}

func init() {
	servicesCmd.Flags().BoolVar(&servicesShowStatus, "status", false, "query and show the state of every unit")
	servicesCmd.AddCommand(servicesTimeSyncCmd)
	rootCmd.AddCommand(servicesCmd)
}

func runServices(cmd *cobra.Command, _ []string) error {
	env, err := newEnvironment()
	if err != nil {
		return fmt.Errorf("platctl services: %w", err)
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, svc := range env.known.All() {
		if !servicesShowStatus {
			fmt.Fprintf(tw, "%s\t%s\n", svc.Name(), svc.UnitName())
			continue
		}
		state := "unknown"
		if st, err := svc.Status(ctx, ""); err == nil {
			state = st.String()
		} else {
			env.logger.Debug("status query failed", "service", svc.Name(), "error", err)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", svc.Name(), svc.ServiceInstance(""), state)
	}
	return tw.Flush()
}

func runServicesTimeSync(cmd *cobra.Command, _ []string) error {
	env, err := newEnvironment()
	if err != nil {
		return fmt.Errorf("platctl services disable-time-sync: %w", err)
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	changed, err := env.known.DisableTimeDateServices(ctx)
	if err != nil {
		return fmt.Errorf("platctl services disable-time-sync: %w", err)
	}
	for _, name := range changed {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	env.logger.Info("time synchronization services disabled", "count", len(changed))
	return nil
}
