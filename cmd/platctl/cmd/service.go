package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/platctl/internal/services"
)

var (
	serviceInstance string
	serviceNoWait   bool
	serviceJSON     bool
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Control a platform service",
	Long:  "Start, stop, restart, enable, disable or inspect one service by its logical name.",
}

// lifecycle maps the action commands onto the handle operations.
var lifecycle = map[string]func(ctx context.Context, svc services.Service, instance string, opts []services.Option) error{
	"start": func(ctx context.Context, svc services.Service, instance string, opts []services.Option) error {
		return svc.Start(ctx, instance, opts...)
	},
	"stop": func(ctx context.Context, svc services.Service, instance string, opts []services.Option) error {
		return svc.Stop(ctx, instance, opts...)
	},
	"restart": func(ctx context.Context, svc services.Service, instance string, opts []services.Option) error {
		return svc.Restart(ctx, instance, opts...)
	},
	"reload-or-restart": func(ctx context.Context, svc services.Service, instance string, opts []services.Option) error {
		return svc.ReloadOrRestart(ctx, instance, opts...)
	},
	"enable": func(ctx context.Context, svc services.Service, instance string, _ []services.Option) error {
		return svc.Enable(ctx, instance)
	},
	"disable": func(ctx context.Context, svc services.Service, instance string, _ []services.Option) error {
		return svc.Disable(ctx, instance)
	},
	"mask": func(ctx context.Context, svc services.Service, instance string, _ []services.Option) error {
		return svc.Mask(ctx, instance)
	},
	"unmask": func(ctx context.Context, svc services.Service, instance string, _ []services.Option) error {
		return svc.Unmask(ctx, instance)
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show the state of a service",
	Args:  cobra.ExactArgs(1),
	RunE:  runServiceStatus,
}

func init() {
	serviceCmd.PersistentFlags().StringVar(&serviceInstance, "instance", "", "instance of a templated unit")
	for _, action := range []string{"start", "stop", "restart", "reload-or-restart", "enable", "disable", "mask", "unmask"} {
		c := &cobra.Command{
			Use:   action + " <name>",
			Short: fmt.Sprintf("Run %q on a service", action),
			Args:  cobra.ExactArgs(1),
			RunE:  runServiceAction,
		}
		switch action {
		case "start", "stop", "restart", "reload-or-restart":
			c.Flags().BoolVar(&serviceNoWait, "no-wait", false, "do not wait for the service to become ready")
		}
		serviceCmd.AddCommand(c)
	}
	serviceStatusCmd.Flags().BoolVar(&serviceJSON, "json", false, "print the status as JSON")
	serviceCmd.AddCommand(serviceStatusCmd)
	rootCmd.AddCommand(serviceCmd)
}

func runServiceAction(cmd *cobra.Command, args []string) error {
	action := cmd.Name()
	env, err := newEnvironment()
	if err != nil {
		return fmt.Errorf("platctl service %s: %w", action, err)
	}
	svc, err := env.known.Get(args[0])
	if err != nil {
		return fmt.Errorf("platctl service %s: %w", action, err)
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	var opts []services.Option
	if serviceNoWait {
		opts = append(opts, services.NoWait())
	}
	if err := lifecycle[action](ctx, svc, serviceInstance, opts); err != nil {
		return fmt.Errorf("platctl service %s: %w", action, err)
	}
	env.logger.Info("service "+action+" done", "service", svc.Name(), "unit", svc.ServiceInstance(serviceInstance))
	return nil
}

func runServiceStatus(cmd *cobra.Command, args []string) error {
	env, err := newEnvironment()
	if err != nil {
		return fmt.Errorf("platctl service status: %w", err)
	}
	svc, err := env.known.Get(args[0])
	if err != nil {
		return fmt.Errorf("platctl service status: %w", err)
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	st, err := svc.Status(ctx, serviceInstance)
	if err != nil {
		return fmt.Errorf("platctl service status: %w", err)
	}
	enabled, err := svc.IsEnabled(ctx, serviceInstance)
	if err != nil {
		return fmt.Errorf("platctl service status: %w", err)
	}
	masked, err := svc.IsMasked(ctx, serviceInstance)
	if err != nil {
		return fmt.Errorf("platctl service status: %w", err)
	}

	w := cmd.OutOrStdout()
	if serviceJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Service string `json:"service"`
			Enabled bool   `json:"enabled"`
			Masked  bool   `json:"masked"`
			Status  any    `json:"status"`
		}{svc.Name(), enabled, masked, st})
	}
	fmt.Fprintf(w, "Service: %s\n", svc.Name())
	fmt.Fprintf(w, "Unit:    %s\n", st.Unit)
	fmt.Fprintf(w, "State:   %s\n", st.String())
	fmt.Fprintf(w, "Enabled: %v\n", enabled)
	if masked {
		fmt.Fprintf(w, "Masked:  %v\n", masked)
	}
	if st.MainPID != 0 {
		fmt.Fprintf(w, "PID:     %d\n", st.MainPID)
	}
	return nil
}
