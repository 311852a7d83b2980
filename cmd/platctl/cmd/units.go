package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plexsphere/platctl/internal/units"
)

var unitsLong bool

var unitsCmd = &cobra.Command{
	Use:   "units <name>...",
	Short: "Resolve service names to systemd units",
	Long: "Print the systemd unit each logical service name resolves to. With --long, also print\n" +
		"the unit kind (template, instance or plain) and whether the name has a table entry\n" +
		"(mapped) or falls back to \"<name>.service\" (derived).",
	Args: cobra.MinimumNArgs(1),
	RunE: runUnits,
}

func init() {
	unitsCmd.Flags().BoolVarP(&unitsLong, "long", "l", false, "also print the unit kind and where the mapping comes from")
	rootCmd.AddCommand(unitsCmd)
}

func runUnits(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("platctl units: %w", err)
	}
	r := units.NewResolver(cfg.Units)
	w := cmd.OutOrStdout()
	for _, name := range args {
		unit := r.Resolve(name)
		if !unitsLong {
			fmt.Fprintf(w, "%s\t%s\n", name, unit)
			continue
		}
		source := "derived"
		if r.Known(name) {
			source = "mapped"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, unit, unitKind(unit), source)
	}
	return nil
}

func unitKind(unit string) string {
	switch {
	case units.IsTemplate(unit):
		return "template"
	case units.IsInstantiated(unit):
		return "instance"
	default:
		return "plain"
	}
}
