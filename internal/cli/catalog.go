package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kitdash/internal/phase"
)

func CatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the phase catalog",
	}
	cmd.AddCommand(catalogShowCmd())
	return cmd
}

func catalogShowCmd() *cobra.Command {
	var tier string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the phases and checklist items of a tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			tiers := []phase.Tier{phase.TierLaunch, phase.TierGrowth}
			if tier != "" {
				t, err := phase.ParseTier(tier)
				if err != nil {
					return err
				}
				tiers = []phase.Tier{t}
			}
			for _, t := range tiers {
				if err := printCatalog(cmd.OutOrStdout(), t); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tier, "tier", "", "LAUNCH or GROWTH (default: both)")
	return cmd
}

func printCatalog(out io.Writer, tier phase.Tier) error {
	defs, err := phase.GetPhaseStructure(tier)
	if err != nil {
		return err
	}
	bold := color.New(color.Bold)
	fmt.Fprintf(out, "%s (%d phases)\n", bold.Sprint(string(tier)), len(defs))
	for _, d := range defs {
		fmt.Fprintf(out, "  %d. %s  %s  [%s]\n",
			d.PhaseNumber, color.New(color.FgCyan).Sprint(d.PhaseID), d.Title, d.DayRange)
		for _, label := range d.ChecklistLabels {
			fmt.Fprintf(out, "     - %s\n", label)
		}
		if len(d.Links) > 0 {
			labels := make([]string, 0, len(d.Links))
			for _, l := range d.Links {
				labels = append(labels, l.Label)
			}
			fmt.Fprintf(out, "     links: %s\n", strings.Join(labels, ", "))
		}
	}
	fmt.Fprintln(out)
	return nil
}
