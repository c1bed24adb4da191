package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/forecast-cli/internal/rollup"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

var hierarchyCmd = &cobra.Command{
	Use:   "hierarchy",
	Short: "Inspect and edit the restaurant, city and country mapping",
}

func formatMapping(out io.Writer, m *forecastapi.HierarchyMapping) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RESTAURANT\tCITY")
	_, _ = fmt.Fprintln(w, "----------\t----")
	for _, r := range rollup.Rows(m.RestaurantToCity) {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", r.Key, r.Value)
	}
	_, _ = fmt.Fprintln(w, "\nCITY\tCOUNTRY")
	_, _ = fmt.Fprintln(w, "----\t-------")
	for _, r := range rollup.Rows(m.CityToCountry) {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", r.Key, r.Value)
	}
	_ = w.Flush()
}

func formatRollup(out io.Writer, p forecastapi.RollupPreview) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CITY\tTOTAL")
	for _, k := range sortedKeys(p.Cities) {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\n", k, p.Cities[k])
	}
	_, _ = fmt.Fprintln(w, "\nCOUNTRY\tTOTAL")
	for _, k := range sortedKeys(p.Countries) {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\n", k, p.Countries[k])
	}
	_ = w.Flush()
}

// -- hierarchy show --

var hierarchyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current mapping",
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := newClient().HierarchyMapping(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "hierarchy show")
		}
		formatMapping(cmd.OutOrStdout(), m)
		return nil
	},
}

// -- hierarchy set --

var hierarchySetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update mapping entries, e.g. --restaurant R1=Austin --city Austin=US",
	Long:  "Merges the given entries into the current mapping and saves it. An empty value removes the entry.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		role, err := requireEditor()
		if err != nil {
			return err
		}

		restaurantArgs, _ := cmd.Flags().GetStringArray("restaurant")
		cityArgs, _ := cmd.Flags().GetStringArray("city")
		restaurants, err := parsePairs(restaurantArgs)
		if err != nil {
			return err
		}
		cities, err := parsePairs(cityArgs)
		if err != nil {
			return err
		}
		if len(restaurants) == 0 && len(cities) == 0 {
			return eris.New("nothing to set; pass --restaurant or --city")
		}

		client := newClient()
		current, err := client.HierarchyMapping(ctx)
		if err != nil {
			return eris.Wrap(err, "hierarchy set")
		}
		next := forecastapi.HierarchyMapping{
			RestaurantToCity: mergePairs(current.RestaurantToCity, restaurants),
			CityToCountry:    mergePairs(current.CityToCountry, cities),
		}

		saved, err := client.SaveHierarchyMapping(ctx, next, string(role))
		if err != nil {
			return eris.Wrap(err, "hierarchy set")
		}
		formatMapping(cmd.OutOrStdout(), saved)
		return nil
	},
}

// mergePairs overlays updates on base as mapping rows. Blank values remove
// the key.
func mergePairs(base, updates map[string]string) map[string]string {
	rows := rollup.Rows(base)
	for k, v := range updates {
		rows = append(rows, rollup.Row{Key: k, Value: v})
	}
	out := rollup.FromRows(rows)
	for k, v := range out {
		if v == "" {
			delete(out, k)
		}
	}
	return out
}

// -- hierarchy rollup --

var hierarchyRollupCmd = &cobra.Command{
	Use:   "rollup [restaurant=value ...]",
	Short: "Preview city and country totals for restaurant values",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		values, err := parseValues(args)
		if err != nil {
			return err
		}

		client := newClient()
		if remote, _ := cmd.Flags().GetBool("remote"); remote {
			preview, err := client.TestRollup(ctx, values)
			if err != nil {
				return eris.Wrap(err, "hierarchy rollup")
			}
			formatRollup(cmd.OutOrStdout(), *preview)
			return nil
		}

		m, err := client.HierarchyMapping(ctx)
		if err != nil {
			return eris.Wrap(err, "hierarchy rollup")
		}
		formatRollup(cmd.OutOrStdout(), rollup.Compute(values, *m))

		report := rollup.Coverage(values, *m)
		for _, r := range report.UnmappedRestaurants {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "unmapped restaurant: %s\n", r)
		}
		for _, c := range report.UnmappedCities {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "city without country: %s\n", c)
		}
		return nil
	},
}

func init() {
	hierarchySetCmd.Flags().StringArray("restaurant", nil, "restaurant=city entry (repeatable)")
	hierarchySetCmd.Flags().StringArray("city", nil, "city=country entry (repeatable)")
	hierarchyRollupCmd.Flags().Bool("remote", false, "compute on the forecast service instead of locally")

	hierarchyCmd.AddCommand(hierarchyShowCmd)
	hierarchyCmd.AddCommand(hierarchySetCmd)
	hierarchyCmd.AddCommand(hierarchyRollupCmd)
	rootCmd.AddCommand(hierarchyCmd)
}
