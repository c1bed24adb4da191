package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var holidaysCmd = &cobra.Command{
	Use:   "holidays",
	Short: "List public holidays for a country and date range",
	RunE: func(cmd *cobra.Command, _ []string) error {
		country, _ := cmd.Flags().GetString("country")
		startStr, _ := cmd.Flags().GetString("start")
		endStr, _ := cmd.Flags().GetString("end")

		start, err := time.Parse(time.DateOnly, startStr)
		if err != nil {
			return eris.Wrapf(err, "invalid --start %q (want YYYY-MM-DD)", startStr)
		}
		end, err := time.Parse(time.DateOnly, endStr)
		if err != nil {
			return eris.Wrapf(err, "invalid --end %q (want YYYY-MM-DD)", endStr)
		}
		if end.Before(start) {
			return eris.New("--end is before --start")
		}

		list, err := newClient().Holidays(cmd.Context(), country, start, end)
		if err != nil {
			return eris.Wrap(err, "holidays")
		}

		_, _ = fmt.Fprintf(os.Stdout, "%d holidays in %s between %s and %s\n",
			list.Count, list.Country, list.StartDate, list.EndDate)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, h := range list.Holidays {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", h.Date, h.Name)
		}
		_ = w.Flush()
		return nil
	},
}

func init() {
	now := time.Now()
	holidaysCmd.Flags().String("country", "US", "ISO country code")
	holidaysCmd.Flags().String("start", time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC).Format(time.DateOnly), "first date (YYYY-MM-DD)")
	holidaysCmd.Flags().String("end", time.Date(now.Year(), 12, 31, 0, 0, 0, 0, time.UTC).Format(time.DateOnly), "last date (YYYY-MM-DD)")
	rootCmd.AddCommand(holidaysCmd)
}
