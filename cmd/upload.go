package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/wizard"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload sales data, ingest inputs or a promo calendar",
}

// -- upload csv --

var uploadCSVCmd = &cobra.Command{
	Use:   "csv <file>",
	Short: "Upload a sales CSV and publish the detected summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := requireEditor(); err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "upload csv: open file")
		}
		defer f.Close() //nolint:errcheck

		res, err := newClient().UploadCSV(ctx, filepath.Base(args[0]), f)
		if err != nil {
			return eris.Wrap(err, "upload csv")
		}
		if res.Data == nil {
			return eris.Errorf("upload csv: service returned no summary (status %q)", res.Status)
		}

		notice, err := newChannel().Publish(*res.Data)
		if err != nil {
			return err
		}
		zap.L().Info("published detected summary", zap.String("notice_id", notice.ID))

		formatDetected(cmd, res.Data)
		return nil
	},
}

func formatDetected(cmd *cobra.Command, d *forecastapi.DetectedSummary) {
	out := cmd.OutOrStdout()
	s := d.SuggestedConfig
	_, _ = fmt.Fprintf(out, "Rows:        %d\n", d.Rows)
	_, _ = fmt.Fprintf(out, "Date range:  %s to %s\n", d.StartDate, d.EndDate)
	_, _ = fmt.Fprintf(out, "Frequency:   %s\n", label(string(d.Frequency)))
	_, _ = fmt.Fprintf(out, "Hierarchy:   %s\n", wizard.HierarchyLabel(d.Hierarchy))
	_, _ = fmt.Fprintf(out, "Suggested:   horizon %dd, lead %dd, %s, %s\n",
		s.ForecastHorizonDays, s.LeadTimeDays, s.Granularity, s.Country)
	if d.Notes != "" {
		_, _ = fmt.Fprintf(out, "Notes:       %s\n", d.Notes)
	}
}

// -- upload promo --

var uploadPromoCmd = &cobra.Command{
	Use:   "promo <file>",
	Short: "Upload a promo calendar and show its validation preview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := requireEditor(); err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "upload promo: open file")
		}
		defer f.Close() //nolint:errcheck

		m, err := openWizard(cmd)
		if err != nil {
			return err
		}
		res, err := m.UploadPromoCalendar(ctx, filepath.Base(args[0]), f)
		if err != nil {
			return eris.Wrap(err, "upload promo")
		}
		if err := writeDraft(draftPath(cmd), m.Draft()); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Stored at %s (%d rows, %d invalid)\n", res.Path, res.TotalRows, len(res.InvalidRows))
		for _, bad := range res.InvalidRows {
			_, _ = fmt.Fprintf(out, "  %v: %v\n", bad.Row, bad.Issues)
		}
		return nil
	},
}

// -- upload ingest --

var uploadIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Upload sales, inventory and price CSVs together and validate them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if _, err := requireEditor(); err != nil {
			return err
		}
		useExisting, _ := cmd.Flags().GetBool("use-existing")

		files := forecastapi.IngestFiles{}
		for _, field := range forecastapi.IngestFields {
			path, _ := cmd.Flags().GetString(field)
			if path == "" {
				continue
			}
			f, err := os.Open(path)
			if err != nil {
				return eris.Wrapf(err, "upload ingest: open %s file", field)
			}
			defer f.Close() //nolint:errcheck
			files[field] = forecastapi.Multipart{Filename: filepath.Base(path), Content: f}
		}
		if len(files) == 0 && !useExisting {
			return eris.New("upload ingest: pass --sales, --inventory or --prices, or --use-existing")
		}

		res, err := newClient().IngestData(ctx, files, useExisting)
		if err != nil {
			return eris.Wrap(err, "upload ingest")
		}

		out := cmd.OutOrStdout()
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "TYPE\tPATH")
		for _, uf := range res.UploadedFiles {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", uf.Type, uf.Path)
		}
		_ = w.Flush()
		if len(res.Summary) > 0 {
			_, _ = fmt.Fprintln(out, "summary:")
			formatSummary(out, res.Summary)
		}
		return nil
	},
}

func init() {
	uploadPromoCmd.Flags().String("draft", "", "draft file to record the calendar path in (default <state_dir>/draft.yaml)")
	uploadIngestCmd.Flags().String("sales", "", "sales CSV")
	uploadIngestCmd.Flags().String("inventory", "", "inventory CSV")
	uploadIngestCmd.Flags().String("prices", "", "prices CSV")
	uploadIngestCmd.Flags().Bool("use-existing", false, "validate the latest upload when no file is given")

	uploadCmd.AddCommand(uploadCSVCmd)
	uploadCmd.AddCommand(uploadPromoCmd)
	uploadCmd.AddCommand(uploadIngestCmd)
	rootCmd.AddCommand(uploadCmd)
}
