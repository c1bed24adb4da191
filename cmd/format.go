package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/forecast-cli/internal/dashboard"
	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/pipeline"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

var titleCaser = cases.Title(language.English)

// label renders an identifier such as "special_events" as "Special Events".
func label(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatStageRuns writes a tabular list of stage attempts to out.
func formatStageRuns(out io.Writer, runs []model.StageRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTAGE\tSTATUS\tSTARTED\tDURATION\tERROR")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t-------\t--------\t-----")

	for _, r := range runs {
		errMsg := r.Error
		if len(errMsg) > 40 {
			errMsg = errMsg[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.StageID,
			label(string(r.Status)),
			r.StartedAt.Format("2006-01-02 15:04"),
			r.Duration().Round(time.Millisecond),
			errMsg,
		)
	}
	_ = w.Flush()
}

// formatPipelineState writes the stage list with the cursor marked.
func formatPipelineState(out io.Writer, stages []pipeline.Stage, st pipeline.State) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for i, s := range stages {
		marker := " "
		status := ""
		switch {
		case i < st.Cursor:
			marker = "✓"
		case i == st.Cursor:
			marker = ">"
			status = label(string(st.Status))
		}
		_, _ = fmt.Fprintf(w, "%s %d. %s\t%s\t%s\n", marker, i+1, s.Name, s.Endpoint, status)
	}
	_ = w.Flush()
	if st.Error != "" {
		_, _ = fmt.Fprintf(out, "error: %s\n", st.Error)
	}
	if len(st.Summary) > 0 {
		_, _ = fmt.Fprintln(out, "summary:")
		formatSummary(out, st.Summary)
	}
	if st.Complete {
		_, _ = fmt.Fprintln(out, "Pipeline complete.")
	}
}

// formatSummary writes a stage summary as sorted key/value lines.
func formatSummary(out io.Writer, summary map[string]any) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, k := range sortedKeys(summary) {
		v := summary[k]
		var text string
		switch v.(type) {
		case map[string]any, []any:
			b, _ := json.Marshal(v)
			text = string(b)
		default:
			text = fmt.Sprint(v)
		}
		_, _ = fmt.Fprintf(w, "  %s:\t%s\n", k, text)
	}
	_ = w.Flush()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatHistory writes saved configuration versions to out.
func formatHistory(out io.Writer, entries []forecastapi.HistoryEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tTAG\tCREATED BY\tCREATED\tWARNINGS\tPATH")
	_, _ = fmt.Fprintln(w, "----\t---\t----------\t-------\t--------\t----")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.Name, e.VersionTag, e.CreatedBy, e.CreatedAt, len(e.Warnings), e.Path)
	}
	_ = w.Flush()
}

// formatDashboard writes the derived dashboard views to out.
func formatDashboard(out io.Writer, snap *dashboard.Snapshot) {
	_, _ = fmt.Fprintf(out, "%s view, %d preview rows, %d time-series points\n",
		label(string(snap.Selection.Granularity)), len(snap.Preview), len(snap.TimeSeries))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\nTOP MISSING\tCOUNT")
	for _, m := range snap.TopMissing {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", m.Field, m.Count)
	}
	_, _ = fmt.Fprintln(w, "\nTREND\tVALUE")
	for _, p := range snap.TopTrend {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\n", p.Label, p.Value)
	}
	_ = w.Flush()
}

// parsePairs parses key=value arguments. Keys are trimmed; a missing "="
// is an error.
func parsePairs(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, eris.Errorf("expected key=value, got %q", arg)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out, nil
}

// parseValues parses restaurant=number arguments.
func parseValues(args []string) (map[string]float64, error) {
	pairs, err := parsePairs(args)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(pairs))
	for k, v := range pairs {
		if k == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, eris.Errorf("value for %q is not a number: %q", k, v)
		}
		out[k] = f
	}
	return out, nil
}
