package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/forecast-cli/internal/store"
	"github.com/sells-group/forecast-cli/internal/wizard"
)

var configsCmd = &cobra.Command{
	Use:   "configs",
	Short: "Browse saved forecast configurations",
}

// -- configs history --

var configsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved configuration versions for the environment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := sessionEnv()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := newClient().Versions(cmd.Context(), string(env), limit)
		if err != nil {
			return eris.Wrap(err, "configs history")
		}
		if len(entries) == 0 {
			_, _ = fmt.Fprintf(os.Stdout, "No saved configurations in %s.\n", env)
			return nil
		}
		formatHistory(os.Stdout, entries)
		return nil
	},
}

// -- configs download --

var configsDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a saved configuration as YAML",
	Long:  "Downloads the configuration at --path, or the environment's current one, and writes it to -o or stdout.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := sessionEnv()
		if err != nil {
			return err
		}
		p, _ := cmd.Flags().GetString("path")

		res, err := newClient().DownloadConfig(cmd.Context(), string(env), wizard.ConfigRootPath(p))
		if err != nil {
			return eris.Wrap(err, "configs download")
		}
		export, err := wizard.ExportOf(res)
		if err != nil {
			return err
		}
		return writeExport(cmd, export)
	},
}

// -- configs load --

var configsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Print the environment's active configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := sessionEnv()
		if err != nil {
			return err
		}
		res, err := newClient().LoadConfig(cmd.Context(), string(env))
		if err != nil {
			return eris.Wrap(err, "configs load")
		}
		export, err := wizard.ExportOf(res)
		if err != nil {
			return err
		}
		return writeExport(cmd, export)
	},
}

func writeExport(cmd *cobra.Command, export wizard.Export) error {
	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		_, err := os.Stdout.Write(export.Content)
		return err
	}
	if out == "." {
		out = export.Filename
	}
	if err := os.WriteFile(out, export.Content, 0o644); err != nil {
		return eris.Wrap(err, "write config")
	}
	_, _ = fmt.Fprintf(os.Stderr, "Wrote %s\n", out)
	return nil
}

// -- configs snapshots --

var configsSnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List configurations saved from this machine",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := sessionEnv()
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snaps, err := st.ListSnapshots(ctx, store.SnapshotFilter{Env: env, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "configs snapshots")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tSAVED BY\tROLE\tSAVED\tPATH")
		_, _ = fmt.Fprintln(w, "--\t----\t--------\t----\t-----\t----")
		for _, s := range snaps {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				truncateID(s.ID), s.Name, s.SavedBy, s.Role,
				s.SavedAt.Format("2006-01-02 15:04"), s.Path)
		}
		_ = w.Flush()
		return nil
	},
}

func init() {
	configsHistoryCmd.Flags().Int("limit", 20, "maximum versions to list")
	configsDownloadCmd.Flags().String("path", "", "stored config path (default: the environment's current config)")
	configsDownloadCmd.Flags().StringP("output", "o", "", "write to this file; \".\" uses the stored file name")
	configsLoadCmd.Flags().StringP("output", "o", "", "write to this file; \".\" uses the stored file name")
	configsSnapshotsCmd.Flags().Int("limit", 50, "maximum snapshots to list")

	configsCmd.AddCommand(configsHistoryCmd)
	configsCmd.AddCommand(configsDownloadCmd)
	configsCmd.AddCommand(configsLoadCmd)
	configsCmd.AddCommand(configsSnapshotsCmd)
	rootCmd.AddCommand(configsCmd)
}
