package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/forecast-cli/internal/model"
	"github.com/sells-group/forecast-cli/internal/pipeline"
	"github.com/sells-group/forecast-cli/internal/store"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the data processing stages",
	Long:  "Runs validate, timeline and aggregate on the forecast service, one stage at a time.",
}

// -- pipeline run --

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the first stage, or every stage with --all",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if _, err := requireEditor(); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		opts := []pipeline.Option{pipeline.WithRecorder(st)}
		if from, _ := cmd.Flags().GetString("from"); from != "" {
			if !knownStage(from) {
				return eris.Errorf("unknown stage %q", from)
			}
			opts = append(opts, pipeline.WithStartStage(from))
		}
		ctrl := pipeline.NewController(newClient(), nil, opts...)

		all, _ := cmd.Flags().GetBool("all")
		if all {
			err = ctrl.RunAll(ctx)
		} else {
			err = ctrl.Run(ctx)
		}
		formatPipelineState(os.Stdout, ctrl.Stages(), ctrl.State())
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}
		return nil
	},
}

func knownStage(id string) bool {
	for _, s := range pipeline.DefaultStages() {
		if s.ID == id {
			return true
		}
	}
	return false
}

// -- pipeline runs --

var pipelineRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded stage attempts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stage, _ := cmd.Flags().GetString("stage")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListStageRuns(ctx, store.StageRunFilter{
			StageID: stage,
			Status:  model.StageStatus(status),
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "pipeline runs")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No stage runs found.")
			return nil
		}
		formatStageRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	pipelineRunCmd.Flags().Bool("all", false, "run every remaining stage, stopping at the first failure")
	pipelineRunCmd.Flags().String("from", "", "start at this stage ID (validate, timeline, aggregate)")

	pipelineRunsCmd.Flags().String("stage", "", "filter by stage ID")
	pipelineRunsCmd.Flags().String("status", "", "filter by status (succeeded, failed)")
	pipelineRunsCmd.Flags().Int("limit", 50, "max number of runs to display")

	pipelineCmd.AddCommand(pipelineRunCmd)
	pipelineCmd.AddCommand(pipelineRunsCmd)
	rootCmd.AddCommand(pipelineCmd)
}
