package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/forecast-cli/internal/wizard"
	"github.com/sells-group/forecast-cli/pkg/forecastapi"
)

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Edit, check and save a forecast configuration draft",
	Long:  "Works on a YAML draft file (default <state_dir>/draft.yaml) through the timing, structure, special events and review steps.",
}

func draftPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("draft"); p != "" {
		return p
	}
	return filepath.Join(cfg.Session.StateDir, "draft.yaml")
}

// readDraft loads the draft at path over base. ok is false when the file
// does not exist.
func readDraft(path string, base wizard.Draft) (d wizard.Draft, ok bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return base, false, nil
	}
	if err != nil {
		return base, false, eris.Wrap(err, "wizard: read draft")
	}
	d, err = wizard.DecodeYAML(data, base)
	return d, err == nil, err
}

func writeDraft(path string, d wizard.Draft) error {
	data, err := wizard.EncodeYAML(d)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "wizard: create draft dir")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "wizard: write draft")
	}
	return nil
}

// openWizard builds a machine holding the draft file, or the service
// defaults when there is no draft yet.
func openWizard(cmd *cobra.Command, opts ...wizard.Option) (*wizard.Machine, error) {
	ctx := cmd.Context()
	role, err := sessionRole()
	if err != nil {
		return nil, err
	}
	env, err := sessionEnv()
	if err != nil {
		return nil, err
	}
	ch := newChannel()

	opts = append([]wizard.Option{
		wizard.WithRole(role),
		wizard.WithEnvironment(env),
		wizard.WithDetectedClearer(ch),
	}, opts...)
	m := wizard.New(newClient(), opts...)

	if err := m.LoadDefaults(ctx); err != nil && !forecastapi.IsCanceled(err) {
		zap.L().Warn("wizard: using built-in defaults", zap.Error(err))
	}
	d, ok, err := readDraft(draftPath(cmd), m.Draft())
	if err != nil {
		return nil, err
	}
	if ok {
		if err := m.Dispatch(wizard.Intent{Type: wizard.IntentResetDraft, Draft: &d}); err != nil {
			return nil, err
		}
	}

	if fromDetected, _ := cmd.Flags().GetBool("from-detected"); fromDetected {
		n := ch.Read()
		if n == nil {
			return nil, eris.New("wizard: no detected summary; run `upload csv` first")
		}
		m.ObserveDetected(n)
	}
	return m, nil
}

// walk advances as far as the draft allows. It returns the blocking
// validation error, if any.
func walk(m *wizard.Machine) *wizard.ValidationError {
	for m.Step() < wizard.StepReview {
		var verr *wizard.ValidationError
		if err := m.Next(); err != nil {
			if errors.As(err, &verr) {
				return verr
			}
			break
		}
	}
	return nil
}

func printDraft(out io.Writer, d wizard.Draft) error {
	data, err := wizard.EncodeYAML(d)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

// -- wizard show --

var wizardShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the draft and the result of each step check",
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := openWizard(cmd)
		if err != nil {
			return err
		}
		d := m.Draft()
		out := cmd.OutOrStdout()
		if err := printDraft(out, d); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out)
		for _, s := range []wizard.Step{wizard.StepTiming, wizard.StepStructure, wizard.StepSpecialEvents} {
			status := "ok"
			if verr := wizard.Validate(s, d); verr != nil {
				status = verr.Message
			}
			_, _ = fmt.Fprintf(out, "%-15s %s\n", label(s.String()), status)
		}
		return nil
	},
}

// -- wizard set --

var wizardSetCmd = &cobra.Command{
	Use:   "set [field=value ...]",
	Short: "Set draft fields, e.g. forecast.horizon_days=30",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireEditor(); err != nil {
			return err
		}
		pairs, err := parsePairs(args)
		if err != nil {
			return err
		}
		m, err := openWizard(cmd)
		if err != nil {
			return err
		}
		for _, field := range wizard.Fields {
			v, ok := pairs[field]
			if !ok {
				continue
			}
			if err := m.Dispatch(wizard.SetField(field, v)); err != nil {
				return err
			}
			delete(pairs, field)
		}
		if len(pairs) > 0 {
			unknown := make([]string, 0, len(pairs))
			for field := range pairs {
				unknown = append(unknown, field)
			}
			sort.Strings(unknown)
			return eris.Errorf("wizard: unknown field %q", unknown[0])
		}
		if err := writeDraft(draftPath(cmd), m.Draft()); err != nil {
			return err
		}
		return printDraft(cmd.OutOrStdout(), m.Draft())
	},
}

// -- wizard check --

var wizardCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Advance through the steps and report the first blocking problem",
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := openWizard(cmd)
		if err != nil {
			return err
		}
		if verr := walk(m); verr != nil {
			return eris.Errorf("%s step: %s", label(verr.Step.String()), verr.Message)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Draft is ready for review.")
		return nil
	},
}

// -- wizard reset --

var wizardResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Replace the draft with the service defaults",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, err := requireEditor(); err != nil {
			return err
		}
		m, err := openWizard(cmd)
		if err != nil {
			return err
		}
		m.Reset()
		if err := writeDraft(draftPath(cmd), m.Draft()); err != nil {
			return err
		}
		return printDraft(cmd.OutOrStdout(), m.Draft())
	},
}

// -- wizard template --

var wizardTemplateCmd = &cobra.Command{
	Use:   "template <path>",
	Short: "Merge a saved configuration into the draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := requireEditor(); err != nil {
			return err
		}
		m, err := openWizard(cmd)
		if err != nil {
			return err
		}
		if err := m.LoadTemplate(cmd.Context(), forecastapi.HistoryEntry{Path: args[0]}); err != nil {
			return eris.Wrap(err, "wizard template")
		}
		if err := writeDraft(draftPath(cmd), m.Draft()); err != nil {
			return err
		}
		return printDraft(cmd.OutOrStdout(), m.Draft())
	},
}

// -- wizard confirm --

var wizardConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Check the draft and save it to the forecast service",
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

		m, err := openWizard(cmd, wizard.WithSnapshotStore(st))
		if err != nil {
			return err
		}
		if verr := walk(m); verr != nil {
			return eris.Errorf("%s step: %s", label(verr.Step.String()), verr.Message)
		}
		if _, err := m.Confirm(ctx); err != nil {
			return eris.Wrap(err, "wizard confirm")
		}
		reportSave(cmd.OutOrStdout(), m.State())
		return nil
	},
}

func reportSave(out io.Writer, state wizard.State) {
	if state.SaveInfo != nil {
		_, _ = fmt.Fprintf(out, "Saved %s by %s at %s\n",
			state.SaveInfo.Path, state.SaveInfo.SavedBy, state.SaveInfo.SavedAt.Format("2006-01-02 15:04:05"))
	}
	for _, w := range state.Warnings {
		_, _ = fmt.Fprintf(out, "warning: %s\n", w)
	}
	if state.HistoryError != "" {
		_, _ = fmt.Fprintf(out, "history unavailable: %s\n", state.HistoryError)
	} else {
		_, _ = fmt.Fprintf(out, "%d saved versions in %s\n", len(state.History), state.Env)
	}
}

// -- wizard clear-detected --

var wizardClearDetectedCmd = &cobra.Command{
	Use:   "clear-detected",
	Short: "Remove the shared detected summary",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := newChannel().Clear(); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Detected summary cleared.")
		return nil
	},
}

func init() {
	wizardCmd.PersistentFlags().String("draft", "", "draft file (default <state_dir>/draft.yaml)")
	wizardCmd.PersistentFlags().Bool("from-detected", false, "apply the latest detected summary to the draft")

	wizardCmd.AddCommand(wizardShowCmd)
	wizardCmd.AddCommand(wizardSetCmd)
	wizardCmd.AddCommand(wizardCheckCmd)
	wizardCmd.AddCommand(wizardResetCmd)
	wizardCmd.AddCommand(wizardTemplateCmd)
	wizardCmd.AddCommand(wizardConfirmCmd)
	wizardCmd.AddCommand(wizardClearDetectedCmd)
	rootCmd.AddCommand(wizardCmd)
}
