package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(cmds []*cobra.Command) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Name())
	}
	return out
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		found[c.Name()] = true
	}

	expected := []string{"pipeline", "upload", "wizard", "dashboard", "hierarchy", "configs", "holidays", "status", "serve"}
	for _, name := range expected {
		assert.True(t, found[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "forecast-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_SessionFlags(t *testing.T) {
	for _, name := range []string{"role", "env"} {
		flag := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, "root should have --%s flag", name)
		assert.Equal(t, "", flag.DefValue)
	}
}

func TestGroupCommands_HaveSubcommands(t *testing.T) {
	tests := []struct {
		name     string
		cmd      []string
		expected []string
	}{
		{"pipeline", names(pipelineCmd.Commands()), []string{"run", "runs"}},
		{"upload", names(uploadCmd.Commands()), []string{"csv", "promo", "ingest"}},
		{"wizard", names(wizardCmd.Commands()), []string{"show", "set", "check", "reset", "template", "confirm", "clear-detected"}},
		{"hierarchy", names(hierarchyCmd.Commands()), []string{"show", "set", "rollup"}},
		{"configs", names(configsCmd.Commands()), []string{"history", "download", "load", "snapshots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Subset(t, tt.cmd, tt.expected)
		})
	}
}

func TestPipelineRunCommand_Flags(t *testing.T) {
	all := pipelineRunCmd.Flags().Lookup("all")
	require.NotNil(t, all)
	assert.Equal(t, "false", all.DefValue)

	from := pipelineRunCmd.Flags().Lookup("from")
	require.NotNil(t, from)
	assert.Equal(t, "", from.DefValue)
}

func TestPipelineRunsCommand_Flags(t *testing.T) {
	flag := pipelineRunsCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestDashboardCommand_Flags(t *testing.T) {
	flag := dashboardCmd.Flags().Lookup("granularity")
	require.NotNil(t, flag)
	assert.Equal(t, "daily", flag.DefValue)

	for _, name := range []string{"column", "xlsx", "json"} {
		assert.NotNil(t, dashboardCmd.Flags().Lookup(name), "dashboard should have --%s flag", name)
	}
}

func TestWizardCommand_Flags(t *testing.T) {
	for _, name := range []string{"draft", "from-detected"} {
		assert.NotNil(t, wizardCmd.PersistentFlags().Lookup(name), "wizard should have --%s flag", name)
	}
}

func TestHierarchyCommands_Flags(t *testing.T) {
	for _, name := range []string{"restaurant", "city"} {
		assert.NotNil(t, hierarchySetCmd.Flags().Lookup(name), "hierarchy set should have --%s flag", name)
	}
	assert.NotNil(t, hierarchyRollupCmd.Flags().Lookup("remote"))
}

func TestHolidaysCommand_Flags(t *testing.T) {
	flag := holidaysCmd.Flags().Lookup("country")
	require.NotNil(t, flag)
	assert.Equal(t, "US", flag.DefValue)
	assert.NotNil(t, holidaysCmd.Flags().Lookup("start"))
	assert.NotNil(t, holidaysCmd.Flags().Lookup("end"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
