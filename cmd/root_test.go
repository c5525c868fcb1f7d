package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{
		"cumulative", "within", "stations", "quadrants", "quadrant-coords",
		"matrix", "project", "clip", "serve", "runs",
	}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "stationreach", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestTableCommands_OutputFlags(t *testing.T) {
	for _, c := range []string{"cumulative", "within", "stations", "quadrants", "quadrant-coords"} {
		cmd, _, err := rootCmd.Find([]string{c})
		require.NoError(t, err)

		format := cmd.Flags().Lookup("format")
		require.NotNil(t, format, "%s should have --format flag", c)
		assert.Equal(t, "csv", format.DefValue)

		require.NotNil(t, cmd.Flags().Lookup("output"), "%s should have --output flag", c)
		require.NotNil(t, cmd.Flags().Lookup("record"), "%s should have --record flag", c)
	}
}

func TestSweepCommands_Flags(t *testing.T) {
	for _, c := range []string{"cumulative", "within"} {
		cmd, _, err := rootCmd.Find([]string{c})
		require.NoError(t, err)
		for _, name := range []string{"from", "to", "step"} {
			assert.NotNil(t, cmd.Flags().Lookup(name), "%s should have --%s flag", c, name)
		}
	}
	assert.NotNil(t, cumulativeCmd.Flags().Lookup("stream"))
	assert.NotNil(t, withinCmd.Flags().Lookup("summary"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)

	warm := serveCmd.Flags().Lookup("warm")
	require.NotNil(t, warm)
	assert.Equal(t, "false", warm.DefValue)
}

func TestMatrixCommand_HasCheck(t *testing.T) {
	cmd, args, err := rootCmd.Find([]string{"matrix", "check", "london"})
	require.NoError(t, err)
	assert.Equal(t, "check", cmd.Name())
	assert.Equal(t, []string{"london"}, args)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "stats"} {
		assert.True(t, names[name], "expected runs subcommand %q not found", name)
	}

	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
}

func TestProjectCommand_ColumnDefaults(t *testing.T) {
	lon := projectCmd.Flags().Lookup("lon")
	require.NotNil(t, lon)
	assert.Equal(t, "1", lon.DefValue)

	lat := projectCmd.Flags().Lookup("lat")
	require.NotNil(t, lat)
	assert.Equal(t, "0", lat.DefValue)
}
