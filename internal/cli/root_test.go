package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "galenium", cmd.Use)
	assert.Contains(t, cmd.Long, "verification scenarios")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"verify"},
		{"keys"},
		{"devices"},
		{"baseline"},
		{"baseline", "list"},
		{"baseline", "promote"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestVerifyCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	verifyCmd, _, err := cmd.Find([]string{"verify"})
	require.NoError(t, err)

	for _, name := range []string{"fixture", "url", "remote", "catalog", "devices", "expected", "record", "db", "label", "parallel", "timeout", "metrics-file"} {
		assert.NotNil(t, verifyCmd.Flags().Lookup(name), "flag --%s", name)
	}

	modeFlag := verifyCmd.Flags().Lookup("record-mode")
	require.NotNil(t, modeFlag)
	assert.Equal(t, "always", modeFlag.DefValue)
}

func TestBaselineCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	baselineCmd, _, err := cmd.Find([]string{"baseline"})
	require.NoError(t, err)

	assert.NotNil(t, baselineCmd.PersistentFlags().Lookup("db"))
	assert.NotNil(t, baselineCmd.PersistentFlags().Lookup("run"))

	promoteCmd, _, err := cmd.Find([]string{"baseline", "promote"})
	require.NoError(t, err)
	dryRun := promoteCmd.Flags().Lookup("dry-run")
	require.NotNil(t, dryRun)
	assert.Equal(t, "false", dryRun.DefValue)
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--format", "xml", "devices", "catalog.cue"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}

	quiet := newLogger(&RootOptions{}, buf)
	quiet.Info("hidden")
	quiet.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	verbose := newLogger(&RootOptions{Verbose: true}, buf)
	verbose.Debug("details")
	assert.Contains(t, buf.String(), "details")
}
