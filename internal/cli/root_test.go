package cli

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "seqctl", cmd.Use)
	assert.Contains(t, cmd.Long, "unique across every process")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"define", "next", "show", "list", "drop"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
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

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "seqlease.yaml", configFlag.DefValue)

	for _, name := range []string{"store", "dsn"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestNextCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	nextCmd, _, err := cmd.Find([]string{"next"})
	require.NoError(t, err)

	numFlag := nextCmd.Flags().Lookup("num")
	require.NotNil(t, numFlag)
	assert.Equal(t, "n", numFlag.Shorthand)
	assert.Equal(t, "1", numFlag.DefValue)

	for _, name := range []string{"dynamic", "prefix", "date-prefix", "time-prefix"} {
		assert.NotNil(t, nextCmd.Flags().Lookup(name), name)
	}
}

func TestDefineCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	defineCmd, _, err := cmd.Find([]string{"define"})
	require.NoError(t, err)

	countFlag := defineCmd.Flags().Lookup("count")
	require.NotNil(t, countFlag)
	assert.Equal(t, "100", countFlag.DefValue)

	maxFlag := defineCmd.Flags().Lookup("max")
	require.NotNil(t, maxFlag)
	assert.Equal(t, "9223372036854775807", maxFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := runCLI(t, dbPath(t), "list", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestUnknownFlag(t *testing.T) {
	_, _, err := runCLI(t, dbPath(t), "list", "--bogus")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
