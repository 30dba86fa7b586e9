package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "chessmentor", cmd.Use)
	assert.Contains(t, cmd.Long, "puzzles")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"puzzles", "play", "serve", "history"}

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
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestPuzzlesCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	puzzlesCmd, _, err := cmd.Find([]string{"puzzles"})
	require.NoError(t, err)

	for _, name := range []string{"file", "min-rating", "db"} {
		assert.NotNil(t, puzzlesCmd.Flags().Lookup(name), "flag %s", name)
	}
	assert.Equal(t, "0", puzzlesCmd.Flags().Lookup("min-rating").DefValue)
}

func TestPlayCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	playCmd, _, err := cmd.Find([]string{"play"})
	require.NoError(t, err)

	// Empty defaults defer to the config file.
	assert.Equal(t, "", playCmd.Flags().Lookup("side").DefValue)
	assert.Equal(t, "", playCmd.Flags().Lookup("difficulty").DefValue)
	require.NotNil(t, playCmd.Flags().Lookup("db"))
}

func TestServeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	for _, name := range []string{"addr", "file", "min-rating", "db"} {
		assert.NotNil(t, serveCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestHistoryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	historyCmd, _, err := cmd.Find([]string{"history"})
	require.NoError(t, err)

	assert.Equal(t, "50", historyCmd.Flags().Lookup("limit").DefValue)
	assert.Equal(t, "false", historyCmd.Flags().Lookup("games").DefValue)
	assert.Equal(t, "false", historyCmd.Flags().Lookup("stats").DefValue)
	require.NotNil(t, historyCmd.Flags().Lookup("session"))
	require.NotNil(t, historyCmd.Flags().Lookup("puzzle"))
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "history"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestExecute_ReportsErrorAsText(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Execute([]string{"history", "--db", "-"}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, ExitCommandError, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Error [E003]")
	assert.Contains(t, stderr.String(), "no database configured")
}

func TestExecute_ReportsErrorAsJSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Execute([]string{"--format", "json", "play", "--difficulty", "impossible", "--db", "-"},
		strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, ExitCommandError, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInput, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "unknown difficulty")
}

func TestExecute_MissingConfigFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Execute([]string{"--config", t.TempDir() + "/missing.yaml", "history"},
		strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr.String(), "Error [E002]")
}
