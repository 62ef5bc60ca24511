package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	flags = rootFlags{}
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootHelp(t *testing.T) {
	stdout, _, err := runCommand(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "supportchat")
	for _, sub := range []string{"auth", "open", "send", "status", "unread", "version"} {
		assert.Contains(t, stdout, sub)
	}
}

func TestUnknownCommandSuggests(t *testing.T) {
	err := Execute(context.Background(), []string{"sedn"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
	assert.Contains(t, err.Error(), "Did you mean?")
	assert.Contains(t, err.Error(), "send")
}

func TestUnknownCommandNoMatchNoSuggestion(t *testing.T) {
	err := Execute(context.Background(), []string{"zzzzqqqq"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "Did you mean?")
}

func TestUnknownCommandName(t *testing.T) {
	assert.Equal(t, "sedn", unknownCommandName(`unknown command "sedn" for "supportchat"`))
	assert.Equal(t, "", unknownCommandName("unknown command without quotes"))
}

func TestSuggestCommands(t *testing.T) {
	root := newRootCmd()

	got := suggestCommands(root, "stat")
	require.NotEmpty(t, got)
	assert.Equal(t, "status", got[0])

	assert.LessOrEqual(t, len(suggestCommands(root, "s")), maxSuggestions)
	assert.Empty(t, suggestCommands(root, "qqqq"))
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "supportchat-cli version dev")
}

func TestVersionAlias(t *testing.T) {
	stdout, _, err := runCommand(t, "v")
	require.NoError(t, err)
	assert.Contains(t, stdout, "supportchat-cli version")
}

func TestIsJSON(t *testing.T) {
	flags = rootFlags{}
	assert.False(t, isJSON())

	flags.JSON = true
	assert.True(t, isJSON())

	flags = rootFlags{JQ: ".unreadCount"}
	assert.True(t, isJSON())
}
