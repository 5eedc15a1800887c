package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRejectsUnknownFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"cart", "--format", "yaml", "--state", t.TempDir() + "/state.db"})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootCommandListsSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"login", "logout", "whoami", "products", "cart", "checkout", "orders", "discounts", "chat"} {
		assert.True(t, names[want], want)
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad flag", assert.AnError)))
	assert.EqualError(t, WrapExitError(ExitFailure, "login failed", assert.AnError), "login failed: "+assert.AnError.Error())
}

func TestOutputFormatter(t *testing.T) {
	var buf bytes.Buffer
	out := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, out.Emit(map[string]int{"count": 2}, nil))
	assert.JSONEq(t, `{"count":2}`, buf.String())

	buf.Reset()
	out.Format = "text"
	out.Table([]string{"ID", "TITLE"}, [][]string{{"1", "Mug"}, {"12", "Tee"}})
	assert.Equal(t, "ID  TITLE\n1   Mug\n12  Tee\n", buf.String())
}
