package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleWritesPlainWithoutColor(t *testing.T) {
	var out bytes.Buffer
	c := NewConsoleWith(strings.NewReader(""), &out)

	c.Success("done")
	c.Info("Bot", "@testbot")
	c.Error("failed", "boom")

	assert.Equal(t, "done\nBot: @testbot\nfailed: boom\n", out.String())
}

func TestConsoleColor(t *testing.T) {
	var out bytes.Buffer
	c := NewConsoleWith(strings.NewReader(""), &out)
	c.SetColor(true)

	c.Success("ok")
	assert.Equal(t, "\033[32mok\033[0m\n", out.String())
}

func TestConsoleQuietKeepsErrors(t *testing.T) {
	var out bytes.Buffer
	c := NewConsoleWith(strings.NewReader(""), &out)
	c.SetQuiet(true)

	c.Banner()
	c.Success("hidden")
	c.Error("shown")

	assert.Equal(t, "shown\n", out.String())
}

func TestConsolePrompts(t *testing.T) {
	var out bytes.Buffer
	c := NewConsoleWith(strings.NewReader("  someone \n\nyes\nsecret"), &out)

	name, err := c.Prompt("Name: ")
	require.NoError(t, err)
	assert.Equal(t, "someone", name)

	assert.True(t, c.Confirm("Continue?", true))
	assert.True(t, c.Confirm("Really?", false))

	secret, err := c.Secret("Token: ")
	require.NoError(t, err)
	assert.Equal(t, "secret", secret)

	_, err = c.Prompt("More: ")
	assert.Error(t, err)
	assert.Contains(t, out.String(), "Continue? (Y/n): ")
}
