// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/spatial/internal/config"
)

func newInitCmd(args ...string) (*cobra.Command, *bytes.Buffer) {
	c := &cobra.Command{Use: "init", RunE: InitCmdRunE}
	InitCmdFlags(c)
	out := &bytes.Buffer{}
	c.SetOut(out)
	c.SetArgs(args)
	return c, out
}

func TestInitPrint(t *testing.T) {
	c, out := newInitCmd("--print")
	require.NoError(t, c.Execute())
	assert.Contains(t, out.String(), "driver: sim")
	assert.Contains(t, out.String(), "topic_prefix: spatial")
}

func TestInitWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "spatial.yaml")
	c, _ := newInitCmd("-o", path)
	require.NoError(t, c.Execute())

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Device, cfg.Device)
}

func TestInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spatial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o600))

	c, _ := newInitCmd("-o", path)
	c.SetIn(strings.NewReader("n\n"))
	assert.Error(t, c.Execute())

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(body))

	c, _ = newInitCmd("-o", path, "-y")
	require.NoError(t, c.Execute())
	body, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEqual(t, "keep", string(body))
}

func TestRootCommands(t *testing.T) {
	root := getRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "console", "init", "probe"})
	assert.NotNil(t, ServeCmd.Flags().Lookup("driver"))
	assert.NotNil(t, ConsoleCmd.Flags().Lookup("mqtt"))
}

func TestConsoleRejectsNonPositiveInterval(t *testing.T) {
	for _, arg := range []string{"--interval=0s", "--interval=-5ms"} {
		c := &cobra.Command{Use: "console", RunE: ConsoleCmdRunE}
		commonFlags(c)
		ConsoleCmdFlags(c)
		c.SetOut(&bytes.Buffer{})
		c.SetArgs([]string{"--driver=sim", arg})

		err := c.Execute()
		assert.ErrorContains(t, err, "--interval must be positive", arg)
	}
}
