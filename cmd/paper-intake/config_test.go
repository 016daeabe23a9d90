// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-intake/pkg/types"
)

func testCommand(t *testing.T, flags map[string]string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("log-level", "", "")
	cmd.Flags().String("log-format", "", "")
	for k, v := range flags {
		require.NoError(t, cmd.Flags().Set(k, v))
	}
	return cmd
}

// isolate keeps the developer's own config files out of the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	c, err := loadConfig(testCommand(t, nil))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), c)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PAPER_INTAKE_DOWNLOAD_MAX_ATTEMPTS", "5")
	t.Setenv("PAPER_INTAKE_DOWNLOAD_RATE_DELAY", "250ms")
	t.Setenv("PAPER_INTAKE_ANALYSIS_PROVIDER", "none")
	t.Setenv("PAPER_INTAKE_METRICS_TEXTFILE", "metrics.prom")

	c, err := loadConfig(testCommand(t, nil))
	require.NoError(t, err)
	assert.Equal(t, 5, c.Download.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, c.Download.RateDelay)
	assert.Equal(t, "none", c.Analysis.Provider)
	assert.Equal(t, "metrics.prom", c.Metrics.Textfile)
}

func TestLoadConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  base_dir: /data/papers
analysis:
  provider: openai
  model: gpt-4o-mini
categories:
  - name: security
    description: Relevant for security teams
`), 0o644))

	c, err := loadConfig(testCommand(t, map[string]string{"config": path, "log-level": "debug"}))
	require.NoError(t, err)
	assert.Equal(t, "/data/papers", c.Storage.BaseDir)
	assert.Equal(t, "papers_tracker.yaml", c.Storage.TrackerFile, "unset keys keep their defaults")
	assert.Equal(t, "openai", c.Analysis.Provider)
	assert.Equal(t, 10000, c.Analysis.MaxTextChars)
	assert.Equal(t, []types.Category{{Name: "security", Description: "Relevant for security teams"}}, c.Categories)
	assert.Equal(t, "debug", c.Logging.Level)
}

func TestLoadConfigSearchesWorkingDirectory(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "paper-intake.yaml"), []byte("logging:\n  format: json\n"), 0o644))

	c, err := loadConfig(testCommand(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "json", c.Logging.Format)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	isolate(t)

	_, err := loadConfig(testCommand(t, map[string]string{"log-level": "loud"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Level")

	_, err = loadConfig(testCommand(t, map[string]string{"config": "/nonexistent/paper-intake.yaml"}))
	assert.Error(t, err)
}

func TestMonthFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("month", "", "")

	m, err := monthFlag(cmd)
	require.NoError(t, err)
	assert.Equal(t, time.Now().UTC().Format("2006-01"), m)

	require.NoError(t, cmd.Flags().Set("month", "2025-11"))
	m, err = monthFlag(cmd)
	require.NoError(t, err)
	assert.Equal(t, "2025-11", m)

	require.NoError(t, cmd.Flags().Set("month", "November"))
	_, err = monthFlag(cmd)
	assert.Error(t, err)
}
