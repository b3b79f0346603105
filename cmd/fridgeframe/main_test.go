package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fridgeframe/internal/config"
	"fridgeframe/internal/media"
	"fridgeframe/internal/playlog"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommandC executes a cobra command and captures its output.
func executeCommandC(root *cobra.Command, args ...string) (string, string, error) {
	actualStdout := new(bytes.Buffer)
	actualStderr := new(bytes.Buffer)
	root.SetOut(actualStdout)
	root.SetErr(actualStderr)
	root.SetArgs(args)

	err := root.Execute()

	return actualStdout.String(), actualStderr.String(), err
}

// newTestRoot isolates HOME and records what run was handed.
func newTestRoot(t *testing.T) (*cobra.Command, *[]config.Config) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var got []config.Config
	root := NewRootCmd(func(cmd *cobra.Command, cfg config.Config) error {
		got = append(got, cfg)
		return nil
	})
	return root, &got
}

func seedPlayLog(t *testing.T, path string) {
	t.Helper()
	store, err := playlog.Open(path, func(string) {})
	require.NoError(t, err)
	defer store.Close()

	base := time.Now().Add(-48 * time.Hour)
	_, err = store.Record(playlog.NewEntry(media.Photo("https://p/1", time.Time{}), "Beach", base))
	require.NoError(t, err)
	photo := media.Photo("https://p/2", time.Time{})
	photo.Filename = "sunset.jpg"
	_, err = store.Record(playlog.NewEntry(photo, "Beach", time.Now().Add(-time.Minute)))
	require.NoError(t, err)
}

func TestRootHelp(t *testing.T) {
	root, _ := newTestRoot(t)
	stdout, stderr, err := executeCommandC(root, "--help")
	require.NoError(t, err, "stdout: %s, stderr: %s", stdout, stderr)
	assert.Contains(t, stdout, "Usage:")
	for _, sub := range []string{"run", "config", "playlog", "version"} {
		assert.Contains(t, stdout, sub)
	}
}

func TestVersionCommand(t *testing.T) {
	root, _ := newTestRoot(t)
	stdout, _, err := executeCommandC(root, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Version: dev")
}

func TestRunCommandPassesConfig(t *testing.T) {
	root, got := newTestRoot(t)
	_, _, err := executeCommandC(root, "run",
		"--source-dir", t.TempDir(),
		"--photo-duration", "15s",
		"--media-types", "photo",
		"--batch-count", "3",
		"--api-enabled=false",
	)
	require.NoError(t, err)
	require.Len(t, *got, 1)
	cfg := (*got)[0]
	assert.Equal(t, 15*time.Second, cfg.PhotoDuration)
	assert.Equal(t, "photo", cfg.MediaTypes)
	assert.Equal(t, 3, cfg.BatchCount)
	assert.False(t, cfg.APIEnabled)
	assert.True(t, cfg.ThermalEnabled)
	assert.Equal(t, 60*time.Second, cfg.VideoDuration)
}

func TestRunCommandRejectsInvalidConfig(t *testing.T) {
	root, got := newTestRoot(t)
	_, _, err := executeCommandC(root, "run")
	assert.ErrorContains(t, err, "source-url or source-dir")

	_, _, err = executeCommandC(root, "run", "--source-url", "http://x", "--thermal-recovery", "80")
	assert.ErrorContains(t, err, "thermal-recovery")
	assert.Empty(t, *got)
}

func TestConfigCommand(t *testing.T) {
	root, _ := newTestRoot(t)
	stdout, stderr, err := executeCommandC(root, "config", "--photo-duration", "20s")
	require.NoError(t, err)
	assert.Contains(t, stdout, "photo-duration: 20s")
	assert.Contains(t, stdout, "api-addr:")
	assert.Contains(t, stderr, "Warning:")

	path := filepath.Join(t.TempDir(), "frame.yml")
	root, _ = newTestRoot(t)
	stdout, _, err = executeCommandC(root, "config", "--source-url", "http://frame/batch", "--write", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "http://frame/batch")

	root, got := newTestRoot(t)
	_, _, err = executeCommandC(root, "run", "--config", path)
	require.NoError(t, err)
	require.Len(t, *got, 1)
	assert.Equal(t, "http://frame/batch", (*got)[0].SourceURL)
}

func TestPlayLogCommand(t *testing.T) {
	root, _ := newTestRoot(t)
	dbPath := filepath.Join(t.TempDir(), "frame.db")
	seedPlayLog(t, dbPath)

	stdout, _, err := executeCommandC(root, "playlog", "--db-path", dbPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "SHOWN")
	assert.Contains(t, stdout, "sunset.jpg")
	assert.Contains(t, stdout, "https://p/1")

	root, _ = newTestRoot(t)
	stdout, _, err = executeCommandC(root, "playlog", "--db-path", dbPath, "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "sunset.jpg")
	assert.NotContains(t, stdout, "https://p/1")

	root, _ = newTestRoot(t)
	stdout, _, err = executeCommandC(root, "playlog", "--db-path", dbPath, "--prune", "24h")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Pruned 1 entries")

	root, _ = newTestRoot(t)
	stdout, _, err = executeCommandC(root, "playlog", "--db-path", dbPath)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "https://p/1")
}

func TestPlayLogCommandEmpty(t *testing.T) {
	root, _ := newTestRoot(t)
	stdout, _, err := executeCommandC(root, "playlog", "--db-path", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "No displays recorded.")
}
