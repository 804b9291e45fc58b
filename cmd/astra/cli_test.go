package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command against an isolated data directory.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	for _, env := range []string{"ASTRA_STORAGE_BACKEND", "ASTRA_FIRESTORE_PROJECT", "ASTRA_SQLITE_PATH", "ASTRA_DATA_DIR", "ASTRA_MODEL"} {
		t.Setenv(env, "")
	}
	emitTaskID = ""
	configForce = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	full := append([]string{"--config", filepath.Join(dir, "config.yaml"), "--data-dir", dir, "--mock"}, args...)
	rootCmd.SetArgs(full)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, dir, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))

	_, err = runCLI(t, dir, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	out, err = runCLI(t, dir, "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")
}

func TestConfigShowMasksKey(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GEMINI_API_KEY", "secret-key")

	out, err := runCLI(t, dir, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "secret-key")
	assert.Contains(t, out, "********")
}

func TestTasksPersistAcrossRuns(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, dir, "tasks", "add", "write", "report")
	require.NoError(t, err)
	m := regexp.MustCompile(`Added (\S+): write report`).FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]

	out, err = runCLI(t, dir, "tasks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "[ ] "+id)
	assert.Contains(t, out, "write report")

	_, err = runCLI(t, dir, "tasks", "toggle", id)
	require.NoError(t, err)
	out, err = runCLI(t, dir, "tasks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "[x] "+id)

	_, err = runCLI(t, dir, "tasks", "rm", "missing")
	assert.Error(t, err)
}

func TestAskWithMockModel(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, dir, "ask", "ping")
	require.NoError(t, err)
	assert.Contains(t, out, "You said: ping")
}

func TestEmitWritesInbox(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, dir, "emit", "task", "add", "from", "outside")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued")

	_, err = runCLI(t, dir, "emit", "terminal", "ls", "a b")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "inbox"))
	require.NoError(t, err)
	var files int
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".json") {
			files++
		}
	}
	assert.Equal(t, 2, files)
}

func TestEmitRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	_, err := runCLI(t, dir, "emit", "task", "explode")
	assert.ErrorContains(t, err, "unknown task action")

	_, err = runCLI(t, dir, "emit", "task", "add")
	assert.ErrorContains(t, err, "task text required")

	_, err = runCLI(t, dir, "emit", "task", "toggle")
	assert.ErrorContains(t, err, "task id required")
}
