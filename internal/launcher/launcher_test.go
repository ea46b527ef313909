package launcher

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func installed(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path, err := Install(t.TempDir())
	require.NoError(t, err)
	return path
}

// run executes the helper and returns its exit status and the signal file
func run(t *testing.T, helper string, args ...string) (int, string) {
	t.Helper()
	signal := filepath.Join(t.TempDir(), "sig_test.signal")
	require.NoError(t, os.WriteFile(signal, nil, 0o600))

	cmd := exec.Command("sh", append(append([]string{helper}, args...), signal)...)
	err := cmd.Run()

	status := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		status = exitErr.ExitCode()
	} else {
		require.NoError(t, err)
	}

	contents, err := os.ReadFile(signal)
	require.NoError(t, err)
	return status, string(contents)
}

func TestInstall(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bin")
	path, err := Install(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, Name), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Script(), data)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestInstall_KeepsCanonicalFile(t *testing.T) {
	dir := t.TempDir()
	path, err := Install(dir)
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, old, old))

	_, err = Install(dir)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(old), "file was rewritten")
}

func TestInstall_ReplacesStaleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 9\n"), 0o644))

	_, err := Install(dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Script(), data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file left behind")
}

func TestScript_ReturnsCopy(t *testing.T) {
	s := Script()
	s[0] = 'X'
	assert.NotEqual(t, s[0], Script()[0])
}

func TestLaunch_Success(t *testing.T) {
	helper := installed(t)

	status, contents := run(t, helper, "true")
	assert.Equal(t, 0, status)
	assert.Equal(t, "START\nEND\n", contents)
}

func TestLaunch_Failure(t *testing.T) {
	helper := installed(t)

	status, contents := run(t, helper, "sh", "-c", "exit 3")
	assert.Equal(t, 3, status)
	assert.Equal(t, "START\nFAIL 3\n", contents)
}

func TestLaunch_PreservesArguments(t *testing.T) {
	helper := installed(t)

	status, contents := run(t, helper, "test", "a b", "=", "a b")
	assert.Equal(t, 0, status)
	assert.Equal(t, "START\nEND\n", contents)

	status, contents = run(t, helper, "test", "a b", "=", "a")
	assert.Equal(t, 1, status)
	assert.Equal(t, "START\nFAIL 1\n", contents)
}

func TestLaunch_MissingCommand(t *testing.T) {
	helper := installed(t)

	status, contents := run(t, helper, "termsync-no-such-command")
	assert.Equal(t, 127, status)
	assert.Equal(t, "START\nFAIL 127\n", contents)
}

func TestLaunch_Usage(t *testing.T) {
	helper := installed(t)

	err := exec.Command("sh", helper, "only-one").Run()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitCode())
}
