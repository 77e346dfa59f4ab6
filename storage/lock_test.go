package storage

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceLockAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireInstanceLock(dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, lockFileName))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, lock.Release())
	assert.NoFileExists(t, filepath.Join(dir, lockFileName))
	assert.NoError(t, lock.Release())
}

func TestInstanceLockHeldByRunningProcess(t *testing.T) {
	dir := t.TempDir()
	// The test binary's parent is alive for the duration of the test
	require.NoError(t, os.WriteFile(filepath.Join(dir, lockFileName), []byte(strconv.Itoa(os.Getppid())), 0600))

	_, err := AcquireInstanceLock(dir)
	assert.ErrorIs(t, err, ErrInstanceLocked)
}

func TestInstanceLockTakesOverStaleLock(t *testing.T) {
	for name, content := range map[string]string{
		"garbage":      "not a pid",
		"dead process": "999999999",
	} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, lockFileName), []byte(content), 0600))

			lock, err := AcquireInstanceLock(dir)
			require.NoError(t, err)
			defer lock.Release()
		})
	}
}
