package pid_test

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitalsd.pid")

	require.NoError(t, pid.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, pid.Remove(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing twice is fine
	assert.NoError(t, pid.Remove(path))
}

func TestWriteWhileRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vitalsd.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600))

	err := pid.Write(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestWriteOverwritesStaleFile(t *testing.T) {
	tests := []struct {
		msg     string
		content string
	}{
		{msg: "garbage", content: "not-a-pid"},
		{msg: "empty", content: ""},
		{msg: "negative", content: "-4"},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "vitalsd.pid")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			require.NoError(t, pid.Write(path))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
		})
	}
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, filepath.Join(os.TempDir(), "vitalsd.pid"), pid.DefaultPath())
}
