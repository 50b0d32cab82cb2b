package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/vitalsd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vitalsd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen = "127.0.0.1:0"
interval = "20ms"
chart_width = 200
chart_height = 150
`), 0o600))

	cfg, err := config.Load(nil, config.WithConfigFile(path))
	require.NoError(t, err)

	return cfg
}

func TestAppRunsUntilCancelled(t *testing.T) {
	a, err := newApp(testConfig(t))
	require.NoError(t, err)

	_, err = a.store.Record("bpm", 72)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	require.Eventually(t, func() bool {
		return a.consumer.Latest() != nil
	}, 2*time.Second, 10*time.Millisecond, "a frame is rendered on the refresh cadence")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("app did not shut down")
	}

	a.cleanup()
	assert.Positive(t, a.scheduler.Stats().Delivered)
}

func TestAppRunFailsOnInvalidAddress(t *testing.T) {
	cfg := testConfig(t)
	cfg.Listen = "256.0.0.1:99999"

	a, err := newApp(cfg)
	require.NoError(t, err)

	select {
	case err := <-runAsync(a):
		require.Error(t, err)
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("run did not return")
	}
	a.cleanup()
}

func runAsync(a *app) <-chan error {
	done := make(chan error, 1)
	go func() { done <- a.run(context.Background()) }()
	return done
}

func TestNewAppWithAuthSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuthSecret = "secret"

	a, err := newApp(cfg)
	require.NoError(t, err)
	assert.NotNil(t, a.server.Handler)
}
