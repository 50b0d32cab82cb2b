package archive

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/logger"
	"codeberg.org/mutker/vitalsd/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()

	dir := t.TempDir()
	return Config{
		Enabled:      true,
		DBPath:       filepath.Join(dir, "data", "archive.db"),
		BatchSize:    3,
		BatchTimeout: time.Hour,
	}
}

func countReadings(t *testing.T, db *sql.DB) int {
	t.Helper()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM readings").Scan(&n))
	return n
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		msg   string
		cfg   Config
		code  errors.ErrorCode
		valid bool
	}{
		{msg: "default is disabled", cfg: DefaultConfig(), valid: true},
		{msg: "disabled ignores fields", cfg: Config{}, valid: true},
		{msg: "missing path", cfg: Config{Enabled: true, BatchSize: 1, BatchTimeout: time.Second}, code: ErrInvalidDBPath},
		{msg: "zero batch", cfg: Config{Enabled: true, DBPath: "a.db", BatchTimeout: time.Second}, code: ErrInvalidConfig},
		{msg: "zero timeout", cfg: Config{Enabled: true, DBPath: "a.db", BatchSize: 1}, code: ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code))
		})
	}
}

func TestNewDisabledIsNoop(t *testing.T) {
	rec, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.False(t, rec.Enabled())
	assert.NoError(t, rec.Record(context.Background(), "bpm", telemetry.Measurement{Value: 1}))
	assert.NoError(t, rec.Close())
}

func TestRepositoryFlushesOnBatchSize(t *testing.T) {
	cfg := testConfig(t)
	repo, err := openRepository(cfg, logger.Std())
	require.NoError(t, err)

	now := time.Now()
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Insert(Reading{Channel: "bpm", Timestamp: now.UnixNano(), Value: 70}))
	}
	assert.Zero(t, countReadings(t, repo.db), "below batch size nothing is written")

	require.NoError(t, repo.Insert(Reading{Channel: "temperature", Timestamp: now.UnixNano(), Value: 36.6}))
	assert.Equal(t, 3, countReadings(t, repo.db))

	// The remainder is flushed on close
	require.NoError(t, repo.Insert(Reading{Channel: "bpm", Timestamp: now.UnixNano(), Value: 71}))
	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, 4, countReadings(t, db))

	var (
		channel string
		value   float64
	)
	require.NoError(t, db.QueryRow("SELECT channel, value FROM readings ORDER BY id DESC LIMIT 1").Scan(&channel, &value))
	assert.Equal(t, "bpm", channel)
	assert.Equal(t, 71.0, value)
}

func TestRepositoryPeriodicFlush(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 100
	cfg.BatchTimeout = 20 * time.Millisecond

	repo, err := openRepository(cfg, logger.Std())
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Insert(Reading{Channel: "oximetry", Timestamp: time.Now().UnixNano(), Value: 98}))

	assert.Eventually(t, func() bool {
		return countReadings(t, repo.db) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRepositoryInsertAfterClose(t *testing.T) {
	repo, err := openRepository(testConfig(t), logger.Std())
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	err = repo.Insert(Reading{Channel: "bpm", Value: 1})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrClosed))
}

func TestSchemaMismatchIsBackedUpAndRecreated(t *testing.T) {
	cfg := testConfig(t)
	cfg.BackupDir = filepath.Join(t.TempDir(), "backups")
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm))

	old, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = old.Exec(`
		CREATE TABLE schema_versions (version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL);
		INSERT INTO schema_versions VALUES (99, datetime('now'));
		CREATE TABLE readings (legacy TEXT);`)
	require.NoError(t, err)
	require.NoError(t, old.Close())

	repo, err := openRepository(cfg, logger.Std())
	require.NoError(t, err)
	defer repo.Close()

	version, err := GetSchemaVersion(repo.db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)

	backups, err := filepath.Glob(filepath.Join(cfg.BackupDir, "archive_v99_*.db"))
	require.NoError(t, err)
	assert.Len(t, backups, 1)

	require.NoError(t, repo.Insert(Reading{Channel: "bpm", Timestamp: 1, Value: 60}))
}

func TestServiceRecord(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 1

	rec, err := New(cfg)
	require.NoError(t, err)
	defer rec.Close()
	assert.True(t, rec.Enabled())

	m := telemetry.Measurement{Timestamp: time.Unix(0, 42), Value: 72}
	require.NoError(t, rec.Record(context.Background(), "bpm", m))

	db := rec.(*service).repo.(*repository).db
	var ts int64
	require.NoError(t, db.QueryRow("SELECT timestamp_ns FROM readings").Scan(&ts))
	assert.Equal(t, int64(42), ts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = rec.Record(ctx, "bpm", m)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrOperationTimeout))
}
