package archive

import (
	"path/filepath"
	"time"

	"codeberg.org/mutker/vitalsd/internal/errors"
)

const (
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/vitalsd/archive.db"
	defaultBatchSize    = 64
	defaultBatchTimeout = 5 * time.Second
)

type Config struct {
	Enabled      bool
	DBPath       string
	BackupDir    string
	BatchSize    int
	BatchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		DBPath:       defaultDBPath,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Nothing to check for the no-op recorder
	if !c.Enabled {
		return nil
	}

	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "batch size must be positive")
	}
	if c.BatchTimeout <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "batch timeout must be positive")
	}

	return nil
}

// backupDir defaults to a backups directory next to the database.
func (c Config) backupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.DBPath), "backups")
}
