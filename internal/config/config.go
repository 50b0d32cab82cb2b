package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/vitalsd/internal/errors"
	"codeberg.org/mutker/vitalsd/internal/pid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultListen              = "127.0.0.1:8080"
	DefaultInterval            = 2 * time.Second
	DefaultLogLevel            = LogLevelInfo
	DefaultLogMaxSizeMB        = 10
	DefaultLogMaxBackups       = 3
	DefaultLogMaxAgeDays       = 28
	DefaultChartWidth          = 600
	DefaultChartHeight         = 600
	DefaultChartXMax           = 1200
	DefaultChartYMax           = 120
	DefaultArchiveDB           = "/var/lib/vitalsd/archive.db"
	DefaultArchiveBatchSize    = 64
	DefaultArchiveBatchTimeout = 5 * time.Second

	defaultConfigName = "vitalsd"
	defaultConfigDir  = "/etc"
	defaultEnvPrefix  = "VITALSD"
	configPathEnv     = "CONFIG"
)

// DefaultChannels is the channel set the sensor device reports.
var DefaultChannels = []string{"bpm", "temperature", "oximetry"}

type Config struct {
	Listen   string        `mapstructure:"listen"`
	Interval time.Duration `mapstructure:"interval"`
	Channels []string      `mapstructure:"channels"`

	LogLevel      LogLevel `mapstructure:"log_level"`
	LogFile       string   `mapstructure:"log_file"`
	LogMaxSizeMB  int      `mapstructure:"log_max_size_mb"`
	LogMaxBackups int      `mapstructure:"log_max_backups"`
	LogMaxAgeDays int      `mapstructure:"log_max_age_days"`

	ChartWidth  int     `mapstructure:"chart_width"`
	ChartHeight int     `mapstructure:"chart_height"`
	ChartXMax   float64 `mapstructure:"chart_x_max"`
	ChartYMax   float64 `mapstructure:"chart_y_max"`

	Archive             bool          `mapstructure:"archive"`
	ArchiveDB           string        `mapstructure:"archive_db"`
	ArchiveBatchSize    int           `mapstructure:"archive_batch_size"`
	ArchiveBatchTimeout time.Duration `mapstructure:"archive_batch_timeout"`

	AuthSecret string `mapstructure:"auth_secret"`
	PIDFile    string `mapstructure:"pid_file"`
}

// Load builds the configuration from defaults, the TOML config file, the
// environment and finally the command line in args (without the program
// name), each layer overriding the previous one.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := options{envPrefix: defaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := bindFlags(v, fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	// Environment
	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Config file: flag, then option, then environment, then /etc
	configPath, _ := fs.GetString("config")
	if configPath == "" {
		configPath = o.configPath
	}
	if configPath == "" {
		configPath = os.Getenv(o.envPrefix + "_" + configPathEnv)
	}

	v.SetConfigType("toml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(defaultConfigDir)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if debug, _ := fs.GetBool("debug"); debug {
		cfg.LogLevel = LogLevelDebug
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}

	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	if len(c.Channels) == 0 {
		return errFactory.WithMessage(errors.ErrInvalidChannels, "at least one channel is required")
	}
	seen := make(map[string]struct{}, len(c.Channels))
	for _, name := range c.Channels {
		if name == "" {
			return errFactory.WithMessage(errors.ErrInvalidChannels, "channel names must not be empty")
		}
		if _, dup := seen[name]; dup {
			return errFactory.WithData(errors.ErrInvalidChannels, "duplicate channel "+name)
		}
		seen[name] = struct{}{}
	}

	if c.ChartWidth <= 0 || c.ChartHeight <= 0 || c.ChartXMax <= 0 || c.ChartYMax <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "chart dimensions must be positive")
	}

	if c.Archive {
		if c.ArchiveDB == "" {
			return errFactory.WithMessage(errors.ErrInvalidConfig, "archive_db is required when archive is enabled")
		}
		if c.ArchiveBatchSize <= 0 || c.ArchiveBatchTimeout <= 0 {
			return errFactory.WithMessage(errors.ErrInvalidConfig, "archive batch size and timeout must be positive")
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("channels", DefaultChannels)
	v.SetDefault("log_level", string(DefaultLogLevel))
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", DefaultLogMaxSizeMB)
	v.SetDefault("log_max_backups", DefaultLogMaxBackups)
	v.SetDefault("log_max_age_days", DefaultLogMaxAgeDays)
	v.SetDefault("chart_width", DefaultChartWidth)
	v.SetDefault("chart_height", DefaultChartHeight)
	v.SetDefault("chart_x_max", DefaultChartXMax)
	v.SetDefault("chart_y_max", DefaultChartYMax)
	v.SetDefault("archive", false)
	v.SetDefault("archive_db", DefaultArchiveDB)
	v.SetDefault("archive_batch_size", DefaultArchiveBatchSize)
	v.SetDefault("archive_batch_timeout", DefaultArchiveBatchTimeout)
	v.SetDefault("auth_secret", "")
	v.SetDefault("pid_file", pid.DefaultPath())
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("vitalsd", pflag.ContinueOnError)

	fs.String("config", "", "Path to the TOML configuration file")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.String("listen", DefaultListen, "HTTP listen address")
	fs.Duration("interval", DefaultInterval, "Chart refresh interval")
	fs.StringSlice("channels", DefaultChannels, "Telemetry channel names")
	fs.String("log-level", string(DefaultLogLevel), "Log level (debug, info, warning, error)")
	fs.String("log-file", "", "Write JSON logs to this rotated file instead of stdout")
	fs.Bool("archive", false, "Archive accepted measurements to SQLite")
	fs.String("archive-db", DefaultArchiveDB, "Path to the archive database")
	fs.String("pid-file", pid.DefaultPath(), "Path to the PID file")

	return fs
}

// flagKeys maps command line flag names onto configuration keys.
var flagKeys = map[string]string{
	"listen":     "listen",
	"interval":   "interval",
	"channels":   "channels",
	"log-level":  "log_level",
	"log-file":   "log_file",
	"archive":    "archive",
	"archive-db": "archive_db",
	"pid-file":   "pid_file",
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for flagName, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return err
		}
	}

	return nil
}
