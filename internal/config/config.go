// Package config loads the settings of the combinelock tool from the
// environment and an optional config file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the settings of the tool.
type Config struct {
	Datadir      string
	LogLevel     log.Level
	SigCacheSize uint
	CellCacheTTL time.Duration
	Limits       vm.Limits
}

var (
	Datadir        = "DATADIR"
	LogLevel       = "LOG_LEVEL"
	SigCacheSize   = "SIG_CACHE_SIZE"
	CellCacheTTL   = "CELL_CACHE_TTL"
	MaxSpawnDepth  = "MAX_SPAWN_DEPTH"
	MaxExecChain   = "MAX_EXEC_CHAIN"
	MaxInvocations = "MAX_INVOCATIONS"

	defaultDatadir        = btcutil.AppDataDir("combinelock", false)
	defaultLogLevel       = "info"
	defaultSigCacheSize   = 1000
	defaultCellCacheTTL   = 2 * time.Minute
	defaultMaxSpawnDepth  = vm.DefaultLimits.MaxSpawnDepth
	defaultMaxExecChain   = vm.DefaultLimits.MaxExecChain
	defaultMaxInvocations = vm.DefaultLimits.MaxInvocations
)

const (
	envPrefix      = "COMBINELOCK"
	configFileName = "combinelock"
)

// LoadConfig reads the settings from the environment, falling back to a
// combinelock.yaml in the data directory and then to defaults.
func LoadConfig() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(Datadir, defaultDatadir)
	v.SetDefault(LogLevel, defaultLogLevel)
	v.SetDefault(SigCacheSize, defaultSigCacheSize)
	v.SetDefault(CellCacheTTL, defaultCellCacheTTL)
	v.SetDefault(MaxSpawnDepth, defaultMaxSpawnDepth)
	v.SetDefault(MaxExecChain, defaultMaxExecChain)
	v.SetDefault(MaxInvocations, defaultMaxInvocations)

	datadir := cleanAndExpandPath(v.GetString(Datadir))
	v.SetConfigName(configFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(datadir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	level, err := log.ParseLevel(v.GetString(LogLevel))
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}

	cfg := &Config{
		Datadir:      datadir,
		LogLevel:     level,
		SigCacheSize: v.GetUint(SigCacheSize),
		CellCacheTTL: v.GetDuration(CellCacheTTL),
		Limits: vm.Limits{
			MaxSpawnDepth:  v.GetInt(MaxSpawnDepth),
			MaxExecChain:   v.GetInt(MaxExecChain),
			MaxInvocations: v.GetInt(MaxInvocations),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Limits.MaxSpawnDepth <= 0 {
		return errors.Errorf("%s must be positive", MaxSpawnDepth)
	}
	if c.Limits.MaxExecChain <= 0 {
		return errors.Errorf("%s must be positive", MaxExecChain)
	}
	if c.Limits.MaxInvocations <= 0 {
		return errors.Errorf("%s must be positive", MaxInvocations)
	}
	if c.CellCacheTTL < 0 {
		return errors.Errorf("%s must not be negative", CellCacheTTL)
	}
	return nil
}

// LedgerPath returns the directory the ledger store lives in.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Datadir, "ledger")
}

// InitDatadir creates the data directory.
func (c *Config) InitDatadir() error {
	if err := os.MkdirAll(c.Datadir, os.ModeDir|0755); err != nil {
		return errors.Wrapf(err, "failed to create datadir %s", c.Datadir)
	}
	return nil
}

// cleanAndExpandPath expands environment variables and a leading ~ in path
// and cleans the result.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}
