package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/iov-one/fedescrow/errors"
	"github.com/tendermint/tendermint/libs/log"
)

// Config is the daemon configuration file.
type Config struct {
	Listen        string        `toml:"listen"`
	DBPath        string        `toml:"db_path"`
	Genesis       string        `toml:"genesis"`
	BatchInterval time.Duration `toml:"batch_interval"`
	LogLevel      string        `toml:"log_level"`
	LogFormat     string        `toml:"log_format"`
	// Metrics serves /metrics when set.
	Metrics bool `toml:"metrics"`
}

func DefaultConfig(home string) Config {
	return Config{
		Listen:        "localhost:8000",
		DBPath:        home + "/data",
		Genesis:       home + "/genesis.json",
		BatchInterval: time.Second,
		LogLevel:      "info",
		LogFormat:     "plain",
		Metrics:       true,
	}
}

// LoadConfig reads the file on top of the defaults. Unknown keys are an
// error so that a typo does not silently fall back to a default.
func LoadConfig(path, home string) (Config, error) {
	conf := DefaultConfig(home)
	meta, err := toml.DecodeFile(path, &conf)
	if err != nil {
		return conf, errors.Wrapf(errors.ErrInput, "cannot read config %q: %s", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return conf, errors.Wrapf(errors.ErrInput, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	return conf, conf.Validate()
}

func (c Config) Validate() error {
	if c.Listen == "" {
		return errors.Wrap(errors.ErrEmpty, "listen")
	}
	if c.DBPath == "" {
		return errors.Wrap(errors.ErrEmpty, "db_path")
	}
	if c.BatchInterval <= 0 {
		return errors.Wrap(errors.ErrInput, "batch_interval must be positive")
	}
	if _, err := log.AllowLevel(c.LogLevel); err != nil {
		return errors.Wrapf(errors.ErrInput, "log_level: %s", err)
	}
	switch c.LogFormat {
	case "plain", "json":
	default:
		return errors.Wrapf(errors.ErrInput, "log_format must be plain or json, got %q", c.LogFormat)
	}
	return nil
}

// WriteConfig fails if the file already exists.
func WriteConfig(path string, c Config) error {
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("cannot create config file: %s", err)
	}
	defer fd.Close()
	if err := toml.NewEncoder(fd).Encode(c); err != nil {
		return fmt.Errorf("cannot write config: %s", err)
	}
	return fd.Close()
}

// NewLogger returns a logger filtered at the configured level.
func NewLogger(c Config, w io.Writer) (log.Logger, error) {
	var logger log.Logger
	if c.LogFormat == "json" {
		logger = log.NewTMJSONLogger(log.NewSyncWriter(w))
	} else {
		logger = log.NewTMLogger(log.NewSyncWriter(w))
	}
	level, err := log.AllowLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "log_level: %s", err)
	}
	return log.NewFilter(logger, level).With("module", "escrowd"), nil
}
