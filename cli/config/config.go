// Package config loads semq configuration from defaults, a YAML file,
// SEMQ_ environment variables, and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alecthomas/units"
	"github.com/brimdata/semq/connection"
	"github.com/brimdata/semq/runner"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const EnvPrefix = "SEMQ_"

type Config struct {
	Connections map[string]connection.Spec `koanf:"connections"`
	Fetch       Fetch                      `koanf:"fetch"`
	Cache       Cache                      `koanf:"cache"`
	Service     Service                    `koanf:"service"`
	Log         Log                        `koanf:"log"`
}

type Fetch struct {
	Concurrency   int    `koanf:"concurrency"`
	MaxRounds     int    `koanf:"max_rounds"`
	MaxImportSize string `koanf:"max_import_size"`
}

type Cache struct {
	Size      int           `koanf:"size"`
	TTL       time.Duration `koanf:"ttl"`
	RedisAddr string        `koanf:"redis_addr"`
	RedisTTL  time.Duration `koanf:"redis_ttl"`
}

type Service struct {
	Addr        string   `koanf:"addr"`
	CORSOrigins []string `koanf:"cors_origins"`
	AuthSecret  string   `koanf:"auth_secret"`
}

type Log struct {
	Level     string `koanf:"level"`
	File      string `koanf:"file"`
	MaxSizeMB int    `koanf:"max_size_mb"`
}

var defaults = map[string]any{
	"fetch.concurrency":     8,
	"fetch.max_rounds":      32,
	"fetch.max_import_size": "10MiB",
	"cache.size":            1024,
	"cache.ttl":             "30s",
	"cache.redis_ttl":       "1h",
	"service.addr":          "localhost:9867",
	"service.cors_origins":  []string{"*"},
	"log.level":             "info",
	"log.max_size_mb":       100,
}

// flagKeys maps flag names to the keys they set.
var flagKeys = map[string]string{
	"concurrency":     "fetch.concurrency",
	"max-rounds":      "fetch.max_rounds",
	"max-import-size": "fetch.max_import_size",
	"cache-size":      "cache.size",
	"redis":           "cache.redis_addr",
	"addr":            "service.addr",
	"cors-origin":     "service.cors_origins",
	"auth-secret":     "service.auth_secret",
	"log-level":       "log.level",
	"log-file":        "log.file",
}

// SetFlags adds the flags that override configuration keys.
func SetFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML configuration file")
	fs.Int("concurrency", 0, "maximum concurrent fetches per round")
	fs.Int("max-rounds", 0, "maximum fetch rounds per translation")
	fs.String("max-import-size", "", "maximum size of an imported document (e.g., 10MiB)")
	fs.Int("cache-size", 0, "number of documents and schemas to cache")
	fs.String("redis", "", "address of a Redis server for the shared plan cache")
	fs.String("addr", "", "service listen address")
	fs.StringSlice("cors-origin", nil, "allowed CORS origin (may be repeated)")
	fs.String("auth-secret", "", "HS256 secret for bearer token validation")
	fs.String("log-level", "", "logging level")
	fs.String("log-file", "", "path to a rotated log file")
}

// Load builds a Config.  fs may be nil; otherwise only flags the user set
// override the other sources.  The file named by the config flag, if any,
// is loaded after the defaults.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if fs != nil {
		if path, _ := fs.GetString("config"); path != "" {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", path, err)
			}
		}
	}
	// SEMQ_FETCH__MAX_ROUNDS sets fetch.max_rounds.
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}
	if fs != nil {
		err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}
	var c Config
	if err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &c, c.validate()
}

func (c *Config) validate() error {
	for name, spec := range c.Connections {
		if name == "" || strings.Contains(name, ":") {
			return fmt.Errorf("invalid connection name %q", name)
		}
		switch spec.Driver {
		case "sqlite", "postgres", "static":
		default:
			return fmt.Errorf("connection %q: unknown driver %q", name, spec.Driver)
		}
	}
	if _, err := c.Fetch.importLimit(); err != nil {
		return err
	}
	return nil
}

func (f Fetch) importLimit() (units.Base2Bytes, error) {
	if f.MaxImportSize == "" {
		return 0, nil
	}
	n, err := units.ParseBase2Bytes(f.MaxImportSize)
	if err != nil {
		return 0, fmt.Errorf("fetch.max_import_size: %w", err)
	}
	return n, nil
}

// Runner returns the runner configuration.
func (c *Config) Runner() runner.Config {
	limit, _ := c.Fetch.importLimit()
	return runner.Config{
		Concurrency:   c.Fetch.Concurrency,
		MaxRounds:     c.Fetch.MaxRounds,
		MaxImportSize: limit,
		CacheSize:     c.Cache.Size,
		CacheTTL:      c.Cache.TTL,
	}
}
