package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"

	"github.com/matzehuels/provgraph/pkg/cache"
)

// configFile is the name of the config file inside configDir.
const configFile = "config.toml"

// Config is the persistent CLI configuration. Flags override it per run.
//
//	registry = ["~/provgraph/packages"]
//	log_level = "info"
//
//	[cache]
//	backend = "redis"
//
//	[cache.redis]
//	addr = "localhost:6379"
//
//	[server]
//	addr = "0.0.0.0:8080"
type Config struct {
	// Registry lists registry files and directories.
	Registry []string     `toml:"registry" validate:"dive,required"`
	LogLevel string       `toml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Cache    CacheConfig  `toml:"cache"`
	Server   ServerConfig `toml:"server"`
}

// CacheConfig selects the artifact cache.
type CacheConfig struct {
	Backend string `toml:"backend" validate:"omitempty,oneof=file redis badger none"`
	Dir     string `toml:"dir"`
	// Scope namespaces result and diagram keys, so several projects can
	// share one backend without seeing each other's entries.
	Scope string      `toml:"scope" validate:"omitempty,max=64,excludesall=:"`
	Redis RedisConfig `toml:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `toml:"addr" validate:"omitempty,hostname_port"`
	Password string `toml:"password"`
	DB       int    `toml:"db" validate:"gte=0,lte=15"`
	Prefix   string `toml:"prefix"`
}

// ServerConfig configures `provgraph serve`.
type ServerConfig struct {
	Addr         string        `toml:"addr" validate:"required,hostname_port"`
	MaxBodyBytes int64         `toml:"max_body_bytes" validate:"gte=0"`
	Debounce     time.Duration `toml:"watch_debounce" validate:"gte=0"`
}

var configValidate = validator.New()

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Cache: CacheConfig{
			Backend: cache.BackendFile,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: appName + ":"},
		},
		Server: ServerConfig{Addr: "localhost:8080"},
	}
}

// LoadConfig reads the config file at path on top of DefaultConfig. A
// missing file is not an error. Relative registry paths are resolved against
// the file's directory.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config %s: unknown key %s", path, undecoded[0])
	}
	for i, p := range cfg.Registry {
		cfg.Registry[i] = expandPath(p, filepath.Dir(path))
	}
	if cfg.Cache.Dir != "" {
		cfg.Cache.Dir = expandPath(cfg.Cache.Dir, filepath.Dir(path))
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cache.Backend == cache.BackendRedis && c.Cache.Redis.Addr == "" {
		return errors.New("invalid config: cache.redis.addr is required for the redis backend")
	}
	return nil
}

// Level returns the configured log level.
func (c Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// CacheOptions converts the cache section for cache.Open. An empty Dir falls
// back to the XDG cache directory, with badger kept in its own subdirectory.
func (c Config) CacheOptions() (cache.Options, error) {
	opts := cache.Options{
		Backend: c.Cache.Backend,
		Dir:     c.Cache.Dir,
		Redis: cache.RedisOptions{
			Addr:     c.Cache.Redis.Addr,
			Password: c.Cache.Redis.Password,
			DB:       c.Cache.Redis.DB,
			Prefix:   c.Cache.Redis.Prefix,
		},
	}
	if opts.Dir == "" {
		dir, err := cacheDir()
		if err != nil {
			return opts, err
		}
		opts.Dir = dir
		if opts.Backend == cache.BackendBadger {
			opts.Dir = filepath.Join(dir, "badger")
		}
	}
	return opts, nil
}

// Keyer returns the cache keyer for the configured scope, or nil for the
// default keyer.
func (c Config) Keyer() cache.Keyer {
	if c.Cache.Scope == "" {
		return nil
	}
	return cache.NewScopedKeyer(nil, "scope:"+c.Cache.Scope+":")
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// expandPath resolves ~ and makes p absolute relative to base.
func expandPath(p, base string) string {
	if p == "~" || len(p) > 1 && p[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[1:])
		}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return p
}
