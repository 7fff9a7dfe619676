package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/provgraph/pkg/cache"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultConfig()
	if cfg.Cache.Backend != def.Cache.Backend || cfg.Server.Addr != def.Server.Addr {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
registry = ["packages", "/abs/extra.hcl"]
log_level = "debug"

[cache]
backend = "redis"
dir = "cache"

[cache.redis]
addr = "redis.internal:6380"
db = 2

[server]
addr = "0.0.0.0:9090"
watch_debounce = "1s"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	wantRegistry := []string{filepath.Join(dir, "packages"), "/abs/extra.hcl"}
	for i, want := range wantRegistry {
		if cfg.Registry[i] != want {
			t.Errorf("registry[%d] = %q, want %q", i, cfg.Registry[i], want)
		}
	}
	if cfg.Level() != log.DebugLevel {
		t.Errorf("level = %v", cfg.Level())
	}
	if cfg.Cache.Dir != filepath.Join(dir, "cache") {
		t.Errorf("cache dir = %q", cfg.Cache.Dir)
	}
	if cfg.Cache.Redis.Addr != "redis.internal:6380" || cfg.Cache.Redis.DB != 2 {
		t.Errorf("redis = %+v", cfg.Cache.Redis)
	}
	// Unset keys keep their defaults.
	if cfg.Cache.Redis.Prefix != appName+":" {
		t.Errorf("prefix = %q", cfg.Cache.Redis.Prefix)
	}
	if cfg.Server.Addr != "0.0.0.0:9090" || cfg.Server.Debounce != time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "registry = [", "config"},
		{"unknown key", "colour = \"blue\"\n", "unknown key colour"},
		{"wrong type", "log_level = 3\n", "config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			writeFile(t, path, tt.content)
			_, err := LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad backend", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"redis without addr", func(c *Config) {
			c.Cache.Backend = cache.BackendRedis
			c.Cache.Redis.Addr = ""
		}, true},
		{"redis addr without port", func(c *Config) { c.Cache.Redis.Addr = "localhost" }, true},
		{"redis db out of range", func(c *Config) { c.Cache.Redis.DB = 16 }, true},
		{"empty registry entry", func(c *Config) { c.Registry = []string{""} }, true},
		{"server addr required", func(c *Config) { c.Server.Addr = "" }, true},
		{"negative debounce", func(c *Config) { c.Server.Debounce = -time.Second }, true},
		{"badger", func(c *Config) { c.Cache.Backend = cache.BackendBadger }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCacheOptions(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")

	cfg := DefaultConfig()
	opts, err := cfg.CacheOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Dir != filepath.Join("/tmp/xdg", appName) {
		t.Errorf("file dir = %q", opts.Dir)
	}

	cfg.Cache.Backend = cache.BackendBadger
	opts, _ = cfg.CacheOptions()
	if opts.Dir != filepath.Join("/tmp/xdg", appName, "badger") {
		t.Errorf("badger dir = %q", opts.Dir)
	}

	cfg.Cache.Dir = "/data/cache"
	opts, _ = cfg.CacheOptions()
	if opts.Dir != "/data/cache" {
		t.Errorf("explicit dir = %q", opts.Dir)
	}
}

func TestConfigEncodeRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Debounce = 500 * time.Millisecond

	var buf bytes.Buffer
	if err := cfg.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("re-read encoded config: %v\n%s", err, buf.String())
	}
	if got.Server.Debounce != cfg.Server.Debounce || got.Cache.Backend != cfg.Cache.Backend {
		t.Errorf("round trip = %+v, want %+v", got, cfg)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, base, want string
	}{
		{"pkgs", "/etc/provgraph", "/etc/provgraph/pkgs"},
		{"/abs", "/etc/provgraph", "/abs"},
		{"~/pkgs", "/etc/provgraph", filepath.Join(home, "pkgs")},
		{"~", "/etc", home},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in, tt.base); got != tt.want {
			t.Errorf("expandPath(%q, %q) = %q, want %q", tt.in, tt.base, got, tt.want)
		}
	}
}

func TestConfigKeyerScope(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Keyer() != nil {
		t.Error("unscoped config should use the default keyer")
	}

	cfg.Cache.Scope = "climate"
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	key := cfg.Keyer().ResultKey("abc", cache.ResultKeyOpts{})
	if !strings.HasPrefix(key, "scope:climate:result:") {
		t.Errorf("scoped key = %q", key)
	}
	if key == cache.NewDefaultKeyer().ResultKey("abc", cache.ResultKeyOpts{}) {
		t.Error("scope did not change the key")
	}

	cfg.Cache.Scope = "a:b"
	if err := cfg.Validate(); err == nil {
		t.Error("scope containing a colon accepted")
	}
}
