// Package cli implements the provgraph command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/provgraph/pkg/buildinfo"
	"github.com/matzehuels/provgraph/pkg/cache"
	perrors "github.com/matzehuels/provgraph/pkg/errors"
	pio "github.com/matzehuels/provgraph/pkg/io"
	"github.com/matzehuels/provgraph/pkg/pipeline"
	"github.com/matzehuels/provgraph/pkg/registry"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "provgraph"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config Config

	configPath   string
	registry     []string
	cacheBackend string
	verbose      bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: DefaultConfig(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "provgraph tracks what a workflow pipeline computes",
		Long: `provgraph validates workflow pipelines against a package registry and computes
content signatures for every module, connection and sub-pipeline, so that two
steps doing identical work are recognised regardless of their ids.`,
		Version:      buildinfo.Get().Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.configure(cmd)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/provgraph/config.toml)")
	flags.StringSliceVarP(&c.registry, "registry", "r", nil, "registry file or directory (repeatable)")
	flags.StringVar(&c.cacheBackend, "cache", "", "artifact cache backend: file, redis, badger, none")

	// Register all subcommands
	root.AddCommand(c.checkCommand())
	root.AddCommand(c.signaturesCommand())
	root.AddCommand(c.planCommand())
	root.AddCommand(c.contractCommand())
	root.AddCommand(c.classesCommand())
	root.AddCommand(c.portsCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.convertCommand())
	root.AddCommand(c.resultCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// configure loads the config file and applies flag overrides.
func (c *CLI) configure(cmd *cobra.Command) error {
	path, err := c.resolvedConfigPath()
	if err != nil {
		return err
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("registry") {
		cfg.Registry = c.registry
	}
	if flags.Changed("cache") {
		cfg.Cache.Backend = c.cacheBackend
	}
	if err := cfg.Validate(); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "configuration")
	}

	level := cfg.Level()
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)
	c.Config = cfg
	c.Logger.Debug("configured", "config", path, "registry", cfg.Registry, "cache", cfg.Cache.Backend)
	return nil
}

// =============================================================================
// Shared Loaders
// =============================================================================

// loadRegistry loads the configured registry. With no registry configured it
// returns nil unless required is set.
func (c *CLI) loadRegistry(required bool) (*registry.Registry, error) {
	if len(c.Config.Registry) == 0 {
		if required {
			return nil, perrors.New(perrors.ErrCodeInvalidInput,
				"no registry configured: pass --registry or set registry in %s", configFile)
		}
		c.Logger.Warn("no registry configured, ports are not checked")
		return nil, nil
	}
	prog := newProgress(c.Logger)
	reg, err := registry.Load(c.Logger, c.Config.Registry...)
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Loaded %d packages", len(reg.Packages())))
	return reg, nil
}

// loadPipeline reads a pipeline file, checking ports against reg when set.
// The caller must Close the pipeline.
func (c *CLI) loadPipeline(path string, reg *registry.Registry) (*pipeline.Pipeline, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "pipeline %s", path)
	}
	var p *pipeline.Pipeline
	var err error
	if reg != nil {
		p, err = pio.Load(path, reg.Resolver(), c.Logger)
	} else {
		p, err = pio.Load(path, nil, c.Logger)
	}
	if err != nil {
		return nil, loadError(path, err)
	}
	return p, nil
}

// loadError codes errors from pio.Load. Decoding problems are INVALID_FORMAT;
// everything else goes through pipeline.Coded.
func loadError(path string, err error) error {
	coded := pipeline.Coded(err)
	if perrors.Is(coded, perrors.ErrCodeInternal) {
		return perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "read %s", path)
	}
	return coded
}

// openCache opens the configured artifact cache, or a NullCache when
// disabled.
func (c *CLI) openCache(ctx context.Context, disabled bool) (cache.Cache, error) {
	if disabled {
		return cache.NewNullCache(), nil
	}
	opts, err := c.Config.CacheOptions()
	if err != nil {
		return nil, err
	}
	cc, err := cache.Open(ctx, opts)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeCacheUnavailable, err, "open %s cache", opts.Backend)
	}
	return cc, nil
}

// newPlanner builds a planner over the configured cache. The caller must
// close the returned cache.
func (c *CLI) newPlanner(ctx context.Context, noCache bool) (*pipeline.Planner, cache.Cache, error) {
	cc, err := c.openCache(ctx, noCache)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.NewPlanner(cc, c.Config.Keyer(), c.Logger), cc, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/provgraph/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configDir returns the config directory using XDG standard (~/.config/provgraph/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}
