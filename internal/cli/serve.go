package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/provgraph/internal/api"
	"github.com/matzehuels/provgraph/internal/metrics"
	"github.com/matzehuels/provgraph/pkg/registry"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		watch   bool
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve exposes signatures, plans, checks and diagrams over HTTP, with
Prometheus metrics at /metrics. With --watch the registry is reloaded whenever
one of its files changes; a registry that fails to load is logged and the
previous one stays in use.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				c.Config.Server.Addr = addr
			}
			if watch && len(c.Config.Registry) == 0 {
				return errors.New("--watch needs a registry")
			}
			return c.runServe(cmd.Context(), watch, noCache)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, localhost:8080)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the registry when its files change")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "serve without an artifact cache")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, watch, noCache bool) error {
	reg, err := c.loadRegistry(false)
	if err != nil {
		return err
	}
	cc, err := c.openCache(ctx, noCache)
	if err != nil {
		return err
	}
	defer cc.Close()

	m := metrics.New()
	m.Install()

	srv := api.New(api.Config{
		Registry:     reg,
		Cache:        cc,
		Keyer:        c.Config.Keyer(),
		Logger:       c.Logger,
		Metrics:      m.Handler(),
		MaxBodyBytes: c.Config.Server.MaxBodyBytes,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, c.Config.Server.Addr)
	})
	if watch {
		w, err := registry.NewWatcher(c.Logger, c.Config.Registry...)
		if err != nil {
			return err
		}
		if c.Config.Server.Debounce > 0 {
			w.Debounce = c.Config.Server.Debounce
		}
		g.Go(func() error {
			return w.Run(gctx, srv.SetRegistry)
		})
	}
	return g.Wait()
}
