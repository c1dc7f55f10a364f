// Package cmd defines and implements the CLI commands for the bangertree
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bangertree/bangertree/internal/bluesky"
	"github.com/bangertree/bangertree/internal/config"
	"github.com/bangertree/bangertree/internal/crawl"
	"github.com/bangertree/bangertree/internal/logging"
	"github.com/bangertree/bangertree/internal/publisher"
	"github.com/bangertree/bangertree/internal/store"
	"github.com/bangertree/bangertree/internal/telemetry"
)

var cfgFile string

// appKeyType is the key for storing the app in the command context.
type appKeyType string

const appKey appKeyType = "app"

// app bundles the services every subcommand draws on.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	store     store.Store
	gateway   *bluesky.Client
	publisher *publisher.PubSub
	metrics   *http.Server
}

// newApp is the application factory, a variable so tests can swap in a mock.
var newApp = buildApp

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	st, err := store.NewPostgres(ctx, cfg.DB.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open post store: %w", err)
	}

	gateway := bluesky.NewClient(bluesky.Config{
		APIBase:        cfg.Bluesky.APIBase,
		AuthBase:       cfg.Bluesky.AuthBase,
		Handle:         cfg.Bluesky.Handle,
		AppPassword:    cfg.Bluesky.AppPassword,
		PageSize:       cfg.Bluesky.PageSize,
		Timeout:        cfg.Bluesky.Timeout(),
		MaxRetries:     cfg.Bluesky.MaxRetries,
		BackoffInitial: cfg.Bluesky.BackoffInitial(),
		BackoffMax:     cfg.Bluesky.BackoffMax(),
		RPS:            cfg.Bluesky.RPS,
		Burst:          cfg.Bluesky.Burst,
	}, logger)

	if gateway.HasCredentials() {
		if err := gateway.Login(ctx); err != nil {
			logger.Warn("authentication failed, continuing unauthenticated (may hit rate limits)",
				zap.Error(err))
		}
	} else {
		logger.Info("no credentials configured, continuing unauthenticated (may hit rate limits)")
	}

	a := &app{cfg: cfg, logger: logger, store: st, gateway: gateway}

	if cfg.PubSub.ProjectID != "" {
		pub, err := publisher.NewPubSub(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicID, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		a.publisher = pub
	}

	if cfg.Telemetry.Enabled {
		a.metrics = telemetry.NewServer(fmt.Sprintf(":%d", cfg.Telemetry.Port))
		go func() {
			if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	return a, nil
}

// engine builds the crawl engine over the app's services.
func (a *app) engine() *crawl.Engine {
	opts := []crawl.Option{crawl.WithMaxTraceHops(a.cfg.Crawl.MaxTraceHops)}
	if a.publisher != nil {
		opts = append(opts, crawl.WithPublisher(a.publisher))
	}
	return crawl.New(a.store, a.gateway, a.logger, opts...)
}

func (a *app) close() {
	if a.metrics != nil {
		_ = a.metrics.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("close publisher", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bangertree",
		Short: "Crawl and analyze a Bluesky quote tree",
		Long: `bangertree incrementally discovers the tree of Bluesky posts connected by
quote embeds, starting from any post, and persists it for analysis. Crawls
are resumable: interrupt at any point and re-run to pick up where you left
off, and "update" finds quotes added since the last crawl without
re-fetching the whole tree.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok && a != nil {
				a.close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is env-only)")

	cmd.AddCommand(newTraceCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newCrawlAllCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newSongsCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() error {
	return newRootCmd().Execute()
}
