package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/spf13/cobra"

	"github.com/sensenets/sensegraph/config"
	"github.com/sensenets/sensegraph/links"
	"github.com/sensenets/sensegraph/metrics"
	nanopubbuilder "github.com/sensenets/sensegraph/nanopub"
	"github.com/sensenets/sensegraph/parser"
	"github.com/sensenets/sensegraph/pipeline"
	"github.com/sensenets/sensegraph/platforms"
	"github.com/sensenets/sensegraph/platforms/mastodon"
	nanopubsvc "github.com/sensenets/sensegraph/platforms/nanopub"
	"github.com/sensenets/sensegraph/platforms/orcid"
	"github.com/sensenets/sensegraph/platforms/twitter"
	"github.com/sensenets/sensegraph/posts"
	"github.com/sensenets/sensegraph/store"
	"github.com/sensenets/sensegraph/users"
)

// runtime holds the fully wired pipeline a command operates on.
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	nc         *natsclient.Client
	manager    *store.Manager
	registry   *platforms.Registry
	users      *users.Repo
	processing *posts.Processing
	pipeline   *pipeline.Manager
}

// newRuntime loads configuration and wires the store, the platform
// registry and the pipeline manager. With an empty NATS URL everything
// runs against an in-memory store and graph publishing is disabled.
func newRuntime(ctx context.Context, configPath, logLevel string) (*runtime, error) {
	logger := newLogger(logLevel)

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger}

	var st *store.Store
	if cfg.NATS.URL != "" {
		nc, err := connectNATS(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		js, err := nc.JetStream()
		if err != nil {
			nc.Close(ctx)
			return nil, fmt.Errorf("jetstream: %w", err)
		}
		st, err = store.NewStore(ctx, js)
		if err != nil {
			nc.Close(ctx)
			return nil, fmt.Errorf("create store: %w", err)
		}
		rt.nc = nc
	} else {
		logger.Info("no NATS URL configured, using in-memory store")
		st = store.NewMemStore()
	}

	rt.manager = store.NewManager(st,
		store.WithAttempts(cfg.Store.TxnAttempts),
		store.WithLogger(logger),
	)

	resolver := links.NewWebResolver(cfg.Links.FetchTimeout, cfg.Links.UserAgent, cfg.Links.MaxContentSize)
	linksSvc := links.NewService(resolver, logger)

	rt.registry = platforms.NewRegistry()
	mastodonSvc := mastodon.NewService(mastodon.Config{APIDomain: cfg.Mastodon.APIDomain}, logger)
	rt.registry.Register(posts.PlatformMastodon, mastodonSvc)
	rt.registry.Register(posts.PlatformTwitter, twitter.NewService(logger))
	// Drafts are signed by the post author; no server-side signer.
	var signer nanopubbuilder.Signer
	nanopubSvc := nanopubsvc.NewService(nanopubsvc.Config{ServerURL: cfg.Nanopub.ServerURL}, signer, logger)
	rt.registry.Register(posts.PlatformNanopub, nanopubSvc)
	rt.registry.RegisterIdentity(posts.PlatformOrcid, orcid.NewService(orcid.Config{
		Domain:       cfg.Orcid.Domain,
		ClientID:     cfg.Orcid.ClientID,
		ClientSecret: cfg.Orcid.ClientSecret,
	}, logger))

	rt.processing = posts.NewProcessing(rt.manager, linksSvc, rt.registry.Converters(), logger)

	parserClient := parser.NewClient(cfg.Parser.Endpoint,
		parser.WithHTTPClient(&http.Client{Timeout: cfg.Parser.Timeout}),
		parser.WithRetryConfig(parser.RetryConfig{
			MaxAttempts:       cfg.Parser.MaxAttempts,
			BackoffBase:       2 * time.Second,
			BackoffMultiplier: 2.0,
			MaxBackoff:        30 * time.Second,
		}),
		parser.WithLogger(logger),
	)

	rt.users = users.NewRepo()
	rt.pipeline = pipeline.NewManager(rt.processing, rt.registry, rt.users, parserClient, rt.nc, logger)

	if cfg.Metrics.Addr != "" {
		rt.serveMetrics(cfg.Metrics.Addr)
	}

	return rt, nil
}

func (rt *runtime) close(ctx context.Context) {
	if rt.nc != nil {
		rt.nc.Close(ctx)
	}
}

func (rt *runtime) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		rt.logger.Info("serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			rt.logger.Warn("metrics server stopped", "error", err)
		}
	}()
}

func connectNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*natsclient.Client, error) {
	logger.Info("connecting to NATS", "url", cfg.NATS.URL)

	client, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("NATS connection failed: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, fmt.Errorf("NATS connection failed: %w", err)
	}

	return client, nil
}

// withRuntime wraps a command body with runtime setup and teardown.
func withRuntime(configPath, logLevel *string, fn func(ctx context.Context, rt *runtime, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx, *configPath, *logLevel)
		if err != nil {
			return err
		}
		defer rt.close(ctx)
		return fn(ctx, rt, cmd, args)
	}
}
