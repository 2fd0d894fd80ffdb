package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/pedalrank/internal/adapters/http/api"
	"github.com/okian/pedalrank/internal/adapters/http/proxy"
	"github.com/okian/pedalrank/internal/adapters/http/swagger"
	"github.com/okian/pedalrank/internal/adapters/mq/coalescer"
	"github.com/okian/pedalrank/internal/adapters/repository"
	service "github.com/okian/pedalrank/internal/app"
	"github.com/okian/pedalrank/internal/config"
	"github.com/okian/pedalrank/internal/domain/catalogue"
	"github.com/okian/pedalrank/pkg/logger"
)

// application is the wired process: store, write coalescer, service and
// the HTTP handler in front of them.
type application struct {
	store     repository.Store
	coalescer *coalescer.Coalescer
	svc       *service.Service
	handler   http.Handler
}

// build opens the store and starts everything up to, but not including,
// the HTTP listener.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	store, err := repository.Open(ctx, repository.Config{
		Backend:        cfg.Backend,
		PostgresDSN:    cfg.PostgresDSN,
		SQLitePath:     cfg.SQLitePath,
		UpstashURL:     cfg.UpstashURL,
		UpstashToken:   cfg.UpstashToken,
		UpstashRPS:     cfg.UpstashRPS,
		UpstashTimeout: cfg.UpstashTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	co := coalescer.New(store,
		coalescer.WithDelay(cfg.FlushDelay()),
		coalescer.WithWorkers(cfg.FlushWorkers),
		coalescer.WithQueueSize(cfg.FlushQueueSize),
		coalescer.WithLogger(log.Named("coalescer")),
	)
	co.Start(ctx)

	svc := service.New(
		service.WithLogger(log.Named("service")),
		service.WithRatings(repository.NewRatings(store,
			repository.WithWriter(co),
			repository.WithLogger(log.Named("repository")),
		)),
		service.WithCatalogue(catalogue.NewLoader(
			catalogue.WithFile(cfg.CatalogueFile),
			catalogue.WithURL(cfg.CatalogueURL),
			catalogue.WithTimeout(cfg.CatalogueTimeout()),
			catalogue.WithLogger(log.Named("catalogue")),
		)),
		service.WithRecentSize(cfg.RecentSize),
		service.WithVotedSize(cfg.VotedSize),
		service.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
	)
	a := &application{store: store, coalescer: co, svc: svc}
	if err := svc.Start(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("start service: %w", err), a.close(ctx))
	}

	extra := []func(chi.Router){
		func(r chi.Router) { swagger.Register(ctx, r) },
	}
	if cfg.ProxyEnabled {
		h := proxy.New(upstream(cfg, store), proxy.WithLogger(log.Named("proxy")))
		extra = append(extra, func(r chi.Router) { proxy.Register(ctx, r, h) })
	}
	a.handler = api.NewServer(svc, api.WithLogger(log.Named("api"))).Router(ctx, extra...)

	log.Info(ctx, "pedalrank ready",
		logger.String("backend", cfg.Backend),
		logger.Bool("proxy", cfg.ProxyEnabled),
	)
	return a, nil
}

// upstream returns the Upstash client behind the proxy: the rating store
// itself when it is Upstash, otherwise a dedicated client when credentials
// are set. The result is nil when Upstash is not configured.
func upstream(cfg *config.Config, store repository.Store) proxy.Upstream {
	if u, ok := repository.Unwrap(store).(*repository.UpstashStore); ok {
		return u
	}
	u, err := repository.NewUpstashStore(cfg.UpstashURL, cfg.UpstashToken,
		repository.WithRateLimit(cfg.UpstashRPS),
		repository.WithTimeout(cfg.UpstashTimeout()))
	if err != nil {
		return nil
	}
	return u
}

// close flushes pending writes and releases the store.
func (a *application) close(ctx context.Context) error {
	return errors.Join(a.coalescer.Stop(ctx), a.store.Close())
}
