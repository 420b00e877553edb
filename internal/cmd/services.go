package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/namelens/tubelens/internal/config"
	"github.com/namelens/tubelens/internal/core/engine"
	"github.com/namelens/tubelens/internal/core/fallback"
	"github.com/namelens/tubelens/internal/core/metadata"
	"github.com/namelens/tubelens/internal/core/resolver"
	"github.com/namelens/tubelens/internal/core/store"
)

// services holds everything a resolution needs, built from one config.
type services struct {
	Orchestrator  *engine.Orchestrator
	Limiter       *engine.ClientLimiter
	Store         *store.Store
	ResolverNames []string
}

// buildServices wires the resolver chain, placeholder generator, metadata
// client and optional history store.
func buildServices(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*services, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	client := resolver.NewHTTPClient()
	specs := resolver.WithEndpoints(resolver.DefaultSpecs(), cfg.Resolver.Endpoints)
	resolvers := resolver.Build(specs, resolver.Options{
		Client:    client,
		Timeout:   cfg.Resolver.Timeout,
		UserAgent: cfg.Resolver.UserAgent,
	})

	names := make([]string, 0, len(resolvers))
	for _, r := range resolvers {
		names = append(names, r.Name())
	}

	orchestrator := &engine.Orchestrator{
		Chain:  &engine.Chain{Resolvers: resolvers, Logger: logger},
		Links:  fallback.NewPlaceholderGenerator(cfg.Fallback.Mirrors, cfg.Fallback.TTL),
		TTL:    cfg.Fallback.TTL,
		Logger: logger,
	}

	if cfg.Metadata.Enabled {
		orchestrator.Metadata = &metadata.Client{
			BaseURL:   cfg.Metadata.BaseURL,
			HTTP:      &http.Client{Transport: client.Transport},
			Timeout:   cfg.Metadata.Timeout,
			UserAgent: cfg.Resolver.UserAgent,
		}
	}

	svc := &services{
		Orchestrator:  orchestrator,
		Limiter:       engine.NewClientLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window),
		ResolverNames: names,
	}

	if cfg.History.Enabled {
		db, err := openStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		svc.Store = db
		orchestrator.History = db
		if logger != nil {
			logger.Info("Resolution history enabled", zap.String("driver", db.Driver()))
		}
	}

	return svc, nil
}

// Close releases the history store, if open.
func (s *services) Close() error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.Close()
}
