package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/spaceify/spaceify/internal/config"
	"github.com/spaceify/spaceify/internal/generation"
	"github.com/spaceify/spaceify/internal/llm"
	"github.com/spaceify/spaceify/internal/metrics"
	"github.com/spaceify/spaceify/internal/storage"
	"github.com/spaceify/spaceify/internal/usage"
)

// storeKeySalt is fixed so the same SPACEIFY_STORE_KEY always opens the
// same store.
var storeKeySalt = []byte("spaceify-store-v1")

// services is everything a command needs, wired from config.
type services struct {
	cfg      *config.Config
	store    storage.KV
	tracker  *usage.Tracker
	client   *llm.Client
	orch     *generation.Orchestrator
	registry *prometheus.Registry
}

func openStore(ctx context.Context, cfg *config.Config) (storage.KV, error) {
	var store storage.KV
	if cfg.RedisURL != "" {
		rs, err := storage.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		log.Debug().Msg("using redis store")
		store = rs
	} else {
		ss, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("dbPath", cfg.DBPath).Msg("using sqlite store")
		store = ss
	}

	if cfg.StoreKey == "" {
		return store, nil
	}
	encrypted, err := storage.NewEncryptedKV(store, storage.DeriveKey(cfg.StoreKey, storeKeySalt))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	return encrypted, nil
}

func newServices(ctx context.Context) (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if missing := cfg.Missing(); len(missing) > 0 {
		log.Info().Strs("missing", missing).Msg("run 'spaceify setup' to enable AI features")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProviderFromConfig(ctx, cfg.ProviderConfig())
	if err != nil {
		store.Close()
		return nil, err
	}

	opts := llm.Options{TextModel: cfg.TextModel, VisionModel: cfg.VisionModel}
	if cfg.PhotoCache {
		opts.Cache = store
	}
	client := llm.NewClient(provider, opts)
	tracker := usage.NewTracker(store, usage.WithModels(client.TextModel(), client.VisionModel()))

	registry := prometheus.NewRegistry()
	orch := generation.New(tracker, client,
		generation.WithSubscription(cfg.Subscription()),
		generation.WithMetrics(metrics.New(registry)),
	)

	return &services{
		cfg:      cfg,
		store:    store,
		tracker:  tracker,
		client:   client,
		orch:     orch,
		registry: registry,
	}, nil
}

func (s *services) Close() error {
	return s.store.Close()
}

// withServices builds the services, runs fn and writes the metrics file
// when one was requested.
func withServices(fn func(c *cli.Context, s *services) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		s, err := newServices(c.Context)
		if err != nil {
			return err
		}
		defer s.Close()

		runErr := fn(c, s)

		if path := c.String("metrics-file"); path != "" {
			if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to write metrics file")
			}
		}
		return runErr
	}
}
