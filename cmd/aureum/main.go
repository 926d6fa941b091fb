// Command aureum runs the recommendation and cache-manifest API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/justestif/go-aureum/internal/activity"
	"github.com/justestif/go-aureum/internal/catalog"
	"github.com/justestif/go-aureum/internal/config"
	"github.com/justestif/go-aureum/internal/db"
	"github.com/justestif/go-aureum/internal/intent"
	"github.com/justestif/go-aureum/internal/lastfm"
	"github.com/justestif/go-aureum/internal/logging"
	"github.com/justestif/go-aureum/internal/manifest"
	"github.com/justestif/go-aureum/internal/metrics"
	"github.com/justestif/go-aureum/internal/recommend"
	"github.com/justestif/go-aureum/internal/spotify"
	"github.com/justestif/go-aureum/internal/store"
	"github.com/justestif/go-aureum/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, closeStore := openStore(ctx, cfg, logging.Component(log, "store"))
	defer closeStore()
	kv = store.Observe(kv, metrics.ObserveStore)

	if sw, ok := kv.(store.Sweeper); ok && cfg.SweepInterval > 0 {
		go sweep(ctx, sw, cfg.SweepInterval, logging.Component(log, "janitor"))
	}

	cat, breaker, err := openCatalog(ctx, cfg, kv, logging.Component(log, "catalog"))
	if err != nil {
		return err
	}

	acts := activity.New(kv,
		activity.WithCapacity(cfg.ActivityCapacity),
		activity.WithTTLs(cfg.SessionTTL, cfg.EventTTL),
		activity.WithLogger(logging.Component(log, "activity")),
	)

	var classifier intent.Classifier = intent.NeutralPolicy{}
	if cfg.IntentPolicy == config.PolicyBehavioral {
		classifier = intent.NewBehavioral(acts, intent.DefaultWindow, logging.Component(log, "intent"))
	}

	engine := recommend.New(cat, acts,
		recommend.WithClassifier(classifier),
		recommend.WithRegion(cfg.ChartsRegion),
		recommend.WithLogger(logging.Component(log, "recommend")),
	)
	manifests := manifest.New(cat, acts, engine, manifest.WithLogger(logging.Component(log, "manifest")))

	deps := web.Deps{
		Activity:    acts,
		Recommender: engine,
		Manifests:   manifests,
		Store:       kv,
		Logger:      logging.Component(log, "http"),
	}
	if breaker != nil {
		deps.CatalogState = func() string { return breaker.State().String() }
	}

	server := web.NewServer(web.ServerConfig{
		Addr:         cfg.HTTPAddr,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		RateLimit:    cfg.RateLimit,
		RateWindow:   cfg.RateWindow,
	}, deps)

	log.Info().
		Str("store", cfg.StoreBackend).
		Str("catalog", cfg.CatalogProvider).
		Str("intent", cfg.IntentPolicy).
		Msg("aureum configured")

	return server.Run(ctx)
}

// openStore builds the configured backend. A backend that cannot be opened
// is replaced by store.Unavailable so the service still starts and serves
// generic results.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, func()) {
	noop := func() {}

	switch cfg.StoreBackend {
	case config.StoreRedis:
		r, err := store.OpenRedis(cfg.RedisURL)
		if err != nil {
			log.Error().Err(err).Msg("redis store unavailable")
			return store.Unavailable{}, noop
		}
		if err := r.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis not reachable yet, continuing")
		}
		return r, func() { _ = r.Close() }

	case config.StorePostgres:
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("postgres store unavailable")
			return store.Unavailable{}, noop
		}
		if err := database.EnsureSchema(ctx); err != nil {
			log.Error().Err(err).Msg("postgres schema setup failed")
			database.Close()
			return store.Unavailable{}, noop
		}
		return database.Store(), database.Close

	case config.StoreNone:
		return store.Unavailable{}, noop

	default:
		return store.NewMemory(), noop
	}
}

// openCatalog builds provider -> instrumentation -> breaker -> cache. The
// breaker is returned separately for health reporting; it is nil when no
// provider is configured.
func openCatalog(ctx context.Context, cfg *config.Config, kv store.Store, log zerolog.Logger) (catalog.Catalog, *catalog.Breaker, error) {
	var provider catalog.Catalog
	switch cfg.CatalogProvider {
	case config.ProviderSpotify:
		provider = spotify.NewWithCredentials(ctx, cfg.SpotifyID, cfg.SpotifySecret, cfg.CatalogTimeout,
			spotify.WithMarket(cfg.ChartsRegion))
	case config.ProviderLastFM:
		provider = lastfm.NewClient(&lastfm.Config{APIKey: cfg.LastFMAPIKey, Timeout: cfg.CatalogTimeout})
	case config.ProviderNone:
		log.Warn().Msg("no catalog provider configured, recommendations will be empty")
		return catalog.Unavailable{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown catalog provider %q", cfg.CatalogProvider)
	}

	instrumented := catalog.NewInstrumented(provider, cfg.CatalogProvider)
	breaker := catalog.NewBreaker(instrumented, catalog.DefaultBreakerSettings(cfg.CatalogProvider), log)
	return catalog.NewCached(breaker, kv, cfg.CatalogCacheTTL, log), breaker, nil
}

// sweep purges expired entries until ctx is done.
func sweep(ctx context.Context, sw store.Sweeper, every time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sw.PurgeExpired(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("purging expired entries")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("purged expired entries")
			}
		}
	}
}
