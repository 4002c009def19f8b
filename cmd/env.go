package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/localrank/internal/enrich"
	"github.com/sells-group/localrank/internal/resilience"
	"github.com/sells-group/localrank/internal/store"
	"github.com/sells-group/localrank/pkg/dataforseo"
	"github.com/sells-group/localrank/pkg/places"
)

// enrichEnv holds the initialized store, clients, and orchestrator shared by
// the enrich/reconcile/populate/serve commands.
type enrichEnv struct {
	Store        store.Store
	Gateway      dataforseo.Client
	Orchestrator *enrich.Orchestrator
	Callbacks    *enrich.CallbackHandler
}

// Close releases resources held by the environment.
func (e *enrichEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "localrank.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEnrich sets up the store, gateway client, asset store, and
// orchestrator. Callers should defer env.Close().
func initEnrich(ctx context.Context) (*enrichEnv, error) {
	if cfg.DataForSEO.Login == "" || cfg.DataForSEO.Password == "" {
		return nil, eris.New("dataforseo credentials are required (LOCALRANK_DATAFORSEO_LOGIN / LOCALRANK_DATAFORSEO_PASSWORD)")
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	retry := cfg.DataForSEO.Retry
	gw := dataforseo.NewClient(cfg.DataForSEO.Login, cfg.DataForSEO.Password,
		dataforseo.WithBaseURL(cfg.DataForSEO.BaseURL),
		dataforseo.WithRateLimit(cfg.DataForSEO.RateRPS),
		dataforseo.WithRetryConfig(resilience.FromRetryConfig(
			retry.MaxAttempts, retry.InitialBackoffMs, retry.MaxBackoffMs)),
		dataforseo.WithCircuitConfig(resilience.FromCircuitConfig(
			retry.FailureThreshold, retry.ResetTimeoutSecs)),
	)

	assets, err := enrich.NewAssetStore(cfg.Assets.Dir)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	platforms := map[string]string(nil)
	if cfg.Assets.PlatformRules != "" {
		platforms, err = enrich.LoadPlatformRules(cfg.Assets.PlatformRules)
		if err != nil {
			zap.L().Warn("platform rules load failed, using builtin table", zap.Error(err))
			platforms = nil
		}
	}

	mat := enrich.NewMaterializer(st, gw, assets, platforms)
	sched := enrich.NewScheduler(st, cfg.Freshness)
	orch := enrich.NewOrchestrator(st, gw, sched, mat, enrich.OrchestratorOptions{
		Depth:       cfg.DataForSEO.Depth,
		PostbackURL: cfg.DataForSEO.PostbackURL,
	})

	return &enrichEnv{
		Store:        st,
		Gateway:      gw,
		Orchestrator: orch,
		Callbacks:    enrich.NewCallbackHandler(st, mat),
	}, nil
}

// initPlaces builds the mapping-provider search client.
func initPlaces() (places.Client, error) {
	if cfg.Places.Key == "" {
		return nil, eris.New("places API key is required (LOCALRANK_PLACES_KEY)")
	}
	return places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL)), nil
}
