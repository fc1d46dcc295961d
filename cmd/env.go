package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsignal/internal/classify"
	"github.com/sells-group/leadsignal/internal/config"
	"github.com/sells-group/leadsignal/internal/model"
	"github.com/sells-group/leadsignal/internal/notify"
	"github.com/sells-group/leadsignal/internal/pipeline"
	"github.com/sells-group/leadsignal/internal/store"
	"github.com/sells-group/leadsignal/internal/territory"
)

// leadsEnv holds the initialized store, classifier and pipeline used by the
// process and serve commands.
type leadsEnv struct {
	Store    store.Store
	Engine   *classify.Engine
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *leadsEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadsignal.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func initEngine(c *config.Config) (*classify.Engine, error) {
	tax, err := classify.LoadTaxonomy(c.Classify.TaxonomyPath)
	if err != nil {
		return nil, eris.Wrap(err, "load taxonomy")
	}
	return classify.NewEngine(tax), nil
}

func notifySettings(c config.NotifyConfig) notify.Settings {
	return notify.Settings{
		Driver:        c.Driver,
		RatePerMinute: c.RatePerMinute,
		Burst:         c.Burst,
		MaxAttempts:   c.MaxAttempts,
		RetryBackoff:  c.RetryBackoff,
		Email: notify.EmailConfig{
			Host:     c.Email.Host,
			Port:     c.Email.Port,
			Username: c.Email.Username,
			Password: c.Email.Password,
			From:     c.Email.From,
			Timeout:  c.Email.Timeout,
		},
		Webhook: notify.WebhookConfig{
			URL:     c.Webhook.URL,
			Timeout: c.Webhook.Timeout,
			Headers: c.Webhook.Headers,
		},
	}
}

func pipelineOptions(c *config.Config) (pipeline.Options, error) {
	policy, err := territory.ParsePolicy(c.Pipeline.FallbackPolicy)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		MinLeadScore:   c.Pipeline.MinLeadScore,
		FuzzyThreshold: c.Pipeline.FuzzyThreshold,
		Fallback:       policy,
		DefaultSize:    model.SizeClass(c.Pipeline.DefaultCompanySize),
		DossierBaseURL: c.Notify.DossierBaseURL,
	}, nil
}

// newEnv wires a pipeline around an already migrated store.
func newEnv(c *config.Config, st store.Store) (*leadsEnv, error) {
	engine, err := initEngine(c)
	if err != nil {
		return nil, err
	}

	notifier, err := notify.New(notifySettings(c.Notify))
	if err != nil {
		return nil, eris.Wrap(err, "init notifier")
	}

	opts, err := pipelineOptions(c)
	if err != nil {
		return nil, err
	}

	zap.L().Info("pipeline ready",
		zap.String("store", c.Store.Driver),
		zap.String("notify", c.Notify.Driver),
		zap.Float64("min_lead_score", opts.MinLeadScore),
		zap.String("fallback", opts.Fallback.Name()),
		zap.Int("products", len(engine.Taxonomy().Products)),
	)

	return &leadsEnv{
		Store:    st,
		Engine:   engine,
		Pipeline: pipeline.New(st, engine, notifier, opts),
	}, nil
}

// initEnv validates config, opens the store and builds the pipeline.
// Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*leadsEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	env, err := newEnv(cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return env, nil
}
