// Package cmd provides the granola-mcp CLI commands.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/otherjamesbrown/granola-mcp/config"
	"github.com/otherjamesbrown/granola-mcp/pkg/calendar"
	"github.com/otherjamesbrown/granola-mcp/pkg/classify"
	"github.com/otherjamesbrown/granola-mcp/pkg/credentials"
	"github.com/otherjamesbrown/granola-mcp/pkg/granola"
	"github.com/otherjamesbrown/granola-mcp/pkg/logging"
	"github.com/otherjamesbrown/granola-mcp/pkg/mcp"
	"github.com/otherjamesbrown/granola-mcp/pkg/meeting"
	"github.com/otherjamesbrown/granola-mcp/pkg/observability"
	"github.com/otherjamesbrown/granola-mcp/pkg/search"
	"github.com/otherjamesbrown/granola-mcp/pkg/semantic"
)

// App holds the wired components every command runs against.
type App struct {
	Config  *config.Config
	Logger  logging.Logger
	Index   *meeting.Index
	Engine  *search.Engine
	Service *mcp.Service

	classifier *classify.Cache
}

// Close releases background workers and stores.
func (a *App) Close() {
	if a.classifier != nil {
		if err := a.classifier.Close(); err != nil {
			a.Logger.Warn("closing classifier", logging.Err(err))
		}
	}
}

// Deps holds the command dependencies, overridable in tests.
type Deps struct {
	LoadConfig func() (*config.Config, error)
	BuildApp   func(ctx context.Context, cfg *config.Config, logger logging.Logger, metrics *observability.Metrics) (*App, error)
}

// DefaultDeps returns the production dependencies.
func DefaultDeps() *Deps {
	return &Deps{
		LoadConfig: config.Load,
		BuildApp:   BuildApp,
	}
}

func (d *Deps) loadAndBuild(ctx context.Context, metrics *observability.Metrics) (*App, error) {
	cfg, err := d.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(&logging.Config{
		Level:       logging.Level(cfg.Logging.Level),
		ServiceName: "granola-mcp",
		JSONFormat:  cfg.Logging.JSON,
	})
	return d.BuildApp(ctx, cfg, logger, metrics)
}

// BuildApp wires the meeting index, search engine, classification
// cache, calendar adapter, and tool service from configuration. The
// meeting source loads eagerly: a missing or corrupt cache fails here
// rather than on the first query.
func BuildApp(ctx context.Context, cfg *config.Config, logger logging.Logger, metrics *observability.Metrics) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	cachePath := cfg.CachePath
	if cachePath == "" {
		cachePath = granola.DefaultCachePath()
	}
	index := meeting.NewIndex(granola.NewCacheLoader(cachePath, logger))
	if err := index.Load(ctx); err != nil {
		return nil, err
	}
	logger.Info("meeting cache loaded",
		logging.F("path", cachePath),
		logging.F("meetings", index.Len()))

	engine := search.NewEngine(index, loc, logger)

	creds := credentials.NewStore()

	classifier, err := buildClassifier(ctx, cfg, logger, creds, metrics)
	if err != nil {
		return nil, err
	}

	cal := buildCalendar(ctx, cfg, logger, creds)
	finder := buildFinder(cfg, logger, creds)

	var serviceOpts []mcp.ServiceOption
	if metrics != nil {
		serviceOpts = append(serviceOpts, mcp.WithServiceMetrics(metrics))
	}
	service := mcp.NewService(index, engine, cal, classifier, finder, logger, serviceOpts...)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Index:      index,
		Engine:     engine,
		Service:    service,
		classifier: classifier,
	}, nil
}

func buildClassifier(ctx context.Context, cfg *config.Config, logger logging.Logger, creds *credentials.Store, metrics *observability.Metrics) (*classify.Cache, error) {
	var heuristicOpts []classify.HeuristicOption
	if len(cfg.Classifier.InternalDomains) > 0 {
		heuristicOpts = append(heuristicOpts, classify.WithInternalDomains(cfg.Classifier.InternalDomains))
	}
	if cfg.Classifier.RulesPath != "" {
		rules, err := classify.LoadRules(cfg.Classifier.RulesPath)
		if err != nil {
			return nil, err
		}
		heuristicOpts = append(heuristicOpts, classify.WithExtraRules(rules))
	}
	heuristic := classify.NewHeuristic(heuristicOpts...)

	var store classify.Store
	if cfg.Redis.Enabled() {
		redisStore, err := classify.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		store = redisStore
	} else {
		path, err := cfg.ClassificationStorePath()
		if err != nil {
			return nil, err
		}
		store = classify.NewFileStore(path)
	}

	opts := []classify.Option{
		classify.WithLogger(logger),
		classify.WithRemoteTimeout(cfg.Classifier.Timeout),
	}
	if cfg.Classifier.Endpoint != "" {
		apiKey, err := creds.LLMAPIKey()
		if err != nil && !errors.Is(err, credentials.ErrNoCredentials) {
			return nil, err
		}
		if apiKey == "" {
			logger.Warn("classifier endpoint configured without an API key, remote tier disabled",
				logging.F("endpoint", cfg.Classifier.Endpoint))
		} else {
			opts = append(opts, classify.WithRemote(
				classify.NewLLMClassifier(cfg.Classifier.Endpoint, apiKey, cfg.Classifier.Model)))
		}
	}
	if metrics != nil {
		opts = append(opts,
			classify.WithResolutionHook(func(tier classify.Tier, ok bool) {
				status := "ok"
				if !ok {
					status = "error"
				}
				metrics.ClassificationsTotal.WithLabelValues(string(tier), status).Inc()
			}),
			classify.WithDepthHook(func(n int) {
				metrics.ClassificationQueueDepth.Set(float64(n))
			}),
		)
	}

	return classify.New(ctx, store, heuristic, opts...)
}

// buildCalendar returns a live calendar adapter when credentials exist,
// and the disabled adapter otherwise. A broken keyring is not fatal:
// upcoming results just stay empty.
func buildCalendar(ctx context.Context, cfg *config.Config, logger logging.Logger, creds *credentials.Store) calendar.Source {
	if !cfg.Google.Enabled() {
		return calendar.Disabled{}
	}

	token, err := creds.GoogleToken()
	if errors.Is(err, credentials.ErrNoCredentials) {
		logger.Info("no Google token stored, calendar disabled; run 'granola-mcp auth google'")
		return calendar.Disabled{}
	}
	if err != nil {
		logger.Warn("loading Google token failed, calendar disabled", logging.Err(err))
		return calendar.Disabled{}
	}

	client, err := calendar.NewClient(ctx, calendar.OAuthConfig(cfg.Google.ClientID, cfg.Google.ClientSecret), token,
		calendar.WithCalendarID(cfg.Google.CalendarID),
		calendar.WithRequestTimeout(cfg.Google.Timeout),
		calendar.WithLogger(logger))
	if err != nil {
		logger.Warn("calendar client setup failed, calendar disabled", logging.Err(err))
		return calendar.Disabled{}
	}
	return client
}

func buildFinder(cfg *config.Config, logger logging.Logger, creds *credentials.Store) *semantic.Finder {
	opts := []semantic.FinderOption{semantic.WithLogger(logger)}
	if cfg.Semantic.Enabled() {
		apiKey, err := creds.LLMAPIKey()
		if err != nil && !errors.Is(err, credentials.ErrNoCredentials) {
			logger.Warn("loading API key for embeddings failed", logging.Err(err))
		}
		opts = append(opts, semantic.WithEmbedder(
			semantic.NewClient(cfg.Semantic.Endpoint, apiKey, cfg.Semantic.Model)))
	}
	return semantic.NewFinder(opts...)
}

func printJSON(w io.Writer, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
