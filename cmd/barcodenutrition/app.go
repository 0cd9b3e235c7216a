package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/franckalain/barcodenutrition/internal/barcode"
	"github.com/franckalain/barcodenutrition/internal/config"
	"github.com/franckalain/barcodenutrition/internal/database"
	"github.com/franckalain/barcodenutrition/internal/fetch"
	"github.com/franckalain/barcodenutrition/internal/nutrition"
	"github.com/franckalain/barcodenutrition/internal/pipeline"
)

// app holds the wired components shared by the serve and scan commands.
type app struct {
	cfg     *config.Config
	catalog *database.SQLiteCatalog
	decoder barcode.Decoder
	lookup  nutrition.Lookup
	service *pipeline.Service
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Server.Debug && !debug {
		_ = logger.Sync()
		if err := initLogger(true); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func usesCatalog(cfg *config.Config) bool {
	return cfg.Lookup.Type == "catalog" || cfg.Lookup.Type == "chain"
}

// newLookup opens the catalog when the configured source needs it.
func newLookup(cfg *config.Config) (nutrition.Lookup, *database.SQLiteCatalog, error) {
	var catalog *database.SQLiteCatalog
	var db database.Catalog
	if usesCatalog(cfg) {
		c, err := database.NewSQLiteCatalog(cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open catalog: %w", err)
		}
		catalog, db = c, c
	}

	lookup, err := nutrition.New(cfg.Lookup, db)
	if err != nil {
		if catalog != nil {
			catalog.Close()
		}
		return nil, nil, fmt.Errorf("failed to create lookup: %w", err)
	}
	return lookup, catalog, nil
}

// newApp wires the pipeline. Local file references are only accepted when
// allowFiles is set.
func newApp(ctx context.Context, cfg *config.Config, allowFiles bool) (*app, error) {
	a := &app{cfg: cfg}

	lookup, catalog, err := newLookup(cfg)
	if err != nil {
		return nil, err
	}
	a.lookup, a.catalog = lookup, catalog

	decoder, err := barcode.NewDecoder(cfg.Decoder)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load decoder: %w", err)
	}
	a.decoder = decoder

	httpFetcher := fetch.NewHTTPFetcher(fetch.HTTPConfig{
		Timeout:  cfg.FetchTimeout(),
		MaxBytes: cfg.Media.MaxBytes,
		Username: cfg.Media.AccountSID,
		Password: cfg.Media.AuthToken,
	})
	resolver := pipeline.NewResolver(
		fetch.NewRouter(httpFetcher, allowFiles, cfg.Media.MaxBytes),
		decoder,
		pipeline.WithFetchTimeout(cfg.FetchTimeout()),
		pipeline.WithConcurrency(cfg.Media.Concurrency),
		pipeline.WithResolverLogger(logger),
	)
	a.service = pipeline.NewService(resolver, lookup,
		pipeline.WithLookupTimeout(cfg.LookupTimeout()),
		pipeline.WithFooter(cfg.Server.ReplyFooter),
		pipeline.WithLogger(logger),
	)

	logger.Info("pipeline ready",
		zap.String("decoder", cfg.Decoder.Type),
		zap.String("lookup", cfg.Lookup.Type),
		zap.Int("concurrency", cfg.Media.Concurrency),
	)
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.decoder != nil {
		errs = append(errs, a.decoder.Close())
	}
	if a.lookup != nil {
		errs = append(errs, a.lookup.Close())
	}
	if a.catalog != nil {
		errs = append(errs, a.catalog.Close())
	}
	return errors.Join(errs...)
}
