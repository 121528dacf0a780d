package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/brokerdesk/coverage-cli/internal/doctext"
	"github.com/brokerdesk/coverage-cli/internal/extract"
	"github.com/brokerdesk/coverage-cli/internal/model"
	"github.com/brokerdesk/coverage-cli/internal/pipeline"
	"github.com/brokerdesk/coverage-cli/internal/store"
	anthropicpkg "github.com/brokerdesk/coverage-cli/pkg/anthropic"
)

// appEnv holds the initialized store, catalogue, and pipeline shared by the
// extract/batch/serve commands.
type appEnv struct {
	Store    store.Store
	Catalog  *model.RowCatalog
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "coverage.db"
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

func loadCatalog() (*model.RowCatalog, error) {
	if cfg.Extract.CatalogPath != "" {
		return model.LoadRowCatalog(cfg.Extract.CatalogPath)
	}
	return model.DefaultRowCatalog()
}

// initEnv sets up the store, document text provider, model client, and
// pipeline. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	catalog, err := loadCatalog()
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load row catalogue")
	}

	doc, err := doctext.NewExtractor(cfg.DocText)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	client := anthropicpkg.NewClient(cfg.Anthropic.Key, cfg.Anthropic.RequestsPerMinute)
	extractor := extract.NewExtractor(client, catalog, cfg.Anthropic.Model, cfg.Extract)

	return &appEnv{
		Store:    st,
		Catalog:  catalog,
		Pipeline: pipeline.New(st, doc, extractor),
	}, nil
}
