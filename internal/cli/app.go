package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"ogpimage/internal/cache"
	"ogpimage/internal/config"
	"ogpimage/internal/feed"
	"ogpimage/internal/fetcher"
	"ogpimage/internal/font"
	"ogpimage/internal/ogp"
	"ogpimage/internal/render"
	"ogpimage/internal/template"
)

// app holds the long-lived components shared by every command.
type app struct {
	cfg       config.Config
	logger    *log.Logger
	store     cache.Store
	health    func(ctx context.Context) error
	endpoints []*ogp.Endpoint
	resolvers []*feed.Resolver
}

func newApp(cfg config.Config, logger *log.Logger, getter fetcher.Getter) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sources, err := cfg.Sources()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.openStore(); err != nil {
		return nil, err
	}

	if getter == nil {
		getter = fetcher.New(logger, fetcher.Options{UserAgent: cfg.UserAgent})
	}

	deps := ogp.Deps{
		Images: cache.NewNamespace(a.store, cache.NamespaceImages, logger),
		Fonts: font.NewResolver(cache.NewNamespace(a.store, cache.NamespaceFonts, logger), getter, logger, font.Options{
			APIKey: cfg.GoogleFontsAPIKey,
		}),
		Renderer: render.NewEngine(logger),
		Logger:   logger,
	}
	metadata := cache.NewNamespace(a.store, cache.NamespaceMetadata, logger)

	for _, src := range sources {
		tmpl, err := template.Lookup(src.Template)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
		def := ogp.Definition{
			Name:     src.Name,
			Path:     src.Path,
			Params:   src.Params,
			KeyBase:  src.KeyBase,
			Fonts:    src.Fonts,
			Template: tmpl,
		}
		if src.FeedURL != "" {
			r := a.newResolver(src, getter, metadata)
			a.resolvers = append(a.resolvers, r)
			def.Resolver = r
		}
		a.endpoints = append(a.endpoints, ogp.New(def, deps))
	}
	return a, nil
}

func (a *app) openStore() error {
	var durable cache.Store
	switch a.cfg.Store {
	case config.StoreSQLite:
		if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		store, err := cache.OpenSQLite(a.cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		durable = store
		a.health = store.Ping
	case config.StoreBolt:
		if err := os.MkdirAll(a.cfg.DataPath, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := cache.OpenBolt(a.cfg.DataPath)
		if err != nil {
			return err
		}
		durable = store
	case config.StoreMemory:
		a.store = cache.NewMemoryStore()
		return nil
	}

	if a.cfg.MemoryEntries <= 0 {
		a.store = durable
		return nil
	}
	tiered, err := cache.NewTiered(durable, a.cfg.MemoryEntries)
	if err != nil {
		durable.Close()
		return err
	}
	a.store = tiered
	return nil
}

func (a *app) newResolver(src config.Source, getter fetcher.Getter, ns *cache.Namespace) *feed.Resolver {
	var pages *feed.PageSource
	if src.PageURL != "" {
		extractor := feed.DefaultSelectorExtractor()
		if src.Selectors != nil {
			extractor = *src.Selectors
		}
		pages = feed.NewPageSource(src.PageURL, getter, extractor)
	}
	return feed.NewResolver(feed.NewFeedSource(src.FeedURL, getter), pages, ns, a.logger, a.cfg.MetadataTTL)
}

func (a *app) endpoint(name string) (*ogp.Endpoint, error) {
	for _, ep := range a.endpoints {
		if ep.Name() == name {
			return ep, nil
		}
	}
	return nil, fmt.Errorf("unknown source %q", name)
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
