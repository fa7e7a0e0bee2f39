// Package app wires the QuickRizz service together and serves it over HTTP.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bdobrica/quickrizz/internal/quickrizz/config"
	"github.com/bdobrica/quickrizz/internal/quickrizz/gateway"
	"github.com/bdobrica/quickrizz/internal/quickrizz/memory"
	"github.com/bdobrica/quickrizz/internal/quickrizz/store"
	"github.com/bdobrica/quickrizz/internal/quickrizz/suggest"
	"github.com/bdobrica/quickrizz/internal/quickrizz/textnorm"
)

// App owns the long-lived components of one QuickRizz process.
type App struct {
	config  *config.Config
	store   *store.Store
	gateway *gateway.Gateway
	svc     *suggest.Service
	server  *Server
}

// New creates a QuickRizz application: it loads the slang table, opens the
// feedback log and builds the recall index. An unusable slang file or
// recall store is logged and the process carries on without it.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.SlangPath != "" {
		exp, err := textnorm.LoadExpander(cfg.SlangPath)
		if err != nil {
			slog.Warn("slang file not used, keeping embedded table", "path", cfg.SlangPath, "err", err)
		} else {
			textnorm.SetDefault(exp)
			slog.Info("slang table loaded", "path", cfg.SlangPath, "entries", exp.Len())
		}
	}

	slog.Info("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("app: open feedback log: %w", err)
	}

	gw := gateway.New(cfg.Gateway())
	svc := suggest.New(suggest.Config{
		Name:          cfg.Name,
		Style:         cfg.Style,
		ContextWindow: cfg.ContextWindow,
		MinSpiceFloor: cfg.MinSpiceFloor,
		MergeLimit:    cfg.MemMergeLimit,
		MaxTokens:     cfg.MaxTokens,
	}, gw, memory.NewIndex(cfg.Memory()), memory.NewFileStore(cfg.CommitsPath), st)

	stats, err := svc.Reload(ctx)
	if err == nil {
		slog.Info("recall index built", "path", cfg.CommitsPath, "keys", stats.Keys, "shingles", stats.Shingles)
	}

	return &App{
		config:  cfg,
		store:   st,
		gateway: gw,
		svc:     svc,
		server:  NewServer(cfg.HTTPAddr, svc),
	}, nil
}

// Service returns the suggestion service.
func (a *App) Service() *suggest.Service { return a.svc }

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler { return a.server }

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.server.Start(ctx); err != nil {
		return err
	}
	slog.Info("QuickRizz is running", "addr", a.config.HTTPAddr, "model", a.gateway.Model())
	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

// Stop stops the HTTP server and releases the gateway and database.
func (a *App) Stop() {
	a.server.Stop()
	a.gateway.Close()

	slog.Info("closing database")
	if err := a.store.Close(); err != nil {
		slog.Warn("close database", "err", err)
	}
}
