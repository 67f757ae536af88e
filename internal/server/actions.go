package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dtnitsch/llm-report-pipeline/internal/common"
	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/dtnitsch/llm-report-pipeline/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
)

func ServeAction(c *cli.Context) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := common.NewApp(c, registry)
	if err != nil {
		return err
	}
	defer app.Close()
	logger := app.Logger

	store, closeStore, err := newSessionStore(app.Config.Session)
	if err != nil {
		return err
	}
	defer closeStore()

	cfg := Config{
		Runner:   app.Controller,
		Sessions: store,
		Renderer: app.Renderer,
		Gatherer: registry,
		Logger:   logger,
		LogoPath: app.Config.Render.LogoPath,
	}
	if app.DB != nil {
		cfg.History = app.DB
	}
	e := New(cfg)

	addr := app.Config.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", addr, "session_store", app.Config.Session.Store)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newSessionStore(cfg models.SessionConfig) (session.Store, func(), error) {
	switch cfg.Store {
	case models.SessionStoreRedis:
		store, err := session.NewRedisStore(cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	case models.SessionStoreMemory, "":
		return session.NewMemoryStore(cfg.CacheSize, cfg.TTL), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown session store %q (want memory or redis)", cfg.Store)
}
