package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/live-cursor/internal/catalog"
	"github.com/DoyleJ11/live-cursor/internal/config"
	"github.com/DoyleJ11/live-cursor/internal/httpapi"
	"github.com/DoyleJ11/live-cursor/internal/hub"
	"github.com/DoyleJ11/live-cursor/internal/logging"
	"github.com/DoyleJ11/live-cursor/internal/metrics"
	"github.com/DoyleJ11/live-cursor/internal/ws"
)

const shutdownTimeout = 5 * time.Second

func main() {
	log, err := logging.New(logging.ProfileRuntime)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(log *zap.Logger) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := config.ValidateServer(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openCatalog(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeStore()) }()

	h := hub.NewHub(ctx, hub.Options{Logger: log, Metrics: metrics.New()})

	// Build the router *with* the hub injected
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(h, httpapi.Options{
			Catalog: store,
			Logger:  log,
			WS:      ws.Options{OriginPatterns: cfg.Origins},
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		h.Send(hub.ShutdownHub{})
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func openCatalog(cfg config.Config, log *zap.Logger) (catalog.Store, func() error, error) {
	if cfg.DatabaseURL == "" {
		log.Info("no DATABASE_URL, keeping channel catalog in memory")
		return catalog.NewMemoryStore(), func() error { return nil }, nil
	}
	store, err := catalog.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}
