// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Command scraper-rabbit consumes rental-listing events from a RabbitMQ queue
// and serves a readiness probe for the broker connection.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rabbit "github.com/GwynCerbin/scraper_rabbit"
	"github.com/GwynCerbin/scraper_rabbit/pkg/adapter"
	"github.com/GwynCerbin/scraper_rabbit/pkg/broker"
	"github.com/GwynCerbin/scraper_rabbit/pkg/config"
	"github.com/GwynCerbin/scraper_rabbit/pkg/contracts"
	"github.com/GwynCerbin/scraper_rabbit/pkg/infra"

	"go.uber.org/zap"
)

func main() {
	path := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	logger := zap.Must(zap.NewProduction())
	defer func() { _ = logger.Sync() }()

	if err := run(*path, logger); err != nil {
		logger.Fatal("scraper-rabbit stopped", zap.Error(err))
	}
}

func run(path string, logger *zap.Logger) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	listener := rabbit.NewListener(&cfg.Broker)
	listener.SetLogger(logger)

	if cfg.Binding != nil {
		listener.SetQueuePreparation(adapter.BindToExchange(*cfg.Binding))
	}

	inst, err := listener.Init(newRouter(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newProbeRouter(inst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("probe server failed", zap.Error(err))
			stop()
		}
	}()

	logger.Info("scraper-rabbit started", zap.String("probe_addr", cfg.HTTPAddr))

	serveErr := inst.ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("probe server shutdown", zap.Error(err))
	}

	if err := inst.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return serveErr
}

// newRouter logs every listing event and acknowledges it.
func newRouter(logger *zap.Logger) infra.Router {
	logEvent := func(_ context.Context, m broker.Message) error {
		event := m.Event()
		listing := event.Listing()

		logger.Info("listing event received",
			zap.String("type", string(event.EventType())),
			zap.Int64("apartment_id", listing.ID),
			zap.String("url", listing.URL),
			zap.Float64("price", listing.Price),
			zap.Bool("redelivered", m.IsRedelivered()),
		)

		return m.Ack()
	}

	router := infra.NewRouter()
	for _, t := range contracts.EventTypes() {
		router.Add(t, logEvent)
	}

	return router
}
