// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/ouvidoria/internal/api"
	"github.com/tomtom215/ouvidoria/internal/config"
	"github.com/tomtom215/ouvidoria/internal/dashboard"
	"github.com/tomtom215/ouvidoria/internal/eventbus"
	"github.com/tomtom215/ouvidoria/internal/logging"
	"github.com/tomtom215/ouvidoria/internal/persist"
	"github.com/tomtom215/ouvidoria/internal/supervisor"
	"github.com/tomtom215/ouvidoria/internal/supervisor/services"
	ws "github.com/tomtom215/ouvidoria/internal/websocket"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Bool("loader", cfg.Loader.BaseURL != "").
		Bool("persist_in_memory", cfg.Persist.InMemory).
		Msg("Starting Ouvidoria dashboard core")

	storage, err := openStorage(cfg.Persist)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open persistent storage")
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing persistent storage")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coreLogger := logging.WithComponent("core")
	svc, err := dashboard.New(cfg, dashboard.Options{
		Storage: storage,
		Logger:  &coreLogger,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build dashboard core")
	}
	defer svc.Close()
	svc.Filters.SetReloadHook(func() { reloadDashboard(ctx, svc) })

	eventsLogger := logging.WithComponent("events")
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.Events.BufferSize,
	}, logging.NewWatermillLogger(eventsLogger))
	defer func() {
		if err := pubsub.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event pubsub")
		}
	}()

	bridge, err := eventbus.NewBridge(svc.Bus, pubsub, eventbus.BridgeConfig{
		Topic:   cfg.Events.Topic,
		Forward: cfg.Events.Forward,
		Logger:  &eventsLogger,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event bridge")
	}

	wsLogger := logging.WithComponent("websocket")
	hub := ws.NewHub(ws.HubConfig{
		BufferSize: int(cfg.Events.BufferSize),
		OnMessage:  api.ClientMessageHandler(svc),
		Logger:     &wsLogger,
	})
	svc.Filters.SetIndicator(hub.FilterIndicator())
	forwarder, err := ws.NewForwarder(hub, pubsub, bridge.Topic(), &wsLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event forwarder")
	}

	router := api.NewRouter(
		api.NewHandler(svc, hub, cfg.Server),
		api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(cfg.Server)),
	)
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree, err := supervisor.NewSupervisorTree(
		logging.NewSlogLogger(logging.WithComponent("supervisor")),
		supervisor.TreeConfig{ShutdownTimeout: cfg.Server.ShutdownTimeout},
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	tree.AddStorageService(svc.Sweeper)
	tree.AddMessagingService(hub)
	tree.AddMessagingService(services.NewBridgeService(bridge))
	tree.AddMessagingService(forwarder)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
		if err := <-errCh; err != nil && ctx.Err() == nil {
			logging.Error().Err(err).Msg("Supervisor stopped with error")
		}
	case err := <-errCh:
		if err != nil {
			logging.Error().Err(err).Msg("Supervisor stopped with error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, u := range unstopped {
		logging.Warn().Str("service", u.Name).Msg("Service failed to stop within timeout")
	}
	logging.Info().Msg("Shutdown complete")
}

// openStorage opens the Badger database backing the persistent mirror.
func openStorage(cfg config.PersistConfig) (*persist.BadgerStorage, error) {
	logger := logging.WithComponent("badger")
	return persist.OpenBadger(persist.BadgerConfig{
		Path:       cfg.Path,
		InMemory:   cfg.InMemory,
		QuotaBytes: cfg.QuotaBytes,
		SyncWrites: cfg.SyncWrites,
		Logger:     &logger,
	})
}

// reloadDashboard refreshes the dashboard payload after a burst of filter
// changes. The filter engine has already invalidated the stale keys, so the
// call goes upstream.
func reloadDashboard(ctx context.Context, svc *dashboard.Service) {
	if svc.Loader == nil || ctx.Err() != nil {
		return
	}
	if _, err := svc.DashboardData(ctx); err != nil {
		logging.Warn().Err(err).Msg("Dashboard reload after filter change failed")
	}
}
