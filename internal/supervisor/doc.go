// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

/*
Package supervisor runs the server's long-lived services under a suture v4
supervisor tree.

	root ("ouvidoria")
	├── storage-layer
	│   └── mirror-sweeper         (persist.Sweeper)
	├── messaging-layer
	│   ├── websocket-hub          (websocket.Hub)
	│   ├── event-bridge           (services.BridgeService around eventbus.Bridge)
	│   └── websocket-forwarder    (websocket.Forwarder)
	└── api-layer
	    └── http-server            (services.HTTPServerService)

Crashed services restart with backoff; a layer's failures do not count
against the other layers. Supervisor events are logged through sutureslog
on a slog logger backed by zerolog:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logging.Logger()), supervisor.DefaultTreeConfig())
	tree.AddStorageService(svc.Sweeper)
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	err = tree.Serve(ctx)

Components that already implement Serve(ctx) error are added directly;
package services adapts the ones that do not.
*/
package supervisor
