// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

/*
Package websocket pushes dashboard events to browser clients.

The Hub keeps the connected clients and fans every broadcast out to them.
The Forwarder reads the events the event bus bridge publishes on a watermill
topic and hands each body to the hub, so filter and crossfilter changes made
through the HTTP API reach every open dashboard.

	event bus ──► Bridge ──► gochannel topic ──► Forwarder ──► Hub ──► clients

Frames

Every frame is a JSON object:

	{"type": "filter:applied", "data": {...}, "at": "2026-01-02T15:04:05Z"}

Forwarded events use their bus topic as the type. Clients may send "ping"
(answered with "pong") and "page" frames; other client frames go to
HubConfig.OnMessage.

Each client has a read goroutine and a write goroutine. A client whose
queue is full when a broadcast arrives is dropped rather than slowing the
others down.

Both Hub and Forwarder implement suture.Service.
*/
package websocket
