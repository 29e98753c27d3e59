// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package services

import (
	"context"
)

// Bridge is a component with a Start/Stop lifecycle, such as
// *eventbus.Bridge.
type Bridge interface {
	Start()
	Stop()
}

// BridgeService keeps an event bridge subscribed for as long as the
// supervisor runs it.
type BridgeService struct {
	bridge Bridge
	name   string
}

// NewBridgeService wraps bridge.
func NewBridgeService(bridge Bridge) *BridgeService {
	return &BridgeService{bridge: bridge, name: "event-bridge"}
}

// Serve starts the bridge and stops it when ctx is canceled.
func (s *BridgeService) Serve(ctx context.Context) error {
	s.bridge.Start()
	<-ctx.Done()
	s.bridge.Stop()
	return ctx.Err()
}

func (s *BridgeService) String() string {
	return s.name
}
