// Ouvidoria - Ombudsman Dashboard Data Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ouvidoria

package persist

import (
	"context"
	"time"
)

// DefaultSweepInterval bounds persistent growth between writes.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper runs Mirror.Sweep on a fixed interval. It implements
// suture.Service so the supervisor tree restarts it if it ever fails.
type Sweeper struct {
	mirror   *Mirror
	interval time.Duration
}

// NewSweeper creates a sweeper for m. A non-positive interval uses
// DefaultSweepInterval.
func NewSweeper(m *Mirror, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{mirror: m, interval: interval}
}

// Serve sweeps every interval until ctx is canceled.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.mirror.logger.Info().Dur("interval", s.interval).Msg("persistent sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.mirror.logger.Info().Msg("persistent sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.mirror.Sweep()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Sweeper) String() string {
	return "persistent-sweeper"
}
