package services

import (
	"context"
	"time"

	"vdi-fleet/backend/app/repo"

	"github.com/rs/zerolog"
)

// LivenessSweeper periodically flips online devices unseen within the
// liveness window to offline. It runs outside the synchronous API.
type LivenessSweeper struct {
	devices  *repo.DeviceRepository
	window   time.Duration
	interval time.Duration
	log      zerolog.Logger
}

func NewLivenessSweeper(devices *repo.DeviceRepository, window, interval time.Duration, log zerolog.Logger) *LivenessSweeper {
	if window <= 0 {
		window = 5 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &LivenessSweeper{devices: devices, window: window, interval: interval, log: log}
}

// Run blocks until ctx is cancelled.
func (s *LivenessSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *LivenessSweeper) Sweep() {
	n, err := s.devices.MarkOffline(time.Now().Add(-s.window))
	if err != nil {
		s.log.Error().Err(err).Msg("liveness sweep")
		return
	}
	if n > 0 {
		s.log.Info().Int64("devices", n).Msg("marked offline")
	}
}
