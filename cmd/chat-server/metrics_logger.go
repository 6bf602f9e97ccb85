package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tylerwon/go-chat-rooms/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"rx", snap.FramesRx,
					"tx", snap.FramesTx,
					"broadcasts", snap.Broadcasts,
					"joins", snap.RoomJoins,
					"name_changes", snap.NameChanges,
					"clients", snap.HubClients,
					"hub_drops", snap.HubDrops,
					"malformed", snap.Malformed,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
