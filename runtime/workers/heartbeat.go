package workers

import (
	"context"
	"log/slog"
	"time"

	"alumnet/runtime"
)

// HeartbeatWorker drives the liveness sweep. On every tick it evicts the
// connections that produced no traffic and answered no probe since the
// previous tick, then clears the transient room memberships of each evicted
// identity so broadcasts stop targeting them immediately.
type HeartbeatWorker struct {
	log      *slog.Logger
	registry *runtime.ConnectionRegistry
	rooms    *runtime.RoomTable
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, registry *runtime.ConnectionRegistry,
	rooms *runtime.RoomTable, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{
		log:      log,
		registry: registry,
		rooms:    rooms,
		interval: interval,
	}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			evicted := w.registry.SweepDead()
			for _, userID := range evicted {
				w.rooms.LeaveAll(userID)
			}
			if len(evicted) > 0 {
				w.log.Info("Heartbeat sweep evicted connections", "count", len(evicted))
			}
		}
	}
}
