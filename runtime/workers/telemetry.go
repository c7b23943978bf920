package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"alumnet/observability"

	"github.com/shirou/gopsutil/process"
)

// TelemetryWorker periodically logs the relay counters together with the
// process self stats (RSS, CPU, OS status), so an operator tailing the logs
// sees the same numbers the admin /stats endpoint serves.
type TelemetryWorker struct {
	log      *slog.Logger
	stats    *observability.RelayStats
	interval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, stats *observability.RelayStats,
	interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, stats: stats, interval: interval}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			snapshot := w.stats.Snapshot()
			w.log.Info("Relay telemetry",
				"connected_users", snapshot.ConnectedUsers,
				"active_rooms", snapshot.ActiveRooms,
				"messages_relayed", snapshot.MessagesRelayed,
				"typing_relayed", snapshot.TypingRelayed,
				"dropped_sends", snapshot.DroppedSends,
				"dropped_envelopes", snapshot.DroppedEnvelopes,
				"malformed_envelopes", snapshot.MalformedEnvelopes,
				"evicted_connections", snapshot.EvictedConnections,
				"pid_status", status,
				"cpu_percent", cpu,
				"ram_bytes", rss,
			)
		}
	}
}

// getSelfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
