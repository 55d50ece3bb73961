package workers

import (
	"chat-match/contract"
	"chat-match/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// TelemetryWorker samples the process, the registry and the session store every
// metricInterval and publishes the result to the monitoring manager.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	registry       contract.IRegistry
	repository     contract.ISessionRepository
	monitoring     *observability.MonitoringManager
}

func NewTelemetryWorker(log *slog.Logger,
	metricInterval time.Duration,
	registry contract.IRegistry,
	repository contract.ISessionRepository,
	monitoring *observability.MonitoringManager) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		metricInterval: metricInterval,
		registry:       registry,
		repository:     repository,
		monitoring:     monitoring,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats := w.Sample(ctx, p)
			w.log.Info("Telemetry",
				"connections", stats.LiveConnections,
				"waiting", stats.WaitingSessions,
				"chatting", stats.ChattingSessions,
				"matches", stats.MatchesCommitted,
				"relayed", stats.MessagesRelayed,
				"cpu_percent", stats.CPUPercent,
				"rss_bytes", stats.RSSBytes)
		}
	}
}

// Sample collects one snapshot. A nil process skips the system gauges.
func (w *TelemetryWorker) Sample(ctx context.Context, p *process.Process) observability.MonitoringStats {
	gauges := observability.Gauges{LiveConnections: w.registry.Count()}

	sessions, err := w.repository.Stats(ctx)
	if err != nil {
		w.log.Warn("Unable to count sessions", "error", err)
	}
	gauges.WaitingSessions = sessions.Waiting
	gauges.ChattingSessions = sessions.Chatting

	if p != nil {
		rss, cpu, err := selfStats(p)
		if err != nil {
			w.log.Debug("Failed to collect self stats", "error", err)
		}
		gauges.RSSBytes = rss
		gauges.CPUPercent = cpu
	}
	return w.monitoring.Update(gauges)
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return memInfo.RSS, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
