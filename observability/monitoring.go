package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats aggregates every metric exposed to operators.
type MonitoringStats struct {
	// --- MATCHING ---
	MatchesCommitted  uint64 `json:"matches_committed"`
	RaceRetries       uint64 `json:"race_retries"`
	RequestsQueued    uint64 `json:"requests_queued"`
	PartnersFreed     uint64 `json:"partners_freed"`
	Disconnects       uint64 `json:"disconnects"`
	MessagesRelayed   uint64 `json:"messages_relayed"`
	MessagesRejected  uint64 `json:"messages_rejected"`
	DeliveryFailures  uint64 `json:"delivery_failures"`
	ErrorsReported    uint64 `json:"errors_reported"`
	LiveConnections   int    `json:"live_connections"`
	WaitingSessions   int    `json:"waiting_sessions"`
	ChattingSessions  int    `json:"chatting_sessions"`

	// --- SYSTEM ---
	AllocMemMb uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
	UpdatedAt  string  `json:"updated_at"`
}

// MonitoringManager collects counters from the services and a periodic
// snapshot of the store and the process. A nil manager ignores every call.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats

	matchesCommitted uint64
	raceRetries      uint64
	requestsQueued   uint64
	partnersFreed    uint64
	disconnects      uint64
	messagesRelayed  uint64
	messagesRejected uint64
	deliveryFailures uint64
	errorsReported   uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log}
}

func (mm *MonitoringManager) IncrMatches() {
	if mm != nil {
		atomic.AddUint64(&mm.matchesCommitted, 1)
	}
}

func (mm *MonitoringManager) IncrRaceRetries() {
	if mm != nil {
		atomic.AddUint64(&mm.raceRetries, 1)
	}
}

func (mm *MonitoringManager) IncrQueued() {
	if mm != nil {
		atomic.AddUint64(&mm.requestsQueued, 1)
	}
}

func (mm *MonitoringManager) IncrPartnersFreed() {
	if mm != nil {
		atomic.AddUint64(&mm.partnersFreed, 1)
	}
}

func (mm *MonitoringManager) IncrDisconnects() {
	if mm != nil {
		atomic.AddUint64(&mm.disconnects, 1)
	}
}

func (mm *MonitoringManager) IncrRelayed() {
	if mm != nil {
		atomic.AddUint64(&mm.messagesRelayed, 1)
	}
}

func (mm *MonitoringManager) IncrRejected() {
	if mm != nil {
		atomic.AddUint64(&mm.messagesRejected, 1)
	}
}

func (mm *MonitoringManager) IncrDeliveryFailures() {
	if mm != nil {
		atomic.AddUint64(&mm.deliveryFailures, 1)
	}
}

func (mm *MonitoringManager) IncrErrors() {
	if mm != nil {
		atomic.AddUint64(&mm.errorsReported, 1)
	}
}

// Gauges is the sampled part of the stats, filled by the telemetry worker.
type Gauges struct {
	LiveConnections  int
	WaitingSessions  int
	ChattingSessions int
	CPUPercent       float64
	RSSBytes         uint64
}

// Update merges freshly sampled gauges with the counters and Go runtime stats.
func (mm *MonitoringManager) Update(g Gauges) MonitoringStats {
	if mm == nil {
		return MonitoringStats{}
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.latestStats = mm.counters()
	mm.latestStats.LiveConnections = g.LiveConnections
	mm.latestStats.WaitingSessions = g.WaitingSessions
	mm.latestStats.ChattingSessions = g.ChattingSessions
	mm.latestStats.CPUPercent = g.CPUPercent
	mm.latestStats.RSSBytes = g.RSSBytes
	mm.latestStats.AllocMemMb = m.Alloc / 1024 / 1024
	mm.latestStats.NumGC = m.NumGC
	mm.latestStats.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return mm.latestStats
}

// GetLatest returns the last sampled gauges with up to date counters.
func (mm *MonitoringManager) GetLatest() MonitoringStats {
	if mm == nil {
		return MonitoringStats{}
	}
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	stats := mm.counters()
	stats.LiveConnections = mm.latestStats.LiveConnections
	stats.WaitingSessions = mm.latestStats.WaitingSessions
	stats.ChattingSessions = mm.latestStats.ChattingSessions
	stats.CPUPercent = mm.latestStats.CPUPercent
	stats.RSSBytes = mm.latestStats.RSSBytes
	stats.AllocMemMb = mm.latestStats.AllocMemMb
	stats.NumGC = mm.latestStats.NumGC
	stats.UpdatedAt = mm.latestStats.UpdatedAt
	return stats
}

// AsMap flattens the latest stats for the debug inspector.
func (mm *MonitoringManager) AsMap(_ context.Context) map[string]any {
	s := mm.GetLatest()
	return map[string]any{
		"Matches":        s.MatchesCommitted,
		"Race retries":   s.RaceRetries,
		"Queued":         s.RequestsQueued,
		"Partners freed": s.PartnersFreed,
		"Disconnects":    s.Disconnects,
		"Relayed":        s.MessagesRelayed,
		"Rejected":       s.MessagesRejected,
		"Errors":         s.ErrorsReported,
		"Connections":    s.LiveConnections,
		"Waiting":        s.WaitingSessions,
		"Chatting":       s.ChattingSessions,
		"Mem (MB)":       s.AllocMemMb,
		"Updated":        s.UpdatedAt,
	}
}

func (mm *MonitoringManager) counters() MonitoringStats {
	return MonitoringStats{
		MatchesCommitted: atomic.LoadUint64(&mm.matchesCommitted),
		RaceRetries:      atomic.LoadUint64(&mm.raceRetries),
		RequestsQueued:   atomic.LoadUint64(&mm.requestsQueued),
		PartnersFreed:    atomic.LoadUint64(&mm.partnersFreed),
		Disconnects:      atomic.LoadUint64(&mm.disconnects),
		MessagesRelayed:  atomic.LoadUint64(&mm.messagesRelayed),
		MessagesRejected: atomic.LoadUint64(&mm.messagesRejected),
		DeliveryFailures: atomic.LoadUint64(&mm.deliveryFailures),
		ErrorsReported:   atomic.LoadUint64(&mm.errorsReported),
	}
}
