package workers

import (
	"chat-match/domain"
	"chat-match/errors"
	"chat-match/mocks"
	"chat-match/observability"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shirou/gopsutil/process"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestKeepaliveWorker_Touches_Registered_Connections(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)
	repo := mocks.NewMockISessionRepository(ctrl)

	// Given one chatting connection, one idle connection and one store failure
	registry.EXPECT().ConnectionIDs().Return([]string{"a", "idle", "broken"}).MinTimes(1)
	repo.EXPECT().Touch(gomock.Any(), "a").Return(nil).MinTimes(1)
	repo.EXPECT().Touch(gomock.Any(), "idle").Return(errors.ErrSessionNotFound).MinTimes(1)
	repo.EXPECT().Touch(gomock.Any(), "broken").Return(errors.ErrTransportUnavailable).MinTimes(1)

	worker := NewKeepaliveWorker(slog.Default(), registry, repo, 20*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	// When the worker runs a few ticks
	err := worker.Run(ctx)

	// Then it stops with the context only
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestStoreGCWorker_Runs_Collection(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	collector := mocks.NewMockIGarbageCollector(ctrl)

	collector.EXPECT().CollectGarbage(gcDiscardRatio).Return(nil).MinTimes(1)

	worker := NewStoreGCWorker(slog.Default(), collector, 20*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req.ErrorIs(worker.Run(ctx), context.DeadlineExceeded)
}

func TestTelemetryWorker_Sample(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)
	repo := mocks.NewMockISessionRepository(ctrl)
	monitoring := observability.NewMonitoringManager(slog.Default())
	monitoring.IncrMatches()

	registry.EXPECT().Count().Return(3)
	repo.EXPECT().Stats(gomock.Any()).Return(domain.SessionStats{Waiting: 1, Chatting: 2}, nil)

	p, err := process.NewProcess(int32(os.Getpid()))
	req.NoError(err)

	worker := NewTelemetryWorker(slog.Default(), time.Second, registry, repo, monitoring)
	stats := worker.Sample(context.Background(), p)

	req.Equal(3, stats.LiveConnections)
	req.Equal(1, stats.WaitingSessions)
	req.Equal(2, stats.ChattingSessions)
	req.Equal(uint64(1), stats.MatchesCommitted)
	req.NotZero(stats.RSSBytes)
	req.Equal(stats.LiveConnections, monitoring.GetLatest().LiveConnections)
}

func TestTelemetryWorker_Sample_Tolerates_Store_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	registry := mocks.NewMockIRegistry(ctrl)
	repo := mocks.NewMockISessionRepository(ctrl)

	registry.EXPECT().Count().Return(0)
	repo.EXPECT().Stats(gomock.Any()).Return(domain.SessionStats{}, errors.ErrTransportUnavailable)

	worker := NewTelemetryWorker(slog.Default(), time.Second, registry, repo,
		observability.NewMonitoringManager(slog.Default()))
	stats := worker.Sample(context.Background(), nil)

	req.Zero(stats.WaitingSessions)
	req.Zero(stats.RSSBytes)
}
