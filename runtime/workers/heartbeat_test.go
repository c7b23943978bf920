package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"alumnet/domain"
	"alumnet/mocks"
	"alumnet/observability"
	"alumnet/runtime"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHeartbeatWorker_EvictsSilentPeer(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stats := observability.NewRelayStats()
	registry := runtime.NewConnectionRegistry(log, stats)

	chatRepo := mocks.NewMockIChatRepository(ctrl)
	chatRepo.EXPECT().
		FindChatByID("chat-1").
		Return(domain.Chat{ID: "chat-1", Participants: []string{"user-1"}}, nil).
		AnyTimes()
	rooms := runtime.NewRoomTable(chatRepo, log, stats)

	transport := mocks.NewMockTransport(ctrl)
	// First sweep probes, second sweep evicts the silent peer.
	transport.EXPECT().Ping().Return(nil).MinTimes(1)
	transport.EXPECT().Close("heartbeat timeout").Return(nil).Times(1)

	registry.Register("user-1", transport)
	req.NoError(rooms.Join("user-1", "chat-1"))

	worker := NewHeartbeatWorker(log, registry, rooms, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := worker.Run(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)

	req.False(registry.IsOnline("user-1"))
	req.False(rooms.IsJoined("user-1", "chat-1"))
}

func TestHeartbeatWorker_KeepsResponsivePeer(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stats := observability.NewRelayStats()
	registry := runtime.NewConnectionRegistry(log, stats)
	chatRepo := mocks.NewMockIChatRepository(ctrl)
	rooms := runtime.NewRoomTable(chatRepo, log, stats)

	transport := mocks.NewMockTransport(ctrl)
	// Every probe is answered, so the peer is never closed.
	transport.EXPECT().
		Ping().
		DoAndReturn(func() error {
			registry.MarkAlive("user-1")
			return nil
		}).
		MinTimes(2)

	registry.Register("user-1", transport)

	worker := NewHeartbeatWorker(log, registry, rooms, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	err := worker.Run(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)

	req.True(registry.IsOnline("user-1"))
}
