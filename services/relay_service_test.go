package services

import (
	"log/slog"
	"testing"

	"alumnet/domain"
	"alumnet/mocks"
	"alumnet/observability"
	"alumnet/runtime"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newRelayFixture(t *testing.T) (*RelayService, *runtime.ConnectionRegistry, *runtime.RoomTable, *mocks.MockIChatRepository, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	log := slog.Default()
	stats := observability.NewRelayStats()
	registry := runtime.NewConnectionRegistry(log, stats)
	chatRepo := mocks.NewMockIChatRepository(ctrl)
	rooms := runtime.NewRoomTable(chatRepo, log, stats)
	return NewRelayService(registry, rooms), registry, rooms, chatRepo, ctrl
}

func TestRelayService_BroadcastToChat(t *testing.T) {
	svc, registry, rooms, chatRepo, ctrl := newRelayFixture(t)
	defer ctrl.Finish()
	req := require.New(t)

	chatRepo.EXPECT().
		FindChatByID("chat-1").
		Return(domain.Chat{ID: "chat-1", Participants: []string{"u1", "u2", "u3"}}, nil).
		AnyTimes()

	envelope, err := domain.NewEnvelope(domain.EnvelopeTyping,
		domain.TypingPayload{ChatID: "chat-1", IsTyping: true})
	req.NoError(err)

	t1 := mocks.NewMockTransport(ctrl)
	t2 := mocks.NewMockTransport(ctrl)
	registry.Register("u1", t1)
	registry.Register("u2", t2)
	req.NoError(rooms.Join("u1", "chat-1"))
	req.NoError(rooms.Join("u2", "chat-1"))

	t.Run("should exclude the given identity from the fan-out", func(t *testing.T) {
		t2.EXPECT().WriteEnvelope(envelope).Return(nil).Times(1)
		// u1 is excluded, so t1 receives nothing.

		svc.BroadcastToChat("chat-1", envelope, "u1")
	})

	t.Run("should include everyone when no exclusion is given", func(t *testing.T) {
		t1.EXPECT().WriteEnvelope(envelope).Return(nil).Times(1)
		t2.EXPECT().WriteEnvelope(envelope).Return(nil).Times(1)

		svc.BroadcastToChat("chat-1", envelope, "")
	})

	t.Run("should skip joined members without a live connection", func(t *testing.T) {
		// u3 is a durable participant but never registered a transport.
		req.NoError(rooms.Join("u3", "chat-1"))
		t1.EXPECT().WriteEnvelope(envelope).Return(nil).Times(1)
		t2.EXPECT().WriteEnvelope(envelope).Return(nil).Times(1)

		svc.BroadcastToChat("chat-1", envelope, "")
	})
}

func TestRelayService_BroadcastToAll(t *testing.T) {
	svc, registry, _, _, ctrl := newRelayFixture(t)
	defer ctrl.Finish()
	req := require.New(t)

	envelope, err := domain.NewEnvelope(domain.EnvelopeNotification,
		map[string]string{"text": "maintenance at noon"})
	req.NoError(err)

	t1 := mocks.NewMockTransport(ctrl)
	t2 := mocks.NewMockTransport(ctrl)
	registry.Register("u1", t1)
	registry.Register("u2", t2)

	t1.EXPECT().WriteEnvelope(envelope).Return(nil).Times(1)
	t2.EXPECT().WriteEnvelope(envelope).Return(nil).Times(1)

	svc.BroadcastToAll(envelope)

	req.True(svc.IsUserOnline("u1"))
	req.ElementsMatch([]string{"u1", "u2"}, svc.OnlineUsers())
}
