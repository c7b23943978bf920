package runtime

import (
	"log/slog"
	"testing"

	"alumnet/domain"
	"alumnet/errors"
	"alumnet/mocks"
	"alumnet/observability"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newRoomTable(t *testing.T) (*RoomTable, *mocks.MockIChatRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	chats := mocks.NewMockIChatRepository(ctrl)
	table := NewRoomTable(chats, slog.Default(), observability.NewRelayStats())
	return table, chats
}

func chatWith(participants ...string) domain.Chat {
	return domain.Chat{ID: "C1", Type: domain.ChatGroup, Participants: participants}
}

func TestRoomTable_JoinRequiresDurableParticipantship(t *testing.T) {
	req := require.New(t)
	table, chats := newRoomTable(t)

	t.Run("should join a durable participant", func(t *testing.T) {
		chats.EXPECT().FindChatByID("C1").Return(chatWith("U1", "U2"), nil)
		req.NoError(table.Join("U1", "C1"))
		req.True(table.IsJoined("U1", "C1"))
	})

	t.Run("should be idempotent when already joined", func(t *testing.T) {
		chats.EXPECT().FindChatByID("C1").Return(chatWith("U1", "U2"), nil)
		req.NoError(table.Join("U1", "C1"))
		req.Equal([]string{"U1"}, table.MembersOf("C1"))
	})

	t.Run("should refuse a non-participant without membership change", func(t *testing.T) {
		chats.EXPECT().FindChatByID("C1").Return(chatWith("U1", "U2"), nil)
		err := table.Join("U3", "C1")
		req.ErrorIs(err, errors.ErrNotAParticipant)
		req.False(table.IsJoined("U3", "C1"))
	})

	t.Run("should refuse a join against a missing chat", func(t *testing.T) {
		chats.EXPECT().FindChatByID("ghost").Return(domain.Chat{}, errors.ErrChatNotFound)
		err := table.Join("U1", "ghost")
		req.ErrorIs(err, errors.ErrNotAParticipant)
	})
}

func TestRoomTable_LeaveDeletesEmptyRooms(t *testing.T) {
	req := require.New(t)
	table, chats := newRoomTable(t)

	chats.EXPECT().FindChatByID("C1").Return(chatWith("U1", "U2"), nil).Times(2)
	req.NoError(table.Join("U1", "C1"))
	req.NoError(table.Join("U2", "C1"))

	table.Leave("U1", "C1")
	req.False(table.IsJoined("U1", "C1"))
	req.Equal([]string{"U2"}, table.MembersOf("C1"))

	table.Leave("U2", "C1")
	req.Empty(table.MembersOf("C1"))

	// No-op on an already-empty room.
	table.Leave("U2", "C1")
}

func TestRoomTable_LeaveAll(t *testing.T) {
	req := require.New(t)
	table, chats := newRoomTable(t)

	chats.EXPECT().FindChatByID("C1").Return(chatWith("U1", "U2"), nil).Times(2)
	chats.EXPECT().FindChatByID("C2").Return(domain.Chat{ID: "C2", Participants: []string{"U1"}}, nil)
	req.NoError(table.Join("U1", "C1"))
	req.NoError(table.Join("U2", "C1"))
	req.NoError(table.Join("U1", "C2"))

	table.LeaveAll("U1")

	req.False(table.IsJoined("U1", "C1"))
	req.False(table.IsJoined("U1", "C2"))
	req.Equal([]string{"U2"}, table.MembersOf("C1"))
	req.Empty(table.MembersOf("C2"))
}

func TestRoomTable_MembersOfReturnsACopy(t *testing.T) {
	req := require.New(t)
	table, chats := newRoomTable(t)

	chats.EXPECT().FindChatByID("C1").Return(chatWith("U1", "U2"), nil)
	req.NoError(table.Join("U1", "C1"))

	snapshot := table.MembersOf("C1")
	snapshot[0] = "tampered"
	req.Equal([]string{"U1"}, table.MembersOf("C1"))
}
