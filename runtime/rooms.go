package runtime

import (
	"log/slog"
	"sync"

	"alumnet/errors"
	"alumnet/observability"
	"alumnet/repositories"
)

type Set map[string]struct{}

// RoomTable maps a chat id to the set of identities currently joined, i.e.
// eligible to receive broadcasts over the wire. This is a transient in-memory
// subscription, distinct from the durable participant list: a durable
// participant with no open chat window is not joined and receives nothing.
type RoomTable struct {
	mu    sync.RWMutex
	rooms map[string]Set
	chats repositories.IChatRepository
	log   *slog.Logger
	stats *observability.RelayStats
}

func NewRoomTable(chats repositories.IChatRepository, log *slog.Logger, stats *observability.RelayStats) *RoomTable {
	return &RoomTable{
		rooms: make(map[string]Set),
		chats: chats,
		log:   log,
		stats: stats,
	}
}

// VerifyParticipant checks the durable chat store for membership without
// touching the transient subscription. A missing chat fails with the same
// error as a foreign chat so membership is never leaked.
func (t *RoomTable) VerifyParticipant(userID, chatID string) error {
	chat, err := t.chats.FindChatByID(chatID)
	if err != nil || !chat.HasParticipant(userID) {
		return errors.ErrNotAParticipant
	}
	return nil
}

// Join subscribes userID to chatID. It fails with ErrNotAParticipant unless
// the durable chat store confirms the user belongs to the chat at join time.
// Idempotent when already joined.
func (t *RoomTable) Join(userID, chatID string) error {
	if err := t.VerifyParticipant(userID, chatID); err != nil {
		return err
	}

	t.mu.Lock()
	if _, ok := t.rooms[chatID]; !ok {
		t.rooms[chatID] = make(Set)
	}
	t.rooms[chatID][userID] = struct{}{}
	count := len(t.rooms)
	t.mu.Unlock()

	t.stats.SetActiveRooms(count)
	return nil
}

// Leave removes userID from the room if present; the room entry is deleted
// once its member set becomes empty so the map never leaks dead rooms.
func (t *RoomTable) Leave(userID, chatID string) {
	t.mu.Lock()
	if members, ok := t.rooms[chatID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(t.rooms, chatID)
		}
	}
	count := len(t.rooms)
	t.mu.Unlock()
	t.stats.SetActiveRooms(count)
}

// LeaveAll removes userID from every room it belongs to. Called on
// disconnection and for every identity evicted by the heartbeat sweep.
func (t *RoomTable) LeaveAll(userID string) {
	t.mu.Lock()
	for chatID, members := range t.rooms {
		delete(members, userID)
		if len(members) == 0 {
			delete(t.rooms, chatID)
		}
	}
	count := len(t.rooms)
	t.mu.Unlock()
	t.stats.SetActiveRooms(count)
}

// MembersOf returns a copied snapshot of the room's members for broadcast
// targeting. Broadcasting always iterates the copy, never the live set.
func (t *RoomTable) MembersOf(chatID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members, ok := t.rooms[chatID]
	if !ok {
		return nil
	}
	snapshot := make([]string, 0, len(members))
	for userID := range members {
		snapshot = append(snapshot, userID)
	}
	return snapshot
}

// IsJoined reports whether userID currently holds a transient subscription.
func (t *RoomTable) IsJoined(userID, chatID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members, ok := t.rooms[chatID]
	if !ok {
		return false
	}
	_, joined := members[userID]
	return joined
}
