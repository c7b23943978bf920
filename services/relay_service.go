package services

import (
	"alumnet/domain"
	"alumnet/runtime"
)

// IRelayService is the surface the REST layer and UI collaborators consume.
// Every send is fire-and-forget: failures are counted, never propagated.
type IRelayService interface {
	SendToUser(userID string, envelope domain.Envelope)
	BroadcastToChat(chatID string, envelope domain.Envelope, excludeUserID string)
	BroadcastToAll(envelope domain.Envelope)
	IsUserOnline(userID string) bool
	OnlineUsers() []string
}

type RelayService struct {
	registry *runtime.ConnectionRegistry
	rooms    *runtime.RoomTable
}

func NewRelayService(registry *runtime.ConnectionRegistry, rooms *runtime.RoomTable) *RelayService {
	return &RelayService{registry: registry, rooms: rooms}
}

func (s *RelayService) SendToUser(userID string, envelope domain.Envelope) {
	s.registry.Send(userID, envelope)
}

// BroadcastToChat fans an envelope out to every currently-joined member of
// the chat, in snapshot order, optionally excluding one identity (typing
// indicators never echo back to their sender).
func (s *RelayService) BroadcastToChat(chatID string, envelope domain.Envelope, excludeUserID string) {
	for _, userID := range s.rooms.MembersOf(chatID) {
		if excludeUserID != "" && userID == excludeUserID {
			continue
		}
		s.registry.Send(userID, envelope)
	}
}

func (s *RelayService) BroadcastToAll(envelope domain.Envelope) {
	for _, userID := range s.registry.OnlineUsers() {
		s.registry.Send(userID, envelope)
	}
}

func (s *RelayService) IsUserOnline(userID string) bool {
	return s.registry.IsOnline(userID)
}

func (s *RelayService) OnlineUsers() []string {
	return s.registry.OnlineUsers()
}
