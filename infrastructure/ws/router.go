package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"alumnet/domain"
	"alumnet/infrastructure/storage"
	"alumnet/moderation"
	"alumnet/observability"
	"alumnet/repositories"
	"alumnet/runtime"
	"alumnet/services"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

// Router is the protocol state machine. Every inbound frame of an open
// connection lands here; every failure is handled locally and never surfaces
// to the peer, so a dropped envelope is only visible through stats and logs.
type Router struct {
	log       *slog.Logger
	relay     services.IRelayService
	rooms     *runtime.RoomTable
	chats     repositories.IChatRepository
	messages  repositories.IMessageRepository
	index     *storage.MessageIndex
	moderator *moderation.Moderator
	stats     *observability.RelayStats
	now       func() time.Time
}

func NewRouter(log *slog.Logger, relay services.IRelayService, rooms *runtime.RoomTable,
	chats repositories.IChatRepository, messages repositories.IMessageRepository,
	index *storage.MessageIndex, moderator *moderation.Moderator,
	stats *observability.RelayStats) *Router {
	return &Router{
		log:       log,
		relay:     relay,
		rooms:     rooms,
		chats:     chats,
		messages:  messages,
		index:     index,
		moderator: moderator,
		stats:     stats,
		now:       time.Now,
	}
}

// HandleFrame decodes one raw frame from sender and dispatches it.
// A malformed frame is dropped and logged; the connection stays open.
func (r *Router) HandleFrame(sender domain.User, raw []byte) {
	var envelope domain.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		r.stats.IncrMalformedEnvelopes()
		r.log.Warn("Dropping malformed envelope", "user_id", sender.ID, "error", err)
		return
	}

	switch envelope.Type {
	case domain.EnvelopeJoinChat:
		r.handleJoinChat(sender, envelope)
	case domain.EnvelopeLeaveChat:
		r.handleLeaveChat(sender, envelope)
	case domain.EnvelopeChatMessage:
		r.handleChatMessage(sender, envelope)
	case domain.EnvelopeTyping:
		r.handleTyping(sender, envelope)
	default:
		r.stats.IncrDroppedEnvelopes()
		r.log.Warn("Unknown envelope type", "user_id", sender.ID, "type", envelope.Type)
	}
}

// handleJoinChat subscribes the sender to a room and acks to the sender only.
// A refused join is silent on the wire: answering would leak whether the chat
// exists and who belongs to it.
func (r *Router) handleJoinChat(sender domain.User, envelope domain.Envelope) {
	chatID, ok := r.decodeChatID(sender, envelope)
	if !ok {
		return
	}

	if err := r.rooms.Join(sender.ID, chatID); err != nil {
		r.stats.IncrDroppedEnvelopes()
		r.log.Info("Refused join", "user_id", sender.ID, "chat_id", chatID, "error", err)
		return
	}

	ack, err := domain.NewEnvelope(domain.EnvelopeJoinChat,
		domain.JoinChatPayload{ChatID: chatID, Status: "joined"})
	if err != nil {
		return
	}
	r.relay.SendToUser(sender.ID, ack)
}

func (r *Router) handleLeaveChat(sender domain.User, envelope domain.Envelope) {
	chatID, ok := r.decodeChatID(sender, envelope)
	if !ok {
		return
	}
	r.rooms.Leave(sender.ID, chatID)
}

// handleChatMessage re-verifies durable participantship at send time: the
// transient join state alone would leak messages to a user removed from the
// chat after joining but before the next leave signal.
func (r *Router) handleChatMessage(sender domain.User, envelope domain.Envelope) {
	var payload domain.ChatMessagePayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		r.stats.IncrMalformedEnvelopes()
		r.log.Warn("Malformed chat_message payload", "user_id", sender.ID, "error", err)
		return
	}
	chatID := payload.ChatID
	if chatID == "" {
		chatID = envelope.ChatID
	}
	if chatID == "" {
		r.stats.IncrDroppedEnvelopes()
		return
	}

	chat, err := r.chats.FindChatByID(chatID)
	if err != nil || !chat.HasParticipant(sender.ID) {
		r.stats.IncrDroppedEnvelopes()
		r.log.Info("Refused message from non-participant", "user_id", sender.ID, "chat_id", chatID)
		return
	}

	content := payload.Content
	if r.moderator != nil {
		content = r.moderator.Censor(content)
	}
	messageType := payload.Type
	if messageType == "" {
		messageType = domain.DefaultMessageType
	}

	message := domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  sender.ID,
		Content:   content,
		Type:      messageType,
		Lang:      detectLang(content),
		CreatedAt: r.now().UTC(),
	}

	if err := r.messages.StoreMessage(message); err != nil {
		r.log.Error("Failed to store message", "chat_id", chatID, "error", err)
	}
	if err := r.chats.UpdateLastMessage(chatID, domain.LastMessage{
		Content:   message.Content,
		Sender:    message.SenderID,
		Timestamp: message.CreatedAt,
		Type:      message.Type,
	}); err != nil {
		r.stats.IncrDroppedEnvelopes()
		r.log.Error("Failed to update last message, dropping relay", "chat_id", chatID, "error", err)
		return
	}
	if r.index != nil {
		if err := r.index.Index(message); err != nil {
			r.log.Warn("Failed to index message", "chat_id", chatID, "error", err)
		}
	}

	broadcast, err := domain.NewEnvelope(domain.EnvelopeChatMessage, message)
	if err != nil {
		return
	}
	broadcast.ChatID = chatID
	// The sender is included: its own UI reconciles via the broadcast.
	r.relay.BroadcastToChat(chatID, broadcast, "")
	r.stats.IncrMessagesRelayed()
}

// handleTyping relays a typing indicator to everyone joined except the
// sender. Not gated on the durable store: it carries no content.
func (r *Router) handleTyping(sender domain.User, envelope domain.Envelope) {
	var payload domain.TypingPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		r.stats.IncrMalformedEnvelopes()
		return
	}
	chatID := payload.ChatID
	if chatID == "" {
		chatID = envelope.ChatID
	}
	if chatID == "" {
		r.stats.IncrDroppedEnvelopes()
		return
	}

	broadcast, err := domain.NewEnvelope(domain.EnvelopeTyping, domain.TypingPayload{
		ChatID:   chatID,
		IsTyping: payload.IsTyping,
		UserID:   sender.ID,
		Username: sender.Username,
	})
	if err != nil {
		return
	}
	broadcast.ChatID = chatID
	broadcast.UserID = sender.ID
	r.relay.BroadcastToChat(chatID, broadcast, sender.ID)
	r.stats.IncrTypingRelayed()
}

// decodeChatID extracts the chat id from the payload, falling back to the
// envelope-level field. Reports false after counting the drop when absent.
func (r *Router) decodeChatID(sender domain.User, envelope domain.Envelope) (string, bool) {
	var payload domain.JoinChatPayload
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			r.stats.IncrMalformedEnvelopes()
			r.log.Warn("Malformed payload", "user_id", sender.ID, "type", envelope.Type, "error", err)
			return "", false
		}
	}
	chatID := payload.ChatID
	if chatID == "" {
		chatID = envelope.ChatID
	}
	if chatID == "" {
		r.stats.IncrDroppedEnvelopes()
		r.log.Warn("Envelope without chat id", "user_id", sender.ID, "type", envelope.Type)
		return "", false
	}
	return chatID, true
}

func detectLang(content string) string {
	if content == "" {
		return ""
	}
	info := whatlanggo.Detect(content)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6393()
}
