// Package domain contains core concepts of the alumni chat system.
// This file defines the Envelope, the single unit of protocol exchange
// over a persistent connection. Envelopes are ephemeral and never persisted.
package domain

import "encoding/json"

type EnvelopeType string

const (
	EnvelopeChatMessage      EnvelopeType = "chat_message"
	EnvelopeTyping           EnvelopeType = "typing"
	EnvelopeJoinChat         EnvelopeType = "join_chat"
	EnvelopeLeaveChat        EnvelopeType = "leave_chat"
	EnvelopeConnectionUpdate EnvelopeType = "connection_update"
	EnvelopeNotification     EnvelopeType = "notification"
)

// Envelope is one protocol frame: a tagged kind plus a kind-specific payload.
// ChatID and UserID are optional top-level hints mirrored from the payload.
type Envelope struct {
	Type   EnvelopeType    `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
	ChatID string          `json:"chatId,omitempty"`
	UserID string          `json:"userId,omitempty"`
}

// NewEnvelope builds an envelope from a payload struct.
// Marshalling only fails on non-serializable payloads, which callers control.
func NewEnvelope(t EnvelopeType, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, Data: data}, nil
}

// JoinChatPayload is both the join request and its ack.
// Status is "joined" on the ack, empty on the request.
type JoinChatPayload struct {
	ChatID string `json:"chatId"`
	Status string `json:"status,omitempty"`
}

// ChatMessagePayload is the inbound chat_message request.
// Type defaults to "text" when the client omits it.
type ChatMessagePayload struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

// TypingPayload carries a typing indicator. UserID and Username are only
// set on the outbound broadcast, never expected from the client.
type TypingPayload struct {
	ChatID   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
}

// ConnectionUpdatePayload is sent server-to-client once per successful handshake.
type ConnectionUpdatePayload struct {
	Status string `json:"status"`
	UserID string `json:"userId"`
}
