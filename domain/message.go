// Package domain contains core concepts of the alumni chat system.
// This file defines Message records. Messages are immutable once built:
// the server assigns the identifier and timestamp, never the client.
package domain

import (
	"time"

	"github.com/google/uuid"
)

const DefaultMessageType = "text"

// Message is one relayed chat message as stored and broadcast.
// JSON tags match the wire payload of a chat_message broadcast.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ChatID    string    `json:"chat"`
	SenderID  string    `json:"sender"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Lang      string    `json:"lang,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
}
