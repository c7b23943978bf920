package domain

import "time"

type ChatType string

const (
	ChatDirect ChatType = "direct"
	ChatGroup  ChatType = "group"
)

// Chat is the durable conversation record: the participant list is the
// source of truth for who may join the transient room and send messages.
type Chat struct {
	ID           string       `json:"id"`
	Type         ChatType     `json:"type"`
	Name         string       `json:"name,omitempty"`
	Participants []string     `json:"participants"`
	Admins       []string     `json:"admins,omitempty"`
	LastMessage  *LastMessage `json:"lastMessage,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// LastMessage is the denormalized summary kept on the chat record,
// refreshed on every relayed message.
type LastMessage struct {
	Content   string    `json:"content"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

// HasParticipant reports whether userID durably belongs to the chat.
func (c Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
