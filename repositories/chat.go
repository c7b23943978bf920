//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"

	"alumnet/domain"
	"alumnet/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// IChatRepository is the durable chat store: the sole source of truth for
// participantship. The relay never caches participant lists beyond the
// lifetime of a transient join.
type IChatRepository interface {
	CreateChat(chat domain.Chat) (string, error)
	FindChatByID(chatID string) (domain.Chat, error)
	UpdateLastMessage(chatID string, last domain.LastMessage) error
}

type ChatRepository struct {
	db *badger.DB
}

func NewChatRepository(db *badger.DB) IChatRepository {
	return &ChatRepository{db: db}
}

func chatKey(chatID string) []byte {
	return []byte("chat:" + chatID)
}

func (c ChatRepository) CreateChat(chat domain.Chat) (string, error) {
	if chat.ID == "" {
		chat.ID = uuid.NewString()
	}
	data, err := json.Marshal(chat)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chatKey(chat.ID), data)
	})
	return chat.ID, err
}

func (c ChatRepository) FindChatByID(chatID string) (domain.Chat, error) {
	var chat domain.Chat
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(chatID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &chat)
		})
	})
	if err != nil {
		return domain.Chat{}, errors.ErrChatNotFound
	}
	return chat, nil
}

// UpdateLastMessage refreshes the denormalized summary shown in chat lists.
// Read-modify-write inside one transaction so concurrent relays cannot
// interleave partial updates.
func (c ChatRepository) UpdateLastMessage(chatID string, last domain.LastMessage) error {
	return c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(chatID))
		if err != nil {
			return errors.ErrChatNotFound
		}
		var chat domain.Chat
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &chat)
		}); err != nil {
			return err
		}
		chat.LastMessage = &last
		data, err := json.Marshal(chat)
		if err != nil {
			return err
		}
		return txn.Set(chatKey(chatID), data)
	})
}
