package services

import (
	"context"

	"alumnet/domain"
	"alumnet/infrastructure/storage"
	"alumnet/repositories"
)

// IHistoryService is the read side of the message store, consumed by the
// REST layer: recent-history pages for the chat window and full-text search.
type IHistoryService interface {
	GetMessages(chatID string, cursor *string) ([]domain.Message, *string, error)
	Search(ctx context.Context, chatID, terms string, limit int) ([]storage.Hit, error)
}

type HistoryService struct {
	messages repositories.IMessageRepository
	index    *storage.MessageIndex
}

func NewHistoryService(messages repositories.IMessageRepository, index *storage.MessageIndex) *HistoryService {
	return &HistoryService{messages: messages, index: index}
}

func (s *HistoryService) GetMessages(chatID string, cursor *string) ([]domain.Message, *string, error) {
	return s.messages.GetMessages(chatID, cursor)
}

// Search queries the full-text index. A deployment without an index answers
// with no hits rather than an error.
func (s *HistoryService) Search(ctx context.Context, chatID, terms string, limit int) ([]storage.Hit, error) {
	if s.index == nil {
		return nil, nil
	}
	return s.index.Search(ctx, chatID, terms, limit)
}
