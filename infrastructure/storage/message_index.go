// Package storage holds the search-side persistence of relayed messages.
package storage

import (
	"context"
	"log/slog"

	"alumnet/domain"

	"github.com/blugelabs/bluge"
)

// MessageIndex maintains a full-text index over relayed messages so the REST
// layer can offer history search. Indexing happens on the relay path,
// best-effort: a failed index write never blocks or fails the broadcast.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

// Index adds or replaces one message document.
func (i *MessageIndex) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewKeywordField("chat", message.ChatID).StoreValue()).
		AddField(bluge.NewKeywordField("sender", message.SenderID).StoreValue()).
		AddField(bluge.NewDateTimeField("timestamp", message.CreatedAt))
	return i.writer.Update(doc.ID(), doc)
}

// Hit is one search result, rebuilt from the stored fields.
type Hit struct {
	MessageID string  `json:"messageId"`
	ChatID    string  `json:"chatId"`
	SenderID  string  `json:"senderId"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
}

// Search runs a match query over message content, optionally scoped to one
// chat, returning at most limit hits ranked by score.
func (i *MessageIndex) Search(ctx context.Context, chatID, terms string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content"))
	if chatID != "" {
		query.AddMust(bluge.NewTermQuery(chatID).SetField("chat"))
	}

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	match, err := iterator.Next()
	for err == nil && match != nil {
		hit := Hit{Score: match.Score}
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "chat":
				hit.ChatID = string(value)
			case "sender":
				hit.SenderID = string(value)
			case "content":
				hit.Content = string(value)
			}
			return true
		})
		if visitErr != nil {
			return nil, visitErr
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}
