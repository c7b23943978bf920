package repositories

import (
	"log/slog"
	"testing"
	"time"

	"alumnet/domain"
	"alumnet/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUserRepository_CreateAndFind(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db)

	id, err := repo.CreateUser("jane@example.com", "jane.doe", "Jane", "Doe", "$argon2id$...")
	req.NoError(err)
	req.NotEmpty(id)

	byEmail, err := repo.GetUserByEmail("jane@example.com")
	req.NoError(err)
	req.Equal(id, byEmail.ID)
	req.Equal("jane.doe", byEmail.Username)

	byID, err := repo.FindByID(id)
	req.NoError(err)
	req.Equal(byEmail, byID)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db)

	_, err := repo.CreateUser("jane@example.com", "jane", "Jane", "Doe", "hash")
	req.NoError(err)

	_, err = repo.CreateUser("jane@example.com", "other", "Other", "Name", "hash")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_FindMissing(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewUserRepository(db)

	_, err := repo.FindByID("ghost")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestChatRepository_CreateFindUpdate(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewChatRepository(db)

	id, err := repo.CreateChat(domain.Chat{
		Type:         domain.ChatDirect,
		Participants: []string{"U1", "U2"},
		CreatedAt:    time.Now().UTC(),
	})
	req.NoError(err)

	chat, err := repo.FindChatByID(id)
	req.NoError(err)
	req.True(chat.HasParticipant("U1"))
	req.False(chat.HasParticipant("U3"))
	req.Nil(chat.LastMessage)

	at := time.Now().UTC().Truncate(time.Millisecond)
	err = repo.UpdateLastMessage(id, domain.LastMessage{
		Content: "hi", Sender: "U1", Timestamp: at, Type: "text",
	})
	req.NoError(err)

	chat, err = repo.FindChatByID(id)
	req.NoError(err)
	req.NotNil(chat.LastMessage)
	req.Equal("hi", chat.LastMessage.Content)
	req.Equal("U1", chat.LastMessage.Sender)
}

func TestChatRepository_Missing(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewChatRepository(db)

	_, err := repo.FindChatByID("nope")
	req.ErrorIs(err, errors.ErrChatNotFound)

	err = repo.UpdateLastMessage("nope", domain.LastMessage{Content: "x"})
	req.ErrorIs(err, errors.ErrChatNotFound)
}

func TestMessageRepository_StoreAndPage(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	limit := 2
	repo := NewMessageRepository(db, slog.Default(), &limit)
	chatID := "C1"
	at := time.Now().UTC()
	senders := []string{"Alice", "Bob", "Clara"}
	for i, sender := range senders {
		err := repo.StoreMessage(domain.Message{
			ID:        uuid.New(),
			ChatID:    chatID,
			SenderID:  sender,
			Content:   "this message will self destruct in 5 seconds",
			Type:      domain.DefaultMessageType,
			CreatedAt: at.Add(time.Duration(i) * time.Minute),
		})
		req.NoError(err)
	}

	// First page: newest two messages.
	page1, cursor, err := repo.GetMessages(chatID, nil)
	req.NoError(err)
	req.Len(page1, limit)
	req.NotNil(cursor)
	req.Equal([]string{"Clara", "Bob"}, lo.Map(page1, func(m domain.Message, _ int) string {
		return m.SenderID
	}))

	// Second page resumes past the cursor.
	page2, _, err := repo.GetMessages(chatID, cursor)
	req.NoError(err)
	req.Len(page2, 1)
	req.Equal("Alice", page2[0].SenderID)
}

func TestMessageRepository_IsolatedByChat(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewMessageRepository(db, slog.Default(), nil)

	err := repo.StoreMessage(domain.Message{
		ID: uuid.New(), ChatID: "C1", SenderID: "U1",
		Content: "hello", Type: "text", CreatedAt: time.Now().UTC(),
	})
	req.NoError(err)

	messages, _, err := repo.GetMessages("C2", nil)
	req.NoError(err)
	req.Empty(messages)
}
