package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"alumnet/auth"
	"alumnet/domain"
	"alumnet/mocks"
	"alumnet/observability"
	"alumnet/runtime"
	"alumnet/services"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type serverFixture struct {
	server   *httptest.Server
	signer   auth.TokenSigner
	users    *mocks.MockIUserRepository
	chats    *mocks.MockIChatRepository
	messages *mocks.MockIMessageRepository
}

func newServerFixture(t *testing.T) *serverFixture {
	ctrl := gomock.NewController(t)
	log := slog.Default()
	stats := observability.NewRelayStats()

	users := mocks.NewMockIUserRepository(ctrl)
	chats := mocks.NewMockIChatRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	messages.EXPECT().StoreMessage(gomock.Any()).Return(nil).AnyTimes()
	chats.EXPECT().UpdateLastMessage(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	signer := auth.NewTokenSigner("integration-secret")
	authService := services.NewAuthService(users, signer, time.Hour)

	registry := runtime.NewConnectionRegistry(log, stats)
	rooms := runtime.NewRoomTable(chats, log, stats)
	relay := services.NewRelayService(registry, rooms)
	history := services.NewHistoryService(messages, nil)
	router := NewRouter(log, relay, rooms, chats, messages, nil, nil, stats)

	server := NewServer(log, authService, relay, history, registry, rooms, router, stats, Options{
		HandshakeTimeout: 2 * time.Second,
		SendBufferSize:   16,
		MaxMessageSize:   4096,
		WriteTimeout:     2 * time.Second,
		CheckOrigin:      func(*http.Request) bool { return true },
	})

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return &serverFixture{server: ts, signer: signer, users: users, chats: chats, messages: messages}
}

func (f *serverFixture) wsURL(token string) string {
	url := strings.Replace(f.server.URL, "http://", "ws://", 1) + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return url
}

func (f *serverFixture) dial(t *testing.T, user domain.User) *websocket.Conn {
	t.Helper()
	req := require.New(t)

	token, err := f.signer.Generate(user.ID, []string{"alumni"}, time.Hour)
	req.NoError(err)
	f.users.EXPECT().FindByID(user.ID).Return(user, nil)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(token), nil)
	req.NoError(err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) domain.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var envelope domain.Envelope
	require.NoError(t, conn.ReadJSON(&envelope))
	return envelope
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, kind domain.EnvelopeType, payload any) {
	t.Helper()
	envelope, err := domain.NewEnvelope(kind, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(envelope))
}

func TestServer_RefusesUnauthenticatedHandshake(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	t.Run("missing token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(f.wsURL(""), nil)
		req.Error(err)
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(f.wsURL("garbage"), nil)
		req.Error(err)
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestServer_ConnectJoinAndRelay(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	chat := domain.Chat{ID: "chat-1", Participants: []string{"u1", "u2"}}
	f.chats.EXPECT().FindChatByID("chat-1").Return(chat, nil).AnyTimes()

	alice := domain.User{ID: "u1", Username: "alice"}
	bob := domain.User{ID: "u2", Username: "bob"}

	connAlice := f.dial(t, alice)
	connBob := f.dial(t, bob)

	// Each peer is greeted exactly once per handshake.
	for conn, user := range map[*websocket.Conn]domain.User{connAlice: alice, connBob: bob} {
		greeting := readEnvelope(t, conn)
		req.Equal(domain.EnvelopeConnectionUpdate, greeting.Type)

		var payload domain.ConnectionUpdatePayload
		req.NoError(json.Unmarshal(greeting.Data, &payload))
		req.Equal("connected", payload.Status)
		req.Equal(user.ID, payload.UserID)
	}

	// Both join and get their acks.
	for _, conn := range []*websocket.Conn{connAlice, connBob} {
		writeEnvelope(t, conn, domain.EnvelopeJoinChat, domain.JoinChatPayload{ChatID: "chat-1"})
		ack := readEnvelope(t, conn)
		req.Equal(domain.EnvelopeJoinChat, ack.Type)

		var payload domain.JoinChatPayload
		req.NoError(json.Unmarshal(ack.Data, &payload))
		req.Equal("joined", payload.Status)
	}

	// Alice speaks; both windows receive the stamped broadcast.
	writeEnvelope(t, connAlice, domain.EnvelopeChatMessage,
		domain.ChatMessagePayload{ChatID: "chat-1", Content: "reunion on friday?"})

	for _, conn := range []*websocket.Conn{connAlice, connBob} {
		broadcast := readEnvelope(t, conn)
		req.Equal(domain.EnvelopeChatMessage, broadcast.Type)

		var message domain.Message
		req.NoError(json.Unmarshal(broadcast.Data, &message))
		req.Equal("reunion on friday?", message.Content)
		req.Equal("u1", message.SenderID)
		req.False(message.CreatedAt.IsZero())
	}
}

func TestServer_HistoryEndpoint(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	chat := domain.Chat{ID: "chat-1", Participants: []string{"u1"}}
	f.chats.EXPECT().FindChatByID("chat-1").Return(chat, nil).AnyTimes()

	token, err := f.signer.Generate("u1", []string{"alumni"}, time.Hour)
	req.NoError(err)
	f.users.EXPECT().
		FindByID("u1").
		Return(domain.User{ID: "u1", Username: "alice"}, nil).
		AnyTimes()

	t.Run("should page recent messages for a participant", func(t *testing.T) {
		page := []domain.Message{{ChatID: "chat-1", SenderID: "u1", Content: "hi"}}
		next := "cursor-1"
		f.messages.EXPECT().GetMessages("chat-1", gomock.Nil()).Return(page, &next, nil)

		resp, err := http.Get(f.server.URL + "/chats/chat-1/messages?token=" + token)
		req.NoError(err)
		defer resp.Body.Close()
		req.Equal(http.StatusOK, resp.StatusCode)

		var body struct {
			Messages []domain.Message `json:"messages"`
			Cursor   *string          `json:"cursor"`
		}
		req.NoError(json.NewDecoder(resp.Body).Decode(&body))
		req.Len(body.Messages, 1)
		req.Equal("hi", body.Messages[0].Content)
		req.NotNil(body.Cursor)
		req.Equal("cursor-1", *body.Cursor)
	})

	t.Run("should refuse a non-participant", func(t *testing.T) {
		outsider, err := f.signer.Generate("u9", []string{"alumni"}, time.Hour)
		req.NoError(err)
		f.users.EXPECT().FindByID("u9").Return(domain.User{ID: "u9"}, nil)

		resp, err := http.Get(f.server.URL + "/chats/chat-1/messages?token=" + outsider)
		req.NoError(err)
		defer resp.Body.Close()
		req.Equal(http.StatusForbidden, resp.StatusCode)
	})

	t.Run("should refuse without a token", func(t *testing.T) {
		resp, err := http.Get(f.server.URL + "/chats/chat-1/messages")
		req.NoError(err)
		defer resp.Body.Close()
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestServer_AdminEndpoints(t *testing.T) {
	req := require.New(t)
	f := newServerFixture(t)

	resp, err := http.Get(f.server.URL + "/healthz")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(f.server.URL + "/stats")
	req.NoError(err)
	defer resp2.Body.Close()
	req.Equal(http.StatusOK, resp2.StatusCode)

	var snapshot observability.Snapshot
	req.NoError(json.NewDecoder(resp2.Body).Decode(&snapshot))
}
