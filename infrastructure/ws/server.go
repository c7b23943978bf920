package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"alumnet/domain"
	"alumnet/observability"
	"alumnet/runtime"
	"alumnet/services"

	"github.com/gorilla/websocket"
)

// Options bound the transport: the handshake must complete within
// HandshakeTimeout or the connection is refused.
type Options struct {
	HandshakeTimeout time.Duration
	SendBufferSize   int
	MaxMessageSize   int64
	WriteTimeout     time.Duration
	CheckOrigin      func(r *http.Request) bool
}

// Server accepts WebSocket upgrades on /ws, authenticates the credential
// passed as a query parameter, and runs one client per connection. It also
// serves the admin /healthz and /stats endpoints.
type Server struct {
	log      *slog.Logger
	auth     services.IAuthService
	relay    services.IRelayService
	history  services.IHistoryService
	registry *runtime.ConnectionRegistry
	rooms    *runtime.RoomTable
	router   *Router
	stats    *observability.RelayStats
	upgrader websocket.Upgrader
	opts     Options
}

func NewServer(log *slog.Logger, auth services.IAuthService, relay services.IRelayService,
	history services.IHistoryService, registry *runtime.ConnectionRegistry,
	rooms *runtime.RoomTable, router *Router, stats *observability.RelayStats,
	opts Options) *Server {
	return &Server{
		log:      log,
		auth:     auth,
		relay:    relay,
		history:  history,
		registry: registry,
		rooms:    rooms,
		router:   router,
		stats:    stats,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: opts.HandshakeTimeout,
			CheckOrigin:      opts.CheckOrigin,
		},
		opts: opts,
	}
}

// Handler returns the HTTP mux of the relay.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("GET /chats/{chat}/messages", s.handleHistory)
	mux.HandleFunc("GET /chats/{chat}/search", s.handleSearch)
	return mux
}

// authorize resolves the bearer token of a REST call and checks durable
// participantship for the requested chat. Both failures are 401/403 to the
// caller without detail.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, chatID string) (domain.User, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return domain.User{}, false
	}
	user, err := s.auth.Authenticate(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return domain.User{}, false
	}
	if err := s.rooms.VerifyParticipant(user.ID, chatID); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return domain.User{}, false
	}
	return user, true
}

// handleHistory serves one page of recent messages, newest first, with an
// opaque cursor to resume the scan.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chat")
	if _, ok := s.authorize(w, r, chatID); !ok {
		return
	}

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	messages, next, err := s.history.GetMessages(chatID, cursor)
	if err != nil {
		s.log.Error("History read failed", "chat_id", chatID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Messages []domain.Message `json:"messages"`
		Cursor   *string          `json:"cursor,omitempty"`
	}{Messages: messages, Cursor: next})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chat")
	if _, ok := s.authorize(w, r, chatID); !ok {
		return
	}

	terms := r.URL.Query().Get("q")
	if terms == "" {
		http.Error(w, "missing query", http.StatusBadRequest)
		return
	}

	hits, err := s.history.Search(r.Context(), chatID, terms, 50)
	if err != nil {
		s.log.Error("Search failed", "chat_id", chatID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(hits)
}

// handleWS authenticates before completing the upgrade: a missing or invalid
// credential, or a vanished user, refuses the connection outright. This is
// the only failure a client ever sees.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	user, err := s.auth.Authenticate(token)
	if err != nil {
		s.log.Info("Refused handshake", "error", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Upgrade failed", "user_id", user.ID, "error", err)
		return
	}

	client := NewClient(user.ID, conn, s.log,
		s.opts.SendBufferSize, s.opts.MaxMessageSize, s.opts.WriteTimeout)
	s.registry.Register(user.ID, client)

	go client.writePump()

	if connected, err := domain.NewEnvelope(domain.EnvelopeConnectionUpdate,
		domain.ConnectionUpdatePayload{Status: "connected", UserID: user.ID}); err == nil {
		s.relay.SendToUser(user.ID, connected)
	}

	s.log.Info("User connected", "user_id", user.ID, "username", user.Username)

	// Blocks until the connection dies, then tears down both registries.
	// Release guards against a superseded handle evicting its replacement.
	client.readPump(
		func() { s.registry.MarkAlive(user.ID) },
		func(raw []byte) { s.router.HandleFrame(user, raw) },
	)

	if s.registry.Release(user.ID, client) {
		s.rooms.LeaveAll(user.ID)
		s.log.Info("User disconnected", "user_id", user.ID)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.stats.Snapshot()); err != nil {
		s.log.Error("Failed to encode stats", "error", err)
	}
}
