package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alumnet/auth"
	"alumnet/infrastructure/storage"
	"alumnet/infrastructure/ws"
	"alumnet/internal"
	"alumnet/moderation"
	"alumnet/observability"
	"alumnet/repositories"
	"alumnet/runtime"
	"alumnet/runtime/workers"
	"alumnet/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	// Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Full-text index (Bluge)
	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing message index...")
		_ = indexWriter.Close()
	}()
	messageIndex := storage.NewMessageIndex(indexWriter, log)

	// 4. Moderation
	censoredChar, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}
	blacklist, err := loadBlacklist(db)
	if err != nil {
		return fmt.Errorf("blacklist loading failed: %w", err)
	}
	var moderator *moderation.Moderator
	if len(blacklist) > 0 {
		m, err := moderation.NewModerator(blacklist, censoredChar)
		if err != nil {
			return fmt.Errorf("moderator setup failed: %w", err)
		}
		moderator = &m
		log.Info("Moderation enabled", "words", len(blacklist))
	}

	// 5. Repositories & Services
	userRepository := repositories.NewUserRepository(db)
	chatRepository := repositories.NewChatRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log, nil)

	signer := auth.NewTokenSigner(config.JWTSecret)
	authService := services.NewAuthService(userRepository, signer, config.AuthTokenDuration)

	stats := observability.NewRelayStats()
	registry := runtime.NewConnectionRegistry(log, stats)
	rooms := runtime.NewRoomTable(chatRepository, log, stats)
	relayService := services.NewRelayService(registry, rooms)
	historyService := services.NewHistoryService(messageRepository, messageIndex)

	// 6. WebSocket transport
	router := ws.NewRouter(log, relayService, rooms, chatRepository,
		messageRepository, messageIndex, moderator, stats)
	server := ws.NewServer(log, authService, relayService, historyService,
		registry, rooms, router, stats, ws.Options{
			HandshakeTimeout: config.HandshakeTimeout,
			SendBufferSize:   config.SendBufferSize,
			MaxMessageSize:   config.MaxMessageSize,
			WriteTimeout:     config.WriteTimeout,
		})

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 8. Supervision: liveness sweep + telemetry
	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewHeartbeatWorker(log, registry, rooms, config.HeartbeatInterval),
		workers.NewTelemetryWorker(log, stats, config.TelemetryInterval),
	)
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	if config.DebugPort != 0 {
		internal.StartDebugServer(db, config.DebugPort, nil, func() map[string]any {
			snapshot := stats.Snapshot()
			return map[string]any{
				"ConnectedUsers":  snapshot.ConnectedUsers,
				"ActiveRooms":     snapshot.ActiveRooms,
				"MessagesRelayed": snapshot.MessagesRelayed,
			}
		})
		log.Info("Debug inspector started", "port", config.DebugPort)
	}

	// 9. HTTP server hosting the WebSocket endpoint
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:    address,
		Handler: server.Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 10. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 11. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Forced shutdown", "error", err)
	}
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}

// loadBlacklist reads the moderation vocabulary seeded under "blacklist:".
// An empty vocabulary disables moderation entirely.
func loadBlacklist(db *badger.DB) ([]string, error) {
	var words []string
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("blacklist:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				words = append(words, string(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return words, err
}
