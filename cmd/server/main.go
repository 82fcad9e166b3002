package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/LukePietrzyk/10DevsLukasz/internal/auth"
	"github.com/LukePietrzyk/10DevsLukasz/internal/config"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/repositories"
	"github.com/LukePietrzyk/10DevsLukasz/internal/handler"
	"github.com/LukePietrzyk/10DevsLukasz/internal/middleware"
	"github.com/LukePietrzyk/10DevsLukasz/internal/repository/postgres"
	"github.com/LukePietrzyk/10DevsLukasz/internal/repository/sqlite"
	"github.com/LukePietrzyk/10DevsLukasz/internal/service"
	serviceAuth "github.com/LukePietrzyk/10DevsLukasz/internal/service/auth"
)

// flashcardStore bundles whichever backend STORE_DRIVER selects.
type flashcardStore struct {
	repo      repositories.FlashcardRepository
	txManager repositories.TransactionManager
	pinger    handler.Pinger
	close     func()
}

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	logger, closeLog, err := config.NewLogger(cfg, "server")
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
		"store", cfg.StoreDriver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create JWT verifier for Supabase authentication
	jwtVerifier, err := auth.NewJWTVerifier(ctx, cfg.SupabaseJWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	identityClient := auth.NewIdentityClient(cfg.SupabaseURL, cfg.SupabaseKey, logger)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open flashcard store: %v", err)
	}
	defer store.close()

	// Services
	flashcardService := service.NewFlashcardService(store.repo, store.txManager, logger)
	sessionService := serviceAuth.NewSessionService(jwtVerifier, identityClient, logger)

	// Handlers
	flashcardHandler := handler.NewFlashcardHandler(flashcardService, logger)
	sessionHandler := handler.NewSessionHandler(sessionService, identityClient, cfg.CookieSecure, logger)
	healthHandler := handler.NewHealthHandler(store.pinger, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", healthHandler.Health)

	// Session routes
	mux.HandleFunc("POST /api/auth/session", sessionHandler.EstablishSession)
	mux.HandleFunc("DELETE /api/auth/session", sessionHandler.EndSession)
	mux.HandleFunc("GET /api/auth/me", sessionHandler.Me)

	// Flashcard routes
	mux.HandleFunc("GET /api/flashcards", flashcardHandler.ListFlashcards)
	mux.HandleFunc("POST /api/flashcards", flashcardHandler.CreateFlashcard)
	mux.HandleFunc("POST /api/flashcards/batch", flashcardHandler.CreateFlashcardsBatch) // Must come before {id} routes
	mux.HandleFunc("GET /api/flashcards/{id}", flashcardHandler.GetFlashcard)
	mux.HandleFunc("PUT /api/flashcards/{id}", flashcardHandler.ReplaceFlashcard)
	mux.HandleFunc("PATCH /api/flashcards/{id}", flashcardHandler.PatchFlashcard)
	mux.HandleFunc("DELETE /api/flashcards/{id}", flashcardHandler.DeleteFlashcard)

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Logging → Recovery → Session gate → Routes
	h = middleware.SessionGate(sessionService, cfg.CookieSecure, logger)(h)
	h = middleware.Recovery(logger)(h)
	h = middleware.RequestLogger(logger)(h)

	// CORS - Must be before the gate to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match"},
		ExposedHeaders:   []string{"Location", "ETag", "X-Created-Count"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("server shutting down")
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// openStore connects the configured flashcard backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*flashcardStore, error) {
	if cfg.StoreDriver == "sqlite" {
		db, err := sqlite.Open(cfg.SQLitePath, cfg.TablePrefix, cfg.IsDev(), logger)
		if err != nil {
			return nil, err
		}
		logger.Info("sqlite store opened", "path", cfg.SQLitePath)
		return &flashcardStore{
			repo:      sqlite.NewFlashcardRepository(db),
			txManager: db.TransactionManager(),
			pinger:    db,
			close:     func() { _ = db.Close() },
		}, nil
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		return nil, err
	}

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if cfg.IsDev() {
		if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
			pool.Close()
			return nil, err
		}
	}

	logger.Info("database connected",
		"max_conns", pool.Config().MaxConns,
		"min_conns", pool.Config().MinConns,
	)

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	return &flashcardStore{
		repo:      postgres.NewFlashcardRepository(repoConfig),
		txManager: postgres.NewTransactionManager(pool, logger),
		pinger:    pool,
		close:     pool.Close,
	}, nil
}
