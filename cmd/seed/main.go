package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/LukePietrzyk/10DevsLukasz/internal/auth"
	"github.com/LukePietrzyk/10DevsLukasz/internal/config"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/models"
	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/services"
	"github.com/LukePietrzyk/10DevsLukasz/internal/repository/postgres"
	"github.com/LukePietrzyk/10DevsLukasz/internal/service"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only set up schema, don't seed flashcards")
	clearData := flag.Bool("clear-data", false, "Delete the demo user's flashcards (keep schema)")
	resetUser := flag.Bool("reset-user", false, "Delete the demo account and its flashcards, then create it again")
	email := flag.String("email", "demo@fiszki.local", "Demo account email")
	password := flag.String("password", "demo-password", "Demo account password (used when the account is created)")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && (*dropTables || *clearData || *resetUser) {
		log.Fatalf("🚫 BLOCKED: Cannot run destructive operations (--drop-tables, --clear-data or --reset-user) in production environment")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	switch {
	case *clearData:
		log.Printf("🧹 Clearing demo flashcards (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	case *schemaOnly:
		log.Printf("🏗️  Setting up schema only (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	default:
		log.Printf("🌱 Seeding database (environment: %s, prefix: %s)", cfg.Environment, cfg.TablePrefix)
	}

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Println("🗑️  Dropping all tables...")
		if err := postgres.DropTables(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
		log.Printf("  ✓ Dropped %s", tables.Flashcards)
	}

	log.Println("📋 Ensuring database schema is up to date...")
	if err := postgres.EnsureSchema(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	log.Println("✅ Schema ready")

	if *schemaOnly {
		log.Println("✅ Schema setup complete (schema-only mode)")
		return
	}

	if cfg.SupabaseServiceKey == "" {
		log.Fatalf("SUPABASE_SERVICE_KEY is required to manage the demo account")
	}
	admin := auth.NewAdminClient(cfg.SupabaseURL, cfg.SupabaseServiceKey)

	if *resetUser {
		if err := deleteDemoUser(ctx, admin, pool, tables, *email); err != nil {
			log.Fatalf("Failed to reset demo user: %v", err)
		}
	}

	userID, err := ensureDemoUser(ctx, admin, *email, *password, !*clearData)
	if err != nil {
		log.Fatalf("Failed to resolve demo user: %v", err)
	}

	log.Println("⚠️  Clearing existing demo flashcards...")
	removed, err := postgres.DeleteUserFlashcards(ctx, pool, tables, userID)
	if err != nil {
		log.Fatalf("Failed to clear flashcards: %v", err)
	}
	log.Printf("  ✓ Removed %d flashcards", removed)

	if *clearData {
		log.Println("✅ Data cleared successfully")
		return
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	flashcardService := service.NewFlashcardService(
		postgres.NewFlashcardRepository(repoConfig),
		postgres.NewTransactionManager(pool, logger),
		logger,
	)

	log.Println("📝 Seeding flashcards...")
	resp, err := flashcardService.CreateFlashcardsBatch(ctx, userID, &services.BatchCreateRequest{
		Flashcards: seedFlashcards(),
	})
	if err != nil {
		log.Fatalf("❌ Failed to create flashcards: %v", err)
	}
	for i, card := range resp.Flashcards {
		log.Printf("✅ Created flashcard %d/%d: %s (ID: %s)", i+1, resp.Created, card.Front, card.ID)
	}

	log.Printf("🎉 Seeding complete! Log in as %s", *email)
}

// ensureDemoUser returns the demo account id, creating the account when
// create is set and it does not exist yet.
func ensureDemoUser(ctx context.Context, admin *auth.AdminClient, email, password string, create bool) (string, error) {
	userID, err := admin.FindUserIDByEmail(ctx, email)
	if err == nil {
		log.Printf("👤 Using existing demo user %s (ID: %s)", email, userID)
		return userID, nil
	}
	if !errors.Is(err, auth.ErrUserNotFound) || !create {
		return "", err
	}

	userID, err = admin.CreateUser(ctx, email, password, map[string]interface{}{"seeded": true})
	if err != nil {
		return "", err
	}
	log.Printf("👤 Created demo user %s (ID: %s)", email, userID)
	return userID, nil
}

// deleteDemoUser removes the demo account and the cards it owned. A missing
// account is not an error.
func deleteDemoUser(ctx context.Context, admin *auth.AdminClient, db postgres.DBTX, tables *postgres.TableNames, email string) error {
	userID, err := admin.FindUserIDByEmail(ctx, email)
	if errors.Is(err, auth.ErrUserNotFound) {
		log.Printf("👤 Demo user %s does not exist, nothing to reset", email)
		return nil
	}
	if err != nil {
		return err
	}

	removed, err := postgres.DeleteUserFlashcards(ctx, db, tables, userID)
	if err != nil {
		return err
	}
	if err := admin.DeleteUserByEmail(ctx, email); err != nil {
		return err
	}
	log.Printf("🗑️  Deleted demo user %s and %d flashcards", email, removed)
	return nil
}

func seedFlashcards() []services.CreateFlashcardRequest {
	geo := stringPtr("Geografia")
	bio := stringPtr("Biologia")
	hist := stringPtr("Historia")
	prog := stringPtr("Programowanie")

	return []services.CreateFlashcardRequest{
		{Front: "Stolica Polski", Back: "Warszawa", Subject: geo, Source: models.SourceManual},
		{Front: "Najdłuższa rzeka w Polsce", Back: "Wisła (ok. 1047 km)", Subject: geo, Source: models.SourceManual},
		{Front: "Najwyższy szczyt Polski", Back: "Rysy (2499 m n.p.m.)", Subject: geo, Source: models.SourceManual},
		{Front: "Czym jest fotosynteza?", Back: "Proces, w którym rośliny wytwarzają glukozę z dwutlenku węgla i wody przy udziale światła.", Subject: bio, Source: models.SourceManual},
		{Front: "Organellum odpowiedzialne za oddychanie komórkowe", Back: "Mitochondrium", Subject: bio, Source: models.SourceManual},
		{Front: "Rok chrztu Polski", Back: "966", Subject: hist, Source: models.SourceManual},
		{Front: "Rok uchwalenia Konstytucji 3 Maja", Back: "1791", Subject: hist, Source: models.SourceManual},
		{Front: "Co zwraca len() dla kanału w Go?", Back: "Liczbę elementów oczekujących w buforze kanału.", Subject: prog, Source: models.SourceManual},
		{Front: "Co oznacza skrót HTTP 409?", Back: "Conflict: żądanie koliduje z bieżącym stanem zasobu.", Subject: prog, Source: models.SourceManual},
		{Front: "Jak brzmi zasada DRY?", Back: "Don't Repeat Yourself: każda wiedza powinna mieć jedną reprezentację.", Source: models.SourceManual},
	}
}

// stringPtr returns a pointer to a string
func stringPtr(s string) *string {
	return &s
}
