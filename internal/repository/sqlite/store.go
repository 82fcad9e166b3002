// Package sqlite is a single-file flashcard store for local development,
// selected with STORE_DRIVER=sqlite. It mirrors the postgres repository's
// behavior closely enough for the service layer not to notice.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/LukePietrzyk/10DevsLukasz/internal/domain/repositories"
)

// flashcardRow is the gorm model. The table name is set per query so that
// environment prefixes work the same way as in postgres.
type flashcardRow struct {
	ID           string  `gorm:"primaryKey;size:36"`
	UserID       string  `gorm:"not null;size:36;index:idx_flashcards_user_created,priority:1;uniqueIndex:idx_flashcards_user_content,priority:1"`
	Front        string  `gorm:"not null;size:2000"`
	Back         string  `gorm:"not null;size:2000"`
	Subject      *string `gorm:"size:100"`
	Source       string  `gorm:"not null;default:manual"`
	GenerationID *string `gorm:"size:36"`
	NextReviewAt string  `gorm:"not null;size:10"`
	LastReviewAt *time.Time
	ReviewCount  int     `gorm:"not null;default:0"`
	EaseFactor   float64 `gorm:"not null;default:2.5"`
	ContentHash  string  `gorm:"not null;size:32;uniqueIndex:idx_flashcards_user_content,priority:2"`
	// Lowercased copies for search. SQLite's LOWER only folds ASCII.
	SearchFront string `gorm:"not null;default:''"`
	SearchBack  string `gorm:"not null;default:''"`
	CreatedAt    time.Time `gorm:"index:idx_flashcards_user_created,priority:2"`
	UpdatedAt    time.Time
}

// Store owns the gorm handle and table naming.
type Store struct {
	db     *gorm.DB
	table  string
	logger *slog.Logger

	// SQLite allows one writer at a time; transactions are serialized here
	// so a count-then-insert sequence cannot interleave.
	txMu sync.Mutex
}

// Open opens (creating if needed) the database file at path and migrates
// the flashcard table. Pass ":memory:" for a throwaway database.
func Open(path, tablePrefix string, debug bool, logger *slog.Logger) (*Store, error) {
	level := gormLogger.Silent
	if debug {
		level = gormLogger.Warn
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if path == ":memory:" {
		// Every new connection to :memory: is a fresh empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s := &Store{
		db:     db,
		table:  tablePrefix + "flashcards",
		logger: logger,
	}

	if err := db.Table(s.table).AutoMigrate(&flashcardRow{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", s.table, err)
	}
	if err := s.backfillSearchColumns(); err != nil {
		return nil, err
	}

	return s, nil
}

// backfillSearchColumns fills the search columns of rows written before
// they existed.
func (s *Store) backfillSearchColumns() error {
	var rows []flashcardRow
	err := s.db.Table(s.table).
		Select("id", "front", "back").
		Where("search_front = '' OR search_back = ''").
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("find rows to backfill: %w", err)
	}

	for _, row := range rows {
		err := s.db.Table(s.table).Where("id = ?", row.ID).Updates(map[string]any{
			"search_front": searchText(row.Front),
			"search_back":  searchText(row.Back),
		}).Error
		if err != nil {
			return fmt.Errorf("backfill %s: %w", row.ID, err)
		}
	}
	if len(rows) > 0 {
		s.logger.Info("backfilled search columns", "rows", len(rows))
	}
	return nil
}

func searchText(s string) string {
	return strings.ToLower(s)
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type txContextKey struct{}

// conn returns the transaction stored in ctx, or the base handle.
func (s *Store) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return tx.Table(s.table)
	}
	return s.db.WithContext(ctx).Table(s.table)
}

// TransactionManager returns a repositories.TransactionManager bound to s.
func (s *Store) TransactionManager() repositories.TransactionManager {
	return &transactionManager{store: s}
}

type transactionManager struct {
	store *Store
}

func (tm *transactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if _, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	tm.store.txMu.Lock()
	defer tm.store.txMu.Unlock()

	return tm.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}
