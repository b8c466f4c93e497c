package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/plugin/store/gormstore"
	registrycache "github.com/chirino/chat-service/internal/registry/cache"
	registrymigrate "github.com/chirino/chat-service/internal/registry/migrate"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ForceImport is a no-op variable that can be referenced to ensure this package's init() runs.
var ForceImport = 0

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "sqlite",
		Loader: func(ctx context.Context) (registrystore.ChatStore, error) {
			cfg := config.FromContext(ctx)
			db, err := open(cfg.DBPath)
			if err != nil {
				return nil, err
			}
			return gormstore.New(db, registrycache.FromContext(ctx)), nil
		},
	})

	registrymigrate.Register(registrymigrate.Plugin{Order: 100, Migrator: &sqliteMigrator{}})
}

var (
	openMu  sync.Mutex
	handles = map[string]*gorm.DB{}
)

// open returns a process-wide handle per database path, connecting with WAL
// journaling for concurrent readers, foreign keys on, and immediate
// transactions so writers take the write lock at BEGIN instead of racing for
// it mid-transaction. The handle is shared between the migrator and the store
// loader; an in-memory database would otherwise vanish between the two.
func open(path string) (*gorm.DB, error) {
	openMu.Lock()
	defer openMu.Unlock()
	if db, ok := handles[path]; ok {
		return db, nil
	}

	const opts = "_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared&" + opts
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?" + opts
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// A shared in-memory database disappears when its last connection
		// closes; pin a single connection so it survives pool churn.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetMaxOpenConns(1)
	}
	handles[path] = db
	return db, nil
}

type sqliteMigrator struct{}

func (m *sqliteMigrator) Name() string { return "sqlite-schema" }

func (m *sqliteMigrator) Migrate(ctx context.Context) error {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.DatastoreType != "sqlite" || !cfg.DatastoreMigrateAtStart {
		return nil
	}
	log.Info("Running migration", "name", m.Name())
	db, err := open(cfg.DBPath)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).AutoMigrate(gormstore.Models()...)
}
