package store

import (
	"context"
	"fmt"
	"os"

	"github.com/go-monolith/mono"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module owns the durable store lifecycle. The backend is selected by the
// STORE_BACKEND environment variable: "sqlite" (default) opens a GORM/SQLite
// database at DB_PATH, "memory" keeps everything in-process.
type Module struct {
	backend string
	dbPath  string
	db      *gorm.DB
	store   Store
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new store module from environment configuration.
func NewModule() *Module {
	backend := os.Getenv("STORE_BACKEND")
	if backend == "" {
		backend = "sqlite"
	}
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "chat.db"
	}
	m := &Module{
		backend: backend,
		dbPath:  dbPath,
	}
	if backend == "memory" {
		m.store = NewMemoryStore()
	}
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Store returns the configured Store. For the sqlite backend it is only
// usable after Start; modules registered after this one see it initialized.
func (m *Module) Store() Store {
	return m.store
}

// Start opens the database connection and runs migrations.
func (m *Module) Start(_ context.Context) error {
	if m.backend == "memory" {
		return nil
	}
	if m.backend != "sqlite" {
		return fmt.Errorf("unknown store backend: %q", m.backend)
	}

	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "true" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	gs, err := NewGormStore(db)
	if err != nil {
		return err
	}
	m.store = gs
	return nil
}

// Stop gracefully closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Health performs a health check on the store backend.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.backend == "memory" {
		return mono.HealthStatus{
			Healthy: true,
			Message: "operational",
			Details: map[string]any{"backend": "memory"},
		}
	}

	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"backend": "sqlite",
			"path":    m.dbPath,
		},
	}
}
