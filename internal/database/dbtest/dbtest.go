// Package dbtest opens throwaway in-memory stores for tests.
package dbtest

import (
	"testing"

	"pantry-backend/internal/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New returns a migrated in-memory sqlite store private to the test. The pool
// is capped at one connection, so code under test must use the transaction
// handle for every statement inside a transaction.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(zap.NewNop()))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate sqlite database: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}
