package repos

import (
  "os"
  "testing"

  "gorm.io/driver/postgres"
  "gorm.io/gorm"
  gormlogger "gorm.io/gorm/logger"

  "github.com/notewise/notewise-backend/internal/logger"
  "github.com/notewise/notewise-backend/internal/types"
)

// testDB opens the database named by TEST_POSTGRES_DSN and migrates the
// schema. Tests that need a database skip when the variable is unset.
func testDB(tb testing.TB) *gorm.DB {
  tb.Helper()
  dsn := os.Getenv("TEST_POSTGRES_DSN")
  if dsn == "" {
    tb.Skip("set TEST_POSTGRES_DSN to run repo integration tests")
  }
  db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    tb.Fatalf("open postgres: %v", err)
  }
  if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
    tb.Fatalf("create extension: %v", err)
  }
  if err := db.AutoMigrate(
    &types.User{},
    &types.KnowledgeBase{},
    &types.Document{},
    &types.ChatSession{},
    &types.ChatMessage{},
  ); err != nil {
    tb.Fatalf("migrate: %v", err)
  }
  return db
}

// testTx begins a transaction that rolls back when the test finishes, so
// tests leave no rows behind.
func testTx(tb testing.TB, db *gorm.DB) *gorm.DB {
  tb.Helper()
  tx := db.Begin()
  if tx.Error != nil {
    tb.Fatalf("begin tx: %v", tx.Error)
  }
  tb.Cleanup(func() {
    _ = tx.Rollback()
  })
  return tx
}

func testLogger(tb testing.TB) *logger.Logger {
  tb.Helper()
  log, err := logger.New("development")
  if err != nil {
    tb.Fatalf("logger init: %v", err)
  }
  return log
}
