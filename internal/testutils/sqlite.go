package testutils

import (
	"path/filepath"
	"testing"

	"github.com/linskybing/club-intake/internal/config/db"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLite returns a migrated file-backed sqlite database in t.TempDir().
func NewSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: silentLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(gormDB); err != nil {
		t.Fatal(err)
	}
	return gormDB
}
