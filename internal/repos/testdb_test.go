package repos

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/clipforge-backend/internal/logger"
)

// testDB opens an isolated in-memory database with the schema created by
// hand; sqlite does not accept the postgres column defaults the models
// declare, and the repos fill ids themselves anyway.
func testDB(t *testing.T) (*gorm.DB, *logger.Logger) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	schema := []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY, email TEXT UNIQUE, pw_hash TEXT, created_at DATETIME)`,
		`CREATE TABLE videos (
			id TEXT PRIMARY KEY, owner_id TEXT, title TEXT, source_blob_key TEXT,
			duration_seconds REAL, resolution TEXT, created_at DATETIME)`,
		`CREATE TABLE jobs (
			id TEXT PRIMARY KEY, video_id TEXT, kind TEXT, status TEXT DEFAULT 'pending',
			progress INTEGER DEFAULT 0, logs TEXT, created_at DATETIME, updated_at DATETIME)`,
		`CREATE TABLE transcripts (
			id TEXT PRIMARY KEY, video_id TEXT, lang TEXT, words TEXT)`,
		`CREATE TABLE candidates (
			id TEXT PRIMARY KEY, video_id TEXT, start_s REAL, end_s REAL,
			score REAL, features TEXT, thumb_blob_key TEXT)`,
		`CREATE TABLE renders (
			id TEXT PRIMARY KEY, owner_id TEXT, params TEXT, status TEXT DEFAULT 'pending',
			progress INTEGER DEFAULT 0, files TEXT, created_at DATETIME, updated_at DATETIME)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return db, log
}
