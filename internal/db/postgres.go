package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/yungbote/clipforge-backend/internal/domain"
	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "clipforge", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := s.db.AutoMigrate(
		&domain.User{},
		&domain.Video{},
		&domain.Job{},
		&domain.Transcript{},
		&domain.Candidate{},
		&domain.Render{},
	); err != nil {
		return err
	}

	// A video owns its jobs, transcripts, and candidates; deleting the video
	// deletes them. Renders reference candidates by id inside params/files and
	// deliberately carry no FK to them.
	fks := []struct {
		name, sql string
	}{
		{"fk_videos_owner_id", `ALTER TABLE "videos" ADD CONSTRAINT "fk_videos_owner_id" FOREIGN KEY ("owner_id") REFERENCES "users"("id") ON DELETE CASCADE`},
		{"fk_jobs_video_id", `ALTER TABLE "jobs" ADD CONSTRAINT "fk_jobs_video_id" FOREIGN KEY ("video_id") REFERENCES "videos"("id") ON DELETE CASCADE`},
		{"fk_transcripts_video_id", `ALTER TABLE "transcripts" ADD CONSTRAINT "fk_transcripts_video_id" FOREIGN KEY ("video_id") REFERENCES "videos"("id") ON DELETE CASCADE`},
		{"fk_candidates_video_id", `ALTER TABLE "candidates" ADD CONSTRAINT "fk_candidates_video_id" FOREIGN KEY ("video_id") REFERENCES "videos"("id") ON DELETE CASCADE`},
		{"fk_renders_owner_id", `ALTER TABLE "renders" ADD CONSTRAINT "fk_renders_owner_id" FOREIGN KEY ("owner_id") REFERENCES "users"("id") ON DELETE CASCADE`},
	}
	for _, fk := range fks {
		var exists int64
		s.db.Raw(`SELECT COUNT(1) FROM pg_constraint WHERE conname = ?`, fk.name).Scan(&exists)
		if exists > 0 {
			continue
		}
		if err := s.db.Exec(fk.sql).Error; err != nil {
			return fmt.Errorf("add %s: %w", fk.name, err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
