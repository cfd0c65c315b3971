package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/clipforge-backend/internal/logger"
	"github.com/yungbote/clipforge-backend/internal/repos"
)

type Repos struct {
	User       repos.UserRepo
	Video      repos.VideoRepo
	Job        repos.JobRepo
	Transcript repos.TranscriptRepo
	Candidate  repos.CandidateRepo
	Render     repos.RenderRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:       repos.NewUserRepo(db, log),
		Video:      repos.NewVideoRepo(db, log),
		Job:        repos.NewJobRepo(db, log),
		Transcript: repos.NewTranscriptRepo(db, log),
		Candidate:  repos.NewCandidateRepo(db, log),
		Render:     repos.NewRenderRepo(db, log),
	}
}
