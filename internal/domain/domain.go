package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Job lifecycle. Terminal states are absorbing: once a job is completed,
// failed, or cancelled no further status writes are accepted.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

const (
	JobKindAnalyze = "analyze"
	JobKindRender  = "render"
)

func IsTerminalStatus(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PwHash    string    `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (User) TableName() string { return "users" }

// Video is an immutable source descriptor. DurationSeconds and Resolution are
// filled exactly once, by the analyzer after probing; nothing else mutates it.
type Video struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerID         uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title           string    `gorm:"size:500" json:"title"`
	SourceBlobKey   string    `gorm:"type:text;not null" json:"source_blob_key"`
	DurationSeconds float64   `gorm:"column:duration_seconds" json:"duration_seconds"`
	Resolution      string    `gorm:"size:50" json:"resolution"`
	CreatedAt       time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (Video) TableName() string { return "videos" }

type Job struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	VideoID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"video_id"`
	Kind      string         `gorm:"size:50;not null;index" json:"kind"`
	Status    string         `gorm:"size:50;not null;default:pending;index" json:"status"`
	Progress  int            `gorm:"not null;default:0" json:"progress"`
	Logs      datatypes.JSON `gorm:"type:jsonb" json:"logs"`
	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Job) TableName() string { return "jobs" }

// Word is one entry of a transcript's word-level timing sequence.
// Invariant: StartS <= EndS, and StartS is non-decreasing across the sequence.
type Word struct {
	Word       string  `json:"word"`
	StartS     float64 `json:"start_s"`
	EndS       float64 `json:"end_s"`
	Confidence float64 `json:"confidence"`
}

type Transcript struct {
	ID      uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	VideoID uuid.UUID      `gorm:"type:uuid;not null;index" json:"video_id"`
	Lang    string         `gorm:"size:10" json:"lang"`
	Words   datatypes.JSON `gorm:"type:jsonb;not null" json:"words"`
}

func (Transcript) TableName() string { return "transcripts" }

// Candidate is a scored clip interval. Invariants:
// 0 <= StartS < EndS <= video duration, and the length is inside
// [clip_min_s, clip_max_s] of the analysis config that produced it.
type Candidate struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	VideoID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"video_id"`
	StartS       float64        `gorm:"not null" json:"start_s"`
	EndS         float64        `gorm:"not null" json:"end_s"`
	Score        float64        `gorm:"not null;index" json:"score"`
	Features     datatypes.JSON `gorm:"type:jsonb" json:"features"`
	ThumbBlobKey string         `gorm:"type:text" json:"thumb_blob_key"`
}

func (Candidate) TableName() string { return "candidates" }

type Render struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
	Params    datatypes.JSON `gorm:"type:jsonb;not null" json:"params"`
	Status    string         `gorm:"size:50;not null;default:pending;index" json:"status"`
	Progress  int            `gorm:"not null;default:0" json:"progress"`
	Files     datatypes.JSON `gorm:"type:jsonb" json:"files"`
	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Render) TableName() string { return "renders" }
