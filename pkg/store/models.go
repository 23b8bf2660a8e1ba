package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. Unique indexes here are load-bearing:
// the engine's idempotency guarantees rely on the database rejecting
// duplicate rows rather than on application-level locks.
type UserModel struct {
	ID          string `gorm:"primaryKey"`
	Email       string `gorm:"uniqueIndex;not null"`
	DisplayName string
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time
}

type MusicAccountModel struct {
	ID           string `gorm:"primaryKey"`
	UserID       string `gorm:"not null;uniqueIndex:idx_music_accounts_user_platform"`
	Platform     string `gorm:"not null;uniqueIndex:idx_music_accounts_user_platform"`
	AccessToken  string `gorm:"not null"`
	RefreshToken string
	ExpiresAt    time.Time `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type EmailAliasModel struct {
	AliasEmail string    `gorm:"primaryKey"`
	UserID     string    `gorm:"not null;index"`
	Platform   string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

type MusicPreferencesModel struct {
	UserID            string `gorm:"primaryKey"`
	PreferredPlatform string `gorm:"not null"`
}

type GroupModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	AdminUserID string `gorm:"not null;index"`
	InviteCode  string `gorm:"uniqueIndex;not null"`
	MaxMembers  int
	IsPublic    bool
	CreatedAt   time.Time `gorm:"not null"`
}

type GroupMemberModel struct {
	GroupID  string    `gorm:"primaryKey"`
	UserID   string    `gorm:"primaryKey;index"`
	JoinedAt time.Time `gorm:"not null"`
}

type DailyRoundModel struct {
	ID              string    `gorm:"primaryKey"`
	GroupID         string    `gorm:"not null;uniqueIndex:idx_daily_rounds_group_date"`
	Date            string    `gorm:"not null;uniqueIndex:idx_daily_rounds_group_date;index"`
	DeadlineAt      time.Time `gorm:"not null"`
	Status          string    `gorm:"not null;index"`
	SubmissionCount int
	MemberCount     int
	ProcessError    string
	ProcessedAt     *time.Time
	CreatedAt       time.Time `gorm:"not null"`
}

type SubmissionModel struct {
	ID          string    `gorm:"primaryKey"`
	RoundID     string    `gorm:"not null;uniqueIndex:idx_submissions_round_user"`
	UserID      string    `gorm:"not null;uniqueIndex:idx_submissions_round_user;index"`
	SongID      string    `gorm:"not null"`
	Comment     string
	SubmittedAt time.Time `gorm:"not null"`
}

type SongModel struct {
	ID          string `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Artist      string `gorm:"not null"`
	Album       string
	DurationSec int
	PlatformIDs datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"not null"`
	UpdatedAt   time.Time
}

// GroupPlaylistModel carries the active/superseded state tag. The
// one-active-row-per-(group,platform) invariant is enforced by a partial
// unique index created in the migration block, not by application checks.
type GroupPlaylistModel struct {
	ID                 string `gorm:"primaryKey"`
	GroupID            string `gorm:"not null;index:idx_group_playlists_group"`
	Platform           string `gorm:"not null"`
	State              string `gorm:"not null"`
	PlatformPlaylistID string `gorm:"not null"`
	PlaylistURL        string
	PlaylistName       string
	OwnerUserID        string `gorm:"not null"`
	LastUpdated        *time.Time
	CreatedAt          time.Time `gorm:"not null"`
}
