package domain

import "time"

// Platform identifies a supported streaming platform. The set is closed:
// adding a platform means adding a constant here and a client in
// internal/platform.
type Platform string

const (
	PlatformSpotify    Platform = "spotify"
	PlatformAppleMusic Platform = "apple-music"
)

// Platforms lists every supported platform.
func Platforms() []Platform {
	return []Platform{PlatformSpotify, PlatformAppleMusic}
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformSpotify, PlatformAppleMusic:
		return true
	}
	return false
}

// RoundStatus is the persisted lifecycle state of a daily round.
// Transitions are monotonic: active moves to exactly one terminal state.
type RoundStatus string

const (
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
	RoundPartial   RoundStatus = "partial"
	RoundFailed    RoundStatus = "failed"
)

// PlaylistState tags a group playlist row. At most one row per
// (group, platform) is Active; superseded rows are kept for audit history
// and never transition back.
type PlaylistState string

const (
	PlaylistActive     PlaylistState = "active"
	PlaylistSuperseded PlaylistState = "superseded"
)

// User is one account identity. Email may be a real address, a synthesized
// platform-identifier address for Apple Music users, or a phone number.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MusicAccount holds one user's credential for one platform.
// Apple Music accounts carry no refresh token.
type MusicAccount struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Platform     Platform  `json:"platform"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expiresAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Expired reports whether the stored access token is past its recorded expiry.
func (a MusicAccount) Expired(now time.Time) bool {
	return !a.ExpiresAt.After(now)
}

// EmailAlias maps a formerly distinct identity email onto a surviving user
// after a merge, so the user can still be found by that identity.
type EmailAlias struct {
	AliasEmail string    `json:"aliasEmail"`
	UserID     string    `json:"userId"`
	Platform   Platform  `json:"platform"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MusicPreferences records a user's preferred platform. At most one row per user.
type MusicPreferences struct {
	UserID            string   `json:"userId"`
	PreferredPlatform Platform `json:"preferredPlatform"`
}

// Group is a mixtape group.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	AdminUserID string    `json:"adminUserId"`
	InviteCode  string    `json:"inviteCode"`
	MaxMembers  int       `json:"maxMembers"`
	IsPublic    bool      `json:"isPublic"`
	CreatedAt   time.Time `json:"createdAt"`
}

// GroupMember is the (group, user) join entity.
type GroupMember struct {
	GroupID  string    `json:"groupId"`
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// DailyRound is one day's submission window for a group. Exactly one round
// exists per group per calendar date. SubmissionCount, MemberCount and
// ProcessError record the processing inputs and outcome separately from the
// persisted status string.
type DailyRound struct {
	ID              string      `json:"id"`
	GroupID         string      `json:"groupId"`
	Date            string      `json:"date"` // YYYY-MM-DD, UTC
	DeadlineAt      time.Time   `json:"deadlineAt"`
	Status          RoundStatus `json:"status"`
	SubmissionCount int         `json:"submissionCount"`
	MemberCount     int         `json:"memberCount"`
	ProcessError    string      `json:"processError,omitempty"`
	ProcessedAt     *time.Time  `json:"processedAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// Submission is one user's song for one round. Resubmitting overwrites the
// song, comment and timestamp.
type Submission struct {
	ID          string    `json:"id"`
	RoundID     string    `json:"roundId"`
	UserID      string    `json:"userId"`
	SongID      string    `json:"songId"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Song is a platform-independent song identity. PlatformIDs maps platform
// name to that platform's track identifier; entries are added opportunistically
// whenever a cross-platform match succeeds.
type Song struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Artist      string            `json:"artist"`
	Album       string            `json:"album,omitempty"`
	DurationSec int               `json:"durationSec,omitempty"`
	PlatformIDs map[string]string `json:"platformIds"`
}

// PlatformID returns the song's track identifier on p, if known.
func (s Song) PlatformID(p Platform) (string, bool) {
	id, ok := s.PlatformIDs[string(p)]
	return id, ok && id != ""
}

// GroupPlaylist is the persistent platform-hosted playlist for one group on
// one platform. OwnerUserID is the account whose credential owns the playlist
// upstream.
type GroupPlaylist struct {
	ID                 string        `json:"id"`
	GroupID            string        `json:"groupId"`
	Platform           Platform      `json:"platform"`
	State              PlaylistState `json:"state"`
	PlatformPlaylistID string        `json:"platformPlaylistId"`
	PlaylistURL        string        `json:"playlistUrl"`
	PlaylistName       string        `json:"playlistName"`
	OwnerUserID        string        `json:"ownerUserId"`
	LastUpdated        *time.Time    `json:"lastUpdated,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
}
