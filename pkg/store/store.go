package store

import (
	"errors"
	"time"

	"github.com/Timi0217/mixtape-sub001/pkg/domain"
)

// ErrDuplicate is returned when a create hits a unique constraint. Callers
// treat it as success-via-idempotency and re-query for the winning row.
var ErrDuplicate = errors.New("store: duplicate key")

// ErrInvalidMergeTarget is returned when a merge names a missing or identical
// pair of users.
var ErrInvalidMergeTarget = errors.New("store: invalid merge target")

// Store is the persistence boundary for the round and playlist engine.
// Lookups return (value, found, error); creates guarded by unique constraints
// return ErrDuplicate on conflict.
type Store interface {
	// Users and identity.
	SaveUser(u domain.User) error
	GetUser(id string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByAlias(aliasEmail string) (domain.User, bool, error)
	ListEmailAliasesByUser(userID string) ([]domain.EmailAlias, error)

	// Music accounts.
	SaveMusicAccount(a domain.MusicAccount) error
	GetMusicAccount(userID string, p domain.Platform) (domain.MusicAccount, bool, error)
	ListMusicAccountsByUser(userID string) ([]domain.MusicAccount, error)
	ListExpiringMusicAccounts(before time.Time) ([]domain.MusicAccount, error)

	// Preferences.
	SavePreferences(p domain.MusicPreferences) error
	GetPreferences(userID string) (domain.MusicPreferences, bool, error)

	// Groups and membership.
	SaveGroup(g domain.Group) error
	GetGroup(id string) (domain.Group, bool, error)
	ListGroups() ([]domain.Group, error)
	AddGroupMember(m domain.GroupMember) error
	ListGroupMembers(groupID string) ([]domain.GroupMember, error)
	ListGroupMembersByUser(userID string) ([]domain.GroupMember, error)

	// Daily rounds. CreateRound returns ErrDuplicate when a round already
	// exists for (group, date). FinishRound transitions only rows still in
	// the active status, keeping terminal states irreversible.
	CreateRound(r domain.DailyRound) error
	GetRound(id string) (domain.DailyRound, bool, error)
	GetRoundByDate(groupID, date string) (domain.DailyRound, bool, error)
	ListRoundsByStatusAndDate(status domain.RoundStatus, date string) ([]domain.DailyRound, error)
	FinishRound(id string, status domain.RoundStatus, submissionCount, memberCount int, processErr string, processedAt time.Time) error
	DeleteRoundsBefore(date string) (int64, error)

	// Submissions.
	SaveSubmission(s domain.Submission) error
	ListSubmissionsByRound(roundID string) ([]domain.Submission, error)

	// Songs.
	SaveSong(s domain.Song) error
	GetSong(id string) (domain.Song, bool, error)
	SetSongPlatformID(songID string, p domain.Platform, platformID string) error

	// Group playlists. CreatePlaylist returns ErrDuplicate when an active
	// row for (group, platform) already exists.
	CreatePlaylist(pl domain.GroupPlaylist) error
	GetActivePlaylist(groupID string, p domain.Platform) (domain.GroupPlaylist, bool, error)
	ListActivePlaylistsByGroup(groupID string) ([]domain.GroupPlaylist, error)
	SupersedePlaylist(id string) error
	TouchPlaylist(id string, at time.Time) error
	UpdatePlaylistName(id, name string) error

	// MergeUsers folds secondary into primary in one all-or-nothing
	// transaction: accounts, memberships, admin ownership, submissions,
	// preferences, alias record, and deletion of the secondary user.
	MergeUsers(primaryID, secondaryID string, p domain.Platform, fresh domain.MusicAccount) error
}
