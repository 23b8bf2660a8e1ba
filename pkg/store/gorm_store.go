package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Timi0217/mixtape-sub001/pkg/domain"
)

const migrateLockID int64 = 61086108

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{}, &MusicAccountModel{}, &EmailAliasModel{}, &MusicPreferencesModel{},
			&GroupModel{}, &GroupMemberModel{}, &DailyRoundModel{}, &SubmissionModel{},
			&SongModel{}, &GroupPlaylistModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		// Partial unique index: at most one active playlist per (group, platform).
		if err := tx.Exec(`
			CREATE UNIQUE INDEX IF NOT EXISTS idx_group_playlists_active
			ON group_playlist_models (group_id, platform)
			WHERE state = 'active';
		`).Error; err != nil {
			return fmt.Errorf("create active playlist index: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "display_name", "updated_at"}),
	}).Create(&model).Error
}

// GetUser returns a user by ID.
func (s *GormStore) GetUser(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by primary email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByAlias resolves a user through a merged-in identity email.
func (s *GormStore) GetUserByAlias(aliasEmail string) (domain.User, bool, error) {
	var alias EmailAliasModel
	if err := s.db.First(&alias, "alias_email = ?", aliasEmail).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return s.GetUser(alias.UserID)
}

// ListEmailAliasesByUser returns alias identities owned by a user.
func (s *GormStore) ListEmailAliasesByUser(userID string) ([]domain.EmailAlias, error) {
	var models []EmailAliasModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.EmailAlias, 0, len(models))
	for _, m := range models {
		res = append(res, aliasFromModel(m))
	}
	return res, nil
}

// SaveMusicAccount upserts a per-(user, platform) credential row.
func (s *GormStore) SaveMusicAccount(a domain.MusicAccount) error {
	model := accountToModel(a)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at", "updated_at"}),
	}).Create(&model).Error
}

// GetMusicAccount returns one user's credential for one platform.
func (s *GormStore) GetMusicAccount(userID string, p domain.Platform) (domain.MusicAccount, bool, error) {
	var model MusicAccountModel
	if err := s.db.Where("user_id = ? AND platform = ?", userID, string(p)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.MusicAccount{}, false, nil
		}
		return domain.MusicAccount{}, false, err
	}
	return accountFromModel(model), true, nil
}

// ListMusicAccountsByUser returns every platform credential a user holds.
func (s *GormStore) ListMusicAccountsByUser(userID string) ([]domain.MusicAccount, error) {
	var models []MusicAccountModel
	if err := s.db.Where("user_id = ?", userID).Order("platform ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.MusicAccount, 0, len(models))
	for _, m := range models {
		res = append(res, accountFromModel(m))
	}
	return res, nil
}

// ListExpiringMusicAccounts returns refreshable accounts expiring before the cutoff.
func (s *GormStore) ListExpiringMusicAccounts(before time.Time) ([]domain.MusicAccount, error) {
	var models []MusicAccountModel
	if err := s.db.
		Where("expires_at < ? AND refresh_token <> ''", before.UTC()).
		Order("expires_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.MusicAccount, 0, len(models))
	for _, m := range models {
		res = append(res, accountFromModel(m))
	}
	return res, nil
}

// SavePreferences upserts a user's platform preference.
func (s *GormStore) SavePreferences(p domain.MusicPreferences) error {
	model := MusicPreferencesModel{UserID: p.UserID, PreferredPlatform: string(p.PreferredPlatform)}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"preferred_platform"}),
	}).Create(&model).Error
}

// GetPreferences returns a user's platform preference.
func (s *GormStore) GetPreferences(userID string) (domain.MusicPreferences, bool, error) {
	var model MusicPreferencesModel
	if err := s.db.First(&model, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.MusicPreferences{}, false, nil
		}
		return domain.MusicPreferences{}, false, err
	}
	return domain.MusicPreferences{UserID: model.UserID, PreferredPlatform: domain.Platform(model.PreferredPlatform)}, true, nil
}

// SaveGroup upserts a group.
func (s *GormStore) SaveGroup(g domain.Group) error {
	model := groupToModel(g)
	return translateErr(s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "admin_user_id", "max_members", "is_public"}),
	}).Create(&model).Error)
}

// GetGroup returns a group by ID.
func (s *GormStore) GetGroup(id string) (domain.Group, bool, error) {
	var model GroupModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Group{}, false, nil
		}
		return domain.Group{}, false, err
	}
	return groupFromModel(model), true, nil
}

// ListGroups returns all groups ordered by creation time.
func (s *GormStore) ListGroups() ([]domain.Group, error) {
	var models []GroupModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Group, 0, len(models))
	for _, m := range models {
		res = append(res, groupFromModel(m))
	}
	return res, nil
}

// AddGroupMember inserts a membership row; duplicate joins surface ErrDuplicate.
func (s *GormStore) AddGroupMember(m domain.GroupMember) error {
	model := GroupMemberModel{GroupID: m.GroupID, UserID: m.UserID, JoinedAt: m.JoinedAt}
	return translateErr(s.db.Create(&model).Error)
}

// ListGroupMembers returns the members of one group.
func (s *GormStore) ListGroupMembers(groupID string) ([]domain.GroupMember, error) {
	var models []GroupMemberModel
	if err := s.db.Where("group_id = ?", groupID).Order("joined_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.GroupMember, 0, len(models))
	for _, m := range models {
		res = append(res, domain.GroupMember{GroupID: m.GroupID, UserID: m.UserID, JoinedAt: m.JoinedAt})
	}
	return res, nil
}

// ListGroupMembersByUser returns every membership a user holds.
func (s *GormStore) ListGroupMembersByUser(userID string) ([]domain.GroupMember, error) {
	var models []GroupMemberModel
	if err := s.db.Where("user_id = ?", userID).Order("joined_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.GroupMember, 0, len(models))
	for _, m := range models {
		res = append(res, domain.GroupMember{GroupID: m.GroupID, UserID: m.UserID, JoinedAt: m.JoinedAt})
	}
	return res, nil
}

// CreateRound inserts a round; an existing (group, date) row surfaces ErrDuplicate.
func (s *GormStore) CreateRound(r domain.DailyRound) error {
	model := roundToModel(r)
	return translateErr(s.db.Create(&model).Error)
}

// GetRound returns a round by ID.
func (s *GormStore) GetRound(id string) (domain.DailyRound, bool, error) {
	var model DailyRoundModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DailyRound{}, false, nil
		}
		return domain.DailyRound{}, false, err
	}
	return roundFromModel(model), true, nil
}

// GetRoundByDate returns the round for one group on one calendar date.
func (s *GormStore) GetRoundByDate(groupID, date string) (domain.DailyRound, bool, error) {
	var model DailyRoundModel
	if err := s.db.Where("group_id = ? AND date = ?", groupID, date).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DailyRound{}, false, nil
		}
		return domain.DailyRound{}, false, err
	}
	return roundFromModel(model), true, nil
}

// ListRoundsByStatusAndDate returns rounds in a status for a calendar date.
func (s *GormStore) ListRoundsByStatusAndDate(status domain.RoundStatus, date string) ([]domain.DailyRound, error) {
	var models []DailyRoundModel
	if err := s.db.Where("status = ? AND date = ?", string(status), date).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.DailyRound, 0, len(models))
	for _, m := range models {
		res = append(res, roundFromModel(m))
	}
	return res, nil
}

// FinishRound transitions an active round into a terminal status. Rows already
// terminal are left untouched, keeping the status monotonic even when two
// scheduler instances process the same round.
func (s *GormStore) FinishRound(id string, status domain.RoundStatus, submissionCount, memberCount int, processErr string, processedAt time.Time) error {
	return s.db.Model(&DailyRoundModel{}).
		Where("id = ? AND status = ?", id, string(domain.RoundActive)).
		Updates(map[string]any{
			"status":           string(status),
			"submission_count": submissionCount,
			"member_count":     memberCount,
			"process_error":    processErr,
			"processed_at":     processedAt.UTC(),
		}).Error
}

// DeleteRoundsBefore hard-deletes rounds dated before the cutoff, cascading
// to their submissions.
func (s *GormStore) DeleteRoundsBefore(date string) (int64, error) {
	var deleted int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			DELETE FROM submission_models
			WHERE round_id IN (SELECT id FROM daily_round_models WHERE date < ?)
		`, date).Error; err != nil {
			return err
		}
		res := tx.Where("date < ?", date).Delete(&DailyRoundModel{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}

// SaveSubmission upserts one user's submission for one round.
func (s *GormStore) SaveSubmission(sub domain.Submission) error {
	model := submissionToModel(sub)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "round_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"song_id", "comment", "submitted_at"}),
	}).Create(&model).Error
}

// ListSubmissionsByRound returns a round's submissions in submission order.
func (s *GormStore) ListSubmissionsByRound(roundID string) ([]domain.Submission, error) {
	var models []SubmissionModel
	if err := s.db.Where("round_id = ?", roundID).Order("submitted_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Submission, 0, len(models))
	for _, m := range models {
		res = append(res, submissionFromModel(m))
	}
	return res, nil
}

// SaveSong upserts a song.
func (s *GormStore) SaveSong(song domain.Song) error {
	model := songToModel(song)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "artist", "album", "duration_sec", "platform_ids", "updated_at"}),
	}).Create(&model).Error
}

// GetSong returns a song by ID.
func (s *GormStore) GetSong(id string) (domain.Song, bool, error) {
	var model SongModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Song{}, false, nil
		}
		return domain.Song{}, false, err
	}
	return songFromModel(model), true, nil
}

// SetSongPlatformID writes one discovered platform track id into the song's
// cross-platform identity map.
func (s *GormStore) SetSongPlatformID(songID string, p domain.Platform, platformID string) error {
	platformID = strings.TrimSpace(platformID)
	if platformID == "" {
		return errors.New("platform id required")
	}
	return s.db.Model(&SongModel{}).
		Where("id = ?", songID).
		Updates(map[string]any{
			"platform_ids": gorm.Expr(
				"COALESCE(platform_ids, '{}'::jsonb) || jsonb_build_object(?::text, ?::text)",
				string(p), platformID,
			),
			"updated_at": time.Now().UTC(),
		}).Error
}

// CreatePlaylist inserts an active playlist row. The partial unique index
// rejects a second active row for the same (group, platform); that conflict
// surfaces as ErrDuplicate so callers can re-fetch the winner.
func (s *GormStore) CreatePlaylist(pl domain.GroupPlaylist) error {
	model := playlistToModel(pl)
	return translateErr(s.db.Create(&model).Error)
}

// GetActivePlaylist returns the single active playlist for (group, platform).
func (s *GormStore) GetActivePlaylist(groupID string, p domain.Platform) (domain.GroupPlaylist, bool, error) {
	var model GroupPlaylistModel
	err := s.db.Where("group_id = ? AND platform = ? AND state = ?",
		groupID, string(p), string(domain.PlaylistActive)).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.GroupPlaylist{}, false, nil
		}
		return domain.GroupPlaylist{}, false, err
	}
	return playlistFromModel(model), true, nil
}

// ListActivePlaylistsByGroup returns every active playlist for a group.
func (s *GormStore) ListActivePlaylistsByGroup(groupID string) ([]domain.GroupPlaylist, error) {
	var models []GroupPlaylistModel
	if err := s.db.Where("group_id = ? AND state = ?", groupID, string(domain.PlaylistActive)).
		Order("platform ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.GroupPlaylist, 0, len(models))
	for _, m := range models {
		res = append(res, playlistFromModel(m))
	}
	return res, nil
}

// SupersedePlaylist flips a row out of the active state. The row itself is
// kept; a replacement is always a new row.
func (s *GormStore) SupersedePlaylist(id string) error {
	return s.db.Model(&GroupPlaylistModel{}).
		Where("id = ? AND state = ?", id, string(domain.PlaylistActive)).
		Update("state", string(domain.PlaylistSuperseded)).Error
}

// TouchPlaylist stamps a successful reconciliation time.
func (s *GormStore) TouchPlaylist(id string, at time.Time) error {
	return s.db.Model(&GroupPlaylistModel{}).
		Where("id = ?", id).
		Update("last_updated", at.UTC()).Error
}

// UpdatePlaylistName records the display name after a rename.
func (s *GormStore) UpdatePlaylistName(id, name string) error {
	return s.db.Model(&GroupPlaylistModel{}).
		Where("id = ?", id).
		Update("playlist_name", name).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:          m.ID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func accountToModel(a domain.MusicAccount) MusicAccountModel {
	return MusicAccountModel{
		ID:           a.ID,
		UserID:       a.UserID,
		Platform:     string(a.Platform),
		AccessToken:  a.AccessToken,
		RefreshToken: a.RefreshToken,
		ExpiresAt:    a.ExpiresAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func accountFromModel(m MusicAccountModel) domain.MusicAccount {
	return domain.MusicAccount{
		ID:           m.ID,
		UserID:       m.UserID,
		Platform:     domain.Platform(m.Platform),
		AccessToken:  m.AccessToken,
		RefreshToken: m.RefreshToken,
		ExpiresAt:    m.ExpiresAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func aliasFromModel(m EmailAliasModel) domain.EmailAlias {
	return domain.EmailAlias{
		AliasEmail: m.AliasEmail,
		UserID:     m.UserID,
		Platform:   domain.Platform(m.Platform),
		CreatedAt:  m.CreatedAt,
	}
}

func groupToModel(g domain.Group) GroupModel {
	return GroupModel{
		ID:          g.ID,
		Name:        g.Name,
		AdminUserID: g.AdminUserID,
		InviteCode:  g.InviteCode,
		MaxMembers:  g.MaxMembers,
		IsPublic:    g.IsPublic,
		CreatedAt:   g.CreatedAt,
	}
}

func groupFromModel(m GroupModel) domain.Group {
	return domain.Group{
		ID:          m.ID,
		Name:        m.Name,
		AdminUserID: m.AdminUserID,
		InviteCode:  m.InviteCode,
		MaxMembers:  m.MaxMembers,
		IsPublic:    m.IsPublic,
		CreatedAt:   m.CreatedAt,
	}
}

func roundToModel(r domain.DailyRound) DailyRoundModel {
	return DailyRoundModel{
		ID:              r.ID,
		GroupID:         r.GroupID,
		Date:            r.Date,
		DeadlineAt:      r.DeadlineAt,
		Status:          string(r.Status),
		SubmissionCount: r.SubmissionCount,
		MemberCount:     r.MemberCount,
		ProcessError:    r.ProcessError,
		ProcessedAt:     r.ProcessedAt,
		CreatedAt:       r.CreatedAt,
	}
}

func roundFromModel(m DailyRoundModel) domain.DailyRound {
	return domain.DailyRound{
		ID:              m.ID,
		GroupID:         m.GroupID,
		Date:            m.Date,
		DeadlineAt:      m.DeadlineAt,
		Status:          domain.RoundStatus(m.Status),
		SubmissionCount: m.SubmissionCount,
		MemberCount:     m.MemberCount,
		ProcessError:    m.ProcessError,
		ProcessedAt:     m.ProcessedAt,
		CreatedAt:       m.CreatedAt,
	}
}

func submissionToModel(s domain.Submission) SubmissionModel {
	return SubmissionModel{
		ID:          s.ID,
		RoundID:     s.RoundID,
		UserID:      s.UserID,
		SongID:      s.SongID,
		Comment:     s.Comment,
		SubmittedAt: s.SubmittedAt,
	}
}

func submissionFromModel(m SubmissionModel) domain.Submission {
	return domain.Submission{
		ID:          m.ID,
		RoundID:     m.RoundID,
		UserID:      m.UserID,
		SongID:      m.SongID,
		Comment:     m.Comment,
		SubmittedAt: m.SubmittedAt,
	}
}

func songToModel(s domain.Song) SongModel {
	ids := datatypes.JSONMap{}
	for k, v := range s.PlatformIDs {
		ids[k] = v
	}
	return SongModel{
		ID:          s.ID,
		Title:       s.Title,
		Artist:      s.Artist,
		Album:       s.Album,
		DurationSec: s.DurationSec,
		PlatformIDs: ids,
	}
}

func songFromModel(m SongModel) domain.Song {
	ids := make(map[string]string, len(m.PlatformIDs))
	for k, v := range m.PlatformIDs {
		if sv, ok := v.(string); ok && sv != "" {
			ids[k] = sv
		}
	}
	return domain.Song{
		ID:          m.ID,
		Title:       m.Title,
		Artist:      m.Artist,
		Album:       m.Album,
		DurationSec: m.DurationSec,
		PlatformIDs: ids,
	}
}

func playlistToModel(p domain.GroupPlaylist) GroupPlaylistModel {
	return GroupPlaylistModel{
		ID:                 p.ID,
		GroupID:            p.GroupID,
		Platform:           string(p.Platform),
		State:              string(p.State),
		PlatformPlaylistID: p.PlatformPlaylistID,
		PlaylistURL:        p.PlaylistURL,
		PlaylistName:       p.PlaylistName,
		OwnerUserID:        p.OwnerUserID,
		LastUpdated:        p.LastUpdated,
		CreatedAt:          p.CreatedAt,
	}
}

func playlistFromModel(m GroupPlaylistModel) domain.GroupPlaylist {
	return domain.GroupPlaylist{
		ID:                 m.ID,
		GroupID:            m.GroupID,
		Platform:           domain.Platform(m.Platform),
		State:              domain.PlaylistState(m.State),
		PlatformPlaylistID: m.PlatformPlaylistID,
		PlaylistURL:        m.PlaylistURL,
		PlaylistName:       m.PlaylistName,
		OwnerUserID:        m.OwnerUserID,
		LastUpdated:        m.LastUpdated,
		CreatedAt:          m.CreatedAt,
	}
}
