// Package playlist owns the lifecycle of persistent group playlists: one
// active platform-hosted playlist per (group, platform), created on demand,
// reconciled to each finished round, and superseded when the upstream copy
// disappears.
package playlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Timi0217/mixtape-sub001/internal/match"
	"github.com/Timi0217/mixtape-sub001/internal/platform"
	"github.com/Timi0217/mixtape-sub001/internal/retry"
	"github.com/Timi0217/mixtape-sub001/internal/util"
	"github.com/Timi0217/mixtape-sub001/pkg/domain"
	"github.com/Timi0217/mixtape-sub001/pkg/store"
)

// ErrNoEligibleOwner means no group member holds a usable credential on the
// platform, so no playlist can be created there.
var ErrNoEligibleOwner = errors.New("playlist: no member with a usable credential")

// TokenSource is the credential surface the manager needs.
type TokenSource interface {
	GetValidUserToken(ctx context.Context, userID string, p domain.Platform) (string, error)
	RefreshUserToken(ctx context.Context, userID string, p domain.Platform) (domain.MusicAccount, error)
}

// Resolver maps songs to platform track ids.
type Resolver interface {
	ResolveAll(ctx context.Context, songs []domain.Song, target domain.Platform, userToken string, threshold float64) ([]string, []match.Failure)
}

// EnsureResult reports the per-platform outcome of an ensure pass. Failure on
// one platform never blocks the others, so both maps can be populated at once.
type EnsureResult struct {
	Playlists map[domain.Platform]domain.GroupPlaylist
	Errors    map[domain.Platform]error
}

// SyncResult reports the per-platform outcome of pushing a round.
type SyncResult struct {
	RoundID         string
	SubmissionCount int
	MemberCount     int
	Pushed          map[domain.Platform]int
	MatchFailures   map[domain.Platform][]match.Failure
	Errors          map[domain.Platform]error
}

// Ok reports whether every platform push succeeded.
func (r SyncResult) Ok() bool { return len(r.Errors) == 0 }

// Manager coordinates playlist creation and reconciliation. Platform work for
// one group runs sequentially per platform; cross-group concurrency is the
// scheduler's business.
type Manager struct {
	store      store.Store
	registry   *platform.Registry
	tokens     TokenSource
	resolver   Resolver
	pushPolicy retry.Policy
	now        func() time.Time
}

// NewManager builds a Manager.
func NewManager(s store.Store, registry *platform.Registry, tokens TokenSource, resolver Resolver) *Manager {
	return &Manager{
		store:      s,
		registry:   registry,
		tokens:     tokens,
		resolver:   resolver,
		pushPolicy: retry.PlaylistPush,
		now:        time.Now,
	}
}

// EnsureGroupPlaylists guarantees an active, still-existing playlist on every
// platform the group's members use. Missing playlists are created under the
// best available member credential; upstream-deleted ones are superseded and
// recreated. requestingUserID gets first claim as creator and may be empty.
func (m *Manager) EnsureGroupPlaylists(ctx context.Context, groupID, requestingUserID string) (EnsureResult, error) {
	group, found, err := m.store.GetGroup(groupID)
	if err != nil {
		return EnsureResult{}, err
	}
	if !found {
		return EnsureResult{}, fmt.Errorf("playlist: group %s not found", groupID)
	}
	members, err := m.store.ListGroupMembers(groupID)
	if err != nil {
		return EnsureResult{}, err
	}

	result := EnsureResult{
		Playlists: make(map[domain.Platform]domain.GroupPlaylist),
		Errors:    make(map[domain.Platform]error),
	}
	for _, p := range m.targetPlatforms(members) {
		pl, err := m.ensurePlatform(ctx, group, members, requestingUserID, p)
		if err != nil {
			slog.Error("ensure playlist failed",
				"group_id", groupID, "platform", p, "error", err)
			result.Errors[p] = err
			continue
		}
		result.Playlists[p] = pl
	}
	return result, nil
}

// targetPlatforms is the set of platforms the group should have a playlist
// on. A member with a stated preference counts toward that platform only;
// otherwise every platform the member has linked counts.
func (m *Manager) targetPlatforms(members []domain.GroupMember) []domain.Platform {
	want := make(map[domain.Platform]bool)
	for _, member := range members {
		accounts, err := m.store.ListMusicAccountsByUser(member.UserID)
		if err != nil || len(accounts) == 0 {
			continue
		}
		linked := make(map[domain.Platform]bool, len(accounts))
		for _, a := range accounts {
			linked[a.Platform] = true
		}
		if prefs, found, err := m.store.GetPreferences(member.UserID); err == nil && found && linked[prefs.PreferredPlatform] {
			want[prefs.PreferredPlatform] = true
			continue
		}
		for p := range linked {
			want[p] = true
		}
	}
	var out []domain.Platform
	for _, p := range domain.Platforms() {
		if want[p] {
			out = append(out, p)
		}
	}
	return out
}

func (m *Manager) ensurePlatform(ctx context.Context, group domain.Group, members []domain.GroupMember, requestingUserID string, p domain.Platform) (domain.GroupPlaylist, error) {
	client, ok := m.registry.Client(p)
	if !ok {
		return domain.GroupPlaylist{}, fmt.Errorf("playlist: no client for platform %q", p)
	}

	active, found, err := m.store.GetActivePlaylist(group.ID, p)
	if err != nil {
		return domain.GroupPlaylist{}, err
	}
	if found {
		gone, err := m.upstreamGone(ctx, client, active)
		if err != nil {
			// Could not reach the platform to check. Keep the row rather
			// than churn playlists on a transient outage.
			slog.Warn("playlist existence check failed, keeping current row",
				"playlist_id", active.ID, "platform", p, "error", err)
			return active, nil
		}
		if !gone {
			return active, nil
		}
		slog.Info("active playlist deleted upstream, superseding",
			"playlist_id", active.ID, "group_id", group.ID, "platform", p)
		if err := m.store.SupersedePlaylist(active.ID); err != nil {
			return domain.GroupPlaylist{}, err
		}
	}
	return m.createPlatformPlaylist(ctx, client, group, members, requestingUserID, p)
}

func (m *Manager) upstreamGone(ctx context.Context, client platform.Client, pl domain.GroupPlaylist) (bool, error) {
	token, err := m.tokens.GetValidUserToken(ctx, pl.OwnerUserID, pl.Platform)
	if err != nil {
		return false, err
	}
	exists, err := client.ValidateExists(ctx, token, pl.PlatformPlaylistID)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// createPlatformPlaylist tries candidate owners in priority order until one
// credential works. A duplicate-key insert means a concurrent caller already
// created the row; the upstream playlist made here is deleted and the winner
// is returned.
func (m *Manager) createPlatformPlaylist(ctx context.Context, client platform.Client, group domain.Group, members []domain.GroupMember, requestingUserID string, p domain.Platform) (domain.GroupPlaylist, error) {
	name := fmt.Sprintf("%s Mixtape", group.Name)
	description := fmt.Sprintf("Daily songs from %s, one pick per member per day.", group.Name)

	var lastErr error
	for _, ownerID := range m.ownerCandidates(group, members, requestingUserID, p) {
		token, err := m.tokens.GetValidUserToken(ctx, ownerID, p)
		if err != nil {
			lastErr = err
			continue
		}
		created, err := client.CreatePlaylist(ctx, token, name, description)
		if err != nil {
			slog.Warn("playlist creation failed for candidate owner",
				"group_id", group.ID, "platform", p, "owner_id", ownerID, "error", err)
			lastErr = err
			continue
		}
		pl := domain.GroupPlaylist{
			ID:                 util.NewID(),
			GroupID:            group.ID,
			Platform:           p,
			State:              domain.PlaylistActive,
			PlatformPlaylistID: created.ID,
			PlaylistURL:        created.URL,
			PlaylistName:       created.Name,
			OwnerUserID:        ownerID,
			CreatedAt:          m.now().UTC(),
		}
		err = m.store.CreatePlaylist(pl)
		if errors.Is(err, store.ErrDuplicate) {
			if delErr := client.Delete(ctx, token, created.ID); delErr != nil {
				slog.Warn("failed to remove playlist orphaned by a concurrent create",
					"platform", p, "platform_playlist_id", created.ID, "error", delErr)
			}
			winner, found, getErr := m.store.GetActivePlaylist(group.ID, p)
			if getErr != nil {
				return domain.GroupPlaylist{}, getErr
			}
			if !found {
				return domain.GroupPlaylist{}, fmt.Errorf("playlist: duplicate create for group %s on %s but no active row", group.ID, p)
			}
			return winner, nil
		}
		if err != nil {
			return domain.GroupPlaylist{}, err
		}
		slog.Info("group playlist created",
			"group_id", group.ID, "platform", p, "playlist_id", pl.ID, "owner_id", ownerID)
		return pl, nil
	}
	if lastErr != nil {
		return domain.GroupPlaylist{}, fmt.Errorf("%w on %s: %v", ErrNoEligibleOwner, p, lastErr)
	}
	return domain.GroupPlaylist{}, fmt.Errorf("%w on %s", ErrNoEligibleOwner, p)
}

// ownerCandidates orders members by creator priority: the requesting user,
// then the group admin, then everyone else in join order. Only members with a
// linked account on the platform qualify.
func (m *Manager) ownerCandidates(group domain.Group, members []domain.GroupMember, requestingUserID string, p domain.Platform) []string {
	eligible := func(userID string) bool {
		_, found, err := m.store.GetMusicAccount(userID, p)
		return err == nil && found
	}
	seen := make(map[string]bool)
	var out []string
	add := func(userID string) {
		if userID == "" || seen[userID] || !eligible(userID) {
			return
		}
		seen[userID] = true
		out = append(out, userID)
	}
	add(requestingUserID)
	add(group.AdminUserID)
	for _, member := range members {
		add(member.UserID)
	}
	return out
}

// UpdateGroupPlaylistsForRound reconciles every active playlist of the
// round's group to the round's submissions. A day with no submissions clears
// the playlists. Each platform is pushed independently; one failing platform
// never blocks the rest.
func (m *Manager) UpdateGroupPlaylistsForRound(ctx context.Context, roundID string) (SyncResult, error) {
	round, found, err := m.store.GetRound(roundID)
	if err != nil {
		return SyncResult{}, err
	}
	if !found {
		return SyncResult{}, fmt.Errorf("playlist: round %s not found", roundID)
	}
	members, err := m.store.ListGroupMembers(round.GroupID)
	if err != nil {
		return SyncResult{}, err
	}
	submissions, err := m.store.ListSubmissionsByRound(roundID)
	if err != nil {
		return SyncResult{}, err
	}
	songs, err := m.loadSongs(submissions)
	if err != nil {
		return SyncResult{}, err
	}
	playlists, err := m.store.ListActivePlaylistsByGroup(round.GroupID)
	if err != nil {
		return SyncResult{}, err
	}

	result := SyncResult{
		RoundID:         roundID,
		SubmissionCount: len(submissions),
		MemberCount:     len(members),
		Pushed:          make(map[domain.Platform]int),
		MatchFailures:   make(map[domain.Platform][]match.Failure),
		Errors:          make(map[domain.Platform]error),
	}
	for _, pl := range playlists {
		pushed, failures, err := m.pushPlatform(ctx, pl, songs)
		if err != nil {
			slog.Error("round push failed",
				"round_id", roundID, "group_id", round.GroupID, "platform", pl.Platform, "error", err)
			result.Errors[pl.Platform] = err
			continue
		}
		result.Pushed[pl.Platform] = pushed
		if len(failures) > 0 {
			result.MatchFailures[pl.Platform] = failures
			slog.Warn("some submissions did not match on platform",
				"round_id", roundID, "platform", pl.Platform, "failed", len(failures), "pushed", pushed)
		}
	}
	return result, nil
}

func (m *Manager) loadSongs(submissions []domain.Submission) ([]domain.Song, error) {
	songs := make([]domain.Song, 0, len(submissions))
	for _, sub := range submissions {
		song, found, err := m.store.GetSong(sub.SongID)
		if err != nil {
			return nil, err
		}
		if !found {
			slog.Warn("submission references missing song",
				"submission_id", sub.ID, "song_id", sub.SongID)
			continue
		}
		songs = append(songs, song)
	}
	return songs, nil
}

// pushPlatform resolves tracks and overwrites one playlist. An auth-shaped
// push failure triggers one inline token refresh before the retry continues.
func (m *Manager) pushPlatform(ctx context.Context, pl domain.GroupPlaylist, songs []domain.Song) (int, []match.Failure, error) {
	client, ok := m.registry.Client(pl.Platform)
	if !ok {
		return 0, nil, fmt.Errorf("playlist: no client for platform %q", pl.Platform)
	}
	token, err := m.tokens.GetValidUserToken(ctx, pl.OwnerUserID, pl.Platform)
	if err != nil {
		return 0, nil, fmt.Errorf("playlist: owner token for %s: %w", pl.Platform, err)
	}

	trackIDs, failures := m.resolver.ResolveAll(ctx, songs, pl.Platform, token, match.ReconcileThreshold)

	err = m.pushPolicy.Do(ctx, func(ctx context.Context, attempt int) error {
		pushErr := client.ReplaceTracks(ctx, token, pl.PlatformPlaylistID, trackIDs)
		if pushErr == nil {
			return nil
		}
		if platform.IsAuthError(pushErr) {
			if account, refreshErr := m.tokens.RefreshUserToken(ctx, pl.OwnerUserID, pl.Platform); refreshErr == nil {
				token = account.AccessToken
			} else {
				slog.Warn("inline token refresh failed during push",
					"playlist_id", pl.ID, "platform", pl.Platform, "error", refreshErr)
			}
		}
		return pushErr
	})
	if err != nil {
		return 0, failures, fmt.Errorf("playlist: push %d tracks to %s: %w", len(trackIDs), pl.Platform, err)
	}
	if err := m.store.TouchPlaylist(pl.ID, m.now()); err != nil {
		slog.Warn("failed to stamp playlist update time", "playlist_id", pl.ID, "error", err)
	}
	return len(trackIDs), failures, nil
}

// RenameGroupPlaylists pushes a new group name to every active playlist.
// Platforms that cannot rename keep their old display name upstream but the
// stored name still changes.
func (m *Manager) RenameGroupPlaylists(ctx context.Context, groupID, groupName string) error {
	playlists, err := m.store.ListActivePlaylistsByGroup(groupID)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s Mixtape", groupName)
	var firstErr error
	for _, pl := range playlists {
		client, ok := m.registry.Client(pl.Platform)
		if !ok {
			continue
		}
		token, err := m.tokens.GetValidUserToken(ctx, pl.OwnerUserID, pl.Platform)
		if err == nil {
			err = client.Rename(ctx, token, pl.PlatformPlaylistID, name)
		}
		if err != nil {
			slog.Error("playlist rename failed",
				"playlist_id", pl.ID, "platform", pl.Platform, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := m.store.UpdatePlaylistName(pl.ID, name); err != nil {
			slog.Warn("failed to persist playlist name", "playlist_id", pl.ID, "error", err)
		}
	}
	return firstErr
}

// TeardownGroupPlaylists supersedes every active playlist of a deleted group,
// removing the upstream copies where the platform allows it.
func (m *Manager) TeardownGroupPlaylists(ctx context.Context, groupID string) error {
	playlists, err := m.store.ListActivePlaylistsByGroup(groupID)
	if err != nil {
		return err
	}
	var firstErr error
	for _, pl := range playlists {
		if client, ok := m.registry.Client(pl.Platform); ok {
			token, err := m.tokens.GetValidUserToken(ctx, pl.OwnerUserID, pl.Platform)
			if err == nil {
				err = client.Delete(ctx, token, pl.PlatformPlaylistID)
			}
			if err != nil {
				slog.Warn("upstream playlist removal failed, superseding anyway",
					"playlist_id", pl.ID, "platform", pl.Platform, "error", err)
			}
		}
		if err := m.store.SupersedePlaylist(pl.ID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
