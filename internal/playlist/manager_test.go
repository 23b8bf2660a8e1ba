package playlist

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Timi0217/mixtape-sub001/internal/match"
	"github.com/Timi0217/mixtape-sub001/internal/platform"
	"github.com/Timi0217/mixtape-sub001/internal/retry"
	"github.com/Timi0217/mixtape-sub001/pkg/domain"
	"github.com/Timi0217/mixtape-sub001/pkg/store"
)

type fakeClient struct {
	p domain.Platform

	createErr    error
	created      []platform.Playlist
	createCalls  int
	createHook   func()
	exists       bool
	existsErr    error
	replaceErr   []error
	replaceCalls [][]string
	replaceToken []string
	deleted      []string
	renamed      map[string]string
}

func newFakeClient(p domain.Platform) *fakeClient {
	return &fakeClient{p: p, exists: true, renamed: make(map[string]string)}
}

func (f *fakeClient) Platform() domain.Platform { return f.p }

func (f *fakeClient) CreatePlaylist(_ context.Context, _ string, name, _ string) (platform.Playlist, error) {
	f.createCalls++
	if f.createHook != nil {
		f.createHook()
	}
	if f.createErr != nil {
		return platform.Playlist{}, f.createErr
	}
	pl := platform.Playlist{
		ID:   fmt.Sprintf("%s-upstream-%d", f.p, f.createCalls),
		Name: name,
		URL:  "https://example.com/" + string(f.p),
	}
	f.created = append(f.created, pl)
	return pl, nil
}

func (f *fakeClient) ValidateExists(context.Context, string, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeClient) ReplaceTracks(_ context.Context, token, _ string, trackIDs []string) error {
	f.replaceCalls = append(f.replaceCalls, trackIDs)
	f.replaceToken = append(f.replaceToken, token)
	if len(f.replaceErr) > 0 {
		err := f.replaceErr[0]
		f.replaceErr = f.replaceErr[1:]
		return err
	}
	return nil
}

func (f *fakeClient) Rename(_ context.Context, _ string, playlistID, name string) error {
	f.renamed[playlistID] = name
	return nil
}

func (f *fakeClient) Delete(_ context.Context, _ string, playlistID string) error {
	f.deleted = append(f.deleted, playlistID)
	return nil
}

func (f *fakeClient) SearchTracks(context.Context, string, string, string, string, int) ([]platform.Track, error) {
	return nil, nil
}

type fakeTokens struct {
	tokens    map[string]string
	refreshed int
}

func tokenKey(userID string, p domain.Platform) string { return userID + "/" + string(p) }

func (f *fakeTokens) GetValidUserToken(_ context.Context, userID string, p domain.Platform) (string, error) {
	tok, ok := f.tokens[tokenKey(userID, p)]
	if !ok {
		return "", errors.New("no token")
	}
	return tok, nil
}

func (f *fakeTokens) RefreshUserToken(_ context.Context, userID string, p domain.Platform) (domain.MusicAccount, error) {
	f.refreshed++
	fresh := "refreshed-" + tokenKey(userID, p)
	f.tokens[tokenKey(userID, p)] = fresh
	return domain.MusicAccount{UserID: userID, Platform: p, AccessToken: fresh}, nil
}

// knownIDResolver resolves only songs that already carry a platform id.
type knownIDResolver struct{}

func (knownIDResolver) ResolveAll(_ context.Context, songs []domain.Song, target domain.Platform, _ string, _ float64) ([]string, []match.Failure) {
	var ids []string
	var failures []match.Failure
	for _, song := range songs {
		if id, ok := song.PlatformID(target); ok {
			ids = append(ids, id)
			continue
		}
		failures = append(failures, match.Failure{SongID: song.ID, Err: match.ErrNoMatch})
	}
	return ids, failures
}

type fixture struct {
	store   *store.MemoryStore
	spotify *fakeClient
	apple   *fakeClient
	tokens  *fakeTokens
	manager *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := store.NewMemoryStore()
	spotify := newFakeClient(domain.PlatformSpotify)
	apple := newFakeClient(domain.PlatformAppleMusic)
	tokens := &fakeTokens{tokens: make(map[string]string)}
	registry := platform.NewRegistry(spotify, apple)
	manager := NewManager(s, registry, tokens, knownIDResolver{})
	manager.pushPolicy = retry.Policy{Name: "test", MaxAttempts: 3, Backoff: retry.Linear(time.Millisecond)}
	return &fixture{
		store:   s,
		spotify: spotify,
		apple:   apple,
		tokens:  tokens,
		manager: manager,
	}
}

// seedGroup creates a group with an admin on Spotify and a second member on
// Apple Music.
func (f *fixture) seedGroup(t *testing.T) domain.Group {
	t.Helper()
	group := domain.Group{ID: "g-1", Name: "Road Trip", AdminUserID: "u-admin"}
	if err := f.store.SaveGroup(group); err != nil {
		t.Fatal(err)
	}
	for _, m := range []struct {
		userID string
		p      domain.Platform
	}{
		{"u-admin", domain.PlatformSpotify},
		{"u-member", domain.PlatformAppleMusic},
	} {
		if err := f.store.SaveUser(domain.User{ID: m.userID, Email: m.userID + "@example.com"}); err != nil {
			t.Fatal(err)
		}
		if err := f.store.AddGroupMember(domain.GroupMember{GroupID: group.ID, UserID: m.userID}); err != nil {
			t.Fatal(err)
		}
		if err := f.store.SaveMusicAccount(domain.MusicAccount{
			ID: "acc-" + m.userID, UserID: m.userID, Platform: m.p,
			AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour),
		}); err != nil {
			t.Fatal(err)
		}
		f.tokens.tokens[tokenKey(m.userID, m.p)] = "tok-" + m.userID
	}
	return group
}

func TestEnsureCreatesPlaylistPerMemberPlatform(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)

	result, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, "")
	if err != nil {
		t.Fatalf("EnsureGroupPlaylists() error = %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("errors = %v", result.Errors)
	}
	if len(result.Playlists) != 2 {
		t.Fatalf("playlists = %d, want 2", len(result.Playlists))
	}

	sp := result.Playlists[domain.PlatformSpotify]
	if sp.OwnerUserID != "u-admin" {
		t.Fatalf("spotify owner = %q, want admin", sp.OwnerUserID)
	}
	if sp.PlaylistName != "Road Trip Mixtape" {
		t.Fatalf("name = %q", sp.PlaylistName)
	}
	am := result.Playlists[domain.PlatformAppleMusic]
	if am.OwnerUserID != "u-member" {
		t.Fatalf("apple owner = %q, want u-member", am.OwnerUserID)
	}

	stored, err := f.store.ListActivePlaylistsByGroup(group.ID)
	if err != nil || len(stored) != 2 {
		t.Fatalf("stored playlists = %d, %v", len(stored), err)
	}
}

func TestEnsureIsIdempotentWhenPlaylistAlive(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)

	first, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if first.Playlists[domain.PlatformSpotify].ID != second.Playlists[domain.PlatformSpotify].ID {
		t.Fatal("second ensure created a new playlist")
	}
	if f.spotify.createCalls != 1 {
		t.Fatalf("create calls = %d, want 1", f.spotify.createCalls)
	}
}

func TestEnsureSupersedesAndRecreatesWhenUpstreamGone(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)

	first, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	oldID := first.Playlists[domain.PlatformSpotify].ID

	f.spotify.exists = false
	second, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	newID := second.Playlists[domain.PlatformSpotify].ID
	if newID == oldID {
		t.Fatal("deleted playlist not replaced")
	}

	active, found, err := f.store.GetActivePlaylist(group.ID, domain.PlatformSpotify)
	if err != nil || !found {
		t.Fatalf("GetActivePlaylist() = %v, %v", found, err)
	}
	if active.ID != newID {
		t.Fatalf("active = %s, want %s", active.ID, newID)
	}
}

func TestEnsureKeepsRowWhenExistenceCheckFails(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)

	first, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, "")
	if err != nil {
		t.Fatal(err)
	}

	f.spotify.existsErr = errors.New("spotify down")
	second, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if second.Playlists[domain.PlatformSpotify].ID != first.Playlists[domain.PlatformSpotify].ID {
		t.Fatal("playlist churned on a transient validation failure")
	}
}

func TestEnsureRequestingUserWinsCreatorPriority(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)
	// Give the non-admin member a Spotify account too.
	if err := f.store.SaveMusicAccount(domain.MusicAccount{
		ID: "acc-member-sp", UserID: "u-member", Platform: domain.PlatformSpotify,
		AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	f.tokens.tokens[tokenKey("u-member", domain.PlatformSpotify)] = "tok-member-sp"

	result, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, "u-member")
	if err != nil {
		t.Fatal(err)
	}
	if got := result.Playlists[domain.PlatformSpotify].OwnerUserID; got != "u-member" {
		t.Fatalf("owner = %q, want requesting user", got)
	}
}

func TestEnsureDuplicateInsertReturnsWinnerAndCleansUp(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)

	winner := domain.GroupPlaylist{
		ID: "pl-winner", GroupID: group.ID, Platform: domain.PlatformSpotify,
		State: domain.PlaylistActive, PlatformPlaylistID: "upstream-winner",
		OwnerUserID: "u-admin",
	}
	// A concurrent caller lands its row while ours is still talking to the
	// platform API.
	f.spotify.createHook = func() {
		if err := f.store.CreatePlaylist(winner); err != nil {
			t.Fatal(err)
		}
	}

	result, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if got := result.Playlists[domain.PlatformSpotify].ID; got != "pl-winner" {
		t.Fatalf("playlist = %q, want pl-winner", got)
	}
	if len(f.spotify.deleted) != 1 {
		t.Fatalf("orphan deletions = %d, want 1", len(f.spotify.deleted))
	}
}

func TestEnsureNoEligibleOwner(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)
	delete(f.tokens.tokens, tokenKey("u-admin", domain.PlatformSpotify))

	result, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if !errors.Is(result.Errors[domain.PlatformSpotify], ErrNoEligibleOwner) {
		t.Fatalf("spotify error = %v, want ErrNoEligibleOwner", result.Errors[domain.PlatformSpotify])
	}
	if _, ok := result.Playlists[domain.PlatformAppleMusic]; !ok {
		t.Fatal("apple music playlist missing, platforms must fail independently")
	}
}

func (f *fixture) seedRound(t *testing.T, group domain.Group, submissions int) domain.DailyRound {
	t.Helper()
	round := domain.DailyRound{
		ID: "r-1", GroupID: group.ID, Date: "2026-08-27",
		Status: domain.RoundActive, DeadlineAt: time.Now(),
	}
	if err := f.store.CreateRound(round); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < submissions; i++ {
		song := domain.Song{
			ID:    fmt.Sprintf("song-%d", i),
			Title: fmt.Sprintf("Song %d", i), Artist: "Artist",
			PlatformIDs: map[string]string{
				"spotify":     fmt.Sprintf("sp-%d", i),
				"apple-music": fmt.Sprintf("am-%d", i),
			},
		}
		if err := f.store.SaveSong(song); err != nil {
			t.Fatal(err)
		}
		if err := f.store.SaveSubmission(domain.Submission{
			ID: fmt.Sprintf("sub-%d", i), RoundID: round.ID,
			UserID: fmt.Sprintf("u-%d", i), SongID: song.ID,
		}); err != nil {
			t.Fatal(err)
		}
	}
	return round
}

func TestUpdateRoundPushesResolvedTracks(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)
	if _, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, ""); err != nil {
		t.Fatal(err)
	}
	round := f.seedRound(t, group, 2)

	result, err := f.manager.UpdateGroupPlaylistsForRound(context.Background(), round.ID)
	if err != nil {
		t.Fatalf("UpdateGroupPlaylistsForRound() error = %v", err)
	}
	if !result.Ok() {
		t.Fatalf("errors = %v", result.Errors)
	}
	if result.SubmissionCount != 2 || result.MemberCount != 2 {
		t.Fatalf("counts = %d/%d", result.SubmissionCount, result.MemberCount)
	}
	if got := result.Pushed[domain.PlatformSpotify]; got != 2 {
		t.Fatalf("spotify pushed = %d, want 2", got)
	}
	if len(f.spotify.replaceCalls) != 1 || len(f.spotify.replaceCalls[0]) != 2 {
		t.Fatalf("spotify replace calls = %v", f.spotify.replaceCalls)
	}

	active, _, _ := f.store.GetActivePlaylist(group.ID, domain.PlatformSpotify)
	if active.LastUpdated == nil {
		t.Fatal("LastUpdated not stamped")
	}
}

func TestUpdateRoundWithNoSubmissionsClearsPlaylists(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)
	if _, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, ""); err != nil {
		t.Fatal(err)
	}
	round := f.seedRound(t, group, 0)

	result, err := f.manager.UpdateGroupPlaylistsForRound(context.Background(), round.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Ok() || result.SubmissionCount != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(f.spotify.replaceCalls) != 1 || len(f.spotify.replaceCalls[0]) != 0 {
		t.Fatalf("spotify replace calls = %v, want one empty replace", f.spotify.replaceCalls)
	}
}

func TestUpdateRoundRetriesWithRefreshedTokenOnAuthError(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)
	if _, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, ""); err != nil {
		t.Fatal(err)
	}
	round := f.seedRound(t, group, 1)

	f.spotify.replaceErr = []error{
		&platform.APIError{Platform: domain.PlatformSpotify, Status: 401},
	}

	result, err := f.manager.UpdateGroupPlaylistsForRound(context.Background(), round.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Ok() {
		t.Fatalf("errors = %v", result.Errors)
	}
	if f.tokens.refreshed != 1 {
		t.Fatalf("refreshes = %d, want 1", f.tokens.refreshed)
	}
	if len(f.spotify.replaceToken) != 2 {
		t.Fatalf("push attempts = %d, want 2", len(f.spotify.replaceToken))
	}
	if got := f.spotify.replaceToken[1]; got != "refreshed-u-admin/spotify" {
		t.Fatalf("second attempt token = %q", got)
	}
}

func TestUpdateRoundIsolatesPlatformFailures(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)
	if _, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, ""); err != nil {
		t.Fatal(err)
	}
	round := f.seedRound(t, group, 1)

	boom := errors.New("spotify 500")
	f.spotify.replaceErr = []error{boom, boom, boom}

	result, err := f.manager.UpdateGroupPlaylistsForRound(context.Background(), round.ID)
	if err != nil {
		t.Fatal(err)
	}
	if result.Ok() {
		t.Fatal("expected spotify error")
	}
	if !errors.Is(result.Errors[domain.PlatformSpotify], boom) {
		t.Fatalf("spotify error = %v", result.Errors[domain.PlatformSpotify])
	}
	if got := result.Pushed[domain.PlatformAppleMusic]; got != 1 {
		t.Fatalf("apple pushed = %d, want 1", got)
	}
}

func TestUpdateRoundRecordsMatchFailures(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)
	if _, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, ""); err != nil {
		t.Fatal(err)
	}
	round := f.seedRound(t, group, 1)
	// A song with no Apple Music mapping cannot be resolved there.
	if err := f.store.SaveSong(domain.Song{
		ID: "song-unmatched", Title: "Obscure", Artist: "Band",
		PlatformIDs: map[string]string{"spotify": "sp-x"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.store.SaveSubmission(domain.Submission{
		ID: "sub-unmatched", RoundID: round.ID, UserID: "u-9", SongID: "song-unmatched",
	}); err != nil {
		t.Fatal(err)
	}

	result, err := f.manager.UpdateGroupPlaylistsForRound(context.Background(), round.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Ok() {
		t.Fatalf("errors = %v", result.Errors)
	}
	if got := result.Pushed[domain.PlatformAppleMusic]; got != 1 {
		t.Fatalf("apple pushed = %d, want 1", got)
	}
	if len(result.MatchFailures[domain.PlatformAppleMusic]) != 1 {
		t.Fatalf("apple match failures = %+v", result.MatchFailures)
	}
	if got := result.Pushed[domain.PlatformSpotify]; got != 2 {
		t.Fatalf("spotify pushed = %d, want 2", got)
	}
}

func TestRenameGroupPlaylists(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)
	result, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := f.manager.RenameGroupPlaylists(context.Background(), group.ID, "Coast Drive"); err != nil {
		t.Fatalf("RenameGroupPlaylists() error = %v", err)
	}
	sp := result.Playlists[domain.PlatformSpotify]
	if got := f.spotify.renamed[sp.PlatformPlaylistID]; got != "Coast Drive Mixtape" {
		t.Fatalf("upstream rename = %q", got)
	}
	active, _, _ := f.store.GetActivePlaylist(group.ID, domain.PlatformSpotify)
	if active.PlaylistName != "Coast Drive Mixtape" {
		t.Fatalf("stored name = %q", active.PlaylistName)
	}
}

func TestTeardownGroupPlaylists(t *testing.T) {
	f := newFixture(t)
	group := f.seedGroup(t)
	if _, err := f.manager.EnsureGroupPlaylists(context.Background(), group.ID, ""); err != nil {
		t.Fatal(err)
	}

	if err := f.manager.TeardownGroupPlaylists(context.Background(), group.ID); err != nil {
		t.Fatalf("TeardownGroupPlaylists() error = %v", err)
	}
	remaining, err := f.store.ListActivePlaylistsByGroup(group.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Fatalf("active playlists after teardown = %d, want 0", len(remaining))
	}
	if len(f.spotify.deleted) != 1 {
		t.Fatalf("spotify deletions = %d, want 1", len(f.spotify.deleted))
	}
}
