package rounds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Timi0217/mixtape-sub001/internal/playlist"
	"github.com/Timi0217/mixtape-sub001/pkg/domain"
	"github.com/Timi0217/mixtape-sub001/pkg/queue"
	"github.com/Timi0217/mixtape-sub001/pkg/store"
)

type fakeSyncer struct {
	results map[string]playlist.SyncResult
	errs    map[string]error
	ensured []string
}

func (f *fakeSyncer) EnsureGroupPlaylists(_ context.Context, groupID, _ string) (playlist.EnsureResult, error) {
	f.ensured = append(f.ensured, groupID)
	return playlist.EnsureResult{}, nil
}

func (f *fakeSyncer) UpdateGroupPlaylistsForRound(_ context.Context, roundID string) (playlist.SyncResult, error) {
	if err, ok := f.errs[roundID]; ok {
		return playlist.SyncResult{}, err
	}
	return f.results[roundID], nil
}

type fakeRefresher struct {
	refreshed []string
	err       error
}

func (f *fakeRefresher) RefreshUserToken(_ context.Context, userID string, p domain.Platform) (domain.MusicAccount, error) {
	if f.err != nil {
		return domain.MusicAccount{}, f.err
	}
	f.refreshed = append(f.refreshed, userID)
	return domain.MusicAccount{UserID: userID, Platform: p}, nil
}

type fakePublisher struct {
	events []queue.RoundEvent
}

func (f *fakePublisher) PublishRoundProcessed(_ context.Context, ev queue.RoundEvent) error {
	f.events = append(f.events, ev)
	return nil
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC)
}

func newScheduler(s store.Store, syncer *fakeSyncer, refresher *fakeRefresher, events *fakePublisher) *Scheduler {
	sched := NewScheduler(s, syncer, refresher, events)
	sched.now = fixedNow
	return sched
}

func TestCreateDailyRoundsIsIdempotent(t *testing.T) {
	s := store.NewMemoryStore()
	for _, id := range []string{"g-1", "g-2"} {
		if err := s.SaveGroup(domain.Group{ID: id, Name: id}); err != nil {
			t.Fatal(err)
		}
	}
	sched := newScheduler(s, &fakeSyncer{}, &fakeRefresher{}, nil)

	created, err := sched.CreateDailyRounds(context.Background())
	if err != nil {
		t.Fatalf("CreateDailyRounds() error = %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2", created)
	}

	round, found, err := s.GetRoundByDate("g-1", "2026-08-28")
	if err != nil || !found {
		t.Fatalf("GetRoundByDate() = %v, %v", found, err)
	}
	if round.Status != domain.RoundActive {
		t.Fatalf("status = %q, want active", round.Status)
	}
	want := time.Date(2026, 8, 28, 23, 0, 0, 0, time.UTC)
	if !round.DeadlineAt.Equal(want) {
		t.Fatalf("deadline = %v, want %v", round.DeadlineAt, want)
	}

	created, err = sched.CreateDailyRounds(context.Background())
	if err != nil {
		t.Fatalf("second CreateDailyRounds() error = %v", err)
	}
	if created != 0 {
		t.Fatalf("second run created = %d, want 0", created)
	}
}

func seedActiveRound(t *testing.T, s store.Store, id, groupID, date string) {
	t.Helper()
	if err := s.CreateRound(domain.DailyRound{
		ID: id, GroupID: groupID, Date: date, Status: domain.RoundActive,
	}); err != nil {
		t.Fatal(err)
	}
}

func TestProcessCompletedRoundsFinalizesYesterday(t *testing.T) {
	s := store.NewMemoryStore()
	seedActiveRound(t, s, "r-1", "g-1", "2026-08-27")
	seedActiveRound(t, s, "r-2", "g-2", "2026-08-27")
	// Today's round must be left alone.
	seedActiveRound(t, s, "r-3", "g-1", "2026-08-28")

	syncer := &fakeSyncer{
		results: map[string]playlist.SyncResult{
			"r-1": {RoundID: "r-1", SubmissionCount: 3, MemberCount: 3,
				Pushed: map[domain.Platform]int{domain.PlatformSpotify: 3}},
			"r-2": {RoundID: "r-2", SubmissionCount: 1, MemberCount: 4,
				Pushed: map[domain.Platform]int{domain.PlatformSpotify: 1}},
		},
	}
	events := &fakePublisher{}
	sched := newScheduler(s, syncer, &fakeRefresher{}, events)

	processed, err := sched.ProcessCompletedRounds(context.Background())
	if err != nil {
		t.Fatalf("ProcessCompletedRounds() error = %v", err)
	}
	if processed != 2 {
		t.Fatalf("processed = %d, want 2", processed)
	}

	r1, _, _ := s.GetRound("r-1")
	if r1.Status != domain.RoundCompleted || r1.SubmissionCount != 3 || r1.ProcessedAt == nil {
		t.Fatalf("r-1 = %+v", r1)
	}
	r2, _, _ := s.GetRound("r-2")
	if r2.Status != domain.RoundPartial || r2.SubmissionCount != 1 || r2.MemberCount != 4 {
		t.Fatalf("r-2 = %+v", r2)
	}
	r3, _, _ := s.GetRound("r-3")
	if r3.Status != domain.RoundActive {
		t.Fatalf("today's round touched: %+v", r3)
	}
	if len(events.events) != 2 {
		t.Fatalf("events = %d, want 2", len(events.events))
	}
	if len(syncer.ensured) != 2 {
		t.Fatalf("ensured groups = %v", syncer.ensured)
	}
}

func TestProcessRoundRecordsFailure(t *testing.T) {
	s := store.NewMemoryStore()
	seedActiveRound(t, s, "r-1", "g-1", "2026-08-27")
	boom := errors.New("round vanished mid-flight")
	syncer := &fakeSyncer{errs: map[string]error{"r-1": boom}}
	events := &fakePublisher{}
	sched := newScheduler(s, syncer, &fakeRefresher{}, events)

	err := sched.ProcessRound(context.Background(), "r-1")
	if !errors.Is(err, boom) {
		t.Fatalf("ProcessRound() = %v, want %v", err, boom)
	}
	round, _, _ := s.GetRound("r-1")
	if round.Status != domain.RoundFailed {
		t.Fatalf("status = %q, want failed", round.Status)
	}
	if round.ProcessError == "" {
		t.Fatal("ProcessError empty")
	}
	if len(events.events) != 1 || events.events[0].Status != domain.RoundFailed {
		t.Fatalf("events = %+v", events.events)
	}
}

func TestOutcomeStatus(t *testing.T) {
	spotifyErr := map[domain.Platform]error{domain.PlatformSpotify: errors.New("500")}
	tests := []struct {
		name       string
		result     playlist.SyncResult
		wantStatus domain.RoundStatus
		wantErrSet bool
	}{
		{
			name: "all members submitted",
			result: playlist.SyncResult{SubmissionCount: 4, MemberCount: 4,
				Pushed: map[domain.Platform]int{domain.PlatformSpotify: 4}},
			wantStatus: domain.RoundCompleted,
		},
		{
			name:       "some members submitted",
			result:     playlist.SyncResult{SubmissionCount: 2, MemberCount: 4},
			wantStatus: domain.RoundPartial,
		},
		{
			name:       "no submissions",
			result:     playlist.SyncResult{SubmissionCount: 0, MemberCount: 4},
			wantStatus: domain.RoundPartial,
		},
		{
			name: "one platform failed",
			result: playlist.SyncResult{SubmissionCount: 4, MemberCount: 4,
				Pushed: map[domain.Platform]int{domain.PlatformAppleMusic: 4},
				Errors: spotifyErr},
			wantStatus: domain.RoundPartial,
			wantErrSet: true,
		},
		{
			name: "every platform failed",
			result: playlist.SyncResult{SubmissionCount: 4, MemberCount: 4,
				Pushed: map[domain.Platform]int{}, Errors: spotifyErr},
			wantStatus: domain.RoundFailed,
			wantErrSet: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, processErr := outcomeStatus(tt.result)
			if status != tt.wantStatus {
				t.Fatalf("status = %q, want %q", status, tt.wantStatus)
			}
			if (processErr != "") != tt.wantErrSet {
				t.Fatalf("processErr = %q, wantErrSet = %v", processErr, tt.wantErrSet)
			}
		})
	}
}

func TestRefreshExpiringTokensSweepsSpotifyOnly(t *testing.T) {
	s := store.NewMemoryStore()
	now := fixedNow()
	accounts := []domain.MusicAccount{
		{ID: "a-1", UserID: "u-expiring", Platform: domain.PlatformSpotify,
			RefreshToken: "rt", ExpiresAt: now.Add(time.Hour)},
		{ID: "a-2", UserID: "u-fresh", Platform: domain.PlatformSpotify,
			RefreshToken: "rt", ExpiresAt: now.Add(48 * time.Hour)},
		{ID: "a-3", UserID: "u-apple", Platform: domain.PlatformAppleMusic,
			ExpiresAt: now.Add(time.Hour)},
	}
	for _, a := range accounts {
		if err := s.SaveMusicAccount(a); err != nil {
			t.Fatal(err)
		}
	}
	refresher := &fakeRefresher{}
	sched := newScheduler(s, &fakeSyncer{}, refresher, nil)

	if err := sched.RefreshExpiringTokens(context.Background()); err != nil {
		t.Fatalf("RefreshExpiringTokens() error = %v", err)
	}
	if len(refresher.refreshed) != 1 || refresher.refreshed[0] != "u-expiring" {
		t.Fatalf("refreshed = %v, want [u-expiring]", refresher.refreshed)
	}
}

func TestCleanupOldRoundsDeletesPastRetention(t *testing.T) {
	s := store.NewMemoryStore()
	seedActiveRound(t, s, "r-old", "g-1", "2026-07-01")
	seedActiveRound(t, s, "r-new", "g-1", "2026-08-27")
	if err := s.SaveSubmission(domain.Submission{ID: "sub-old", RoundID: "r-old", UserID: "u-1", SongID: "song-1"}); err != nil {
		t.Fatal(err)
	}
	sched := newScheduler(s, &fakeSyncer{}, &fakeRefresher{}, nil)

	deleted, err := sched.CleanupOldRounds(context.Background())
	if err != nil {
		t.Fatalf("CleanupOldRounds() error = %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}
	if _, found, _ := s.GetRound("r-old"); found {
		t.Fatal("old round still present")
	}
	if _, found, _ := s.GetRound("r-new"); !found {
		t.Fatal("recent round deleted")
	}
	subs, _ := s.ListSubmissionsByRound("r-old")
	if len(subs) != 0 {
		t.Fatalf("orphan submissions = %d", len(subs))
	}
}

func TestRoundDateAndDeadline(t *testing.T) {
	at := time.Date(2026, 8, 28, 5, 30, 0, 0, time.FixedZone("EST", -5*3600))
	if got := RoundDate(at); got != "2026-08-28" {
		t.Fatalf("RoundDate() = %q", got)
	}
	want := time.Date(2026, 8, 28, 23, 0, 0, 0, time.UTC)
	if got := DeadlineFor(at); !got.Equal(want) {
		t.Fatalf("DeadlineFor() = %v, want %v", got, want)
	}
}
