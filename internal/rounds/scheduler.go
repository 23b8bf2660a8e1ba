// Package rounds drives the daily round lifecycle: midnight creation, a
// morning processing pass that reconciles playlists and finalizes round
// status, a periodic token refresh sweep, and retention cleanup.
package rounds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/Timi0217/mixtape-sub001/internal/playlist"
	"github.com/Timi0217/mixtape-sub001/pkg/domain"
	"github.com/Timi0217/mixtape-sub001/pkg/queue"
	"github.com/Timi0217/mixtape-sub001/pkg/store"
)

const (
	// Cron specs, all evaluated in UTC.
	createSpec  = "0 0 * * *"
	processSpec = "0 8 * * *"
	refreshSpec = "0 */4 * * *"
	cleanupSpec = "0 2 * * 0"

	// Submissions close at 23:00 UTC on the round's date.
	deadlineHourUTC = 23

	// Rounds older than this are purged by the weekly cleanup.
	retentionDays = 30

	// How many rounds are processed concurrently.
	processConcurrency = 4

	// Accounts expiring within this window are refreshed by the sweep.
	refreshWindow = 6 * time.Hour
)

// Syncer is the playlist surface the scheduler drives.
type Syncer interface {
	EnsureGroupPlaylists(ctx context.Context, groupID, requestingUserID string) (playlist.EnsureResult, error)
	UpdateGroupPlaylistsForRound(ctx context.Context, roundID string) (playlist.SyncResult, error)
}

// TokenRefresher force-refreshes one user's platform credential.
type TokenRefresher interface {
	RefreshUserToken(ctx context.Context, userID string, p domain.Platform) (domain.MusicAccount, error)
}

// EventPublisher emits round lifecycle events.
type EventPublisher interface {
	PublishRoundProcessed(ctx context.Context, ev queue.RoundEvent) error
}

// Scheduler owns the cron entries and the operations they invoke. Every
// operation is also callable directly, which the HTTP surface uses for
// manual triggering.
type Scheduler struct {
	store     store.Store
	syncer    Syncer
	refresher TokenRefresher
	events    EventPublisher
	cron      *cron.Cron
	now       func() time.Time
}

// NewScheduler builds a Scheduler. events may be nil when no stream is
// configured.
func NewScheduler(s store.Store, syncer Syncer, refresher TokenRefresher, events EventPublisher) *Scheduler {
	return &Scheduler{
		store:     s,
		syncer:    syncer,
		refresher: refresher,
		events:    events,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		now:       time.Now,
	}
}

// Start registers the cron entries and starts the ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		name string
		run  func(context.Context) error
	}{
		{createSpec, "create-daily-rounds", func(ctx context.Context) error {
			_, err := s.CreateDailyRounds(ctx)
			return err
		}},
		{processSpec, "process-completed-rounds", func(ctx context.Context) error {
			_, err := s.ProcessCompletedRounds(ctx)
			return err
		}},
		{refreshSpec, "refresh-expiring-tokens", s.RefreshExpiringTokens},
		{cleanupSpec, "cleanup-old-rounds", func(ctx context.Context) error {
			_, err := s.CleanupOldRounds(ctx)
			return err
		}},
	}
	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.spec, func() {
			if err := job.run(ctx); err != nil {
				slog.Error("scheduled job failed", "job", job.name, "error", err)
			}
		}); err != nil {
			return fmt.Errorf("rounds: register %s: %w", job.name, err)
		}
	}
	s.cron.Start()
	slog.Info("round scheduler started",
		"create", createSpec, "process", processSpec, "refresh", refreshSpec, "cleanup", cleanupSpec)
	return nil
}

// Stop halts the ticker and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RoundDate formats t as a round date key.
func RoundDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DeadlineFor returns the submission deadline for the round dated by t.
func DeadlineFor(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), deadlineHourUTC, 0, 0, 0, time.UTC)
}

// CreateDailyRounds opens today's round for every group. A group that
// already has a round for today is skipped via the duplicate guard, so the
// job is safe to re-run. Returns the number of rounds created.
func (s *Scheduler) CreateDailyRounds(ctx context.Context) (int, error) {
	groups, err := s.store.ListGroups()
	if err != nil {
		return 0, err
	}
	now := s.now()
	date := RoundDate(now)
	created := 0
	for _, group := range groups {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		round := domain.DailyRound{
			ID:         newRoundID(group.ID, date),
			GroupID:    group.ID,
			Date:       date,
			DeadlineAt: DeadlineFor(now),
			Status:     domain.RoundActive,
			CreatedAt:  now.UTC(),
		}
		err := s.store.CreateRound(round)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			slog.Error("failed to create daily round", "group_id", group.ID, "date", date, "error", err)
			continue
		}
		created++
	}
	slog.Info("daily rounds created", "date", date, "created", created, "groups", len(groups))
	return created, nil
}

// newRoundID derives a stable id from the round's natural key, so retries of
// the creation job cannot mint two ids for the same round.
func newRoundID(groupID, date string) string {
	return "round-" + groupID + "-" + date
}

// ProcessCompletedRounds finalizes yesterday's rounds: pushes submissions to
// the group playlists, records the terminal status, and publishes an event
// per round. Rounds are processed concurrently with a bounded fan-out; one
// round's failure never blocks the others. Returns the number of rounds
// finalized.
func (s *Scheduler) ProcessCompletedRounds(ctx context.Context) (int, error) {
	date := RoundDate(s.now().AddDate(0, 0, -1))
	rounds, err := s.store.ListRoundsByStatusAndDate(domain.RoundActive, date)
	if err != nil {
		return 0, err
	}
	if len(rounds) == 0 {
		slog.Info("no rounds to process", "date", date)
		return 0, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(processConcurrency)
	for _, round := range rounds {
		round := round
		g.Go(func() error {
			if err := s.processRound(ctx, round); err != nil {
				slog.Error("round processing failed",
					"round_id", round.ID, "group_id", round.GroupID, "error", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	slog.Info("round processing pass finished", "date", date, "rounds", len(rounds))
	return len(rounds), nil
}

// ProcessRound finalizes a single round regardless of its date, used for
// manual triggering.
func (s *Scheduler) ProcessRound(ctx context.Context, roundID string) error {
	round, found, err := s.store.GetRound(roundID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("rounds: round %s not found", roundID)
	}
	return s.processRound(ctx, round)
}

func (s *Scheduler) processRound(ctx context.Context, round domain.DailyRound) error {
	// Re-ensure first so upstream-deleted playlists are replaced before the
	// push. Ensure failures surface again during the push, so only log here.
	if _, err := s.syncer.EnsureGroupPlaylists(ctx, round.GroupID, ""); err != nil {
		slog.Warn("ensure before processing failed",
			"round_id", round.ID, "group_id", round.GroupID, "error", err)
	}

	result, err := s.syncer.UpdateGroupPlaylistsForRound(ctx, round.ID)
	if err != nil {
		finishErr := s.store.FinishRound(round.ID, domain.RoundFailed, 0, 0, err.Error(), s.now())
		if finishErr != nil {
			return errors.Join(err, finishErr)
		}
		s.publish(ctx, round, domain.RoundFailed, 0, 0)
		return err
	}

	status, processErr := outcomeStatus(result)
	if err := s.store.FinishRound(round.ID, status,
		result.SubmissionCount, result.MemberCount, processErr, s.now()); err != nil {
		return err
	}
	s.publish(ctx, round, status, result.SubmissionCount, result.MemberCount)
	slog.Info("round finalized",
		"round_id", round.ID, "group_id", round.GroupID, "status", status,
		"submissions", result.SubmissionCount, "members", result.MemberCount)
	return nil
}

// outcomeStatus derives the terminal status from a push result. The
// completion ratio and any platform errors are recorded on the round
// separately; the status is just the summary.
func outcomeStatus(result playlist.SyncResult) (domain.RoundStatus, string) {
	if !result.Ok() {
		var parts []string
		for p, err := range result.Errors {
			parts = append(parts, fmt.Sprintf("%s: %v", p, err))
		}
		processErr := strings.Join(parts, "; ")
		if len(result.Pushed) == 0 {
			return domain.RoundFailed, processErr
		}
		return domain.RoundPartial, processErr
	}
	if result.MemberCount > 0 && result.SubmissionCount == result.MemberCount {
		return domain.RoundCompleted, ""
	}
	return domain.RoundPartial, ""
}

func (s *Scheduler) publish(ctx context.Context, round domain.DailyRound, status domain.RoundStatus, submissions, members int) {
	if s.events == nil {
		return
	}
	ev := queue.RoundEvent{
		RoundID:         round.ID,
		GroupID:         round.GroupID,
		Date:            round.Date,
		Status:          status,
		SubmissionCount: submissions,
		MemberCount:     members,
	}
	if err := s.events.PublishRoundProcessed(ctx, ev); err != nil {
		slog.Warn("failed to publish round event", "round_id", round.ID, "error", err)
	}
}

// RefreshExpiringTokens proactively refreshes Spotify credentials that are
// close to expiry, so the morning processing pass rarely has to refresh
// inline. Apple Music tokens have no refresh flow and are skipped.
func (s *Scheduler) RefreshExpiringTokens(ctx context.Context) error {
	accounts, err := s.store.ListExpiringMusicAccounts(s.now().Add(refreshWindow))
	if err != nil {
		return err
	}
	refreshed, failed := 0, 0
	for _, account := range accounts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if account.Platform != domain.PlatformSpotify {
			continue
		}
		if _, err := s.refresher.RefreshUserToken(ctx, account.UserID, account.Platform); err != nil {
			failed++
			slog.Warn("token sweep refresh failed",
				"account_id", account.ID, "user_id", account.UserID, "error", err)
			continue
		}
		refreshed++
	}
	slog.Info("token refresh sweep finished", "refreshed", refreshed, "failed", failed)
	return nil
}

// CleanupOldRounds deletes rounds (and their submissions) past the retention
// window. Returns the number of rounds removed.
func (s *Scheduler) CleanupOldRounds(ctx context.Context) (int64, error) {
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	cutoff := RoundDate(s.now().AddDate(0, 0, -retentionDays))
	deleted, err := s.store.DeleteRoundsBefore(cutoff)
	if err != nil {
		return 0, err
	}
	slog.Info("old rounds purged", "cutoff", cutoff, "deleted", deleted)
	return deleted, nil
}
