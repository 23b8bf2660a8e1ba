// Package token resolves valid platform credentials for users. Spotify
// tokens are refreshed through the OAuth refresh flow; Apple Music user
// tokens have no refresh flow and are validated by expiry, naming convention,
// or a storefront probe.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/Timi0217/mixtape-sub001/internal/retry"
	"github.com/Timi0217/mixtape-sub001/pkg/domain"
	"github.com/Timi0217/mixtape-sub001/pkg/store"
)

var (
	// ErrNoAccount means the user has no linked account on the platform.
	ErrNoAccount = errors.New("token: no linked account")

	// ErrTokenInvalid means the stored credential is unusable and cannot be
	// refreshed. The user has to re-link the platform.
	ErrTokenInvalid = errors.New("token: credential invalid, relink required")

	// ErrNotRefreshable means the platform has no refresh flow.
	ErrNotRefreshable = errors.New("token: platform has no refresh flow")
)

// Apple tokens minted by internal tooling are long-lived and skip the
// expiry check entirely.
var appleLongLivedPrefixes = []string{"demo_", "server_token_"}

// Expiry slack so a token is refreshed before it lapses mid-operation.
const expirySlack = 5 * time.Minute

// Probe successes extend the recorded expiry by this much, bounding how often
// an Apple token is re-probed.
const appleProbeExtension = 7 * 24 * time.Hour

// AppleProber validates an Apple Music user token upstream.
type AppleProber interface {
	ProbeUserToken(ctx context.Context, userToken string) error
}

// Provider hands out valid access tokens, refreshing and persisting them as
// needed.
type Provider struct {
	store        store.Store
	spotifyOAuth *oauth2.Config
	appleProber  AppleProber
	now          func() time.Time
}

// NewProvider builds a Provider. spotifyOAuth carries the client credentials
// and token endpoint used for refresh; appleProber may be nil, in which case
// expired Apple tokens are rejected without a probe.
func NewProvider(s store.Store, spotifyOAuth *oauth2.Config, appleProber AppleProber) *Provider {
	return &Provider{
		store:        s,
		spotifyOAuth: spotifyOAuth,
		appleProber:  appleProber,
		now:          time.Now,
	}
}

// GetValidUserToken returns a usable access token for the user on the
// platform, refreshing first when needed.
func (p *Provider) GetValidUserToken(ctx context.Context, userID string, platform domain.Platform) (string, error) {
	account, found, err := p.store.GetMusicAccount(userID, platform)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: user %s on %s", ErrNoAccount, userID, platform)
	}
	account, err = p.EnsureValidToken(ctx, account)
	if err != nil {
		return "", err
	}
	return account.AccessToken, nil
}

// EnsureValidToken returns the account with a valid access token, refreshing
// and persisting it when the stored one is expired or about to expire.
func (p *Provider) EnsureValidToken(ctx context.Context, account domain.MusicAccount) (domain.MusicAccount, error) {
	switch account.Platform {
	case domain.PlatformSpotify:
		if !account.Expired(p.now().Add(expirySlack)) {
			return account, nil
		}
		return p.refreshSpotify(ctx, account)
	case domain.PlatformAppleMusic:
		return p.ensureApple(ctx, account)
	default:
		return domain.MusicAccount{}, fmt.Errorf("token: unsupported platform %q", account.Platform)
	}
}

// RefreshUserToken forces a refresh regardless of the recorded expiry.
func (p *Provider) RefreshUserToken(ctx context.Context, userID string, platform domain.Platform) (domain.MusicAccount, error) {
	account, found, err := p.store.GetMusicAccount(userID, platform)
	if err != nil {
		return domain.MusicAccount{}, err
	}
	if !found {
		return domain.MusicAccount{}, fmt.Errorf("%w: user %s on %s", ErrNoAccount, userID, platform)
	}
	if platform != domain.PlatformSpotify {
		return domain.MusicAccount{}, fmt.Errorf("%w: %s", ErrNotRefreshable, platform)
	}
	return p.refreshSpotify(ctx, account)
}

func (p *Provider) refreshSpotify(ctx context.Context, account domain.MusicAccount) (domain.MusicAccount, error) {
	if account.RefreshToken == "" {
		return domain.MusicAccount{}, fmt.Errorf("%w: spotify account %s has no refresh token", ErrTokenInvalid, account.ID)
	}
	var refreshed *oauth2.Token
	err := retry.TokenRefresh.Do(ctx, func(ctx context.Context, attempt int) error {
		source := p.spotifyOAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: account.RefreshToken})
		tok, err := source.Token()
		if err != nil {
			slog.Warn("spotify token refresh attempt failed",
				"account_id", account.ID, "attempt", attempt, "error", err)
			return err
		}
		refreshed = tok
		return nil
	})
	if err != nil {
		return domain.MusicAccount{}, fmt.Errorf("token: spotify refresh for account %s: %w", account.ID, err)
	}

	account.AccessToken = refreshed.AccessToken
	account.ExpiresAt = refreshed.Expiry
	if refreshed.RefreshToken != "" {
		account.RefreshToken = refreshed.RefreshToken
	}
	account.UpdatedAt = p.now()
	if err := p.store.SaveMusicAccount(account); err != nil {
		return domain.MusicAccount{}, fmt.Errorf("token: persist refreshed spotify token: %w", err)
	}
	slog.Info("spotify token refreshed", "account_id", account.ID, "expires_at", account.ExpiresAt)
	return account, nil
}

func (p *Provider) ensureApple(ctx context.Context, account domain.MusicAccount) (domain.MusicAccount, error) {
	for _, prefix := range appleLongLivedPrefixes {
		if strings.HasPrefix(account.AccessToken, prefix) {
			return account, nil
		}
	}
	if !account.Expired(p.now()) {
		return account, nil
	}
	if p.appleProber == nil {
		return domain.MusicAccount{}, fmt.Errorf("%w: apple music account %s expired", ErrTokenInvalid, account.ID)
	}
	if err := p.appleProber.ProbeUserToken(ctx, account.AccessToken); err != nil {
		return domain.MusicAccount{}, fmt.Errorf("%w: apple music account %s failed probe: %v", ErrTokenInvalid, account.ID, err)
	}
	// The token still works upstream. Push the recorded expiry out so the
	// next lookups skip the probe.
	account.ExpiresAt = p.now().Add(appleProbeExtension)
	account.UpdatedAt = p.now()
	if err := p.store.SaveMusicAccount(account); err != nil {
		return domain.MusicAccount{}, fmt.Errorf("token: persist probed apple token: %w", err)
	}
	return account, nil
}
