// Apple Music adapter. Response types follow
// https://developer.apple.com/documentation/applemusicapi
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/Timi0217/mixtape-sub001/pkg/domain"
)

const appleMusicAPIBase = "https://api.music.apple.com"

type appleLibraryPlaylist struct {
	ID         string `json:"id"`
	Attributes struct {
		Name string `json:"name"`
	} `json:"attributes"`
}

type appleDataResponse struct {
	Data []appleLibraryPlaylist `json:"data"`
}

type appleSong struct {
	ID         string `json:"id"`
	Attributes struct {
		Name             string `json:"name"`
		ArtistName       string `json:"artistName"`
		AlbumName        string `json:"albumName"`
		DurationInMillis int    `json:"durationInMillis"`
	} `json:"attributes"`
}

type appleSearchResponse struct {
	Results struct {
		Songs struct {
			Data []appleSong `json:"data"`
		} `json:"songs"`
	} `json:"results"`
}

// AppleMusicOptions configures the Apple Music adapter.
type AppleMusicOptions struct {
	// BaseURL overrides the API base, used by tests.
	BaseURL string
	// Storefront for catalog searches. Defaults to "us".
	Storefront string
	// Timeout bounds each HTTP call. Defaults to 15s.
	Timeout time.Duration
	// ProbeTimeout bounds the storefront token-validation probe. Defaults to 5s.
	ProbeTimeout time.Duration
	// RequestsPerSecond throttles outbound calls. Defaults to 10.
	RequestsPerSecond float64
}

// AppleMusicClient implements Client against the Apple Music API. Requests
// carry the signed developer token plus the member's Music-User-Token.
type AppleMusicClient struct {
	http         *resty.Client
	devTokens    *AppleDeveloperTokenSource
	storefront   string
	probeTimeout time.Duration
	limiter      *rate.Limiter
}

// NewAppleMusicClient builds the adapter.
func NewAppleMusicClient(devTokens *AppleDeveloperTokenSource, opts AppleMusicOptions) *AppleMusicClient {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = appleMusicAPIBase
	}
	storefront := strings.TrimSpace(opts.Storefront)
	if storefront == "" {
		storefront = "us"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	probeTimeout := opts.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &AppleMusicClient{
		http:         client,
		devTokens:    devTokens,
		storefront:   storefront,
		probeTimeout: probeTimeout,
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *AppleMusicClient) Platform() domain.Platform { return domain.PlatformAppleMusic }

func (c *AppleMusicClient) request(ctx context.Context, userToken string) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	devToken, err := c.devTokens.Token()
	if err != nil {
		return nil, err
	}
	req := c.http.R().SetContext(ctx).SetAuthToken(devToken)
	if userToken != "" {
		req.SetHeader("Music-User-Token", userToken)
	}
	return req, nil
}

func (c *AppleMusicClient) apiError(resp *resty.Response) error {
	return &APIError{Platform: domain.PlatformAppleMusic, Status: resp.StatusCode()}
}

// CreatePlaylist creates a library playlist under the member's account.
func (c *AppleMusicClient) CreatePlaylist(ctx context.Context, userToken, name, description string) (Playlist, error) {
	req, err := c.request(ctx, userToken)
	if err != nil {
		return Playlist{}, err
	}
	var created appleDataResponse
	resp, err := req.
		SetBody(map[string]any{
			"attributes": map[string]string{"name": name, "description": description},
		}).
		SetResult(&created).
		Post("/v1/me/library/playlists")
	if err != nil {
		return Playlist{}, fmt.Errorf("apple music create playlist: %w", err)
	}
	if resp.IsError() {
		return Playlist{}, c.apiError(resp)
	}
	if len(created.Data) == 0 {
		return Playlist{}, &APIError{Platform: domain.PlatformAppleMusic, Status: resp.StatusCode(), Message: "create returned no playlist"}
	}
	id := created.Data[0].ID
	return Playlist{
		ID:   id,
		Name: created.Data[0].Attributes.Name,
		URL:  "https://music.apple.com/library/playlist/" + id,
	}, nil
}

// ValidateExists probes the library playlist upstream.
func (c *AppleMusicClient) ValidateExists(ctx context.Context, userToken, playlistID string) (bool, error) {
	req, err := c.request(ctx, userToken)
	if err != nil {
		return false, err
	}
	resp, err := req.Get("/v1/me/library/playlists/" + playlistID)
	if err != nil {
		return false, fmt.Errorf("apple music validate playlist: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if resp.IsError() {
		return false, c.apiError(resp)
	}
	return true, nil
}

// ReplaceTracks is not supported by the Apple Music API for library
// playlists. The contract is a warn-and-no-op, not a silent success claim.
func (c *AppleMusicClient) ReplaceTracks(_ context.Context, _ string, playlistID string, trackIDs []string) error {
	slog.Warn("apple music track replacement is not implemented; playlist left unchanged",
		"playlist_id", playlistID, "track_count", len(trackIDs))
	return nil
}

// Rename is not supported for library playlists; warn-and-no-op.
func (c *AppleMusicClient) Rename(_ context.Context, _ string, playlistID, name string) error {
	slog.Warn("apple music playlist rename is not implemented; playlist left unchanged",
		"playlist_id", playlistID, "name", name)
	return nil
}

// Delete is not supported for library playlists; warn-and-no-op.
func (c *AppleMusicClient) Delete(_ context.Context, _ string, playlistID string) error {
	slog.Warn("apple music playlist deletion is not implemented; playlist left in library",
		"playlist_id", playlistID)
	return nil
}

// SearchTracks runs a catalog search in the configured storefront.
func (c *AppleMusicClient) SearchTracks(ctx context.Context, userToken, title, artist, album string, limit int) ([]Track, error) {
	if limit <= 0 {
		limit = 5
	}
	term := strings.TrimSpace(title + " " + artist)
	if album != "" {
		term += " " + album
	}
	req, err := c.request(ctx, userToken)
	if err != nil {
		return nil, err
	}
	var result appleSearchResponse
	resp, err := req.
		SetQueryParams(map[string]string{
			"term":  term,
			"types": "songs",
			"limit": fmt.Sprintf("%d", limit),
		}).
		SetResult(&result).
		Get("/v1/catalog/" + c.storefront + "/search")
	if err != nil {
		return nil, fmt.Errorf("apple music search: %w", err)
	}
	if resp.IsError() {
		return nil, c.apiError(resp)
	}
	tracks := make([]Track, 0, len(result.Results.Songs.Data))
	for _, song := range result.Results.Songs.Data {
		tracks = append(tracks, Track{
			ID:          song.ID,
			Title:       song.Attributes.Name,
			Artist:      song.Attributes.ArtistName,
			Album:       song.Attributes.AlbumName,
			DurationSec: song.Attributes.DurationInMillis / 1000,
		})
	}
	return tracks, nil
}

// ProbeUserToken validates a Music-User-Token with a bounded-timeout
// storefront call. Apple Music tokens have no refresh flow, so this probe is
// the only validity signal beyond the recorded expiry.
func (c *AppleMusicClient) ProbeUserToken(ctx context.Context, userToken string) error {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	req, err := c.request(ctx, userToken)
	if err != nil {
		return err
	}
	resp, err := req.Get("/v1/me/storefront")
	if err != nil {
		return fmt.Errorf("apple music storefront probe: %w", err)
	}
	if resp.IsError() {
		return c.apiError(resp)
	}
	return nil
}
