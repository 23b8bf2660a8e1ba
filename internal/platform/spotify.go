// Spotify adapter. Response types follow
// https://developer.spotify.com/documentation/web-api/reference/
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

const (
	spotifyAPIBase = "https://api.spotify.com/v1"

	// Spotify caps track mutations at 100 URIs per call; longer lists are
	// written as one replace followed by appends.
	spotifyTrackBatch = 100
)

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

type spotifyProfile struct {
	ID string `json:"id"`
}

type spotifyPlaylist struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type spotifyTrack struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
	DurationMS int `json:"duration_ms"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SpotifyOptions configures the Spotify adapter.
type SpotifyOptions struct {
	// BaseURL overrides the API base, used by tests.
	BaseURL string
	// Timeout bounds each HTTP call. Defaults to 15s.
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls. Defaults to 10.
	RequestsPerSecond float64
}

// SpotifyClient implements Client against the Spotify Web API.
type SpotifyClient struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewSpotifyClient builds the adapter.
func NewSpotifyClient(opts SpotifyOptions) *SpotifyClient {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = spotifyAPIBase
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &SpotifyClient{
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *SpotifyClient) Platform() domain.Platform { return domain.PlatformSpotify }

func (c *SpotifyClient) request(ctx context.Context, userToken string) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.http.R().SetContext(ctx).SetAuthToken(userToken), nil
}

func (c *SpotifyClient) apiError(resp *resty.Response) error {
	var body spotifyErrorBody
	msg := ""
	if err := jsonUnmarshalLenient(resp.Body(), &body); err == nil {
		msg = body.Error.Message
	}
	return &APIError{Platform: domain.PlatformSpotify, Status: resp.StatusCode(), Message: msg}
}

// profile fetches the credential's own user id, needed for playlist creation.
func (c *SpotifyClient) profile(ctx context.Context, userToken string) (spotifyProfile, error) {
	req, err := c.request(ctx, userToken)
	if err != nil {
		return spotifyProfile{}, err
	}
	var profile spotifyProfile
	resp, err := req.SetResult(&profile).Get("/me")
	if err != nil {
		return spotifyProfile{}, fmt.Errorf("spotify profile: %w", err)
	}
	if resp.IsError() {
		return spotifyProfile{}, c.apiError(resp)
	}
	return profile, nil
}

// CreatePlaylist creates a private playlist under the credential's account.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, userToken, name, description string) (Playlist, error) {
	profile, err := c.profile(ctx, userToken)
	if err != nil {
		return Playlist{}, err
	}
	req, err := c.request(ctx, userToken)
	if err != nil {
		return Playlist{}, err
	}
	var created spotifyPlaylist
	resp, err := req.
		SetBody(map[string]any{"name": name, "description": description, "public": false}).
		SetResult(&created).
		Post(fmt.Sprintf("/users/%s/playlists", profile.ID))
	if err != nil {
		return Playlist{}, fmt.Errorf("spotify create playlist: %w", err)
	}
	if resp.IsError() {
		return Playlist{}, c.apiError(resp)
	}
	return Playlist{ID: created.ID, Name: created.Name, URL: created.ExternalURLs.Spotify}, nil
}

// ValidateExists probes the playlist upstream. A 404 means gone, not an error.
func (c *SpotifyClient) ValidateExists(ctx context.Context, userToken, playlistID string) (bool, error) {
	req, err := c.request(ctx, userToken)
	if err != nil {
		return false, err
	}
	resp, err := req.SetQueryParam("fields", "id").Get("/playlists/" + playlistID)
	if err != nil {
		return false, fmt.Errorf("spotify validate playlist: %w", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if resp.IsError() {
		return false, c.apiError(resp)
	}
	return true, nil
}

// ReplaceTracks overwrites the playlist's track list. The first call is a
// PUT replace (also used to clear on an empty day); remaining tracks are
// appended in 100-item batches.
func (c *SpotifyClient) ReplaceTracks(ctx context.Context, userToken, playlistID string, trackIDs []string) error {
	uris := make([]string, 0, len(trackIDs))
	for _, id := range trackIDs {
		uris = append(uris, "spotify:track:"+id)
	}
	head := uris
	if len(head) > spotifyTrackBatch {
		head = uris[:spotifyTrackBatch]
	}
	req, err := c.request(ctx, userToken)
	if err != nil {
		return err
	}
	resp, err := req.
		SetBody(map[string]any{"uris": head}).
		Put(fmt.Sprintf("/playlists/%s/tracks", playlistID))
	if err != nil {
		return fmt.Errorf("spotify replace tracks: %w", err)
	}
	if resp.IsError() {
		return c.apiError(resp)
	}
	for start := spotifyTrackBatch; start < len(uris); start += spotifyTrackBatch {
		end := start + spotifyTrackBatch
		if end > len(uris) {
			end = len(uris)
		}
		req, err := c.request(ctx, userToken)
		if err != nil {
			return err
		}
		resp, err := req.
			SetBody(map[string]any{"uris": uris[start:end]}).
			Post(fmt.Sprintf("/playlists/%s/tracks", playlistID))
		if err != nil {
			return fmt.Errorf("spotify append tracks: %w", err)
		}
		if resp.IsError() {
			return c.apiError(resp)
		}
	}
	return nil
}

// Rename updates the playlist name.
func (c *SpotifyClient) Rename(ctx context.Context, userToken, playlistID, name string) error {
	req, err := c.request(ctx, userToken)
	if err != nil {
		return err
	}
	resp, err := req.SetBody(map[string]any{"name": name}).Put("/playlists/" + playlistID)
	if err != nil {
		return fmt.Errorf("spotify rename playlist: %w", err)
	}
	if resp.IsError() {
		return c.apiError(resp)
	}
	return nil
}

// Delete unfollows the playlist, the only deletion Spotify offers.
func (c *SpotifyClient) Delete(ctx context.Context, userToken, playlistID string) error {
	req, err := c.request(ctx, userToken)
	if err != nil {
		return err
	}
	resp, err := req.Delete(fmt.Sprintf("/playlists/%s/followers", playlistID))
	if err != nil {
		return fmt.Errorf("spotify delete playlist: %w", err)
	}
	if resp.IsError() {
		return c.apiError(resp)
	}
	return nil
}

// SearchTracks runs a catalog search by title and artist (album narrows the
// query when present).
func (c *SpotifyClient) SearchTracks(ctx context.Context, userToken, title, artist, album string, limit int) ([]Track, error) {
	if limit <= 0 {
		limit = 5
	}
	query := strings.TrimSpace(title + " " + artist)
	if album != "" {
		query += " " + album
	}
	req, err := c.request(ctx, userToken)
	if err != nil {
		return nil, err
	}
	var result spotifySearchResponse
	resp, err := req.
		SetQueryParams(map[string]string{
			"q":     query,
			"type":  "track",
			"limit": fmt.Sprintf("%d", limit),
		}).
		SetResult(&result).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("spotify search: %w", err)
	}
	if resp.IsError() {
		return nil, c.apiError(resp)
	}
	tracks := make([]Track, 0, len(result.Tracks.Items))
	for _, item := range result.Tracks.Items {
		track := Track{
			ID:          item.ID,
			Title:       item.Name,
			Album:       item.Album.Name,
			DurationSec: item.DurationMS / 1000,
		}
		if len(item.Artists) > 0 {
			track.Artist = item.Artists[0].Name
		}
		tracks = append(tracks, track)
	}
	if len(tracks) == 0 {
		slog.Debug("spotify search returned no tracks", "query", query)
	}
	return tracks, nil
}
