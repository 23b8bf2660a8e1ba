// Package platform holds the streaming-platform adapters. Each platform is
// one Client implementation behind a closed registry; the rest of the engine
// never branches on platform names.
package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Timi0217/mixtape-sub001/pkg/domain"
)

// Track is a platform catalog track.
type Track struct {
	ID          string
	Title       string
	Artist      string
	Album       string
	DurationSec int
}

// Playlist is a platform-hosted playlist handle.
type Playlist struct {
	ID   string
	Name string
	URL  string
}

// Client is the capability surface one platform adapter implements.
// Operations a platform cannot support are warn-and-no-op, never silent
// failures disguised as success.
type Client interface {
	Platform() domain.Platform

	// CreatePlaylist creates a playlist owned by the credential's account.
	CreatePlaylist(ctx context.Context, userToken, name, description string) (Playlist, error)

	// ValidateExists probes whether the playlist still exists upstream.
	ValidateExists(ctx context.Context, userToken, playlistID string) (bool, error)

	// ReplaceTracks overwrites the playlist's entire track list.
	ReplaceTracks(ctx context.Context, userToken, playlistID string, trackIDs []string) error

	// Rename updates the playlist's display name.
	Rename(ctx context.Context, userToken, playlistID, name string) error

	// Delete removes the playlist as far as the platform allows.
	Delete(ctx context.Context, userToken, playlistID string) error

	// SearchTracks runs a catalog search for cross-platform matching.
	SearchTracks(ctx context.Context, userToken, title, artist, album string, limit int) ([]Track, error)
}

// Registry is the closed set of platform clients.
type Registry struct {
	clients map[domain.Platform]Client
}

// NewRegistry builds a registry from the given clients.
func NewRegistry(clients ...Client) *Registry {
	m := make(map[domain.Platform]Client, len(clients))
	for _, c := range clients {
		if c != nil {
			m[c.Platform()] = c
		}
	}
	return &Registry{clients: m}
}

// Client returns the adapter for p.
func (r *Registry) Client(p domain.Platform) (Client, bool) {
	c, ok := r.clients[p]
	return c, ok
}

// APIError is a non-2xx platform API response.
type APIError struct {
	Platform domain.Platform
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s api: status %d", e.Platform, e.Status)
	}
	return fmt.Sprintf("%s api: status %d: %s", e.Platform, e.Status, e.Message)
}

// IsAuthError reports whether err looks like an expired or invalid
// credential, which callers answer with a refresh-then-retry.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == 401 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unauthorized") || strings.Contains(msg, "token")
}

func jsonUnmarshalLenient(data []byte, v any) error {
	if len(data) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(data, v)
}
