// Package match resolves a platform-independent song to a track id on a
// target platform by catalog search plus fuzzy title and artist scoring.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/Timi0217/mixtape-sub001/internal/platform"
	"github.com/Timi0217/mixtape-sub001/pkg/domain"
	"github.com/Timi0217/mixtape-sub001/pkg/store"
)

// Confidence thresholds. Reconciliation of an existing playlist tolerates a
// looser match than creating a brand-new cross-platform link.
const (
	ReconcileThreshold = 0.6
	CreationThreshold  = 0.7
)

// Scoring weights. Title dominates because artist fields disagree across
// platforms far more often (features, "&" vs "and", localized names).
const (
	titleWeight  = 0.65
	artistWeight = 0.35
)

const searchLimit = 5

// ErrNoMatch means no catalog candidate scored above the threshold.
var ErrNoMatch = errors.New("match: no candidate above threshold")

// Failure records one song that could not be resolved during a batch run.
type Failure struct {
	SongID string
	Title  string
	Artist string
	Err    error
}

// Matcher resolves songs against platform catalogs, writing successful
// matches back onto the song record.
type Matcher struct {
	registry *platform.Registry
	store    store.Store
}

// NewMatcher builds a Matcher.
func NewMatcher(registry *platform.Registry, s store.Store) *Matcher {
	return &Matcher{registry: registry, store: s}
}

// ResolveTrackID returns the song's track id on the target platform. A known
// mapping is returned as-is; otherwise the platform catalog is searched and
// the best candidate at or above threshold wins. Successful new matches are
// written through to the song record so later runs skip the search.
func (m *Matcher) ResolveTrackID(ctx context.Context, song domain.Song, target domain.Platform, userToken string, threshold float64) (string, error) {
	if id, ok := song.PlatformID(target); ok {
		return id, nil
	}
	client, ok := m.registry.Client(target)
	if !ok {
		return "", fmt.Errorf("match: no client for platform %q", target)
	}
	candidates, err := client.SearchTracks(ctx, userToken, song.Title, song.Artist, song.Album, searchLimit)
	if err != nil {
		return "", fmt.Errorf("match: search %s for song %s: %w", target, song.ID, err)
	}

	bestID := ""
	bestScore := 0.0
	for _, c := range candidates {
		score := Confidence(song.Title, song.Artist, c.Title, c.Artist)
		if score > bestScore {
			bestScore = score
			bestID = c.ID
		}
	}
	if bestID == "" || bestScore < threshold {
		return "", fmt.Errorf("%w: song %s on %s (best %.2f, need %.2f)",
			ErrNoMatch, song.ID, target, bestScore, threshold)
	}

	// Write-through is best effort. A failed save costs a repeat search next
	// run, not the match itself.
	if err := m.store.SetSongPlatformID(song.ID, target, bestID); err != nil {
		slog.Warn("failed to persist cross-platform match",
			"song_id", song.ID, "platform", target, "track_id", bestID, "error", err)
	}
	return bestID, nil
}

// ResolveAll resolves a batch of songs, returning the track ids that matched
// in submission order and a failure record per song that did not.
func (m *Matcher) ResolveAll(ctx context.Context, songs []domain.Song, target domain.Platform, userToken string, threshold float64) ([]string, []Failure) {
	ids := make([]string, 0, len(songs))
	var failures []Failure
	for _, song := range songs {
		id, err := m.ResolveTrackID(ctx, song, target, userToken, threshold)
		if err != nil {
			failures = append(failures, Failure{
				SongID: song.ID, Title: song.Title, Artist: song.Artist, Err: err,
			})
			continue
		}
		ids = append(ids, id)
	}
	return ids, failures
}

// Confidence scores how well a candidate title and artist match the source
// song, in [0, 1].
func Confidence(srcTitle, srcArtist, candTitle, candArtist string) float64 {
	return titleWeight*similarity(srcTitle, candTitle) +
		artistWeight*similarity(srcArtist, candArtist)
}

var (
	parenthetical = regexp.MustCompile(`[(\[][^)\]]*[)\]]`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// normalize strips the decorations platforms disagree on: parentheticals
// like "(feat. X)" or "[Remastered]", dash-suffixed versions, and casing.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = parenthetical.ReplaceAllString(s, " ")
	if i := strings.Index(s, " - "); i > 0 {
		s = s[:i]
	}
	s = strings.ReplaceAll(s, "&", "and")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func similarity(a, b string) float64 {
	a, b = normalize(a), normalize(b)
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	return 1 - float64(dist)/float64(longest)
}
