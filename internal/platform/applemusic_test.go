package platform

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testAppleKeyPEM(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func newAppleTestClient(t *testing.T, handler http.Handler) *AppleMusicClient {
	t.Helper()
	source, err := NewAppleDeveloperTokenSource("TEAM123", "KEY456", testAppleKeyPEM(t), time.Hour)
	if err != nil {
		t.Fatalf("NewAppleDeveloperTokenSource() error = %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAppleMusicClient(source, AppleMusicOptions{BaseURL: srv.URL, RequestsPerSecond: 1000})
}

func TestAppleMusicCreatePlaylistSendsBothTokens(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/me/library/playlists", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			t.Error("missing developer token")
		}
		if got := r.Header.Get("Music-User-Token"); got != "mut-1" {
			t.Errorf("Music-User-Token = %q, want mut-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "p.abc", "attributes": map[string]string{"name": "Daily Mix"}},
			},
		})
	})
	client := newAppleTestClient(t, mux)

	got, err := client.CreatePlaylist(context.Background(), "mut-1", "Daily Mix", "today's picks")
	if err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}
	if got.ID != "p.abc" || got.Name != "Daily Mix" {
		t.Fatalf("CreatePlaylist() = %+v", got)
	}
}

func TestAppleMusicValidateExists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/me/library/playlists/p.live", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"id": "p.live"}}})
	})
	mux.HandleFunc("GET /v1/me/library/playlists/p.gone", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	client := newAppleTestClient(t, mux)

	exists, err := client.ValidateExists(context.Background(), "mut", "p.live")
	if err != nil || !exists {
		t.Fatalf("ValidateExists(live) = %v, %v, want true, nil", exists, err)
	}
	exists, err = client.ValidateExists(context.Background(), "mut", "p.gone")
	if err != nil || exists {
		t.Fatalf("ValidateExists(gone) = %v, %v, want false, nil", exists, err)
	}
}

func TestAppleMusicUnsupportedOpsAreNoOps(t *testing.T) {
	// No server: these operations must never reach the network.
	client := NewAppleMusicClient(nil, AppleMusicOptions{BaseURL: "http://127.0.0.1:0"})

	if err := client.ReplaceTracks(context.Background(), "mut", "p.abc", []string{"t-1"}); err != nil {
		t.Fatalf("ReplaceTracks() error = %v, want nil", err)
	}
	if err := client.Rename(context.Background(), "mut", "p.abc", "New Name"); err != nil {
		t.Fatalf("Rename() error = %v, want nil", err)
	}
	if err := client.Delete(context.Background(), "mut", "p.abc"); err != nil {
		t.Fatalf("Delete() error = %v, want nil", err)
	}
}

func TestAppleMusicSearchTracks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/catalog/us/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("types"); got != "songs" {
			t.Errorf("types = %q, want songs", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"results": map[string]any{
				"songs": map[string]any{
					"data": []map[string]any{
						{
							"id": "1440857781",
							"attributes": map[string]any{
								"name":             "Fast Car",
								"artistName":       "Tracy Chapman",
								"albumName":        "Tracy Chapman",
								"durationInMillis": 296000,
							},
						},
					},
				},
			},
		})
	})
	client := newAppleTestClient(t, mux)

	tracks, err := client.SearchTracks(context.Background(), "mut", "Fast Car", "Tracy Chapman", "", 5)
	if err != nil {
		t.Fatalf("SearchTracks() error = %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != "1440857781" || tracks[0].DurationSec != 296 {
		t.Fatalf("tracks = %+v", tracks)
	}
}

func TestAppleMusicProbeUserToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/me/storefront", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Music-User-Token") == "mut-good" {
			json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"id": "us"}}})
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})
	client := newAppleTestClient(t, mux)

	if err := client.ProbeUserToken(context.Background(), "mut-good"); err != nil {
		t.Fatalf("ProbeUserToken(good) error = %v", err)
	}
	if err := client.ProbeUserToken(context.Background(), "mut-bad"); err == nil {
		t.Fatal("ProbeUserToken(bad) error = nil, want error")
	}
}
