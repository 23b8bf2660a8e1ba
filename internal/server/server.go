// Package server exposes the HTTP surface of the sync engine: playlist
// ensure and sync triggers, submission intake, account linking with merge
// handling, and admin endpoints for the scheduled jobs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Timi0217/mixtape-sub001/internal/merge"
	"github.com/Timi0217/mixtape-sub001/internal/playlist"
	"github.com/Timi0217/mixtape-sub001/internal/ratelimit"
	"github.com/Timi0217/mixtape-sub001/internal/util"
	"github.com/Timi0217/mixtape-sub001/pkg/domain"
	"github.com/Timi0217/mixtape-sub001/pkg/store"
)

// PlaylistManager is the playlist surface the server drives.
type PlaylistManager interface {
	EnsureGroupPlaylists(ctx context.Context, groupID, requestingUserID string) (playlist.EnsureResult, error)
	UpdateGroupPlaylistsForRound(ctx context.Context, roundID string) (playlist.SyncResult, error)
	RenameGroupPlaylists(ctx context.Context, groupID, groupName string) error
	TeardownGroupPlaylists(ctx context.Context, groupID string) error
}

// RoundRunner triggers the scheduled round jobs on demand.
type RoundRunner interface {
	CreateDailyRounds(ctx context.Context) (int, error)
	ProcessCompletedRounds(ctx context.Context) (int, error)
	ProcessRound(ctx context.Context, roundID string) error
}

// Merger links accounts and performs chosen merges.
type Merger interface {
	LinkMusicAccount(userID, identityEmail string, account domain.MusicAccount) error
	PerformChosenMerge(survivorID, absorbedID string, p domain.Platform, fresh domain.MusicAccount) error
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	Store     store.Store
	Playlists PlaylistManager
	Rounds    RoundRunner
	Merger    Merger

	// SyncLimiter guards the manual trigger endpoints; nil disables limiting.
	SyncLimiter *ratelimit.FixedWindowLimiter
}

// Server exposes HTTP endpoints for the sync engine.
type Server struct {
	store       store.Store
	playlists   PlaylistManager
	rounds      RoundRunner
	merger      Merger
	syncLimiter *ratelimit.FixedWindowLimiter
	mux         *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		store:       cfg.Store,
		playlists:   cfg.Playlists,
		rounds:      cfg.Rounds,
		merger:      cfg.Merger,
		syncLimiter: cfg.SyncLimiter,
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler wrapped in the standard middleware.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog("mixtaped", s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// groups
	s.mux.HandleFunc("/api/groups", s.handleCreateGroup)
	s.mux.HandleFunc("/api/groups/", s.handleGroupSubresource)

	// rounds
	s.mux.HandleFunc("/api/rounds/", s.handleRoundSubresource)

	// accounts
	s.mux.HandleFunc("/api/accounts/link", s.handleLinkAccount)
	s.mux.HandleFunc("/api/accounts/merge", s.handleMerge)

	// admin triggers for the scheduled jobs
	s.mux.HandleFunc("/api/admin/rounds/create-daily", s.handleCreateDaily)
	s.mux.HandleFunc("/api/admin/rounds/process-completed", s.handleProcessCompleted)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createGroupRequest struct {
	Name        string `json:"name"`
	AdminUserID string `json:"adminUserId"`
	MaxMembers  int    `json:"maxMembers"`
	IsPublic    bool   `json:"isPublic"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createGroupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.AdminUserID == "" {
		writeError(w, http.StatusBadRequest, "name and adminUserId are required")
		return
	}
	if _, found, err := s.store.GetUser(req.AdminUserID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	} else if !found {
		writeError(w, http.StatusNotFound, "admin user not found")
		return
	}

	group := domain.Group{
		ID:          util.NewID(),
		Name:        strings.TrimSpace(req.Name),
		AdminUserID: req.AdminUserID,
		MaxMembers:  req.MaxMembers,
		IsPublic:    req.IsPublic,
		CreatedAt:   time.Now().UTC(),
	}
	// Retry on the rare invite code collision.
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		group.InviteCode = util.NewInviteCode()
		err = s.store.SaveGroup(group)
		if !errors.Is(err, store.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	member := domain.GroupMember{GroupID: group.ID, UserID: req.AdminUserID, JoinedAt: group.CreatedAt}
	if err := s.store.AddGroupMember(member); err != nil && !errors.Is(err, store.ErrDuplicate) {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// group subresources: /api/groups/{id}/playlists[...]
func (s *Server) handleGroupSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/groups/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	groupID := parts[0]
	switch strings.Join(parts[1:], "/") {
	case "playlists":
		switch r.Method {
		case http.MethodDelete:
			s.handleTeardown(w, r, groupID)
		default:
			methodNotAllowed(w)
		}
	case "playlists/ensure":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleEnsure(w, r, groupID)
	case "playlists/rename":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleRename(w, r, groupID)
	default:
		http.NotFound(w, r)
	}
}

type ensureRequest struct {
	UserID string `json:"userId"`
}

type ensureResponse struct {
	Playlists map[string]domain.GroupPlaylist `json:"playlists"`
	Errors    map[string]string               `json:"errors,omitempty"`
}

func (s *Server) handleEnsure(w http.ResponseWriter, r *http.Request, groupID string) {
	if !s.allowRate(w, r) {
		return
	}
	var req ensureRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.playlists.EnsureGroupPlaylists(r.Context(), groupID, req.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	resp := ensureResponse{Playlists: make(map[string]domain.GroupPlaylist)}
	for p, pl := range result.Playlists {
		resp.Playlists[string(p)] = pl
	}
	if len(result.Errors) > 0 {
		resp.Errors = make(map[string]string)
		for p, err := range result.Errors {
			resp.Errors[string(p)] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request, groupID string) {
	var req renameRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.playlists.RenameGroupPlaylists(r.Context(), groupID, req.Name); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTeardown(w http.ResponseWriter, r *http.Request, groupID string) {
	if err := s.playlists.TeardownGroupPlaylists(r.Context(), groupID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// round subresources: /api/rounds/{id}/submissions, /api/rounds/{id}/sync,
// /api/rounds/{id}/process
func (s *Server) handleRoundSubresource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/rounds/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	roundID := parts[0]
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	switch parts[1] {
	case "submissions":
		s.handleSubmit(w, r, roundID)
	case "sync":
		s.handleSync(w, r, roundID)
	case "process":
		s.handleProcess(w, r, roundID)
	default:
		http.NotFound(w, r)
	}
}

type submitRequest struct {
	UserID  string `json:"userId"`
	Comment string `json:"comment"`
	Song    struct {
		Title       string            `json:"title"`
		Artist      string            `json:"artist"`
		Album       string            `json:"album"`
		DurationSec int               `json:"durationSec"`
		PlatformIDs map[string]string `json:"platformIds"`
	} `json:"song"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, roundID string) {
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.Song.Title == "" || req.Song.Artist == "" {
		writeError(w, http.StatusBadRequest, "userId, song.title and song.artist are required")
		return
	}
	round, found, err := s.store.GetRound(roundID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "round not found")
		return
	}
	if round.Status != domain.RoundActive {
		writeError(w, http.StatusConflict, "round is closed")
		return
	}
	now := time.Now().UTC()
	if now.After(round.DeadlineAt) {
		writeError(w, http.StatusConflict, "submission deadline passed")
		return
	}

	song := domain.Song{
		ID:          util.NewID(),
		Title:       req.Song.Title,
		Artist:      req.Song.Artist,
		Album:       req.Song.Album,
		DurationSec: req.Song.DurationSec,
		PlatformIDs: req.Song.PlatformIDs,
	}
	if song.PlatformIDs == nil {
		song.PlatformIDs = map[string]string{}
	}
	if err := s.store.SaveSong(song); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	sub := domain.Submission{
		ID:          util.NewID(),
		RoundID:     roundID,
		UserID:      req.UserID,
		SongID:      song.ID,
		Comment:     req.Comment,
		SubmittedAt: now,
	}
	if err := s.store.SaveSubmission(sub); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"submission": sub, "song": song})
}

type syncResponse struct {
	RoundID         string            `json:"roundId"`
	SubmissionCount int               `json:"submissionCount"`
	MemberCount     int               `json:"memberCount"`
	Pushed          map[string]int    `json:"pushed"`
	Errors          map[string]string `json:"errors,omitempty"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request, roundID string) {
	if !s.allowRate(w, r) {
		return
	}
	result, err := s.playlists.UpdateGroupPlaylistsForRound(r.Context(), roundID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	resp := syncResponse{
		RoundID:         result.RoundID,
		SubmissionCount: result.SubmissionCount,
		MemberCount:     result.MemberCount,
		Pushed:          make(map[string]int),
	}
	for p, n := range result.Pushed {
		resp.Pushed[string(p)] = n
	}
	if len(result.Errors) > 0 {
		resp.Errors = make(map[string]string)
		for p, err := range result.Errors {
			resp.Errors[string(p)] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request, roundID string) {
	if !s.allowRate(w, r) {
		return
	}
	if err := s.rounds.ProcessRound(r.Context(), roundID); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type linkRequest struct {
	UserID        string `json:"userId"`
	IdentityEmail string `json:"identityEmail"`
	Platform      string `json:"platform"`
	AccessToken   string `json:"accessToken"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresAt     string `json:"expiresAt"`
}

type mergeRequiredResponse struct {
	Error          string      `json:"error"`
	RequestingUser domain.User `json:"requestingUser"`
	ExistingUser   domain.User `json:"existingUser"`
	Platform       string      `json:"platform"`
}

func (s *Server) handleLinkAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req linkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	account, err := accountFromRequest(req.UserID, req.Platform, req.AccessToken, req.RefreshToken, req.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.merger.LinkMusicAccount(req.UserID, req.IdentityEmail, account)
	var required *merge.RequiredError
	if errors.As(err, &required) {
		writeJSON(w, http.StatusConflict, mergeRequiredResponse{
			Error:          "merge required",
			RequestingUser: required.RequestingUser,
			ExistingUser:   required.ExistingUser,
			Platform:       string(required.Platform),
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type mergeRequest struct {
	SurvivorUserID string `json:"survivorUserId"`
	AbsorbedUserID string `json:"absorbedUserId"`
	Platform       string `json:"platform"`
	AccessToken    string `json:"accessToken"`
	RefreshToken   string `json:"refreshToken"`
	ExpiresAt      string `json:"expiresAt"`
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req mergeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	fresh, err := accountFromRequest(req.SurvivorUserID, req.Platform, req.AccessToken, req.RefreshToken, req.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err = s.merger.PerformChosenMerge(req.SurvivorUserID, req.AbsorbedUserID, fresh.Platform, fresh)
	if errors.Is(err, store.ErrInvalidMergeTarget) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r) {
		return
	}
	created, err := s.rounds.CreateDailyRounds(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

func (s *Server) handleProcessCompleted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r) {
		return
	}
	processed, err := s.rounds.ProcessCompletedRounds(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": processed})
}

func accountFromRequest(userID, platformStr, accessToken, refreshToken, expiresAt string) (domain.MusicAccount, error) {
	if userID == "" {
		return domain.MusicAccount{}, errors.New("userId is required")
	}
	p := domain.Platform(platformStr)
	if !p.Valid() {
		return domain.MusicAccount{}, fmt.Errorf("unknown platform %q", platformStr)
	}
	if accessToken == "" {
		return domain.MusicAccount{}, errors.New("accessToken is required")
	}
	account := domain.MusicAccount{
		UserID:       userID,
		Platform:     p,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if expiresAt != "" {
		at, err := time.Parse(time.RFC3339, expiresAt)
		if err != nil {
			return domain.MusicAccount{}, fmt.Errorf("invalid expiresAt: %v", err)
		}
		account.ExpiresAt = at
	}
	return account, nil
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request) bool {
	if s.syncLimiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, nil)
	if s.syncLimiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "too many sync requests")
	return false
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
