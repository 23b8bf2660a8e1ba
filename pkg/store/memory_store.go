package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Timi0217/mixtape-sub001/pkg/domain"
)

// MemoryStore is an in-memory Store used by unit tests and local development.
// It mirrors the database's unique constraints, returning ErrDuplicate where
// Postgres would reject the row.
type MemoryStore struct {
	mu sync.Mutex

	users       map[string]domain.User
	aliases     map[string]domain.EmailAlias // keyed by alias email
	accounts    map[string]domain.MusicAccount
	preferences map[string]domain.MusicPreferences
	groups      map[string]domain.Group
	members     map[string]domain.GroupMember // key groupID|userID
	rounds      map[string]domain.DailyRound
	submissions map[string]domain.Submission
	songs       map[string]domain.Song
	playlists   map[string]domain.GroupPlaylist
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]domain.User),
		aliases:     make(map[string]domain.EmailAlias),
		accounts:    make(map[string]domain.MusicAccount),
		preferences: make(map[string]domain.MusicPreferences),
		groups:      make(map[string]domain.Group),
		members:     make(map[string]domain.GroupMember),
		rounds:      make(map[string]domain.DailyRound),
		submissions: make(map[string]domain.Submission),
		songs:       make(map[string]domain.Song),
		playlists:   make(map[string]domain.GroupPlaylist),
	}
}

func memberKey(groupID, userID string) string { return groupID + "|" + userID }

func (s *MemoryStore) SaveUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) GetUser(id string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) GetUserByAlias(aliasEmail string) (domain.User, bool, error) {
	s.mu.Lock()
	alias, ok := s.aliases[strings.ToLower(aliasEmail)]
	s.mu.Unlock()
	if !ok {
		return domain.User{}, false, nil
	}
	return s.GetUser(alias.UserID)
}

func (s *MemoryStore) ListEmailAliasesByUser(userID string) ([]domain.EmailAlias, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.EmailAlias
	for _, a := range s.aliases {
		if a.UserID == userID {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].AliasEmail < res[j].AliasEmail })
	return res, nil
}

func (s *MemoryStore) SaveMusicAccount(a domain.MusicAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(a.UserID, string(a.Platform))
	if existing, ok := s.accounts[key]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	}
	s.accounts[key] = a
	return nil
}

func (s *MemoryStore) GetMusicAccount(userID string, p domain.Platform) (domain.MusicAccount, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[memberKey(userID, string(p))]
	return a, ok, nil
}

func (s *MemoryStore) ListMusicAccountsByUser(userID string) ([]domain.MusicAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.MusicAccount
	for _, a := range s.accounts {
		if a.UserID == userID {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Platform < res[j].Platform })
	return res, nil
}

func (s *MemoryStore) ListExpiringMusicAccounts(before time.Time) ([]domain.MusicAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.MusicAccount
	for _, a := range s.accounts {
		if a.RefreshToken != "" && a.ExpiresAt.Before(before) {
			res = append(res, a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ExpiresAt.Before(res[j].ExpiresAt) })
	return res, nil
}

func (s *MemoryStore) SavePreferences(p domain.MusicPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[p.UserID] = p
	return nil
}

func (s *MemoryStore) GetPreferences(userID string) (domain.MusicPreferences, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.preferences[userID]
	return p, ok, nil
}

func (s *MemoryStore) SaveGroup(g domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.groups {
		if id != g.ID && g.InviteCode != "" && existing.InviteCode == g.InviteCode {
			return ErrDuplicate
		}
	}
	s.groups[g.ID] = g
	return nil
}

func (s *MemoryStore) GetGroup(id string) (domain.Group, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	return g, ok, nil
}

func (s *MemoryStore) ListGroups() ([]domain.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]domain.Group, 0, len(s.groups))
	for _, g := range s.groups {
		res = append(res, g)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) AddGroupMember(m domain.GroupMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memberKey(m.GroupID, m.UserID)
	if _, ok := s.members[key]; ok {
		return ErrDuplicate
	}
	s.members[key] = m
	return nil
}

func (s *MemoryStore) ListGroupMembers(groupID string) ([]domain.GroupMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.GroupMember
	for _, m := range s.members {
		if m.GroupID == groupID {
			res = append(res, m)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].JoinedAt.Before(res[j].JoinedAt) })
	return res, nil
}

func (s *MemoryStore) ListGroupMembersByUser(userID string) ([]domain.GroupMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.GroupMember
	for _, m := range s.members {
		if m.UserID == userID {
			res = append(res, m)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].GroupID < res[j].GroupID })
	return res, nil
}

func (s *MemoryStore) CreateRound(r domain.DailyRound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.rounds {
		if existing.GroupID == r.GroupID && existing.Date == r.Date {
			return ErrDuplicate
		}
	}
	s.rounds[r.ID] = r
	return nil
}

func (s *MemoryStore) GetRound(id string) (domain.DailyRound, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[id]
	return r, ok, nil
}

func (s *MemoryStore) GetRoundByDate(groupID, date string) (domain.DailyRound, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds {
		if r.GroupID == groupID && r.Date == date {
			return r, true, nil
		}
	}
	return domain.DailyRound{}, false, nil
}

func (s *MemoryStore) ListRoundsByStatusAndDate(status domain.RoundStatus, date string) ([]domain.DailyRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.DailyRound
	for _, r := range s.rounds {
		if r.Status == status && r.Date == date {
			res = append(res, r)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) FinishRound(id string, status domain.RoundStatus, submissionCount, memberCount int, processErr string, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[id]
	if !ok || r.Status != domain.RoundActive {
		return nil
	}
	at := processedAt.UTC()
	r.Status = status
	r.SubmissionCount = submissionCount
	r.MemberCount = memberCount
	r.ProcessError = processErr
	r.ProcessedAt = &at
	s.rounds[id] = r
	return nil
}

func (s *MemoryStore) DeleteRoundsBefore(date string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, r := range s.rounds {
		if r.Date < date {
			for subID, sub := range s.submissions {
				if sub.RoundID == id {
					delete(s.submissions, subID)
				}
			}
			delete(s.rounds, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) SaveSubmission(sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.submissions {
		if existing.RoundID == sub.RoundID && existing.UserID == sub.UserID {
			sub.ID = existing.ID
			s.submissions[id] = sub
			return nil
		}
	}
	s.submissions[sub.ID] = sub
	return nil
}

func (s *MemoryStore) ListSubmissionsByRound(roundID string) ([]domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.Submission
	for _, sub := range s.submissions {
		if sub.RoundID == roundID {
			res = append(res, sub)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SubmittedAt.Before(res[j].SubmittedAt) })
	return res, nil
}

func (s *MemoryStore) SaveSong(song domain.Song) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songs[song.ID] = cloneSong(song)
	return nil
}

func (s *MemoryStore) GetSong(id string) (domain.Song, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	song, ok := s.songs[id]
	if !ok {
		return domain.Song{}, false, nil
	}
	return cloneSong(song), true, nil
}

func (s *MemoryStore) SetSongPlatformID(songID string, p domain.Platform, platformID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	song, ok := s.songs[songID]
	if !ok {
		return fmt.Errorf("song %s not found", songID)
	}
	if song.PlatformIDs == nil {
		song.PlatformIDs = make(map[string]string)
	}
	song.PlatformIDs[string(p)] = platformID
	s.songs[songID] = song
	return nil
}

func (s *MemoryStore) CreatePlaylist(pl domain.GroupPlaylist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pl.State == domain.PlaylistActive {
		for _, existing := range s.playlists {
			if existing.GroupID == pl.GroupID && existing.Platform == pl.Platform && existing.State == domain.PlaylistActive {
				return ErrDuplicate
			}
		}
	}
	s.playlists[pl.ID] = pl
	return nil
}

func (s *MemoryStore) GetActivePlaylist(groupID string, p domain.Platform) (domain.GroupPlaylist, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pl := range s.playlists {
		if pl.GroupID == groupID && pl.Platform == p && pl.State == domain.PlaylistActive {
			return pl, true, nil
		}
	}
	return domain.GroupPlaylist{}, false, nil
}

func (s *MemoryStore) ListActivePlaylistsByGroup(groupID string) ([]domain.GroupPlaylist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []domain.GroupPlaylist
	for _, pl := range s.playlists {
		if pl.GroupID == groupID && pl.State == domain.PlaylistActive {
			res = append(res, pl)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Platform < res[j].Platform })
	return res, nil
}

func (s *MemoryStore) SupersedePlaylist(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, ok := s.playlists[id]
	if !ok || pl.State != domain.PlaylistActive {
		return nil
	}
	pl.State = domain.PlaylistSuperseded
	s.playlists[id] = pl
	return nil
}

func (s *MemoryStore) TouchPlaylist(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, ok := s.playlists[id]
	if !ok {
		return nil
	}
	stamp := at.UTC()
	pl.LastUpdated = &stamp
	s.playlists[id] = pl
	return nil
}

func (s *MemoryStore) UpdatePlaylistName(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pl, ok := s.playlists[id]
	if !ok {
		return nil
	}
	pl.PlaylistName = name
	s.playlists[id] = pl
	return nil
}

// MergeUsers mirrors the transactional merge semantics of the Postgres store.
func (s *MemoryStore) MergeUsers(primaryID, secondaryID string, p domain.Platform, fresh domain.MusicAccount) error {
	if primaryID == "" || secondaryID == "" || primaryID == secondaryID {
		return ErrInvalidMergeTarget
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[primaryID]; !ok {
		return fmt.Errorf("%w: primary %s", ErrInvalidMergeTarget, primaryID)
	}
	secondary, ok := s.users[secondaryID]
	if !ok {
		return fmt.Errorf("%w: secondary %s", ErrInvalidMergeTarget, secondaryID)
	}

	// Accounts: drop colliding platforms, reassign the rest.
	for key, a := range s.accounts {
		if a.UserID != secondaryID {
			continue
		}
		delete(s.accounts, key)
		if _, exists := s.accounts[memberKey(primaryID, string(a.Platform))]; exists {
			continue
		}
		a.UserID = primaryID
		s.accounts[memberKey(primaryID, string(a.Platform))] = a
	}
	fresh.UserID = primaryID
	fresh.Platform = p
	s.accounts[memberKey(primaryID, string(p))] = fresh

	// Memberships.
	for key, m := range s.members {
		if m.UserID != secondaryID {
			continue
		}
		delete(s.members, key)
		if _, exists := s.members[memberKey(m.GroupID, primaryID)]; exists {
			continue
		}
		m.UserID = primaryID
		s.members[memberKey(m.GroupID, primaryID)] = m
	}

	// Admin ownership.
	for id, g := range s.groups {
		if g.AdminUserID == secondaryID {
			g.AdminUserID = primaryID
			s.groups[id] = g
		}
	}

	// Submissions, deduplicated on (round, user).
	primaryRounds := make(map[string]bool)
	for _, sub := range s.submissions {
		if sub.UserID == primaryID {
			primaryRounds[sub.RoundID] = true
		}
	}
	for id, sub := range s.submissions {
		if sub.UserID != secondaryID {
			continue
		}
		if primaryRounds[sub.RoundID] {
			delete(s.submissions, id)
			continue
		}
		sub.UserID = primaryID
		s.submissions[id] = sub
	}

	// Preferences.
	if _, exists := s.preferences[primaryID]; !exists {
		if pref, ok := s.preferences[secondaryID]; ok {
			pref.UserID = primaryID
			s.preferences[primaryID] = pref
		}
	}
	delete(s.preferences, secondaryID)

	// Alias continuity.
	s.aliases[strings.ToLower(secondary.Email)] = domain.EmailAlias{
		AliasEmail: secondary.Email,
		UserID:     primaryID,
		Platform:   p,
		CreatedAt:  time.Now().UTC(),
	}
	for key, a := range s.aliases {
		if a.UserID == secondaryID {
			a.UserID = primaryID
			s.aliases[key] = a
		}
	}

	delete(s.users, secondaryID)
	return nil
}

func cloneSong(song domain.Song) domain.Song {
	ids := make(map[string]string, len(song.PlatformIDs))
	for k, v := range song.PlatformIDs {
		ids[k] = v
	}
	song.PlatformIDs = ids
	return song
}
