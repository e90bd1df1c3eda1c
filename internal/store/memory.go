package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avdeck/cueroom/internal/domain"
)

// Memory is an in-process Store with the same semantics as Postgres
// (cascading deletes, uniqueness conflicts, owner auto-membership).
// It backs the dispatcher tests and local development without a
// database.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	projects map[string]domain.Project
	members  map[string]domain.Member
	tracks   map[string]domain.Track
	cues     map[string]domain.Cue
	settings map[string]domain.Settings
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]domain.User),
		projects: make(map[string]domain.Project),
		members:  make(map[string]domain.Member),
		tracks:   make(map[string]domain.Track),
		cues:     make(map[string]domain.Cue),
		settings: make(map[string]domain.Settings),
	}
}

// Users

func (s *Memory) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return domain.User{}, ErrConflict
		}
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	return user, nil
}

func (s *Memory) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, ErrNotFound
}

func (s *Memory) GetUserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

// Projects

func (s *Memory) CreateProject(_ context.Context, project domain.Project) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	project.ID = uuid.NewString()
	if project.ExportID == 0 {
		project.ExportID = domain.DefaultExportID
	}
	project.CreatedAt = now
	project.UpdatedAt = now
	s.projects[project.ID] = project

	accepted := now
	memberID := uuid.NewString()
	s.members[memberID] = domain.Member{
		ID:         memberID,
		ProjectID:  project.ID,
		UserID:     project.OwnerID,
		Role:       domain.RoleOwner,
		InvitedAt:  now,
		AcceptedAt: &accepted,
	}
	return project, nil
}

func (s *Memory) GetProject(_ context.Context, id string) (domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return domain.Project{}, ErrNotFound
	}
	return p, nil
}

func (s *Memory) UpdateProject(_ context.Context, id string, patch ProjectPatch) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return domain.Project{}, ErrNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.ExportID != nil {
		p.ExportID = *patch.ExportID
	}
	p.UpdatedAt = time.Now().UTC()
	s.projects[id] = p
	return p, nil
}

func (s *Memory) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return ErrNotFound
	}
	delete(s.projects, id)
	for key, m := range s.members {
		if m.ProjectID == id {
			delete(s.members, key)
		}
	}
	for tid, t := range s.tracks {
		if t.ProjectID == id {
			s.deleteTrackLocked(tid)
		}
	}
	delete(s.settings, id)
	return nil
}

func (s *Memory) ListProjectsForUser(_ context.Context, userID string) ([]ProjectWithRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []ProjectWithRole{}
	for _, m := range s.members {
		if m.UserID != userID {
			continue
		}
		if p, ok := s.projects[m.ProjectID]; ok {
			out = append(out, ProjectWithRole{Project: p, Role: m.Role})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Members

func (s *Memory) GetMember(_ context.Context, projectID, userID string) (domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.ProjectID == projectID && m.UserID == userID {
			return s.withUserLocked(m), nil
		}
	}
	return domain.Member{}, ErrNotFound
}

func (s *Memory) ListMembers(_ context.Context, projectID string) ([]domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Member{}
	for _, m := range s.members {
		if m.ProjectID == projectID {
			out = append(out, s.withUserLocked(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvitedAt.Before(out[j].InvitedAt) })
	return out, nil
}

func (s *Memory) AddMember(_ context.Context, member domain.Member) (domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.ProjectID == member.ProjectID && m.UserID == member.UserID {
			return domain.Member{}, ErrConflict
		}
	}
	member.ID = uuid.NewString()
	member.InvitedAt = time.Now().UTC()
	s.members[member.ID] = member
	return s.withUserLocked(member), nil
}

func (s *Memory) UpdateMemberRole(_ context.Context, projectID, userID string, role domain.Role) (domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, m := range s.members {
		if m.ProjectID == projectID && m.UserID == userID {
			m.Role = role
			s.members[key] = m
			return s.withUserLocked(m), nil
		}
	}
	return domain.Member{}, ErrNotFound
}

func (s *Memory) RemoveMember(_ context.Context, projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, m := range s.members {
		if m.ProjectID == projectID && m.UserID == userID {
			delete(s.members, key)
			return nil
		}
	}
	return ErrNotFound
}

func (s *Memory) withUserLocked(m domain.Member) domain.Member {
	if u, ok := s.users[m.UserID]; ok {
		m.Email = u.Email
		m.DisplayName = u.DisplayName
	}
	return m
}

// Tracks

func (s *Memory) InsertTrack(_ context.Context, track domain.Track) (domain.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[track.ProjectID]; !ok {
		return domain.Track{}, ErrNotFound
	}
	now := time.Now().UTC()
	track.ID = uuid.NewString()
	track.CreatedAt = now
	track.UpdatedAt = now
	s.tracks[track.ID] = track
	return track, nil
}

func (s *Memory) GetTrack(_ context.Context, id string) (domain.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tracks[id]
	if !ok {
		return domain.Track{}, ErrNotFound
	}
	return t, nil
}

func (s *Memory) ListTracks(_ context.Context, projectID string) ([]domain.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Track{}
	for _, t := range s.tracks {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (s *Memory) UpdateTrack(_ context.Context, id string, patch TrackPatch) (domain.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracks[id]
	if !ok {
		return domain.Track{}, ErrNotFound
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.SortOrder != nil {
		t.SortOrder = *patch.SortOrder
	}
	if patch.MediaType != nil {
		t.MediaType = *patch.MediaType
	}
	if patch.MediaFilename != nil {
		t.MediaFilename = *patch.MediaFilename
	}
	if patch.MediaKey != nil {
		t.MediaKey = *patch.MediaKey
	}
	if patch.MediaSize != nil {
		t.MediaSize = *patch.MediaSize
	}
	if patch.MediaDuration != nil {
		t.MediaDuration = *patch.MediaDuration
	}
	t.UpdatedAt = time.Now().UTC()
	s.tracks[id] = t
	return t, nil
}

func (s *Memory) DeleteTrack(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracks[id]; !ok {
		return ErrNotFound
	}
	s.deleteTrackLocked(id)
	return nil
}

func (s *Memory) deleteTrackLocked(id string) {
	delete(s.tracks, id)
	for cid, c := range s.cues {
		if c.TrackID == id {
			delete(s.cues, cid)
		}
	}
}

// Cues

func (s *Memory) InsertCue(_ context.Context, cue domain.Cue) (domain.Cue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracks[cue.TrackID]; !ok {
		return domain.Cue{}, ErrNotFound
	}
	now := time.Now().UTC()
	cue.ID = uuid.NewString()
	cue.CreatedAt = now
	cue.UpdatedAt = now
	s.cues[cue.ID] = cue
	return cue, nil
}

func (s *Memory) GetCue(_ context.Context, id string) (domain.Cue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cues[id]
	if !ok {
		return domain.Cue{}, ErrNotFound
	}
	return c, nil
}

func (s *Memory) ListCues(_ context.Context, trackIDs []string) ([]domain.Cue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := make(map[string]bool, len(trackIDs))
	for _, id := range trackIDs {
		wanted[id] = true
	}
	out := []domain.Cue{}
	for _, c := range s.cues {
		if wanted[c.TrackID] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out, nil
}

func (s *Memory) UpdateCue(_ context.Context, id string, patch CuePatch) (domain.Cue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cues[id]
	if !ok {
		return domain.Cue{}, ErrNotFound
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Time != nil {
		c.Time = *patch.Time
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.Fade != nil {
		c.Fade = *patch.Fade
	}
	if patch.MarkerColor != nil {
		c.MarkerColor = *patch.MarkerColor
	}
	if patch.SortOrder != nil {
		c.SortOrder = *patch.SortOrder
	}
	c.UpdatedAt = time.Now().UTC()
	s.cues[id] = c
	return c, nil
}

func (s *Memory) DeleteCue(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cues[id]; !ok {
		return ErrNotFound
	}
	delete(s.cues, id)
	return nil
}

// Settings

func (s *Memory) GetSettings(_ context.Context, projectID string) (domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing, ok := s.settings[projectID]
	if !ok {
		return domain.Settings{}, nil
	}
	return existing.Merge(nil), nil
}

func (s *Memory) UpsertSettings(_ context.Context, projectID string, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[projectID] = settings.Merge(nil)
	return nil
}
