package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/project-tracker/internal/models"
)

// MemoryStore keeps users and projects in process memory. It backs the
// "memory" driver and the package tests; data is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User
	emails   map[string]string
	projects map[string]memProject
	seq      int64
	now      func() time.Time
}

type memProject struct {
	models.Project
	seq int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]models.User),
		emails:   make(map[string]string),
		projects: make(map[string]memProject),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.emails[u.Email]; taken {
		return nil, models.ErrDuplicate
	}
	created := *u
	created.ID = uuid.NewString()
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	s.users[created.ID] = created
	s.emails[created.Email] = created.ID
	return &created, nil
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[email]
	if !ok {
		return nil, models.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *MemoryStore) FindUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &u, nil
}

// DeleteUser removes a user and, like the SQL schema, cascades to their
// projects. No route deletes accounts; it exists for test cleanup and
// maintenance scripts.
func (s *MemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	delete(s.users, id)
	delete(s.emails, u.Email)
	for pid, p := range s.projects {
		if p.OwnerID == id {
			delete(s.projects, pid)
		}
	}
	return nil
}

func (s *MemoryStore) CreateProject(_ context.Context, p *models.Project) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[p.OwnerID]; !ok {
		return nil, models.ErrNotFound
	}
	s.seq++
	created := *p
	created.ID = uuid.NewString()
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt
	s.projects[created.ID] = memProject{Project: created, seq: s.seq}
	return &created, nil
}

func (s *MemoryStore) FindProjectByID(_ context.Context, id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := p.Project
	return &out, nil
}

func (s *MemoryStore) ListProjectsByOwner(_ context.Context, ownerID string, limit, offset int) ([]models.Project, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.sorted(func(p memProject) bool { return p.OwnerID == ownerID })
	page := window(matched, limit, offset)
	out := make([]models.Project, 0, len(page))
	for _, p := range page {
		out = append(out, p.Project)
	}
	return out, len(matched), nil
}

func (s *MemoryStore) ListAllProjectsWithOwner(_ context.Context, limit, offset int) ([]models.ProjectWithOwner, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.sorted(func(memProject) bool { return true })
	page := window(all, limit, offset)
	out := make([]models.ProjectWithOwner, 0, len(page))
	for _, p := range page {
		u := s.users[p.OwnerID]
		out = append(out, models.ProjectWithOwner{
			Project: p.Project,
			Owner:   models.OwnerSummary{ID: u.ID, Name: u.Name, Email: u.Email},
		})
	}
	return out, len(all), nil
}

func (s *MemoryStore) UpdateProject(_ context.Context, id string, patch models.ProjectPatch) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if !patch.Empty() {
		patch.Apply(&p.Project)
		p.UpdatedAt = s.now()
		s.projects[id] = p
	}
	out := p.Project
	return &out, nil
}

func (s *MemoryStore) DeleteProject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.projects, id)
	return nil
}

// sorted returns matching projects newest first; insertion order breaks ties.
func (s *MemoryStore) sorted(match func(memProject) bool) []memProject {
	var out []memProject
	for _, p := range s.projects {
		if match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].seq > out[j].seq
	})
	return out
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}
