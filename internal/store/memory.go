package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/filetree"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/message"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/project"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/user"
)

// MemoryStore implements Store with in-memory maps, suitable for tests and
// single-process development runs.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]project.Project
	messages map[string][]message.Message
	users    map[string]user.User
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]project.Project),
		messages: make(map[string][]message.Message),
		users:    make(map[string]user.User),
	}
}

// CreateProject provisions a project owned by the given user. Names are
// unique across the store.
func (s *MemoryStore) CreateProject(_ context.Context, name, userID string) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.projects {
		if existing.Name == name {
			return project.Project{}, ErrDuplicate
		}
	}

	p := project.Project{
		ID:        uuid.NewString(),
		Name:      name,
		Users:     []string{userID},
		CreatedBy: userID,
		FileTree:  filetree.Tree{},
		CreatedAt: time.Now().UTC(),
	}
	s.projects[p.ID] = p
	return p, nil
}

// ListProjectsByUser returns every project the user is a member of.
func (s *MemoryStore) ListProjectsByUser(_ context.Context, userID string) ([]project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var projects []project.Project
	for _, p := range s.projects {
		if p.HasUser(userID) {
			projects = append(projects, p)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.Before(projects[j].CreatedAt) })
	return projects, nil
}

// GetProject retrieves a project by identifier.
func (s *MemoryStore) GetProject(_ context.Context, projectID string) (project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectID]
	if !ok {
		return project.Project{}, ErrNotFound
	}
	return p, nil
}

// AddProjectUsers appends the given users to a project's member set. The
// requester must already belong to the project.
func (s *MemoryStore) AddProjectUsers(_ context.Context, projectID, requesterID string, userIDs []string) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return project.Project{}, ErrNotFound
	}
	if !p.HasUser(requesterID) {
		return project.Project{}, ErrForbidden
	}

	for _, id := range userIDs {
		if !p.HasUser(id) {
			p.Users = append(p.Users, id)
		}
	}
	s.projects[projectID] = p
	return p, nil
}

// DeleteProject removes a project; only its creator may do so.
func (s *MemoryStore) DeleteProject(_ context.Context, projectID, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	if p.CreatedBy != requesterID {
		return ErrForbidden
	}
	delete(s.projects, projectID)
	delete(s.messages, projectID)
	return nil
}

// ReadProjectTree returns the project's persisted file tree.
func (s *MemoryStore) ReadProjectTree(_ context.Context, projectID string) (filetree.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	if p.FileTree == nil {
		return filetree.Tree{}, nil
	}
	return p.FileTree, nil
}

// WriteProjectTree replaces the project's persisted file tree.
func (s *MemoryStore) WriteProjectTree(_ context.Context, projectID string, tree filetree.Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	p.FileTree = tree
	s.projects[projectID] = p
	return nil
}

// CreateMessage appends a message to the project's history and assigns its
// stored identifier.
func (s *MemoryStore) CreateMessage(_ context.Context, projectID string, msg message.Message) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return message.Message{}, ErrNotFound
	}

	msg.ID = uuid.NewString()
	msg.ProjectID = projectID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	s.messages[projectID] = append(s.messages[projectID], msg)
	return msg, nil
}

// ListMessages returns the project's history ordered by timestamp ascending.
func (s *MemoryStore) ListMessages(_ context.Context, projectID string) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[projectID]; !ok {
		return nil, ErrNotFound
	}

	messages := make([]message.Message, len(s.messages[projectID]))
	copy(messages, s.messages[projectID])
	sort.SliceStable(messages, func(i, j int) bool { return messages[i].Timestamp.Before(messages[j].Timestamp) })
	return messages, nil
}

// CreateUser registers an account; emails are unique.
func (s *MemoryStore) CreateUser(_ context.Context, email, passwordHash string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == email {
			return user.User{}, ErrDuplicate
		}
	}

	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[u.ID] = u
	return u, nil
}

// GetUserByEmail looks up an account by email.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, ErrNotFound
}

// GetUser looks up an account by identifier.
func (s *MemoryStore) GetUser(_ context.Context, userID string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return user.User{}, ErrNotFound
	}
	return u, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
