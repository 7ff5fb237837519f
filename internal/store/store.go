// Package store is the persistence adapter behind the session layer. The
// core consumes it synchronously and does not retry on failure.
package store

import (
	"context"
	"errors"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/filetree"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/message"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/project"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/user"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	ErrForbidden = errors.New("operation not permitted")
)

// Store persists projects, users and chat history.
type Store interface {
	CreateProject(ctx context.Context, name, userID string) (project.Project, error)
	ListProjectsByUser(ctx context.Context, userID string) ([]project.Project, error)
	GetProject(ctx context.Context, projectID string) (project.Project, error)
	AddProjectUsers(ctx context.Context, projectID, requesterID string, userIDs []string) (project.Project, error)
	DeleteProject(ctx context.Context, projectID, requesterID string) error

	ReadProjectTree(ctx context.Context, projectID string) (filetree.Tree, error)
	WriteProjectTree(ctx context.Context, projectID string, tree filetree.Tree) error

	CreateMessage(ctx context.Context, projectID string, msg message.Message) (message.Message, error)
	// ListMessages returns the room history ordered by timestamp ascending.
	ListMessages(ctx context.Context, projectID string) ([]message.Message, error)

	CreateUser(ctx context.Context, email, passwordHash string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	GetUser(ctx context.Context, userID string) (user.User, error)

	Close() error
}
