package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/filetree"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/message"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/project"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/user"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_by TEXT NOT NULL,
	file_tree  TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS project_users (
	project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	user_id    TEXT NOT NULL,
	PRIMARY KEY (project_id, user_id)
);
CREATE TABLE IF NOT EXISTS messages (
	id           TEXT PRIMARY KEY,
	project_id   TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	kind         TEXT NOT NULL,
	sender_id    TEXT NOT NULL,
	sender_label TEXT NOT NULL,
	body         TEXT NOT NULL,
	timestamp    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_project ON messages(project_id, timestamp);
`

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and bootstraps) the database at the given DSN.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateProject(ctx context.Context, name, userID string) (project.Project, error) {
	p := project.Project{
		ID:        uuid.NewString(),
		Name:      name,
		Users:     []string{userID},
		CreatedBy: userID,
		FileTree:  filetree.Tree{},
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return project.Project{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO projects (id, name, created_by, file_tree, created_at) VALUES (?, ?, ?, '{}', ?)`,
		p.ID, p.Name, p.CreatedBy, p.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return project.Project{}, ErrDuplicate
		}
		return project.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO project_users (project_id, user_id) VALUES (?, ?)`, p.ID, userID); err != nil {
		return project.Project{}, fmt.Errorf("insert project member: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return project.Project{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

func (s *SQLiteStore) ListProjectsByUser(ctx context.Context, userID string) ([]project.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.name, p.created_by, p.file_tree, p.created_at
		 FROM projects p JOIN project_users pu ON pu.project_id = p.id
		 WHERE pu.user_id = ? ORDER BY p.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var projects []project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		if err := s.loadMembers(ctx, &p); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) GetProject(ctx context.Context, projectID string) (project.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_by, file_tree, created_at FROM projects WHERE id = ?`, projectID)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, ErrNotFound
	}
	if err != nil {
		return project.Project{}, err
	}
	if err := s.loadMembers(ctx, &p); err != nil {
		return project.Project{}, err
	}
	return p, nil
}

func (s *SQLiteStore) AddProjectUsers(ctx context.Context, projectID, requesterID string, userIDs []string) (project.Project, error) {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return project.Project{}, err
	}
	if !p.HasUser(requesterID) {
		return project.Project{}, ErrForbidden
	}

	for _, id := range userIDs {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO project_users (project_id, user_id) VALUES (?, ?)`, projectID, id); err != nil {
			return project.Project{}, fmt.Errorf("insert project member: %w", err)
		}
	}
	return s.GetProject(ctx, projectID)
}

func (s *SQLiteStore) DeleteProject(ctx context.Context, projectID, requesterID string) error {
	p, err := s.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if p.CreatedBy != requesterID {
		return ErrForbidden
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReadProjectTree(ctx context.Context, projectID string) (filetree.Tree, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT file_tree FROM projects WHERE id = ?`, projectID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read file tree: %w", err)
	}

	tree := filetree.Tree{}
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, fmt.Errorf("decode file tree: %w", err)
	}
	return tree, nil
}

func (s *SQLiteStore) WriteProjectTree(ctx context.Context, projectID string, tree filetree.Tree) error {
	raw, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode file tree: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `UPDATE projects SET file_tree = ? WHERE id = ?`, string(raw), projectID)
	if err != nil {
		return fmt.Errorf("write file tree: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write file tree: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CreateMessage(ctx context.Context, projectID string, msg message.Message) (message.Message, error) {
	msg.ID = uuid.NewString()
	msg.ProjectID = projectID
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, project_id, kind, sender_id, sender_label, body, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, projectID, string(msg.Kind), msg.Sender.ID, msg.Sender.Label, msg.Body,
		msg.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return message.Message{}, ErrNotFound
		}
		return message.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, projectID string) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, sender_id, sender_label, body, timestamp
		 FROM messages WHERE project_id = ? ORDER BY timestamp`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []message.Message
	for rows.Next() {
		var msg message.Message
		var kind, ts string
		if err := rows.Scan(&msg.ID, &kind, &msg.Sender.ID, &msg.Sender.Label, &msg.Body, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.ProjectID = projectID
		msg.Kind = message.Kind(kind)
		msg.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse message timestamp: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, email, passwordHash string) (user.User, error) {
	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, ErrDuplicate
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email))
}

func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (user.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, userID))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	var ts string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return user.User{}, ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return user.User{}, fmt.Errorf("parse user timestamp: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) loadMembers(ctx context.Context, p *project.Project) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM project_users WHERE project_id = ? ORDER BY rowid`, p.ID)
	if err != nil {
		return fmt.Errorf("query project members: %w", err)
	}
	defer rows.Close()

	p.Users = nil
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan project member: %w", err)
		}
		p.Users = append(p.Users, id)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (project.Project, error) {
	var p project.Project
	var rawTree, ts string
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedBy, &rawTree, &ts); err != nil {
		return project.Project{}, err
	}

	p.FileTree = filetree.Tree{}
	if err := json.Unmarshal([]byte(rawTree), &p.FileTree); err != nil {
		return project.Project{}, fmt.Errorf("decode file tree: %w", err)
	}

	var err error
	p.CreatedAt, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return project.Project{}, fmt.Errorf("parse project timestamp: %w", err)
	}
	return p, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
