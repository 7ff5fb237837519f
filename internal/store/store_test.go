package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/filetree"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/message"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/store"
)

// forEachStore runs the subtest against every Store implementation so both
// backends keep the same observable behavior.
func forEachStore(t *testing.T, fn func(t *testing.T, st store.Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, store.NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		defer st.Close()
		fn(t, st)
	})
}

func TestProjectLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()

		p, err := st.CreateProject(ctx, "demo", "owner")
		if err != nil {
			t.Fatalf("create project: %v", err)
		}
		if p.CreatedBy != "owner" || !p.HasUser("owner") {
			t.Fatalf("creator must be a member: %+v", p)
		}

		if _, err := st.CreateProject(ctx, "demo", "other"); !errors.Is(err, store.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate for reused name, got %v", err)
		}

		got, err := st.GetProject(ctx, p.ID)
		if err != nil {
			t.Fatalf("get project: %v", err)
		}
		if got.Name != "demo" {
			t.Fatalf("unexpected project: %+v", got)
		}

		listed, err := st.ListProjectsByUser(ctx, "owner")
		if err != nil || len(listed) != 1 {
			t.Fatalf("expected 1 project for owner, got %v (%v)", listed, err)
		}
		if listed, _ := st.ListProjectsByUser(ctx, "stranger"); len(listed) != 0 {
			t.Fatalf("stranger must see no projects, got %v", listed)
		}
	})
}

func TestProjectMembership(t *testing.T) {
	forEachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()

		p, err := st.CreateProject(ctx, "shared", "owner")
		if err != nil {
			t.Fatalf("create project: %v", err)
		}

		if _, err := st.AddProjectUsers(ctx, p.ID, "stranger", []string{"x"}); !errors.Is(err, store.ErrForbidden) {
			t.Fatalf("non-member must not invite, got %v", err)
		}

		updated, err := st.AddProjectUsers(ctx, p.ID, "owner", []string{"guest", "owner"})
		if err != nil {
			t.Fatalf("add users: %v", err)
		}
		if !updated.HasUser("guest") {
			t.Fatalf("guest missing from members: %+v", updated)
		}
		if len(updated.Users) != 2 {
			t.Fatalf("re-adding a member must not duplicate it: %v", updated.Users)
		}
	})
}

func TestProjectDeletion(t *testing.T) {
	forEachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()

		p, err := st.CreateProject(ctx, "doomed", "owner")
		if err != nil {
			t.Fatalf("create project: %v", err)
		}

		if err := st.DeleteProject(ctx, p.ID, "guest"); !errors.Is(err, store.ErrForbidden) {
			t.Fatalf("only the creator may delete, got %v", err)
		}
		if err := st.DeleteProject(ctx, p.ID, "owner"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := st.GetProject(ctx, p.ID); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
		if err := st.DeleteProject(ctx, p.ID, "owner"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("double delete must report ErrNotFound, got %v", err)
		}
	})
}

func TestProjectTreeRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()

		p, err := st.CreateProject(ctx, "tree", "owner")
		if err != nil {
			t.Fatalf("create project: %v", err)
		}

		initial, err := st.ReadProjectTree(ctx, p.ID)
		if err != nil {
			t.Fatalf("read fresh tree: %v", err)
		}
		if len(initial) != 0 {
			t.Fatalf("fresh project must have an empty tree, got %v", initial)
		}

		tree := filetree.Tree{
			"src": filetree.NewDirectory(map[string]filetree.Node{
				"index.js": filetree.NewFile("console.log('hi');"),
			}),
			"package.json": filetree.NewFile("{}"),
		}
		if err := st.WriteProjectTree(ctx, p.ID, tree); err != nil {
			t.Fatalf("write tree: %v", err)
		}

		got, err := st.ReadProjectTree(ctx, p.ID)
		if err != nil {
			t.Fatalf("read tree: %v", err)
		}
		files := filetree.Flatten(got)
		if files["src/index.js"] != "console.log('hi');" || files["package.json"] != "{}" {
			t.Fatalf("tree did not survive the round trip: %v", files)
		}

		if err := st.WriteProjectTree(ctx, "missing", tree); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown project, got %v", err)
		}
	})
}

func TestMessageHistory(t *testing.T) {
	forEachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()

		p, err := st.CreateProject(ctx, "chatty", "owner")
		if err != nil {
			t.Fatalf("create project: %v", err)
		}

		base := time.Now().UTC().Truncate(time.Second)
		// Insert out of order; history must come back timestamp-ascending.
		for _, offset := range []time.Duration{2 * time.Second, 0, time.Second} {
			msg := message.Message{
				Kind:      message.KindHuman,
				Sender:    message.Sender{ID: "owner", Label: "owner@example.com"},
				Body:      "at " + offset.String(),
				Timestamp: base.Add(offset),
			}
			stored, err := st.CreateMessage(ctx, p.ID, msg)
			if err != nil {
				t.Fatalf("create message: %v", err)
			}
			if stored.ID == "" || stored.ProjectID != p.ID {
				t.Fatalf("stored message missing identity: %+v", stored)
			}
		}

		history, err := st.ListMessages(ctx, p.ID)
		if err != nil {
			t.Fatalf("list messages: %v", err)
		}
		if len(history) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(history))
		}
		for i := 1; i < len(history); i++ {
			if history[i].Timestamp.Before(history[i-1].Timestamp) {
				t.Fatalf("history out of order: %v before %v", history[i].Timestamp, history[i-1].Timestamp)
			}
		}

		if _, err := st.CreateMessage(ctx, "missing", message.Message{Body: "x"}); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for unknown project, got %v", err)
		}
	})
}

func TestUserAccounts(t *testing.T) {
	forEachStore(t, func(t *testing.T, st store.Store) {
		ctx := context.Background()

		u, err := st.CreateUser(ctx, "dev@example.com", "hash")
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		if u.ID == "" {
			t.Fatalf("user must get an identifier: %+v", u)
		}

		if _, err := st.CreateUser(ctx, "dev@example.com", "other"); !errors.Is(err, store.ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate for reused email, got %v", err)
		}

		byEmail, err := st.GetUserByEmail(ctx, "dev@example.com")
		if err != nil || byEmail.ID != u.ID {
			t.Fatalf("lookup by email failed: %+v (%v)", byEmail, err)
		}
		byID, err := st.GetUser(ctx, u.ID)
		if err != nil || byID.Email != "dev@example.com" {
			t.Fatalf("lookup by id failed: %+v (%v)", byID, err)
		}
		if _, err := st.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}
