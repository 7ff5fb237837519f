package router_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/filetree"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/message"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/ai"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/room"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/router"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/store"
)

type fakeConn struct {
	mu   sync.Mutex
	sent []router.Envelope
}

func (c *fakeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v.(router.Envelope))
	return nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) envelopes(eventType string) []router.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []router.Envelope
	for _, env := range c.sent {
		if env.Type == eventType {
			out = append(out, env)
		}
	}
	return out
}

type fakeAI struct {
	reply string
	err   error
}

func (f *fakeAI) GenerateResult(context.Context, string) (string, error) {
	return f.reply, f.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func newRoom(t *testing.T, st store.Store, registry *room.Registry) (string, *fakeConn) {
	t.Helper()
	p, err := st.CreateProject(context.Background(), "room-"+t.Name(), "u1")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	conn := &fakeConn{}
	rm, _ := registry.Join(p.ID, room.Participant{ID: "u1", Label: "u1@example.com"}, conn)
	if err := rm.EnsureTree(func() (filetree.Tree, error) { return nil, nil }); err != nil {
		t.Fatalf("ensure tree: %v", err)
	}
	return p.ID, conn
}

func TestPlainMessageBroadcastAndPersisted(t *testing.T) {
	st := store.NewMemoryStore()
	registry := room.NewRegistry()
	rt := router.New(registry, st, nil)
	roomID, conn := newRoom(t, st, registry)

	inbound := message.Message{
		Sender:    message.Sender{ID: "u1", Label: "u1@example.com"},
		Body:      "hello room",
		Timestamp: time.Now().UTC(),
	}
	rt.Route(context.Background(), roomID, inbound, "", conn)

	envs := conn.envelopes(router.EventMessage)
	if len(envs) != 1 {
		t.Fatalf("expected 1 message envelope, got %d", len(envs))
	}
	got := envs[0].Data.(message.Message)
	if got.Body != "hello room" || got.Kind != message.KindHuman {
		t.Fatalf("unexpected broadcast message: %+v", got)
	}
	if got.Sender.ID != "u1" {
		t.Fatalf("sender must reach the room, got %+v", got.Sender)
	}
	if got.DedupKey() != inbound.DedupKey() {
		t.Fatal("broadcast copy must dedup against the sender's local copy")
	}

	history, err := st.ListMessages(context.Background(), roomID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(history) != 1 || history[0].Body != "hello room" {
		t.Fatalf("expected persisted history of 1, got %+v", history)
	}
}

func TestMentionIntegratesReplyIntoWorkspace(t *testing.T) {
	st := store.NewMemoryStore()
	registry := room.NewRegistry()
	provider := &fakeAI{reply: `{
		"text": "Scaffolded an express app",
		"fileTree": {
			"app.js": {"file": {"contents": "const express = require('express');"}},
			"package.json": {"file": {"contents": "{}"}}
		}
	}`}
	rt := router.New(registry, st, provider)
	roomID, conn := newRoom(t, st, registry)

	rt.Route(context.Background(), roomID, message.Message{
		Sender: message.Sender{ID: "u1", Label: "u1@example.com"},
		Body:   "@ai create an express app",
	}, "", conn)

	waitFor(t, func() bool {
		return len(conn.envelopes(router.EventMessage)) == 1 && len(conn.envelopes(router.EventFileView)) == 1
	})

	view := conn.envelopes(router.EventFileView)[0].Data.(router.FileView)
	if len(view.Files) != 2 {
		t.Fatalf("expected 2 files in view, got %v", view.Files)
	}
	if _, ok := view.Files["app.js"]; !ok {
		t.Fatalf("missing app.js in view: %v", view.Files)
	}

	reply := conn.envelopes(router.EventMessage)[0].Data.(message.Message)
	if reply.Kind != message.KindAssistant || reply.Sender.ID != message.AssistantSender.ID {
		t.Fatalf("expected an assistant message, got %+v", reply)
	}

	persisted, err := st.ReadProjectTree(context.Background(), roomID)
	if err != nil {
		t.Fatalf("read tree: %v", err)
	}
	if _, err := filetree.Resolve(persisted, "package.json"); err != nil {
		t.Fatalf("merged tree must be persisted: %v", err)
	}

	// The mention itself is not part of the durable transcript.
	history, _ := st.ListMessages(context.Background(), roomID)
	if len(history) != 1 || history[0].Kind != message.KindAssistant {
		t.Fatalf("expected only the assistant message in history, got %+v", history)
	}
}

func TestMentionQuotaErrorYieldsOneFallbackMessage(t *testing.T) {
	st := store.NewMemoryStore()
	registry := room.NewRegistry()
	rt := router.New(registry, st, &fakeAI{err: errors.New("provider returned 429 too many requests")})
	roomID, conn := newRoom(t, st, registry)

	rt.Route(context.Background(), roomID, message.Message{
		Sender: message.Sender{ID: "u1", Label: "u1@example.com"},
		Body:   "@ai help",
	}, "", conn)

	waitFor(t, func() bool { return len(conn.envelopes(router.EventMessage)) == 1 })

	got := conn.envelopes(router.EventMessage)[0].Data.(message.Message)
	if got.Body != ai.FallbackQuota {
		t.Fatalf("expected quota fallback, got %q", got.Body)
	}
	if got.Kind != message.KindAssistant {
		t.Fatalf("fallback must be an assistant message, got %+v", got)
	}
	if views := conn.envelopes(router.EventFileView); len(views) != 0 {
		t.Fatalf("a failed call must not mutate the workspace, got %d views", len(views))
	}
}

func TestMentionWithoutProviderYieldsGenericFallback(t *testing.T) {
	st := store.NewMemoryStore()
	registry := room.NewRegistry()
	rt := router.New(registry, st, nil)
	roomID, conn := newRoom(t, st, registry)

	rt.Route(context.Background(), roomID, message.Message{
		Sender: message.Sender{ID: "u1", Label: "u1@example.com"},
		Body:   "@ai anyone there",
	}, "", conn)

	waitFor(t, func() bool { return len(conn.envelopes(router.EventMessage)) == 1 })

	got := conn.envelopes(router.EventMessage)[0].Data.(message.Message)
	if got.Body != ai.FallbackGeneric {
		t.Fatalf("expected generic fallback, got %q", got.Body)
	}
}

func TestPersistFailureNotifiesRequesterButStillBroadcasts(t *testing.T) {
	st := store.NewMemoryStore()
	registry := room.NewRegistry()
	rt := router.New(registry, st, nil)

	// A room with no backing project: persistence fails, fan-out must not.
	roomID := "no-such-project"
	conn := &fakeConn{}
	registry.Join(roomID, room.Participant{ID: "u1", Label: "u1@example.com"}, conn)

	rt.Route(context.Background(), roomID, message.Message{
		Sender:    message.Sender{ID: "u1", Label: "u1@example.com"},
		Body:      "still live",
		Timestamp: time.Now().UTC(),
	}, "", conn)

	if errs := conn.envelopes(router.EventError); len(errs) != 1 {
		t.Fatalf("expected 1 error envelope for the requester, got %d", len(errs))
	}
	envs := conn.envelopes(router.EventMessage)
	if len(envs) != 1 {
		t.Fatalf("expected the message to broadcast anyway, got %d", len(envs))
	}
	if got := envs[0].Data.(message.Message); got.Body != "still live" {
		t.Fatalf("unexpected broadcast body: %q", got.Body)
	}
}
