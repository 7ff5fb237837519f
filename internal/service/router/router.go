// Package router classifies inbound room messages, invokes the external AI
// collaborator for assistant-directed ones and fans results out to the room.
package router

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/filetree"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/message"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/ai"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/integrate"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/room"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/store"
)

// MentionToken marks a message as assistant-directed.
const MentionToken = "@ai"

// Socket event types.
const (
	EventMessage  = "project-message"
	EventFileView = "file-view"
	EventError    = "error"
)

// Envelope wraps every socket payload with a type field for routing.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// FileView is broadcast after a workspace mutation: the merged tree plus
// its flattened path-to-contents view.
type FileView struct {
	FileTree filetree.Tree     `json:"fileTree"`
	Files    map[string]string `json:"files"`
}

// AIProvider is the slice of the AI service the router needs.
type AIProvider interface {
	GenerateResult(ctx context.Context, prompt string) (string, error)
}

// Router fans inbound messages out to their room, detouring
// assistant-directed ones through the AI collaborator.
type Router struct {
	registry *room.Registry
	store    store.Store
	ai       AIProvider // nil when no collaborator is configured
}

// New wires a router over the registry and persistence adapter.
func New(registry *room.Registry, st store.Store, provider AIProvider) *Router {
	return &Router{registry: registry, store: st, ai: provider}
}

// Route handles one inbound chat message. Plain messages are persisted and
// broadcast verbatim, including back to the sender, whose optimistic local
// copy reconciles via the dedup key. Assistant-directed messages are
// answered asynchronously so a slow model call never stalls unrelated room
// traffic.
func (r *Router) Route(ctx context.Context, roomID string, msg message.Message, selectedPath string, requester room.Conn) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	if strings.Contains(msg.Body, MentionToken) {
		prompt := strings.TrimSpace(strings.ReplaceAll(msg.Body, MentionToken, ""))
		// The collaborator call blocks for up to its own timeout; answer off
		// the path that services the sender's other messages. The reply is
		// for the whole room, so it outlives the sender's connection.
		go r.respondAsAssistant(context.WithoutCancel(ctx), roomID, prompt, selectedPath)
		return
	}

	msg.Kind = message.KindHuman
	stored, err := r.store.CreateMessage(ctx, roomID, msg)
	if err != nil {
		// Live room state runs ahead of durable state here; only the
		// requester learns about the failure.
		log.Printf("[router] persist message failed room=%s: %v", roomID, err)
		r.sendError(requester, "failed to save message")
		stored = msg
	}

	r.registry.Broadcast(roomID, Envelope{Type: EventMessage, Data: stored})
}

// respondAsAssistant produces exactly one assistant message for the room:
// the model reply on success, one of the fixed fallback strings otherwise.
func (r *Router) respondAsAssistant(ctx context.Context, roomID, prompt, selectedPath string) {
	var body string
	if r.ai == nil {
		body = ai.FallbackGeneric
	} else {
		reply, err := r.ai.GenerateResult(ctx, prompt)
		if err != nil {
			log.Printf("[router] AI call failed room=%s: %v", roomID, err)
			body = ai.FallbackMessage(err)
		} else {
			body = reply
			r.integrateReply(ctx, roomID, reply, selectedPath)
		}
	}

	msg := message.Message{
		Kind:      message.KindAssistant,
		Sender:    message.AssistantSender,
		Body:      body,
		Timestamp: time.Now().UTC(),
	}

	stored, err := r.store.CreateMessage(ctx, roomID, msg)
	if err != nil {
		log.Printf("[router] persist assistant message failed room=%s: %v", roomID, err)
		stored = msg
	}

	r.registry.Broadcast(roomID, Envelope{Type: EventMessage, Data: stored})
}

// integrateReply applies any workspace mutation the reply carries and
// republishes the flattened file view. A reply without a mutation is left
// alone; integration never fails the message.
func (r *Router) integrateReply(ctx context.Context, roomID, reply, selectedPath string) {
	result := integrate.Parse(reply, selectedPath)
	if result.Patch == nil {
		return
	}

	rm, ok := r.registry.Get(roomID)
	if !ok {
		return
	}

	tree, files := rm.MergePatch(result.Patch)
	if err := r.store.WriteProjectTree(ctx, roomID, tree); err != nil {
		// Broadcast state intentionally runs ahead of durable state.
		log.Printf("[router] persist file tree failed room=%s: %v", roomID, err)
	}

	r.registry.Broadcast(roomID, Envelope{Type: EventFileView, Data: FileView{FileTree: tree, Files: files}})
}

func (r *Router) sendError(conn room.Conn, text string) {
	if conn == nil {
		return
	}
	if err := conn.Send(Envelope{Type: EventError, Data: text}); err != nil {
		log.Printf("[router] error notification failed: %v", err)
	}
}
