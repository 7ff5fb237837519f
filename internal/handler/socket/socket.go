// Package socket is the session gateway: it authenticates incoming
// connections, admits them to their project room and feeds inbound traffic
// to the message router.
package socket

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/auth"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/filetree"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/message"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/room"
	routersvc "github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/router"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/store"
)

// ErrInvalidRoom rejects room identifiers that are not well-formed project
// references.
var ErrInvalidRoom = errors.New("invalid room identifier")

const writeTimeout = 5 * time.Second

// Handler upgrades authenticated connections and pumps their messages.
type Handler struct {
	registry *room.Registry
	store    store.Store
	router   *routersvc.Router
	auth     *auth.Service
	upgrader websocket.Upgrader
}

// New creates the gateway handler.
func New(registry *room.Registry, st store.Store, rt *routersvc.Router, authSvc *auth.Service) *Handler {
	return &Handler{
		registry: registry,
		store:    st,
		router:   rt,
		auth:     authSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleSocket)
}

// inboundMessage is the wire shape clients send over the socket.
type inboundMessage struct {
	Type         string    `json:"type"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
	SelectedFile string    `json:"selectedFile,omitempty"`
}

// handleSocket authenticates the handshake, admits the participant to the
// room and runs the read loop. Every rejection happens before any message
// traffic.
func (h *Handler) handleSocket(w http.ResponseWriter, r *http.Request) {
	participant, projectID, err := h.authenticate(r)
	if err != nil {
		var status int
		switch {
		case errors.Is(err, auth.ErrMissingCredential), errors.Is(err, auth.ErrInvalidCredential):
			status = http.StatusUnauthorized
		case errors.Is(err, ErrInvalidRoom), errors.Is(err, store.ErrNotFound):
			status = http.StatusBadRequest
		default:
			status = http.StatusInternalServerError
		}
		log.Printf("[socket] rejected connection: %v", err)
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[socket] upgrade failed: %v", err)
		return
	}

	wsConn := &socketConn{conn: conn}
	rm, handle := h.registry.Join(projectID, participant, wsConn)
	defer func() {
		h.registry.Leave(projectID, handle)
		wsConn.Close()
	}()

	// First joiner seeds the room's live tree from the durable copy.
	if err := rm.EnsureTree(func() (filetree.Tree, error) {
		return h.store.ReadProjectTree(r.Context(), projectID)
	}); err != nil {
		log.Printf("[socket] failed to load tree room=%s: %v", projectID, err)
	}

	// Materialize the current editable view for the new participant only.
	tree := rm.Tree()
	_ = wsConn.Send(routersvc.Envelope{
		Type: routersvc.EventFileView,
		Data: routersvc.FileView{FileTree: tree, Files: filetree.Flatten(tree)},
	})

	h.readLoop(r, conn, wsConn, projectID, participant)
}

func (h *Handler) readLoop(r *http.Request, conn *websocket.Conn, wsConn *socketConn, projectID string, participant room.Participant) {
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[socket] read error room=%s user=%s: %v", projectID, participant.ID, err)
			}
			return
		}

		switch inbound.Type {
		case routersvc.EventMessage:
			msg := message.Message{
				Sender:    message.Sender{ID: participant.ID, Label: participant.Label},
				Body:      inbound.Message,
				Timestamp: inbound.Timestamp,
			}
			h.router.Route(r.Context(), projectID, msg, inbound.SelectedFile, wsConn)
		default:
			_ = wsConn.Send(routersvc.Envelope{Type: routersvc.EventError, Data: "unknown message type"})
		}
	}
}

// authenticate validates the handshake: a bearer credential from the query
// or the Authorization header, and a room identifier that resolves to an
// existing project.
func (h *Handler) authenticate(r *http.Request) (room.Participant, string, error) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		header := r.Header.Get("Authorization")
		if after, ok := strings.CutPrefix(header, "Bearer "); ok {
			token = strings.TrimSpace(after)
		}
	}

	claims, err := h.auth.Verify(token)
	if err != nil {
		return room.Participant{}, "", err
	}

	projectID := strings.TrimSpace(r.URL.Query().Get("projectId"))
	if _, err := uuid.Parse(projectID); err != nil {
		return room.Participant{}, "", ErrInvalidRoom
	}

	// The room is not valid without an existing backing project.
	if _, err := h.store.GetProject(r.Context(), projectID); err != nil {
		return room.Participant{}, "", err
	}

	return room.Participant{ID: claims.Subject, Label: claims.Email}, projectID, nil
}

// socketConn serializes writes to one websocket connection.
type socketConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *socketConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *socketConn) Close() error {
	return c.conn.Close()
}
