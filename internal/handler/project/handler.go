// Package project exposes the REST surface over the persistence adapter:
// project records, chat history, the shared file tree and script runs.
package project

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/middleware"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/filetree"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/model/message"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/room"
	routersvc "github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/router"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/runner"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/store"
	"github.com/yashkumarsingh-dev/ai-developer/backend/pkg/utils"
)

// Handler serves the project endpoints.
type Handler struct {
	store    store.Store
	registry *room.Registry
	runner   *runner.Runner
}

// New creates the project handler.
func New(st store.Store, registry *room.Registry, rn *runner.Runner) *Handler {
	return &Handler{store: st, registry: registry, runner: rn}
}

// RegisterRoutes mounts the project routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/projects", func(pr chi.Router) {
		pr.Post("/", h.handleCreate)
		pr.Get("/", h.handleList)
		pr.Route("/{projectID}", func(one chi.Router) {
			one.Get("/", h.handleGet)
			one.Delete("/", h.handleDelete)
			one.Put("/users", h.handleAddUsers)
			one.Put("/file-tree", h.handleUpdateFileTree)
			one.Get("/messages", h.handleListMessages)
			one.Post("/messages", h.handleSaveMessage)
			one.Post("/run", h.handleRun)
		})
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		utils.RespondError(w, http.StatusBadRequest, "name is required")
		return
	}

	created, err := h.store.CreateProject(r.Context(), payload.Name, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.RespondError(w, http.StatusConflict, "project name already exists")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	projects, err := h.store.ListProjectsByUser(r.Context(), claims.Subject)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"projects": projects})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	p, err := h.store.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "project not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load project")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"project": p})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	err := h.store.DeleteProject(r.Context(), chi.URLParam(r, "projectID"), claims.Subject)
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "project not found")
	case errors.Is(err, store.ErrForbidden):
		utils.RespondError(w, http.StatusForbidden, "only the creator can delete this project")
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, "failed to delete project")
	default:
		utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "project deleted"})
	}
}

func (h *Handler) handleAddUsers(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload struct {
		Users []string `json:"users"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.Users) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "users are required")
		return
	}

	p, err := h.store.AddProjectUsers(r.Context(), chi.URLParam(r, "projectID"), claims.Subject, payload.Users)
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "project not found")
	case errors.Is(err, store.ErrForbidden):
		utils.RespondError(w, http.StatusForbidden, "user does not belong to this project")
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, "failed to add users")
	default:
		utils.RespondJSON(w, http.StatusOK, map[string]any{"project": p})
	}
}

func (h *Handler) handleUpdateFileTree(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var payload struct {
		FileTree filetree.Tree `json:"fileTree"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.FileTree == nil {
		utils.RespondError(w, http.StatusBadRequest, "fileTree is required")
		return
	}

	if err := h.store.WriteProjectTree(r.Context(), projectID, payload.FileTree); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "project not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to update file tree")
		return
	}

	// Keep any live room in step with the durable copy.
	if rm, ok := h.registry.Get(projectID); ok {
		rm.SetTree(payload.FileTree)
		rm.Broadcast(routersvc.Envelope{
			Type: routersvc.EventFileView,
			Data: routersvc.FileView{FileTree: payload.FileTree, Files: filetree.Flatten(payload.FileTree)},
		})
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"fileTree": payload.FileTree})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.store.ListMessages(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "project not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleSaveMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var payload struct {
		Message   string    `json:"message"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	msg := message.Message{
		Kind:      message.KindHuman,
		Sender:    message.Sender{ID: claims.Subject, Label: claims.Email},
		Body:      payload.Message,
		Timestamp: payload.Timestamp,
	}
	stored, err := h.store.CreateMessage(r.Context(), chi.URLParam(r, "projectID"), msg)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "project not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, stored)
}

// handleRun executes a stored file and returns the captured output to the
// requester only; results are never broadcast.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var payload struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Filename == "" {
		utils.RespondError(w, http.StatusBadRequest, "filename is required")
		return
	}

	if err := h.runner.CheckPath(payload.Filename); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Prefer the room's live tree; it may run ahead of the durable copy.
	var tree filetree.Tree
	if rm, ok := h.registry.Get(projectID); ok {
		tree = rm.Tree()
	} else {
		var err error
		tree, err = h.store.ReadProjectTree(r.Context(), projectID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondError(w, http.StatusNotFound, "project not found")
				return
			}
			utils.RespondError(w, http.StatusInternalServerError, "failed to load file tree")
			return
		}
	}

	contents, err := filetree.Resolve(tree, payload.Filename)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "file not found in project")
		return
	}

	result := h.runner.Run(r.Context(), contents)
	utils.RespondJSON(w, http.StatusOK, result)
}
