package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/auth"
	projecthandler "github.com/yashkumarsingh-dev/ai-developer/backend/internal/handler/project"
	sockethandler "github.com/yashkumarsingh-dev/ai-developer/backend/internal/handler/socket"
	userhandler "github.com/yashkumarsingh-dev/ai-developer/backend/internal/handler/user"
	middlewarePkg "github.com/yashkumarsingh-dev/ai-developer/backend/internal/middleware"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/room"
	routersvc "github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/router"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/runner"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/store"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(st store.Store, registry *room.Registry, msgRouter *routersvc.Router, rn *runner.Runner, authSvc *auth.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	userHandler := userhandler.New(st, authSvc)
	projectHandler := projecthandler.New(st, registry, rn)
	socketHandler := sockethandler.New(registry, st, msgRouter, authSvc)

	r.Route("/api", func(api chi.Router) {
		// Account endpoints mint the tokens everything else verifies.
		userHandler.RegisterRoutes(api)

		api.Group(func(protected chi.Router) {
			protected.Use(middlewarePkg.RequireAuth(authSvc))
			projectHandler.RegisterRoutes(protected)
		})
	})

	// The gateway does its own handshake authentication before upgrade.
	socketHandler.RegisterRoutes(r)

	return r
}
