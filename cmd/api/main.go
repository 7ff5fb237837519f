package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/auth"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/config"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/handler"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/ai"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/room"
	routersvc "github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/router"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/service/runner"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	authSvc := auth.NewService([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	registry := room.NewRegistry()
	scriptRunner := runner.New(cfg.Runner)

	var provider routersvc.AIProvider
	if cfg.AI.Enabled() {
		aiSvc, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - check the ark environment variables")
		} else {
			provider = aiSvc
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("ark credentials not configured, skipping AI initialization")
	}

	msgRouter := routersvc.New(registry, st, provider)
	httpRouter := handler.NewRouter(st, registry, msgRouter, scriptRunner, authSvc)

	startServer(ctx, cfg.Server, httpRouter)
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	if cfg.Path == "" {
		log.Println("DATABASE_PATH not set, using in-memory store")
		return store.NewMemoryStore(), nil
	}
	return store.OpenSQLite(cfg.Path)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("collaboration backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
