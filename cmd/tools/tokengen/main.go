// tokengen mints a signed session token for manual testing of the REST and
// socket endpoints.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/auth"
	"github.com/yashkumarsingh-dev/ai-developer/backend/internal/config"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env, using system environment variables: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	userID := flag.String("user", "", "user id to embed in the token (default: random)")
	email := flag.String("email", "dev@example.com", "email claim")
	flag.Parse()

	id := *userID
	if id == "" {
		id = uuid.NewString()
	}

	svc := auth.NewService([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	token, exp, err := svc.Issue(id, *email)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	fmt.Printf("user:    %s\nemail:   %s\nexpires: %s\ntoken:   %s\n", id, *email, exp, token)
}
