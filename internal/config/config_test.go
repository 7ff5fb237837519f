package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "")
	t.Setenv("TOKEN_TTL_HOURS", "")
	t.Setenv("RUNNER_TIMEOUT_MS", "")
	t.Setenv("RUNNER_PORT", "")
	t.Setenv("RUNNER_ALLOWED_EXTENSIONS", "")
	t.Setenv("RUNNER_COMMAND", "")
	t.Setenv("DATABASE_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if cfg.Runner.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Runner.Timeout)
	}
	if cfg.Runner.FixedPort != 3000 {
		t.Errorf("FixedPort = %d, want 3000", cfg.Runner.FixedPort)
	}
	if len(cfg.Runner.AllowedExtensions) != 1 || cfg.Runner.AllowedExtensions[0] != ".js" {
		t.Errorf("AllowedExtensions = %v, want [.js]", cfg.Runner.AllowedExtensions)
	}
	if cfg.Runner.Command != "node" {
		t.Errorf("Command = %q, want node", cfg.Runner.Command)
	}
	if cfg.Store.Path != "" {
		t.Errorf("Store.Path = %q, want empty", cfg.Store.Path)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error without JWT_SECRET")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("TOKEN_TTL_HOURS", "72")
	t.Setenv("RUNNER_TIMEOUT_MS", "250")
	t.Setenv("RUNNER_ALLOWED_EXTENSIONS", "js, mjs,cjs")
	t.Setenv("DATABASE_PATH", "/tmp/app.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Auth.TokenTTL != 72*time.Hour {
		t.Errorf("TokenTTL = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Runner.Timeout != 250*time.Millisecond {
		t.Errorf("Timeout = %v", cfg.Runner.Timeout)
	}
	want := []string{".js", ".mjs", ".cjs"}
	if len(cfg.Runner.AllowedExtensions) != len(want) {
		t.Fatalf("AllowedExtensions = %v", cfg.Runner.AllowedExtensions)
	}
	for i, ext := range want {
		if cfg.Runner.AllowedExtensions[i] != ext {
			t.Errorf("AllowedExtensions[%d] = %q, want %q", i, cfg.Runner.AllowedExtensions[i], ext)
		}
	}
	if cfg.Store.Path != "/tmp/app.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
}

func TestLoadRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("RUNNER_TIMEOUT_MS", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a non-numeric timeout")
	}
}

func TestAIConfigEnabled(t *testing.T) {
	if (AIConfig{}).Enabled() {
		t.Error("empty config must be disabled")
	}
	if !(AIConfig{Model: "m", APIKey: "k"}).Enabled() {
		t.Error("api key + model must enable")
	}
	if !(AIConfig{Model: "m", AccessKey: "a", SecretKey: "s"}).Enabled() {
		t.Error("ak/sk pair + model must enable")
	}
	if (AIConfig{APIKey: "k"}).Enabled() {
		t.Error("a key without a model must not enable")
	}
}
