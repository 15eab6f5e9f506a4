package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := `
addr: ":9000"
database-dsn: "file:test.db"
jwt:
  secret: "file-secret"
  expiry-hours: 12
log:
  level: "debug"
`
	if errWrite := os.WriteFile(path, []byte(doc), 0o644); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}

	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("ADDR", "")
	t.Setenv("PORT", "")

	cfg, errLoad := Load(path)
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.JWT.Secret != "env-secret" {
		t.Fatalf("env override lost, secret = %q", cfg.JWT.Secret)
	}
	if cfg.JWT.Expiry() != 12*time.Hour {
		t.Fatalf("expiry = %v", cfg.JWT.Expiry())
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadRequiresDSNAndSecret(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("JWT_SECRET", "")

	if _, errLoad := Load(""); errLoad == nil {
		t.Fatalf("expected error without dsn")
	}

	t.Setenv("DATABASE_DSN", "file:test.db")
	if _, errLoad := Load(""); errLoad == nil {
		t.Fatalf("expected error without jwt secret")
	}

	t.Setenv("JWT_SECRET", "s")
	cfg, errLoad := Load("")
	if errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	if cfg.Addr != ":8000" {
		t.Fatalf("default addr = %q", cfg.Addr)
	}
}
