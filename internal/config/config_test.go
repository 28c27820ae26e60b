package config

import (
	"os"
	"testing"
)

func TestNewDefaults(t *testing.T) {
	cfg := New()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("Database.Driver = %s, want memory", cfg.Database.Driver)
	}
	if cfg.Planner.DefaultClusterSize != "medium" {
		t.Errorf("Planner.DefaultClusterSize = %s, want medium", cfg.Planner.DefaultClusterSize)
	}
}

func TestValidateDevSkipsFatalChecks(t *testing.T) {
	cfg := New()
	cfg.Env = "dev"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() in dev = %v, want nil", err)
	}
}

func TestValidateProdRequiresSecrets(t *testing.T) {
	cfg := New()
	cfg.Env = "prod"
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = "postgres://localhost/ironlayer"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() in prod without secrets should fail")
	}

	cfg.Security.JWTSigningSecret = "s3cr3t"
	cfg.Security.SecretEncryptionKey = "k3y"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with secrets set = %v, want nil", err)
	}
}

func TestApplyDatabaseURLOverride(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgres://example/db")
	defer os.Unsetenv("DATABASE_URL")

	cfg := New()
	applyDatabaseURLOverride(cfg)

	if cfg.Database.DSN != "postgres://example/db" {
		t.Errorf("DSN = %s, want override applied", cfg.Database.DSN)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Driver = %s, want postgres", cfg.Database.Driver)
	}
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{Host: "localhost", Port: 5432, User: "u", Password: "p", Name: "d", SSLMode: "disable"}
	want := "host=localhost port=5432 user=u password=p dbname=d sslmode=disable"
	if got := db.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %s, want %s", got, want)
	}
}
