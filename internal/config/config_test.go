package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mwbgen.yaml")

	content := `version: 1
output:
  migrations: db/migrations
  report: mwbgen-report.json
laravel:
  namespace: App\Models
pivots:
  - role_user
formatter:
  enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Version != 1 {
		t.Errorf("expected version 1, got %d", cfg.Version)
	}
	if cfg.Output.Migrations != "db/migrations" {
		t.Errorf("expected db/migrations, got %s", cfg.Output.Migrations)
	}
	if cfg.Output.Models != "app" {
		t.Errorf("expected default models dir app, got %s", cfg.Output.Models)
	}
	if cfg.Laravel.Namespace != `App\Models` {
		t.Errorf("expected App\\Models, got %s", cfg.Laravel.Namespace)
	}
	if len(cfg.Pivots) != 1 || cfg.Pivots[0] != "role_user" {
		t.Errorf("unexpected pivots %v", cfg.Pivots)
	}
	if cfg.Formatter.Enabled {
		t.Error("expected formatter disabled")
	}
	if cfg.Formatter.Command == "" {
		t.Error("expected default formatter command")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadFormatterEnabledByDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mwbgen.yaml")
	if err := os.WriteFile(path, []byte("version: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Formatter.Enabled {
		t.Error("expected formatter enabled by default")
	}
}

func TestLoadInvalidVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mwbgen.yaml")

	if err := os.WriteFile(path, []byte("version: 99\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid version")
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for a missing explicit config")
	}
}

func TestLoadMissingDefaultPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Output.Migrations != filepath.Join("database", "migrations") {
		t.Errorf("expected default migrations dir, got %s", cfg.Output.Migrations)
	}
	if cfg.Laravel.Namespace != "App" {
		t.Errorf("expected default namespace App, got %s", cfg.Laravel.Namespace)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mwbgen.yaml")
	cfg := Default()
	cfg.Pivots = []string{"author_book"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Pivots) != 1 || loaded.Pivots[0] != "author_book" {
		t.Errorf("pivots = %v", loaded.Pivots)
	}
}

func TestResolveEnvInConfig(t *testing.T) {
	t.Setenv("MWBGEN_TEST_APP", "/srv/app")
	dir := t.TempDir()
	path := filepath.Join(dir, "mwbgen.yaml")

	content := `version: 1
output:
  migrations: ${ENV:MWBGEN_TEST_APP}/database/migrations
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Output.Migrations != "/srv/app/database/migrations" {
		t.Errorf("got %s", cfg.Output.Migrations)
	}
}

func TestResolveValue(t *testing.T) {
	t.Setenv("MWBGEN_TEST_NS", "Acme")

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"plaintext", "plaintext", false},
		{"${ENV:MWBGEN_TEST_NS}", "Acme", false},
		{`${ENV:MWBGEN_TEST_NS}\Models`, `Acme\Models`, false},
		{"${ENV:MWBGEN_TEST_UNSET}", "", true},
	}
	for _, tt := range tests {
		got, err := ResolveValue(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ResolveValue(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("MWBGEN_TEST_FROM_DOTENV=yes\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MWBGEN_TEST_FROM_DOTENV", "")
	os.Unsetenv("MWBGEN_TEST_FROM_DOTENV")

	if err := LoadEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("MWBGEN_TEST_FROM_DOTENV"); got != "yes" {
		t.Errorf("got %q, want yes", got)
	}
}
