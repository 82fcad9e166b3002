package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetTablePrefix(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		override string
		want     string
	}{
		{name: "prod", env: "prod", want: "prod_"},
		{name: "test", env: "test", want: "test_"},
		{name: "dev", env: "dev", want: "dev_"},
		{name: "unknown falls back to dev", env: "staging", want: "dev_"},
		{name: "override wins", env: "prod", override: "custom_", want: "custom_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TABLE_PREFIX", tt.override)
			if got := getTablePrefix(tt.env); got != tt.want {
				t.Errorf("getTablePrefix(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoad_CookieSecureDefaults(t *testing.T) {
	t.Setenv("COOKIE_SECURE", "")

	t.Setenv("ENVIRONMENT", "prod")
	if cfg := Load(); !cfg.CookieSecure {
		t.Error("expected secure cookies in prod")
	}

	t.Setenv("ENVIRONMENT", "dev")
	if cfg := Load(); cfg.CookieSecure {
		t.Error("expected insecure cookies in dev")
	}
}

func TestLoad_JWKSURL(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co/")
	cfg := Load()
	want := "https://abc.supabase.co/auth/v1/.well-known/jwks.json"
	if cfg.SupabaseJWKSURL != want {
		t.Errorf("SupabaseJWKSURL = %q, want %q", cfg.SupabaseJWKSURL, want)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"server-2025-01-01T00-00-00.log",
		"server-2025-01-02T00-00-00.log",
		"server-2025-01-03T00-00-00.log",
		"other-2025-01-01T00-00-00.log",
	}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := cleanupOldLogs(dir, "server", 2); err != nil {
		t.Fatalf("cleanupOldLogs: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, names[0])); !os.IsNotExist(err) {
		t.Error("oldest server log should have been removed")
	}
	for _, n := range names[1:] {
		if _, err := os.Stat(filepath.Join(dir, n)); err != nil {
			t.Errorf("%s should still exist: %v", n, err)
		}
	}
}
