package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "JWT_TTL", "PROTECTED_PAGES", "COOKIE_NAME", "ENTRY_PAGE", "BCRYPT_COST", "STORAGE_DRIVER"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Env != "dev" {
		t.Fatalf("env: got %s", cfg.Env)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Fatalf("JWT_TTL default: got %s", cfg.JWTTTL)
	}
	if cfg.CookieName != "token" || cfg.EntryPage != "/login" {
		t.Fatalf("cookie/entry defaults: %q %q", cfg.CookieName, cfg.EntryPage)
	}
	if cfg.BcryptCost != 10 {
		t.Fatalf("bcrypt cost default: got %d", cfg.BcryptCost)
	}
	if !reflect.DeepEqual(cfg.ProtectedPages, defaultProtectedPages) {
		t.Fatalf("protected pages: got %v", cfg.ProtectedPages)
	}
	if cfg.StorageDriver != "postgres" {
		t.Fatalf("storage driver: got %s", cfg.StorageDriver)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_ALGORITHM", "rs256")
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("PROTECTED_PAGES", " /dashboard, ,/tutor ")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "tutors")
	t.Setenv("AUTH_RATE_LIMIT", "not-a-number")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Fatalf("port: got %d", cfg.Port)
	}
	if cfg.JWTAlgorithm != "RS256" {
		t.Fatalf("algorithm should be upper-cased, got %s", cfg.JWTAlgorithm)
	}
	if cfg.JWTTTL != 30*time.Minute {
		t.Fatalf("ttl: got %s", cfg.JWTTTL)
	}
	if !reflect.DeepEqual(cfg.ProtectedPages, []string{"/dashboard", "/tutor"}) {
		t.Fatalf("protected pages: got %v", cfg.ProtectedPages)
	}
	if !strings.Contains(cfg.DBURL, "@db:5432/tutors?") {
		t.Fatalf("db url: got %s", cfg.DBURL)
	}
	if cfg.AuthRateLimit != 10 {
		t.Fatalf("invalid int should fall back, got %d", cfg.AuthRateLimit)
	}
}

func TestGetEnvKey(t *testing.T) {
	t.Setenv("TEST_KEY", `-----BEGIN KEY-----\nabc\n-----END KEY-----`)
	if got := getEnvKey("TEST_KEY"); got != "-----BEGIN KEY-----\nabc\n-----END KEY-----" {
		t.Fatalf("escaped newlines not expanded: %q", got)
	}

	path := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(path, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TEST_KEY_FILE", path)
	if got := getEnvKey("TEST_KEY"); got != "from-file" {
		t.Fatalf("_FILE should win: got %q", got)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Env:            "prod",
		Port:           8080,
		StorageDriver:  "postgres",
		JWTAlgorithm:   "HS256",
		JWTSecret:      "s3cret",
		JWTTTL:         time.Hour,
		AuthRateLimit:  10,
		AuthRateWindow: time.Minute,
		EntryPage:      "/login",
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing_secret_prod", mutate: func(c *Config) { c.JWTSecret = "" }, wantErr: true},
		{name: "missing_secret_dev", mutate: func(c *Config) { c.JWTSecret = ""; c.Env = "dev" }},
		{name: "rs256_without_key", mutate: func(c *Config) { c.JWTAlgorithm = "RS256" }, wantErr: true},
		{name: "unknown_algorithm", mutate: func(c *Config) { c.JWTAlgorithm = "none" }, wantErr: true},
		{name: "unknown_driver", mutate: func(c *Config) { c.StorageDriver = "sqlite" }, wantErr: true},
		{name: "relative_entry_page", mutate: func(c *Config) { c.EntryPage = "login" }, wantErr: true},
		{name: "zero_ttl", mutate: func(c *Config) { c.JWTTTL = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATIO", "0.1")
	if got := getEnvFloat("OTEL_SAMPLE_RATIO", 1); got != 0.1 {
		t.Fatalf("got %v", got)
	}

	t.Setenv("OTEL_SAMPLE_RATIO", "lots")
	if got := getEnvFloat("OTEL_SAMPLE_RATIO", 1); got != 1 {
		t.Fatalf("unparsable value should fall back, got %v", got)
	}
}
