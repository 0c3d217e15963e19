package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	DBURL         string
	DBMaxConns    int32
	StorageDriver string // postgres|memory

	JWTAlgorithm  string // HS256|RS256
	JWTSecret     string
	JWTPrivateKey string
	JWTPublicKey  string
	JWTIssuer     string
	JWTTTL        time.Duration
	BcryptCost    int

	CookieName     string
	EntryPage      string
	ProtectedPages []string
	CORSOrigins    []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuthRateLimit  int
	AuthRateWindow time.Duration

	OTelEndpoint    string
	OTelServiceName string
	OTelSampleRatio float64

	SeedTutorEmail   string
	SeedStudentEmail string
	SeedPassword     string
}

var defaultProtectedPages = []string{
	"/dashboard", "/bookings", "/messages", "/profile", "/tutor", "/student", "/ai-tutor",
}

// Load reads the process environment. A .env file in the working directory,
// when present, fills in keys that are not already set.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("dotenv_load_failed", "err", err)
	}

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		DBURL:         buildDBURL(),
		DBMaxConns:    int32(getEnvInt("DB_MAX_CONNS", 5)),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", "postgres")),

		JWTAlgorithm:  strings.ToUpper(getEnv("JWT_ALGORITHM", "HS256")),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTPrivateKey: getEnvKey("JWT_PRIVATE_KEY"),
		JWTPublicKey:  getEnvKey("JWT_PUBLIC_KEY"),
		JWTIssuer:     getEnv("JWT_ISSUER", "tutorhub"),
		JWTTTL:        getEnvDuration("JWT_TTL", 24*time.Hour),
		BcryptCost:    getEnvInt("BCRYPT_COST", 10),

		CookieName:     getEnv("COOKIE_NAME", "token"),
		EntryPage:      getEnv("ENTRY_PAGE", "/login"),
		ProtectedPages: getEnvList("PROTECTED_PAGES", defaultProtectedPages),
		CORSOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 10),
		AuthRateWindow: getEnvDuration("AUTH_RATE_WINDOW", time.Minute),

		OTelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelServiceName: getEnv("OTEL_SERVICE_NAME", "tutorhub-api"),
		OTelSampleRatio: getEnvFloat("OTEL_SAMPLE_RATIO", 1),

		SeedTutorEmail:   getEnv("SEED_TUTOR_EMAIL", ""),
		SeedStudentEmail: getEnv("SEED_STUDENT_EMAIL", ""),
		SeedPassword:     getEnv("SEED_PASSWORD", ""),
	}
}

// IsLocal reports whether the process runs outside a deployed environment.
func (c Config) IsLocal() bool {
	return c.Env == "dev" || c.Env == "test"
}

// Validate catches settings the server cannot start with. Signing material is
// only mandatory outside dev/test, where a throwaway key is acceptable.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}

	switch c.StorageDriver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be postgres or memory, got %q", c.StorageDriver))
	}

	switch c.JWTAlgorithm {
	case "HS256":
		if c.JWTSecret == "" && !c.IsLocal() {
			errs = append(errs, errors.New("JWT_SECRET is required"))
		}
	case "RS256":
		if c.JWTPrivateKey == "" && !c.IsLocal() {
			errs = append(errs, errors.New("JWT_PRIVATE_KEY is required for RS256"))
		}
	default:
		errs = append(errs, fmt.Errorf("JWT_ALGORITHM must be HS256 or RS256, got %q", c.JWTAlgorithm))
	}

	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.AuthRateLimit <= 0 || c.AuthRateWindow <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT and AUTH_RATE_WINDOW must be positive"))
	}
	if !strings.HasPrefix(c.EntryPage, "/") {
		errs = append(errs, fmt.Errorf("ENTRY_PAGE must be an absolute path, got %q", c.EntryPage))
	}

	return errors.Join(errs...)
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "tutorhub")
	pass := getEnv("DB_PASSWORD", "tutorhub")
	name := getEnv("DB_NAME", "tutorhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("config_invalid_int", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		slog.Warn("config_invalid_duration", "key", key, "value", v)
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// getEnvKey reads PEM material from KEY_FILE or KEY. Single-line values with
// literal \n sequences are expanded.
func getEnvKey(key string) string {
	if file := os.Getenv(key + "_FILE"); file != "" {
		if data, err := os.ReadFile(file); err == nil {
			return normalizePEM(string(data))
		}
		slog.Warn("config_key_file_unreadable", "key", key, "file", file)
	}
	if v := os.Getenv(key); v != "" {
		return normalizePEM(v)
	}
	return ""
}

func normalizePEM(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, `\n`) && !strings.Contains(value, "\n") {
		value = strings.ReplaceAll(value, `\n`, "\n")
	}
	return value
}
