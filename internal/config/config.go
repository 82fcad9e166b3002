package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port               string
	Environment        string
	SupabaseURL        string
	SupabaseKey        string // anon key, sent as apikey to the auth API
	SupabaseServiceKey string // service role key, seeder only
	SupabaseDBURL      string
	SupabaseJWKSURL    string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	CORSOrigins        string
	TablePrefix        string
	// Storage
	StoreDriver string // "postgres" or "sqlite"
	SQLitePath  string
	// Logging
	LogDir      string
	LogMaxFiles int
	// Session cookies
	CookieSecure bool
	// Client (CLI) settings
	APIBaseURL string
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)
	supabaseURL := strings.TrimRight(getEnv("SUPABASE_URL", "http://127.0.0.1:54321"), "/")

	// Construct JWKS URL from Supabase URL
	jwksURL := supabaseURL + "/auth/v1/.well-known/jwks.json"

	return &Config{
		Port:               getEnv("PORT", "8080"),
		Environment:        env,
		SupabaseURL:        supabaseURL,
		SupabaseKey:        getEnv("SUPABASE_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseDBURL:      getEnv("SUPABASE_DB_URL", ""),
		SupabaseJWKSURL:    jwksURL,
		CORSOrigins:        getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:        tablePrefix,
		StoreDriver:        getEnv("STORE_DRIVER", "postgres"),
		SQLitePath:         getEnv("SQLITE_PATH", "fiszki.db"),
		LogDir:             getEnv("LOG_DIR", ""),
		LogMaxFiles:        getEnvInt("LOG_MAX_FILES", 10),
		// Secure cookies default to on outside dev/test
		CookieSecure: getEnv("COOKIE_SECURE", getDefaultCookieSecure(env)) == "true",
		APIBaseURL:   strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

// IsDev reports whether the server runs in the development environment
func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

// getDefaultCookieSecure returns the default Secure cookie flag based on environment
func getDefaultCookieSecure(env string) string {
	if env == "prod" {
		return "true"
	}
	return "false"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
