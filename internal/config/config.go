package config

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	PublicBaseURL   string
}

// Enabled reports whether avatar object storage has been configured.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" && c.BucketName != ""
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type Config struct {
	DatabaseURL      string
	DBAutoMigrate    bool
	RedisURL         string
	Port             string
	JWTSecret        string
	Environment      string
	LogLevel         string
	FrontendURL      string
	MetricsLabels    string
	// UserCacheSize bounds the in-process account cache; 0 disables it.
	UserCacheSize    int64
	// PresignPerMinute caps unauthenticated avatar presigns per client; 0 disables it.
	PresignPerMinute int64
	CorsConfig       cors.Options
	R2               R2Config
	Google           GoogleConfig
}

// IsProduction reports whether cookies should be issued with Secure and SameSite=None.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads envFile (if present) into the process environment and builds a Config.
// An empty envFile falls back to ENV_FILE, then ".env".
func Load(envFile string) Config {
	if envFile == "" {
		envFile = getEnv("ENV_FILE", ".env")
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Debug("No env file found", "file", envFile)
	} else {
		log.Info("Loaded env file", "file", envFile)
	}

	port := getEnv("PORT", "8080")
	return Config{
		DatabaseURL:      getEnv("DB_URL", "file:pidgeon.db"),
		DBAutoMigrate:    getBool("DB_AUTO_MIGRATE", true),
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379/0"),
		Port:             port,
		JWTSecret:        getEnv("JWT_SECRET", "not-so-secret-now-is-it?"),
		Environment:      getEnv("ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:5173"),
		MetricsLabels:    getEnv("METRICS_LABELS", "service=pidgeon"),
		UserCacheSize:    getInt("USER_CACHE_SIZE", 10000),
		PresignPerMinute: getInt("AVATAR_PRESIGN_PER_MINUTE", 10),
		CorsConfig:       CorsConfig(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		R2: R2Config{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("R2_BUCKET_NAME", ""),
			Region:          getEnv("R2_REGION", "auto"),
			PublicBaseURL:   getEnv("R2_PUBLIC_BASE_URL", ""),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:"+port+"/api/v1/auth/google/callback"),
		},
	}
}

// Gets the env by key or fallbacks
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn("Ignoring invalid boolean env value", "key", key, "value", v)
		return fallback
	}
	return b
}

func getInt(key string, fallback int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		log.Warn("Ignoring invalid integer env value", "key", key, "value", v)
		return fallback
	}
	return n
}

// CorsConfig builds the CORS options from a comma-separated origin list.
func CorsConfig(origins string) cors.Options {
	var allowed []string
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}
	return cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}
}

// ParseLogLevel maps LOG_LEVEL to a charmbracelet log level, defaulting to info.
func ParseLogLevel(s string) log.Level {
	lvl, err := log.ParseLevel(strings.ToLower(s))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
