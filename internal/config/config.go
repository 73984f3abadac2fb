package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env                string
	LogLevel           string
	MongoURI           string
	MongoDB            string
	ServerAddr         string
	FrontendOrigins    []string
	RateLimitBriefings int
	RateLimitUploads   int
	RateLimitPreview   int
	RateLimitWindowSec int
	RedisURL           string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	CacheTTLSeconds    int
	AdminAPIKey        string
	AdminUser          string
	AdminPassword      string
	JWTSecret          string
	AccessTTLMinutes   int
	RefreshTTLMinutes  int
	CookieSecure       bool
	Timezone           *time.Location

	BrevoAPIKey       string
	BrevoSenderEmail  string
	BrevoSenderName   string
	BrevoSandbox      bool
	AgencyNotifyEmail string

	MinioEndpoint     string
	MinioAccessKey    string
	MinioSecretKey    string
	MinioBucket       string
	MinioPublicBucket string
	MinioUseSSL       bool
	MinioExpireDays   int
	UploadMaxBytes    int64

	ImportMaxBytes   int64
	ImportMaxEntries int
	ImportBatchSize  int
	ImportWorkers    int

	PreviewAllowedHosts []string
	PreviewTimeoutSec   int
	ChromeEnabled       bool
	ChromeRemoteURL     string
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() (*Config, error) {
	// Variables already present in the environment win over .env.
	_ = godotenv.Load()

	loc, err := time.LoadLocation(getEnv("TZ", "America/Sao_Paulo"))
	if err != nil {
		return nil, err
	}

	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017/workflow")
	mongoDB := getEnv("MONGO_DB", "")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "workflow"
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		MongoURI:           mongoURI,
		MongoDB:            mongoDB,
		ServerAddr:         getEnv("SERVER_ADDR", ":8080"),
		FrontendOrigins:    getEnvList("FRONTEND_ORIGIN", []string{"http://localhost:5173"}),
		RateLimitBriefings: getEnvInt("RATE_LIMIT_BRIEFINGS", 5),
		RateLimitUploads:   getEnvInt("RATE_LIMIT_UPLOADS", 30),
		RateLimitPreview:   getEnvInt("RATE_LIMIT_PREVIEW", 60),
		RateLimitWindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds:    getEnvInt("CACHE_TTL_SECONDS", 60),
		AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
		AdminUser:          getEnv("ADMIN_USER", "admin"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AccessTTLMinutes:   getEnvInt("ACCESS_TTL_MINUTES", 15),
		RefreshTTLMinutes:  getEnvInt("REFRESH_TTL_MINUTES", 43200),
		CookieSecure:       getEnvBool("COOKIE_SECURE", false),
		Timezone:           loc,

		BrevoAPIKey:       getEnv("BREVO_API_KEY", ""),
		BrevoSenderEmail:  getEnv("BREVO_SENDER_EMAIL", ""),
		BrevoSenderName:   getEnv("BREVO_SENDER_NAME", "Workflow Digital"),
		BrevoSandbox:      getEnvBool("BREVO_SANDBOX", false),
		AgencyNotifyEmail: getEnv("AGENCY_NOTIFY_EMAIL", ""),

		MinioEndpoint:     getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:    getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:    getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:       getEnv("MINIO_BUCKET", "client-uploads"),
		MinioPublicBucket: getEnv("MINIO_PUBLIC_BUCKET", "portfolio"),
		MinioUseSSL:       getEnvBool("MINIO_USE_SSL", false),
		MinioExpireDays:   getEnvInt("MINIO_EXPIRE_DAYS", 7),
		UploadMaxBytes:    getEnvInt64("UPLOAD_MAX_BYTES", 50<<20),

		ImportMaxBytes:   getEnvInt64("IMPORT_MAX_BYTES", 5<<20),
		ImportMaxEntries: getEnvInt("IMPORT_MAX_ENTRIES", 500),
		ImportBatchSize:  getEnvInt("IMPORT_BATCH_SIZE", 50),
		ImportWorkers:    getEnvInt("IMPORT_WORKERS", 5),

		PreviewAllowedHosts: getEnvList("PREVIEW_ALLOWED_HOSTS", nil),
		PreviewTimeoutSec:   getEnvInt("PREVIEW_TIMEOUT_SEC", 10),
		ChromeEnabled:       getEnvBool("CHROME_ENABLED", false),
		ChromeRemoteURL:     getEnv("CHROME_REMOTE_URL", ""),
	}

	return cfg, nil
}

// AllowsOrigin reports whether origin is one of the configured frontend origins.
func (c *Config) AllowsOrigin(origin string) bool {
	for _, o := range c.FrontendOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	// mongodb URIs sometimes include extra path segments; we only support the first one as db name.
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}
