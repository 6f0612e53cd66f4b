package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string
	Host string
	Port string

	CORSAllowedOrigins []string
	MaxUploadBytes     int64
	MaxRequestBytes    int64
	MaxFiles           int
	RateLimitPerMinute int
	DataDir            string

	DB                 DBConfig
	Storage            StorageConfig
	Auth               AuthConfig
	SMTP               SMTPConfig
	Redis              RedisConfig
	Log                LogConfig
	Notify             NotifyConfig
	AuditRetentionDays int
}

type DBConfig struct {
	Driver   string
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type StorageConfig struct {
	Backend string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	DriveCredentialsFile     string
	DriveFolderIDSubmissions string
	DriveFolderIDTemplates   string
	TemplatesDir             string
	TemplateCacheTTL         time.Duration
}

type AuthConfig struct {
	JWTSecret           string
	Issuer              string
	AllowedEmailDomains []string
	AdminEmailKeywords  []string
	DevBypassToken      string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
	TLS      bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type NotifyConfig struct {
	QueueSize int
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds a validated Config from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Env:                getEnv("APP_ENV", EnvDevelopment),
		Host:               getEnv("HOST", "0.0.0.0"),
		Port:               getEnv("PORT", "3000"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", "http://localhost:9000,http://localhost:8080"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		MaxRequestBytes:    int64(getEnvInt("MAX_REQUEST_BYTES", 50<<20)),
		MaxFiles:           getEnvInt("MAX_FILES_PER_SUBMISSION", 20),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		DataDir:            getEnv("DATA_DIR", "./uploads"),
		DB: DBConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:      getEnv("DB_DSN", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "club_intake"),
		},
		Storage: StorageConfig{
			Backend:                  strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
			MinioEndpoint:            getEnv("MINIO_ENDPOINT", "localhost:9000"),
			MinioAccessKey:           getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			MinioSecretKey:           getEnv("MINIO_SECRET_KEY", "minioadmin"),
			MinioBucket:              getEnv("MINIO_BUCKET", "club-intake"),
			MinioUseSSL:              getEnvBool("MINIO_USE_SSL", false),
			DriveCredentialsFile:     getEnv("DRIVE_CREDENTIALS_FILE", ""),
			DriveFolderIDSubmissions: getEnv("DRIVE_FOLDER_ID_SUBMISSIONS", ""),
			DriveFolderIDTemplates:   getEnv("DRIVE_FOLDER_ID_TEMPLATES", ""),
			TemplatesDir:             getEnv("TEMPLATES_DIR", "./templates"),
			TemplateCacheTTL:         getEnvDuration("TEMPLATE_CACHE_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret:           getEnv("JWT_SECRET", ""),
			Issuer:              getEnv("JWT_ISSUER", ""),
			AllowedEmailDomains: getEnvList("ALLOWED_EMAIL_DOMAINS", "tp.edu.tw"),
			AdminEmailKeywords:  getEnvList("ADMIN_EMAIL_KEYWORDS", "admin,affair"),
			DevBypassToken:      getEnv("DEV_BYPASS_TOKEN", ""),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			User:     getEnv("SMTP_USER", ""),
			Pass:     getEnv("SMTP_PASS", ""),
			From:     getEnv("SMTP_FROM", getEnv("SMTP_USER", "")),
			FromName: getEnv("SMTP_FROM_NAME", "建中社團系統"),
			TLS:      getEnvBool("SMTP_TLS", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Path:       getEnv("LOG_PATH", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 7),
			Compress:   getEnvBool("LOG_COMPRESS", false),
		},
		Notify: NotifyConfig{
			QueueSize: getEnvInt("NOTIFY_QUEUE_SIZE", 100),
		},
		AuditRetentionDays: getEnvInt("AUDIT_RETENTION_DAYS", 180),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

func (c *Config) Validate() error {
	var errs []error
	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.MaxRequestBytes < c.MaxUploadBytes {
		errs = append(errs, errors.New("MAX_REQUEST_BYTES must be at least MAX_UPLOAD_BYTES"))
	}
	if c.MaxFiles <= 0 {
		errs = append(errs, errors.New("MAX_FILES_PER_SUBMISSION must be positive"))
	}
	switch c.DB.Driver {
	case "postgres", "mysql", "sqlite", "none":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver))
	}
	switch c.Storage.Backend {
	case "local", "minio":
	case "drive":
		if c.Storage.DriveCredentialsFile == "" || c.Storage.DriveFolderIDSubmissions == "" {
			errs = append(errs, errors.New("STORAGE_BACKEND=drive requires DRIVE_CREDENTIALS_FILE and DRIVE_FOLDER_ID_SUBMISSIONS"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend))
	}
	if c.Env == EnvProduction {
		if c.Auth.DevBypassToken != "" {
			errs = append(errs, errors.New("DEV_BYPASS_TOKEN must not be set in production"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
