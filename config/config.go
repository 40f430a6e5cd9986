package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// minTokenSecretLen is the shortest accepted confirmation-token secret.
const minTokenSecretLen = 32

// Config holds application configuration loaded from environment.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Registration RegistrationConfig
	AWS          AWSConfig
	Email        EmailConfig
	Worker       WorkerConfig
}

// RegistrationConfig holds the self-service registration workflow settings.
type RegistrationConfig struct {
	RetentionHours       int      // unconfirmed records older than this are expired and swept
	TrustedDomains       string   // newline-delimited email domains auto-approved on confirmation
	TokenSecret          string
	PreviousTokenSecrets []string // still accepted for decoding during a rotation window
	PublicBaseURL        string   // used to build confirmation and edit links
	SiteName             string
	SystemAssessorID     uuid.UUID // stamped as assessor on auto-approval
	DraftTTLMinutes      int
}

// EmailConfig for SMTP delivery.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	SweepIntervalMinutes int
	PollTimeoutSeconds   int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/registration?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the privacy export bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ExportsBucket        string
	PresignExpireMinutes int
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	reg, err := loadRegistration()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "registration"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		Registration: *reg,
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ExportsBucket:        getEnv("AWS_S3_EXPORTS_BUCKET", "registration-privacy-exports"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Aura LMS"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
		},
		Worker: WorkerConfig{
			SweepIntervalMinutes: getEnvInt("WORKER_SWEEP_INTERVAL_MINUTES", 60),
			PollTimeoutSeconds:   getEnvInt("WORKER_POLL_TIMEOUT_SEC", 5),
		},
	}
	return cfg, nil
}

func loadRegistration() (*RegistrationConfig, error) {
	hours := getEnvInt("REGISTRATION_UNCONFIRMED_HOURS", 24)
	if hours < 0 {
		return nil, fmt.Errorf("REGISTRATION_UNCONFIRMED_HOURS must be >= 0, got %d", hours)
	}

	secret := os.Getenv("REGISTRATION_TOKEN_SECRET")
	if secret == "" {
		return nil, errors.New("REGISTRATION_TOKEN_SECRET is required")
	}
	if len(secret) < minTokenSecretLen {
		return nil, fmt.Errorf("REGISTRATION_TOKEN_SECRET must be at least %d bytes", minTokenSecretLen)
	}

	domains := getEnv("REGISTRATION_TRUSTED_DOMAINS", "")
	if path := os.Getenv("REGISTRATION_TRUSTED_DOMAINS_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read trusted domains file: %w", err)
		}
		domains = string(b)
	}

	assessor := uuid.Nil
	if v := os.Getenv("REGISTRATION_SYSTEM_ASSESSOR_ID"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("REGISTRATION_SYSTEM_ASSESSOR_ID: %w", err)
		}
		assessor = id
	}

	return &RegistrationConfig{
		RetentionHours:       hours,
		TrustedDomains:       domains,
		TokenSecret:          secret,
		PreviousTokenSecrets: splitTrim(getEnv("REGISTRATION_TOKEN_PREVIOUS_SECRETS", ""), ","),
		PublicBaseURL:        strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		SiteName:             getEnv("SITE_NAME", "Aura LMS"),
		SystemAssessorID:     assessor,
		DraftTTLMinutes:      getEnvInt("REGISTRATION_DRAFT_TTL_MINUTES", 30),
	}, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
