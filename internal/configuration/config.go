package configuration

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Database   DatabaseConfig
	MinIO      MinIOConfig
	Server     ServerConfig
	Session    SessionConfig
	Upload     UploadConfig
	NATSURL    string
	CLAMAVURL  string
	OIDCIssuer string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
	UseSSL     bool
}

type ServerConfig struct {
	Port string
}

type SessionConfig struct {
	Secret     string
	CookieName string
	MaxAge     int
}

type UploadConfig struct {
	MaxSizeMB int64
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "urfiles"),
			Password: getEnv("DB_PASSWORD", "urfiles"),
			DBName:   getEnv("DB_NAME", "urfiles"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
			BucketName: getEnv("BUCKET_NAME", "files"),
			PublicURL:  getEnv("MINIO_PUBLIC_URL", ""),
			UseSSL:     getEnv("MINIO_USE_SSL", "false") == "true",
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Session: SessionConfig{
			Secret:     getEnv("SESSION_SECRET", "dev-secret-change-me"),
			CookieName: getEnv("SESSION_COOKIE", "urfiles_session"),
			MaxAge:     getEnvInt("SESSION_MAX_AGE", 7*24*3600),
		},
		Upload: UploadConfig{
			MaxSizeMB: int64(getEnvInt("MAX_UPLOAD_MB", 50)),
		},
		NATSURL:    getEnv("NATS_URL", ""),
		CLAMAVURL:  getEnv("CLAMAV_URL", ""),
		OIDCIssuer: getEnv("OIDC_ISSUER", ""),
	}
}

func (c *DatabaseConfig) ConnectionString() string {
	if c.Driver == "sqlite3" {
		// DBName doubles as the file path, e.g. ":memory:" or "urfiles.db".
		return c.DBName
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
