package config

import (
	"fmt"
	"os"
)

// Config holds application configuration
type Config struct {
	Port              string
	StorageDriver     string
	DataDir           string
	DBConn            string
	LogLevel          string
	JWTSecret         string
	OwnerPasswordHash string
	HMACSecret        string
	SMTPHost          string
	SMTPPort          string
	SMTPUsername      string
	SMTPPassword      string
	SenderEmail       string
	NotifyEmail       string
	BackupSchedule    string
	BackupDir         string
}

// Storage drivers
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		StorageDriver:     getEnv("STORAGE_DRIVER", DriverFile),
		DataDir:           getEnv("DATA_DIR", "data"),
		DBConn:            getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=bank sslmode=disable"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:         getEnv("JWT_SECRET", "secret"),
		OwnerPasswordHash: getEnv("OWNER_PASSWORD_HASH", ""),
		HMACSecret:        getEnv("HMAC_SECRET", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getEnv("SMTP_PORT", "587"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SenderEmail:       getEnv("SENDER_EMAIL", ""),
		NotifyEmail:       getEnv("NOTIFY_EMAIL", ""),
		BackupSchedule:    getEnv("BACKUP_SCHEDULE", "@daily"),
		BackupDir:         getEnv("BACKUP_DIR", "backups"),
	}

	switch cfg.StorageDriver {
	case DriverFile:
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("DATA_DIR is required")
		}
	case DriverPostgres:
		if cfg.DBConn == "" {
			return nil, fmt.Errorf("DB_CONN is required")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	if cfg.OwnerPasswordHash != "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when OWNER_PASSWORD_HASH is set")
	}

	return cfg, nil
}

// AuthEnabled reports whether API requests need a bearer token
func (c *Config) AuthEnabled() bool {
	return c.OwnerPasswordHash != ""
}

// MailEnabled reports whether notification emails can be sent
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.SenderEmail != "" && c.NotifyEmail != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
