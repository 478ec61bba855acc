package config

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment         string
	EncryptionKeyBase64 string
	DBHost              string
	DBPort              string
	DBUsername          string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	Port                string
	Timezone            string

	// Mail servers every account logs in to, as host:port.
	IMAPServer string
	SMTPServer string
	IMAPUseTLS bool

	IMAPMaxWorkers int
	FetchLimit     int
	PageSize       int
	SessionTTL     time.Duration
}

func NewConfig() (*Config, error) {
	env := loadEnvironment()

	config := &Config{
		Environment:         env,
		EncryptionKeyBase64: os.Getenv("VMAIL_ENCRYPTION_KEY_BASE64"),
		DBHost:              getEnvOrDefault("VMAIL_DB_HOST", "localhost"),
		DBPort:              getEnvOrDefault("VMAIL_DB_PORT", "5432"),
		DBUsername:          getEnvOrDefault("VMAIL_DB_USER", "vmail"),
		DBPassword:          os.Getenv("VMAIL_DB_PASSWORD"),
		DBName:              getEnvOrDefault("VMAIL_DB_NAME", "vmail"),
		DBSSLMode:           getEnvOrDefault("VMAIL_DB_SSLMODE", "disable"),
		Port:                getEnvOrDefault("PORT", "11764"),
		Timezone:            getEnvOrDefault("TZ", "UTC"),
		IMAPServer:          os.Getenv("VMAIL_IMAP_SERVER"),
		SMTPServer:          os.Getenv("VMAIL_SMTP_SERVER"),
	}

	var err error
	if config.IMAPUseTLS, err = getBoolOrDefault("VMAIL_IMAP_TLS", true); err != nil {
		return nil, err
	}
	if config.IMAPMaxWorkers, err = getIntOrDefault("VMAIL_IMAP_MAX_WORKERS", 3); err != nil {
		return nil, err
	}
	if config.FetchLimit, err = getIntOrDefault("VMAIL_FETCH_LIMIT", 10); err != nil {
		return nil, err
	}
	if config.PageSize, err = getIntOrDefault("VMAIL_PAGE_SIZE", 10); err != nil {
		return nil, err
	}
	if config.SessionTTL, err = getDurationOrDefault("VMAIL_SESSION_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.EncryptionKeyBase64 == "" {
		return fmt.Errorf("VMAIL_ENCRYPTION_KEY_BASE64 is required")
	}

	key, err := base64.StdEncoding.DecodeString(c.EncryptionKeyBase64)
	if err != nil {
		return fmt.Errorf("VMAIL_ENCRYPTION_KEY_BASE64 is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return fmt.Errorf("VMAIL_ENCRYPTION_KEY_BASE64 must decode to 32 bytes, got %d", len(key))
	}

	if c.DBPassword == "" {
		return fmt.Errorf("VMAIL_DB_PASSWORD is required")
	}

	if c.IMAPServer == "" {
		return fmt.Errorf("VMAIL_IMAP_SERVER is required")
	}

	if c.SMTPServer == "" {
		return fmt.Errorf("VMAIL_SMTP_SERVER is required")
	}

	if c.IMAPMaxWorkers < 1 {
		return fmt.Errorf("VMAIL_IMAP_MAX_WORKERS must be at least 1")
	}

	if c.FetchLimit < 1 {
		return fmt.Errorf("VMAIL_FETCH_LIMIT must be at least 1")
	}

	if c.PageSize < 1 {
		return fmt.Errorf("VMAIL_PAGE_SIZE must be at least 1")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUsername, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	ServerURL string
	Token     string
	// Account is shown as the sender of sent messages until the next fetch.
	Account   string
	PageSize  int
}

func NewClientConfig() (*ClientConfig, error) {
	loadEnvironment()

	config := &ClientConfig{
		ServerURL: getEnvOrDefault("VMAIL_SERVER_URL", "http://localhost:11764"),
		Token:     os.Getenv("VMAIL_TOKEN"),
		Account:   os.Getenv("VMAIL_ACCOUNT"),
	}

	var err error
	if config.PageSize, err = getIntOrDefault("VMAIL_PAGE_SIZE", 10); err != nil {
		return nil, err
	}
	if config.PageSize < 1 {
		return nil, fmt.Errorf("VMAIL_PAGE_SIZE must be at least 1")
	}

	return config, nil
}

// loadEnvironment reads .env in development and returns the environment name.
func loadEnvironment() string {
	env := os.Getenv("VMAIL_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	return env
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return n, nil
}

func getBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false: %w", key, err)
	}
	return b, nil
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
