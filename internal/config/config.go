package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL    string   `yaml:"database_url"`
	JWTSecret      string   `yaml:"jwt_secret"`
	AdminEmails    []string `yaml:"admin_emails"`
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	GinMode        string   `yaml:"gin_mode"`
	RedisURL       string   `yaml:"redis_url"`
	AMQPURL        string   `yaml:"amqp_url"`
	OpenAIAPIKey   string   `yaml:"openai_api_key"`
}

const (
	defaultDatabaseURL    = "sqlite://taskboard.db"
	defaultJWTSecret      = "default-secret-key-change-me"
	defaultPort           = "8000"
	defaultAllowedOrigins = "http://localhost:5173,http://localhost:5174,http://localhost:8080"
	defaultGinMode        = "debug"
)

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		DatabaseURL:    defaultDatabaseURL,
		JWTSecret:      defaultJWTSecret,
		Port:           defaultPort,
		AllowedOrigins: SplitList(defaultAllowedOrigins),
		GinMode:        defaultGinMode,
	}
}

// Load builds the configuration from defaults, an optional YAML file, a .env
// file and the process environment, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG")
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// IsRelease reports whether the server runs in gin release mode.
func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.AdminEmails = normalizeEmails(cfg.AdminEmails)
	return nil
}

func applyEnv(cfg *Config) {
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.GinMode = getEnv("GIN_MODE", cfg.GinMode)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)

	if v := os.Getenv("ADMIN_EMAILS"); v != "" {
		cfg.AdminEmails = normalizeEmails(SplitList(v))
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = SplitList(v)
	}
}

// SplitList splits a comma separated value, trimming blanks.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func normalizeEmails(emails []string) []string {
	result := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			result = append(result, e)
		}
	}
	return result
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
