package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	CompletionAzure        = "azure"
	CompletionOpenAICompat = "openai_compat"

	DefaultAPIVersion = "2024-05-01-preview"
)

var (
	ErrMissingEndpoint    = errors.New("AZURE_OPENAI_ENDPOINT is required")
	ErrMissingAPIKey      = errors.New("AZURE_OPENAI_API_KEY is required")
	ErrMissingDeployment  = errors.New("DEPLOYMENT_NAME is required for azure completion")
	ErrMissingDatabaseDSN = errors.New("DB_DSN is required")
	ErrInvalidEnv         = errors.New("APP_ENV must be 'development' or 'production'")
)

type Config struct {
	Env        string
	ListenAddr string

	DB         DBConfig
	Redis      RedisConfig
	Completion CompletionConfig
	Assets     AssetsConfig
	Session    SessionConfig
	Log        LogConfig
}

type DBConfig struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CompletionConfig struct {
	Kind       string
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
	Model      string
	Timeout    time.Duration
}

type AssetsConfig struct {
	PDFFolder string
}

type SessionConfig struct {
	TTL                  time.Duration
	LoginAttemptsPerHour int64
	CurrentKeyID         string
	Keys                 map[string][]byte
	CookieSecure         bool
}

type LogConfig struct {
	Level string
}

func (c *Config) Production() bool {
	return c.Env == EnvProduction
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := strings.ToLower(mustEnv("APP_ENV", EnvDevelopment))
	if env != EnvDevelopment && env != EnvProduction {
		return nil, ErrInvalidEnv
	}

	dataRoot := "."
	if env == EnvProduction {
		dataRoot = "/home/data"
	}
	instance := filepath.Join(dataRoot, "instance")
	pdfDefault := "data"
	if env == EnvProduction {
		pdfDefault = filepath.Join(dataRoot, "pdfs")
	}

	listen := mustEnv("LISTEN_ADDR", "")
	if listen == "" {
		listen = ":" + mustEnv("PORT", "8000")
	}

	cfg := &Config{
		Env:        env,
		ListenAddr: listen,
		DB: DBConfig{
			Driver:      strings.ToLower(mustEnv("DB_DRIVER", "sqlite")),
			DSN:         mustEnv("DB_DSN", filepath.Join(instance, "site.db")),
			AutoMigrate: mustBool("AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     mustEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: mustEnv("REDIS_PASSWORD", ""),
			DB:       mustInt("REDIS_DB", 0),
		},
		Completion: CompletionConfig{
			Kind:       strings.ToLower(mustEnv("COMPLETION_KIND", CompletionAzure)),
			Endpoint:   mustEnv("AZURE_OPENAI_ENDPOINT", ""),
			APIKey:     mustEnv("AZURE_OPENAI_API_KEY", ""),
			Deployment: mustEnv("DEPLOYMENT_NAME", ""),
			APIVersion: mustEnv("API_VERSION", DefaultAPIVersion),
			Model:      mustEnv("COMPLETION_MODEL", ""),
			Timeout:    mustDuration("COMPLETION_TIMEOUT", 600*time.Second),
		},
		Assets: AssetsConfig{
			PDFFolder: mustEnv("PDF_FOLDER", pdfDefault),
		},
		Session: SessionConfig{
			TTL:                  mustDuration("SESSION_TTL", 30*time.Minute),
			LoginAttemptsPerHour: int64(mustInt("LOGIN_ATTEMPTS_PER_HOUR", 20)),
			CookieSecure:         mustBool("COOKIE_SECURE", env == EnvProduction),
		},
		Log: LogConfig{
			Level: strings.ToLower(mustEnv("LOG_LEVEL", "info")),
		},
	}

	if cfg.DB.DSN == "" {
		return nil, ErrMissingDatabaseDSN
	}
	if cfg.Completion.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.Completion.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	switch cfg.Completion.Kind {
	case CompletionAzure:
		if cfg.Completion.Deployment == "" {
			return nil, ErrMissingDeployment
		}
	case CompletionOpenAICompat:
	default:
		return nil, fmt.Errorf("unsupported COMPLETION_KIND %q", cfg.Completion.Kind)
	}

	current, keys, err := loadSessionKeys()
	if err != nil {
		return nil, err
	}
	cfg.Session.CurrentKeyID = current
	cfg.Session.Keys = keys

	return cfg, nil
}

// loadSessionKeys collects cookie sealing keys. No keys is not an error: the
// caller generates an ephemeral one.
func loadSessionKeys() (string, map[string][]byte, error) {
	keysB64 := map[string]string{}

	if raw := mustEnv("SESSION_KEYS_JSON", ""); raw != "" {
		var parsed map[string]string
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return "", nil, fmt.Errorf("parse SESSION_KEYS_JSON: %w", err)
		}
		for id, val := range parsed {
			if strings.TrimSpace(id) == "" || strings.TrimSpace(val) == "" {
				continue
			}
			keysB64[id] = val
		}
	}

	for _, e := range os.Environ() {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "SESSION_KEY_B64" {
			continue
		}
		if !strings.HasPrefix(k, "SESSION_KEY_") || !strings.HasSuffix(k, "_B64") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, "SESSION_KEY_"), "_B64")
		if id == "" || v == "" {
			continue
		}
		keysB64[id] = v
	}

	current := mustEnv("SESSION_KEY_CURRENT_ID", "")
	if single := mustEnv("SESSION_KEY_B64", ""); single != "" {
		if current == "" {
			current = "default"
		}
		keysB64[current] = single
	}

	if len(keysB64) == 0 {
		return "", nil, nil
	}

	keys := make(map[string][]byte, len(keysB64))
	for id, b64 := range keysB64 {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return "", nil, fmt.Errorf("decode session key %q: %w", id, err)
		}
		if len(raw) != 32 {
			return "", nil, fmt.Errorf("session key %q must be 32 bytes after base64 decode", id)
		}
		keys[id] = raw
	}

	if current == "" {
		for id := range keys {
			current = id
			break
		}
	}
	if _, ok := keys[current]; !ok {
		return "", nil, fmt.Errorf("SESSION_KEY_CURRENT_ID=%q does not exist in provided keys", current)
	}
	return current, keys, nil
}

func mustEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func mustInt(key string, def int) int {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func mustBool(key string, def bool) bool {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string, def time.Duration) time.Duration {
	v := mustEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
