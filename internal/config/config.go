package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

var (
	ErrInvalidPort          = errors.New("http port must be between 1 and 65535")
	ErrUnknownStoreBackend  = errors.New("store backend must be file or postgres")
	ErrPostgresStoreNoDB    = errors.New("postgres store backend requires DB_ENABLED")
	ErrUnknownAIProvider    = errors.New("ai provider must be openai or gemini")
	ErrInvalidAITokenLimit  = errors.New("ai max tokens must be positive")
	ErrInvalidAITemperature = errors.New("ai temperature must be between 0 and 2")
)

const (
	EnvTest = "test"

	StoreFile     = "file"
	StorePostgres = "postgres"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	HTTP     HTTPConfig     `yaml:"http"`
	Store    StoreConfig    `yaml:"store"`
	JokeAPI  JokeAPIConfig  `yaml:"joke_api"`
	AI       AIConfig       `yaml:"ai"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Bot      BotConfig      `yaml:"bot"`
}

type AppConfig struct {
	Name        string `yaml:"name" env:"APP_NAME" env-default:"joke-server"`
	Environment string `yaml:"environment" env:"APP_ENV" env-default:"development"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

// IsTest reports whether the process runs under tests, where no listener is started.
func (a AppConfig) IsTest() bool {
	return a.Environment == EnvTest
}

type HTTPConfig struct {
	Port            int           `yaml:"port" env:"PORT" env-default:"3000"`
	ClientDir       string        `yaml:"client_dir" env:"HTTP_CLIENT_DIR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

func (h HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", h.Port)
}

type StoreConfig struct {
	Backend string `yaml:"backend" env:"STORE_BACKEND" env-default:"file"`
	Path    string `yaml:"path" env:"JOKES_PATH" env-default:"data/jokes.json"`
}

type JokeAPIConfig struct {
	URL         string        `yaml:"url" env:"JOKE_API_URL" env-default:"https://v2.jokeapi.dev/joke/Any"`
	AllowUnsafe bool          `yaml:"allow_unsafe" env:"JOKE_API_ALLOW_UNSAFE"`
	Timeout     time.Duration `yaml:"timeout" env:"JOKE_API_TIMEOUT" env-default:"10s"`
}

type AIConfig struct {
	Provider     string        `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	OpenAIAPIKey string        `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	GeminiAPIKey string        `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	BaseURL      string        `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	Model        string        `yaml:"model" env:"AI_MODEL"`
	MaxTokens    int           `yaml:"max_tokens" env:"AI_MAX_TOKENS" env-default:"100"`
	Temperature  float64       `yaml:"temperature" env:"AI_TEMPERATURE" env-default:"0.8"`
	Timeout      time.Duration `yaml:"timeout" env:"AI_TIMEOUT" env-default:"15s"`
}

// APIKey returns the credential of the selected provider; empty means not configured.
func (a AIConfig) APIKey() string {
	if a.Provider == ProviderGemini {
		return a.GeminiAPIKey
	}
	return a.OpenAIAPIKey
}

type DatabaseConfig struct {
	Enabled        bool   `yaml:"enabled" env:"DB_ENABLED" env-default:"false"`
	Host           string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User           string `yaml:"user" env:"DB_USER" env-default:"jokes"`
	Password       string `yaml:"password" env:"DB_PASSWORD"`
	Name           string `yaml:"name" env:"DB_NAME" env-default:"jokes"`
	MaxConnections int    `yaml:"max_connections" env:"DB_MAX_CONNECTIONS" env-default:"10"`
	MinConnections int    `yaml:"min_connections" env:"DB_MIN_CONNECTIONS" env-default:"1"`
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

type NATSConfig struct {
	Enabled    bool   `yaml:"enabled" env:"NATS_ENABLED" env-default:"false"`
	URL        string `yaml:"url" env:"NATS_URL" env-default:"nats://localhost:4222"`
	StreamName string `yaml:"stream_name" env:"NATS_STREAM" env-default:"JOKES"`
}

type BotConfig struct {
	Token string `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
}

func (b BotConfig) Enabled() bool {
	return b.Token != ""
}

// Load reads the configuration and validates it for the server.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read loads CONFIG_PATH (configs/config.yaml by default) when it exists and
// applies environment overrides on top. The result is not validated, so the
// database tools can run with server settings they do not use.
func Read() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	var cfg Config

	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from %s: %w", configPath, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return ErrInvalidPort
	}

	switch c.Store.Backend {
	case StoreFile:
	case StorePostgres:
		if !c.Database.Enabled {
			return ErrPostgresStoreNoDB
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreBackend, c.Store.Backend)
	}

	switch c.AI.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAIProvider, c.AI.Provider)
	}

	if c.AI.MaxTokens <= 0 {
		return ErrInvalidAITokenLimit
	}

	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return ErrInvalidAITemperature
	}

	return nil
}
